package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/output"
	"github.com/tanq16/mtd/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [DIRECTORY]",
		Short: "Remove working files of abandoned downloads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			removed, err := utils.CleanWorkingFiles(fs, dir)
			for _, file := range removed {
				output.PrintDetail(fmt.Sprintf("removed %s", file))
			}
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				output.PrintWarning(fmt.Sprintf("No working files in %s", dir))
				return nil
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d working files", len(removed)))
			return nil
		},
	}
}
