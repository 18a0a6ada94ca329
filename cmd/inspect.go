package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/output"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [FILE.mtd ...]",
		Short: "Show the progress stored in working files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				m, err := readWorkingFile(fs, arg)
				if err != nil {
					return err
				}
				printMeta(m)
			}
			return nil
		},
	}
}

func printMeta(m mtd.Meta) {
	field := func(name, value string) {
		fmt.Printf("  %s %s\n", output.FDebug(fmt.Sprintf("%-9s", name)), output.FDetail(value))
	}
	output.PrintHeader(m.MTDPath)
	field("Source", fmt.Sprintf("%s %s", m.Source, m.URL))
	field("Target", m.Path)
	if m.ETag != "" {
		field("ETag", m.ETag)
	}
	field("Progress", fmt.Sprintf("%s / %s (%.1f%%)",
		humanize.IBytes(uint64(m.Downloaded())), humanize.IBytes(uint64(m.TotalBytes)),
		output.Percent(m.Downloaded(), m.TotalBytes)))
	field("Threads", fmt.Sprintf("%d, meta written every %s", m.Range, time.Duration(m.MetaWrite)*time.Millisecond))
	for i, r := range m.Threads {
		done := min(max(m.Offsets[i]-r.Start(), 0), r.Len())
		line := fmt.Sprintf("#%d [%d, %d] %s / %s", i, r.Start(), r.End(), humanize.IBytes(uint64(done)), humanize.IBytes(uint64(r.Len())))
		if mtd.IsActive(m, i) {
			fmt.Println("    " + output.FPending(line))
		} else {
			fmt.Println("    " + output.FSuccess(line))
		}
	}
}
