package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/output"
	"github.com/tanq16/mtd/internal/scheduler"
	"github.com/tanq16/mtd/internal/utils"
)

var MTDVersion = "dev"

// settings are the resolved values of the persistent flags, after the
// config file and MTD_* environment variables are applied.
type settings struct {
	Threads    int
	MetaWrite  time.Duration
	Workers    int
	Retries    int
	SkipVerify bool
	Debug      bool
	HTTP       utils.HTTPClientConfig
}

var (
	cfgFile  string
	current  settings
	fs       = afero.NewOsFs()
	registry = scheduler.DefaultRegistry(fs)
	logFile  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "mtd [URL]",
	Short: "mtd is a resumable multi-threaded download manager",
	Long: `mtd splits a download into byte ranges fetched in parallel and keeps its
progress at the end of the working FILE.mtd, so an interrupted download
resumes where it stopped.`,
	Version: MTDVersion,
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := newViper(cmd, cfgFile)
		if err != nil {
			return err
		}
		current = loadSettings(v)
		logFile, err = utils.InitLogger(current.Debug, !current.Debug)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runJobs([]utils.MTDJob{newJob("http", args[0], outputPath)})
	},
}

var outputPath string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the server or URL if not provided)")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.config/mtd/config.yaml)")
	addSettingsFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newHTTPCmd(), newS3Cmd(), newGDriveCmd(), newGHReleaseCmd(), newBatchCmd(), newResumeCmd(), newInspectCmd(), newCleanCmd())
}

func addSettingsFlags(flags *pflag.FlagSet) {
	flags.IntP("threads", "t", mtd.DefaultThreads, "Number of ranges downloaded in parallel per file (above 5 enables high-thread-mode)")
	flags.Duration("meta-write", mtd.DefaultMetaWrite, "Minimum interval between progress writes to the working file")
	flags.IntP("workers", "w", 1, "Number of files downloaded in parallel")
	flags.Int("retries", mtd.DefaultRetries, "Retries per range after a failed request (0 disables retrying)")
	flags.Bool("skip-verify", false, "Resume even if the remote size or ETag changed")
	flags.Duration("timeout", 0, "Whole-request timeout, 0 for none (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", utils.DefaultKATimeout, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent, or 'randomize'")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayP("header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.Bool("debug", false, "Enable debug logging to stderr")
}

// newViper layers flags over MTD_* environment variables over the config file.
func newViper(cmd *cobra.Command, file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("MTD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return v, nil
		}
		v.AddConfigPath(filepath.Join(home, ".config", "mtd"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}
	return v, nil
}

func loadSettings(v *viper.Viper) settings {
	proxyURL := v.GetString("proxy")
	proxyUsername := v.GetString("proxy-username")
	proxyPassword := v.GetString("proxy-password")
	if parsed, err := url.Parse(proxyURL); err == nil && parsed.User != nil && proxyUsername == "" {
		proxyUsername = parsed.User.Username()
		if password, set := parsed.User.Password(); set {
			proxyPassword = password
		}
		parsed.User = nil
		proxyURL = parsed.String()
	}
	// the engine reads a zero retry count as its default
	retries := v.GetInt("retries")
	if retries <= 0 {
		retries = -1
	}
	return settings{
		Threads:    v.GetInt("threads"),
		MetaWrite:  v.GetDuration("meta-write"),
		Workers:    v.GetInt("workers"),
		Retries:    retries,
		SkipVerify: v.GetBool("skip-verify"),
		Debug:      v.GetBool("debug"),
		HTTP: utils.HTTPClientConfig{
			Timeout:       v.GetDuration("timeout"),
			KATimeout:     v.GetDuration("keep-alive-timeout"),
			ProxyURL:      proxyURL,
			ProxyUsername: proxyUsername,
			ProxyPassword: proxyPassword,
			UserAgent:     v.GetString("user-agent"),
			Headers:       utils.ParseHeaderArgs(v.GetStringSlice("header")),
		},
	}
}

func newJob(jobType, link, output string) utils.MTDJob {
	return utils.MTDJob{
		JobType:          jobType,
		URL:              link,
		OutputPath:       output,
		Threads:          current.Threads,
		MetaWrite:        current.MetaWrite,
		Retries:          current.Retries,
		SkipVerify:       current.SkipVerify,
		HTTPClientConfig: current.HTTP,
		Metadata:         make(map[string]any),
	}
}

// runJobs schedules jobs until they finish or the process is interrupted;
// interrupted downloads keep their working file for a later resume.
func runJobs(jobs []utils.MTDJob) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return scheduler.Run(ctx, jobs, current.Workers, registry)
}
