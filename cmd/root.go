package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/media-grabber/internal/app"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/version"
)

var (
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "media-grabber [flags] {urls}",
		Short: "Download audio or video from any site yt-dlp supports.",
		Long: `Media Grabber is a CLI tool for downloading media from the specified URLs through yt-dlp.
It supports downloading:
- Single videos as MP4
- Audio tracks as MP3 or FLAC, tagged and with embedded cover art
- Whole playlists or a range of their entries

Interrupted playlists resume at the first unfinished entry, and transient failures are retried.
Arguments ending in .txt are read as files holding one URL per line.`,
		Args:             cobra.MinimumNArgs(1),
		Version:          version.Full(),
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, urls []string) {
			if err := bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
				logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
			}

			app.ExecuteRootCommand(cmd.Context(), appConfig, urls)
		},
	}
)

// Execute executes the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync()
	}()

	defer stop()

	go func() {
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFilenameFromFlag,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')",
			config.DefaultConfigFilename))

	addRootFlags(rootCmd.Flags())
}

// addRootFlags registers the flags that override configuration values.
func addRootFlags(flags *pflag.FlagSet) {
	flags.StringP(
		"format",
		"f",
		"",
		"output format: mp3, flac (audio only) or mp4 (video).")

	flags.StringP(
		"output",
		"o",
		"",
		"directory to save downloaded files (the path will be created if it doesn’t exist).")

	flags.Int64P(
		"bitrate",
		"b",
		0,
		"audio bitrate in kbps for MP3: 32, 96, 128, 192, 256 or 320.")

	flags.Int64P(
		"quality",
		"q",
		0,
		"maximum video height for MP4: 144, 360, 480, 720, 1080, 1440 or 2160.")

	flags.BoolP(
		"playlist",
		"p",
		false,
		"treat URLs as playlists and download every entry.")

	flags.Int64(
		"start",
		0,
		"1-based index of the first playlist entry to download.")

	flags.Int64(
		"end",
		0,
		"1-based index of the last playlist entry to download (0 means the last entry).")

	flags.StringP(
		"rate-limit",
		"r",
		"",
		"set download speed limit, for example: 500KB, 1MB, 1.5MB.")
}

func initConfig(cmd *cobra.Command, _ []string) {
	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Fatalf(cmd.Context(), "Failed to load configuration: %v", err)
	}

	if level, ok := logger.ParseLogLevel(appConfig.LogLevel); ok {
		logger.SetLevel(level)
	}
}

func bindFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	if flag := flags.Lookup("format"); flag != nil && flag.Changed {
		cfg.Format, _ = flags.GetString("format")
	}

	if flag := flags.Lookup("output"); flag != nil && flag.Changed {
		cfg.OutputPath, _ = flags.GetString("output")
	}

	if flag := flags.Lookup("bitrate"); flag != nil && flag.Changed {
		cfg.AudioBitrate, _ = flags.GetInt64("bitrate")
	}

	if flag := flags.Lookup("quality"); flag != nil && flag.Changed {
		cfg.VideoQuality, _ = flags.GetInt64("quality")
	}

	if flag := flags.Lookup("playlist"); flag != nil && flag.Changed {
		cfg.IsPlaylist, _ = flags.GetBool("playlist")
	}

	if flag := flags.Lookup("start"); flag != nil && flag.Changed {
		cfg.PlaylistStart, _ = flags.GetInt64("start")
	}

	if flag := flags.Lookup("end"); flag != nil && flag.Changed {
		cfg.PlaylistEnd, _ = flags.GetInt64("end")
	}

	if flag := flags.Lookup("rate-limit"); flag != nil && flag.Changed {
		cfg.DownloadSpeedLimit, _ = flags.GetString("rate-limit")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	logger.SetLevel(cfg.ParsedLogLevel)

	return nil
}
