package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizplay/pkg/cli"
	"github.com/haivivi/gizplay/pkg/elements"
	"github.com/haivivi/gizplay/pkg/history"
	"github.com/haivivi/gizplay/pkg/pipeline"
	"github.com/haivivi/gizplay/pkg/source"
	"github.com/haivivi/gizplay/pkg/storage"
)

const appName = "gizplay"

var (
	// Global flags
	cfgFile      string
	outputFile   string
	formatOutput string
	queryOutput  string
	verbose      bool

	// Global configuration
	globalConfig *cli.Config
	// configLoadErr stores the error from loading the config for deferred
	// reporting, so that commands like version still run.
	configLoadErr error

	// logWriter carries every log record to stderr.
	logWriter *cli.LogWriter
)

var rootCmd = &cobra.Command{
	Use:   "gizplay",
	Short: "Audio pipeline player",
	Long: `gizplay - builds audio pipelines from elements and plays them.

A pipeline links a uridecodebin source, converters and a sink. The source
announces its streams once it has opened the URI; raw audio streams are
linked to the converter chain as they appear.

Supported URIs:
  file:///path/to/song.mp3, /path/to/song.wav
  http(s)://host/stream.mp3
  s3://bucket/key.wav
  ws(s)://host/pcm?rate=16000&channels=1
  test://tone?freq=440&duration=30s

Configuration is stored in ~/.gizplay/config.yaml.

Examples:
  # Play a file, seeking from 10s to 30s once
  gizplay play song.mp3

  # Run the dynamic linking pipeline
  gizplay launch test://tone

  # Describe an element kind
  gizplay inspect fakesink --format json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.gizplay/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "yaml", "output format: yaml, json, table")
	rootCmd.PersistentFlags().StringVarP(&queryOutput, "query", "q", "", "jq expression applied to structured output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	globalConfig, configLoadErr = cli.LoadConfigWithPath(appName, cfgFile)

	level := slog.LevelInfo
	if globalConfig != nil {
		level, _ = globalConfig.LogLevel()
	}
	if verbose {
		level = slog.LevelDebug
	}
	logWriter = cli.NewLogWriter(os.Stderr, nil)
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: level,
	})))
}

// getConfig returns the global configuration.
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// output writes result with the global output flags.
func output(result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: cli.OutputFormat(formatOutput),
		File:   outputFile,
		Query:  queryOutput,
	})
}

// signalContext is cancelled on interrupt or termination.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newFactory returns the element factory, with S3 access when the config
// names a region or an endpoint.
func newFactory(cfg *cli.Config) *pipeline.Factory {
	opener := &source.Opener{Logger: slog.Default()}
	opts := elements.Options{Opener: opener, Logger: slog.Default()}
	if cfg.S3 != (cli.S3Config{}) {
		client := storage.NewS3Client(storage.S3Config(cfg.S3))
		opener.S3, opts.S3 = client, client
	}
	return elements.NewFactory(opts)
}

// openHistory opens the resume-position store described by the config.
func openHistory(cfg *cli.Config) (history.Store, error) {
	if cfg.History.InMemory {
		return history.NewMemory(), nil
	}
	dir := cfg.History.Dir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		dir = paths.HistoryDir()
	}
	return history.NewBadger(history.BadgerOptions{Dir: dir, Logger: slog.Default()})
}
