package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizplay/pkg/launch"
	"github.com/haivivi/gizplay/pkg/pipeline"
	"github.com/haivivi/gizplay/pkg/player"
)

var (
	launchFile  string
	launchSink  string
	launchPrint bool
)

var launchCmd = &cobra.Command{
	Use:   "launch [uri]",
	Short: "Build and run a pipeline from a YAML description",
	Long: `Build a pipeline from a YAML description and run it until end of stream
or error.

Without -f the built-in description is used: a uridecodebin playing the URI,
linked at run time to audioconvert ! audioresample ! sink.

Examples:
  gizplay launch test://tone
  gizplay launch -f pipeline.yaml
  gizplay launch song.mp3 --print > pipeline.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().StringVarP(&launchFile, "file", "f", "", "pipeline description file (YAML)")
	launchCmd.Flags().StringVar(&launchSink, "sink", "", "sink kind for the built-in description")
	launchCmd.Flags().BoolVar(&launchPrint, "print", false, "print the description instead of running it")
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	var d *launch.Description
	switch {
	case launchFile != "":
		if d, err = launch.Load(launchFile); err != nil {
			return err
		}
	case len(args) == 1:
		d = launch.Basic(args[0])
		sink := launchSink
		if sink == "" {
			sink = cfg.SinkKind()
		}
		d.Element("sink").Kind = sink
	default:
		return fmt.Errorf("either a URI or -f is required")
	}

	if launchPrint {
		data, err := d.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	b, err := launch.Build(newFactory(cfg), d, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("not all elements could be created or linked: %w", err)
	}
	defer b.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	res, err := player.New(b.Graph, player.Options{
		PollInterval: cfg.Poll(),
		Logger:       slog.Default(),
	}).Run(ctx)
	if err != nil {
		return err
	}
	if res.Outcome == player.OutcomeEOS {
		fmt.Println("End of Stream reached.")
	}
	return nil
}
