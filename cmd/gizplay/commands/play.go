package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizplay/pkg/elements"
	"github.com/haivivi/gizplay/pkg/history"
	"github.com/haivivi/gizplay/pkg/player"
)

var (
	playSink      string
	playSinkProps map[string]string
	playSeekAt    time.Duration
	playSeekTo    time.Duration
	playRate      int
	playChannels  int
	playResume    bool
	playNoStatus  bool
)

var playCmd = &cobra.Command{
	Use:   "play <uri>",
	Short: "Play a URI, reporting position and seeking once",
	Long: `Play a URI through uridecodebin ! audioconvert ! audioresample ! sink.

While playing, the position and duration are printed on one line. Once the
position passes --seek-at, playback jumps to --seek-to; this happens at most
once and only for seekable streams. Use --seek-at 0 to disable it.

With --resume, playback starts from the position remembered for the URI.

Examples:
  gizplay play song.mp3
  gizplay play test://tone?duration=40s --sink fakesink
  gizplay play song.wav --sink filesink --sink-prop location=out.pcm`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playSink, "sink", "", "sink element kind (default from config, else autoaudiosink)")
	playCmd.Flags().StringToStringVar(&playSinkProps, "sink-prop", nil, "sink property as key=value, repeatable")
	playCmd.Flags().DurationVar(&playSeekAt, "seek-at", 10*time.Second, "seek once the position passes this")
	playCmd.Flags().DurationVar(&playSeekTo, "seek-to", 30*time.Second, "seek target")
	playCmd.Flags().IntVar(&playRate, "rate", 0, "output sample rate (default from config, else the source rate)")
	playCmd.Flags().IntVar(&playChannels, "channels", 0, "output channel count (default: source channels)")
	playCmd.Flags().BoolVar(&playResume, "resume", false, "start from the remembered position")
	playCmd.Flags().BoolVar(&playNoStatus, "no-status", false, "do not print the position line")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	uri := args[0]

	sink := playSink
	if sink == "" {
		sink = cfg.SinkKind()
	}
	rate := playRate
	if rate == 0 {
		rate = cfg.ResampleRate
	}
	sinkProps := make(map[string]any, len(playSinkProps))
	for k, v := range playSinkProps {
		sinkProps[k] = v
	}

	pb, err := elements.NewPlaybin(newFactory(cfg), "playbin", uri, elements.PlaybinOptions{
		Sink:        sink,
		SinkProps:   sinkProps,
		Rate:        rate,
		Channels:    playChannels,
		LinkTimeout: cfg.LinkTimeout.Std(),
		Logger:      slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("not all elements could be created: %w", err)
	}
	defer pb.Close()

	var store history.Store
	if cfg.History.Enabled || playResume {
		if store, err = openHistory(cfg); err != nil {
			return err
		}
		defer store.Close()
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	opts := player.Options{
		PollInterval: cfg.Poll(),
		Policy:       seekPolicy(ctx, cmd, cfg.Seek.At.Std(), cfg.Seek.To.Std(), store, uri),
		History:      store,
		URI:          uri,
		Logger:       slog.Default(),
	}
	if !playNoStatus {
		opts.Status = player.NewStatusLine(os.Stdout)
		logWriter.SetBefore(opts.Status.Break)
		defer logWriter.SetBefore(nil)
	}

	res, err := player.New(pb.Graph, opts).Run(ctx)
	switch {
	case errors.Is(err, player.ErrStartup):
		return fmt.Errorf("unable to set the pipeline to the playing state: %w", err)
	case err != nil:
		return err
	}
	if res.Outcome == player.OutcomeEOS {
		fmt.Println("End of Stream reached.")
	}
	return nil
}

// seekPolicy picks the automatic seek: resuming wins over the seek-once
// jump. Flags given on the command line override the config.
func seekPolicy(ctx context.Context, cmd *cobra.Command, cfgAt, cfgTo time.Duration, store history.Store, uri string) player.SeekPolicy {
	if playResume && store != nil {
		e, err := store.Get(ctx, uri)
		switch {
		case err == nil && e.Resumable():
			slog.Info("resuming", "uri", uri, "position", e.Position)
			return player.ResumeAt{Position: e.Position}
		case err != nil && !errors.Is(err, history.ErrNotFound):
			slog.Warn("reading history failed", "uri", uri, "error", err)
		}
	}
	at, to := playSeekAt, playSeekTo
	if !cmd.Flags().Changed("seek-at") && cfgAt > 0 {
		at = cfgAt
	}
	if !cmd.Flags().Changed("seek-to") && cfgTo > 0 {
		to = cfgTo
	}
	if at <= 0 {
		return nil
	}
	return player.SeekOnce{After: at, To: to}
}
