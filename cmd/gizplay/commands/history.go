package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizplay/pkg/cli"
	"github.com/haivivi/gizplay/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage remembered playback positions",
	Long: `Playback positions are remembered per URI when history is enabled
(gizplay config set history.enabled true) or play --resume is used.

Examples:
  gizplay history list --format table
  gizplay history rm song.mp3
  gizplay history clear`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List remembered positions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := withHistory(func(s history.Store) ([]history.Entry, error) {
			var out []history.Entry
			for e, err := range s.List(cmd.Context()) {
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			return out, nil
		})
		if err != nil {
			return err
		}
		return output(historyTable(entries))
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <uri>",
	Short: "Forget the position of one URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := withHistory(func(s history.Store) (struct{}, error) {
			if _, err := s.Get(cmd.Context(), args[0]); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, s.Delete(cmd.Context(), args[0])
		})
		if err != nil {
			return err
		}
		cli.PrintSuccess("Forgot %s", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every position",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := withHistory(func(s history.Store) (int, error) {
			var uris []string
			for e, err := range s.List(cmd.Context()) {
				if err != nil {
					return 0, err
				}
				uris = append(uris, e.URI)
			}
			for _, uri := range uris {
				if err := s.Delete(cmd.Context(), uri); err != nil {
					return 0, err
				}
			}
			return len(uris), nil
		})
		if err != nil {
			return err
		}
		cli.PrintSuccess("Cleared %d entries", n)
		return nil
	},
}

func withHistory[T any](fn func(history.Store) (T, error)) (T, error) {
	var zero T
	cfg, err := getConfig()
	if err != nil {
		return zero, err
	}
	s, err := openHistory(cfg)
	if err != nil {
		return zero, fmt.Errorf("open history: %w", err)
	}
	defer s.Close()
	return fn(s)
}

// historyTable renders entries with clock times in table output and as
// plain entries otherwise.
type historyTable []history.Entry

func (h historyTable) TableHeader() []string {
	return []string{"URI", "POSITION", "DURATION", "UPDATED"}
}

func (h historyTable) TableRows() [][]any {
	rows := make([][]any, 0, len(h))
	for _, e := range h {
		rows = append(rows, []any{
			e.URI,
			cli.FormatClockTime(e.Position, true),
			cli.FormatClockTime(e.Duration, e.Duration > 0),
			cli.FormatDuration(int(time.Since(e.UpdatedAt).Milliseconds())) + " ago",
		})
	}
	return rows
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyRmCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
