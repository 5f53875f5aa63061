package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [kind]",
	Short: "List element kinds or describe one",
	Long: `Without arguments, list the element kinds that can be created.
With a kind, describe its port templates and properties.

Examples:
  gizplay inspect --format table
  gizplay inspect uridecodebin
  gizplay inspect fakesink -q '.properties[].name'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		f := newFactory(cfg)
		if len(args) == 1 {
			d, err := f.Describe(args[0])
			if err != nil {
				return err
			}
			return output(d)
		}
		var kinds []kindSummary
		for _, kind := range f.Kinds() {
			d, err := f.Describe(kind)
			if err != nil {
				return err
			}
			kinds = append(kinds, summarize(d))
		}
		return output(kinds)
	},
}

type kindSummary struct {
	Kind       string `json:"kind" yaml:"kind"`
	Doc        string `json:"doc" yaml:"doc"`
	Ports      int    `json:"ports" yaml:"ports"`
	Properties int    `json:"properties" yaml:"properties"`
}

func summarize(d pipeline.Description) kindSummary {
	return kindSummary{
		Kind:       d.Kind,
		Doc:        d.Doc,
		Ports:      len(d.Ports),
		Properties: len(d.Properties),
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
