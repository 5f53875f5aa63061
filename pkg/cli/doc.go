// Package cli provides the pieces shared by the gizplay commands.
//
// This package includes:
//   - The config file (~/.gizplay/config.yaml) and its JSON schema
//   - Output formatting (YAML, JSON, table) with an optional jq filter
//   - Clock-time and size formatting
//   - Directory layout and terminal styles
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("gizplay")
//	if err != nil {
//	    return err
//	}
//	cli.Output(cfg.Masked(), cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".seek",
//	})
package cli
