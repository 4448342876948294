package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yasl-lang/yasl/internal/diagnostic"
	"github.com/yasl-lang/yasl/yasl"
)

// renderOutcome prints one document's diagnostics in the requested format.
func renderOutcome(cmd *cobra.Command, format, path string, outcome yasl.Outcome) error {
	switch format {
	case "json":
		return renderJSON(cmd, path, outcome)
	case "yaml":
		return renderYAML(cmd, path, outcome)
	default:
		return renderText(cmd, path, outcome)
	}
}

func renderText(cmd *cobra.Command, path string, outcome yasl.Outcome) error {
	out := cmd.OutOrStdout()
	if len(outcome.Diagnostics) == 0 {
		fmt.Fprintf(out, "%s: OK (root %s)\n", path, outcome.RootType)
		return nil
	}
	fmt.Fprintf(out, "%s:\n", path)
	for _, d := range outcome.Diagnostics {
		fmt.Fprintln(out, "  "+diagnostic.FormatText(d))
	}
	return nil
}

type jsonReport struct {
	Path        string                  `json:"path"`
	RootType    string                  `json:"root_type,omitempty"`
	Diagnostics []diagnostic.Diagnostic `json:"diagnostics"`
}

func renderJSON(cmd *cobra.Command, path string, outcome yasl.Outcome) error {
	report := jsonReport{Path: path, Diagnostics: outcome.Diagnostics}
	if outcome.RootType.Name != "" {
		report.RootType = outcome.RootType.String()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func renderYAML(cmd *cobra.Command, path string, outcome yasl.Outcome) error {
	report := jsonReport{Path: path, Diagnostics: outcome.Diagnostics}
	if outcome.RootType.Name != "" {
		report.RootType = outcome.RootType.String()
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(report)
}
