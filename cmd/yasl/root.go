package main

import (
	"context"
	"fmt"
	"os"

	charmlog "charm.land/log/v2"
	"github.com/spf13/cobra"

	"github.com/yasl-lang/yasl/internal/compiler"
	"github.com/yasl-lang/yasl/internal/logger"
	"github.com/yasl-lang/yasl/internal/validate"
	"github.com/yasl-lang/yasl/yasl"
)

type cliFlags struct {
	version bool
	quiet   bool
	verbose bool
	output  string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "yasl <schema> <data> [<model_name>]",
		Short: "Compile a YASL schema and validate a YAML document against it",
		Args:  cobra.RangeArgs(0, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.version {
				fmt.Fprintln(cmd.OutOrStdout(), yasl.Version)
				return nil
			}
			if len(args) < 2 {
				return fmt.Errorf("requires schema and data arguments")
			}
			return runValidate(cmd, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.version, "version", false, "print the yasl version and exit")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "suppress informational logging")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	cmd.Flags().StringVar(&flags.output, "output", "text", "diagnostic output format: text|json|yaml")
	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	return cmd
}

func runValidate(cmd *cobra.Command, flags *cliFlags, args []string) error {
	log := logger.Default()
	switch {
	case flags.quiet:
		log.SetLevel(charmlog.ErrorLevel)
	case flags.verbose:
		log.SetLevel(charmlog.DebugLevel)
	}
	logger.SetDefault(log)

	schemaPath, dataPath := args[0], args[1]
	rootHint := ""
	if len(args) == 3 {
		rootHint = args[2]
	}

	switch flags.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown --output %q: want text, json, or yaml", flags.output)
	}

	ctx := context.Background()

	info, err := os.Stat(schemaPath)
	if err != nil {
		return fmt.Errorf("schema %q: %w", schemaPath, err)
	}

	var schema *yasl.Schema
	if info.IsDir() {
		schema, err = yasl.CompileSchemaDir(ctx, schemaPath, compiler.DefaultOptions(), log)
	} else {
		schema, err = yasl.CompileSchema(ctx, schemaPath, compiler.DefaultOptions(), log)
	}
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	dataInfo, err := os.Stat(dataPath)
	if err != nil {
		return fmt.Errorf("data %q: %w", dataPath, err)
	}

	vopts := validate.DefaultOptions()
	hasErrors := false

	if dataInfo.IsDir() {
		results, verr := schema.ValidateDir(ctx, rootHint, dataPath, compiler.DefaultOptions().SchemaSuffixes, vopts)
		for path, outcomes := range results {
			for _, outcome := range outcomes {
				if outcome.HasErrors() {
					hasErrors = true
				}
				if err := renderOutcome(cmd, flags.output, path, outcome); err != nil {
					return err
				}
			}
		}
		if verr != nil {
			hasErrors = true
			fmt.Fprintln(cmd.ErrOrStderr(), verr)
		}
	} else {
		outcomes, verr := schema.ValidateFile(ctx, rootHint, dataPath, vopts)
		if verr != nil {
			return verr
		}
		for _, outcome := range outcomes {
			if outcome.HasErrors() {
				hasErrors = true
			}
			if err := renderOutcome(cmd, flags.output, dataPath, outcome); err != nil {
				return err
			}
		}
	}

	if hasErrors {
		os.Exit(1)
	}
	return nil
}
