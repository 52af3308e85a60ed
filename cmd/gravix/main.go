// Package main is the gravix command-line client: apply schema files and
// run pipeline queries against a keyspace directory.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gravix/internal/config"
	"gravix/internal/engine"
)

type rootFlags struct {
	dataDir    string
	configFile string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "gravix",
		Short: "Typed graph/document keyspace engine",
	}
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data", "", "keyspace data directory (required)")
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to a TOML config file (overrides --data's defaults)")

	rootCmd.AddCommand(schemaCmd(flags))
	rootCmd.AddCommand(queryCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEngine(flags *rootFlags) (*engine.Engine, error) {
	var cfg config.Config
	switch {
	case flags.configFile != "":
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case flags.dataDir != "":
		cfg = config.Default(flags.dataDir)
	default:
		return nil, fmt.Errorf("one of --data or --config is required")
	}
	return engine.Open(cfg.Keyspace.DataDir, cfg)
}

func schemaCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <file.gql>",
		Short: "Apply a define/undefine/redefine statement block",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSchema(flags, args[0])
		},
	}
	return cmd
}

func runSchema(flags *rootFlags, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	e, err := openEngine(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.ExecuteSchema(string(src)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	fmt.Fprintf(os.Stdout, "schema applied from %s\n", path)
	return nil
}

func queryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <file.gql>",
		Short: "Run a pipeline query and print its result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runQuery(flags, args[0])
		},
	}
	return cmd
}

func runQuery(flags *rootFlags, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read query file: %w", err)
	}
	e, err := openEngine(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.Query(string(src))
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(result.Documents) > 0 {
		return enc.Encode(result.Documents)
	}
	return enc.Encode(result.Rows)
}
