package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"colq"
	"colq/internal/fixture"
)

func main() {
	var sqlText string
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "colq",
		Short: "Columnar query engine demo CLI",
		Long: `colq loads the engine's worked-example "employees" batch into an
in-memory Store and runs one query against it, printing the rows or
groups produced as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := fixture.Employees()
			if err != nil {
				return fmt.Errorf("build fixture batch: %w", err)
			}

			var opts []colq.Option
			if configPath != "" {
				cfg, err := colq.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				opts = append(opts, colq.WithConfig(cfg))
			}

			store := colq.Open(batch, opts...)
			return runQuery(store, sqlText)
		},
	}

	rootCmd.Flags().StringVarP(&sqlText, "sql", "s", "SELECT name, age FROM employees WHERE active = true", "SQL query to run against the employees fixture")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file overriding engine defaults")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQuery(store *colq.Store, sqlText string) error {
	res, err := store.ExecuteSQL(context.Background(), sqlText)
	if err != nil {
		return err
	}

	var payload any
	switch {
	case res.Groups != nil:
		payload = res.Groups
	case res.Rows != nil:
		payload = res.Rows
	default:
		payload = res.Scalar
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
