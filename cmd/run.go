// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"

	"malloy/cli/internal/connection"
	"malloy/cli/internal/render"

	"github.com/spf13/cobra"
)

var (
	runInput      inputFlags
	runConnection string
	runFormat     string
	runShowSQL    bool
)

// runCmd compiles a query and executes the SQL.
var runCmd = &cobra.Command{
	Use:   "run [model.malloy]",
	Short: "Compile a Malloy query and run it",
	Long: `The run command compiles a query like compile does, then executes the SQL on
the connection the model uses and prints the result.

The connection named by the model wins. --connection picks one when the model
does not name one; otherwise the default connection is used.`,
	Example: `  malloy run flights.malloy -n by_carrier
  malloy run flights.malloy -q 'run: flights -> { group_by: carrier }' --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := render.ParseFormat(runFormat)
		if err != nil {
			return err
		}
		in, err := runInput.input(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		env, err := openEnvironment(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if err := env.Close(); err != nil {
				logger.Warn().Err(err).Msg("shutdown")
			}
		}()

		stop := startSpinner("Running")
		rows, res, err := env.rt.Run(cmd.Context(), in, runConnection)
		if !res.OK() {
			stop()
			return compileFailure(res, err)
		}
		if err != nil {
			stop()
			return err
		}
		result, err := connection.Collect(rows)
		stop()
		if err != nil {
			return err
		}

		if runShowSQL {
			if err := render.SQL(os.Stderr, res); err != nil {
				return err
			}
		}
		return render.Result(cmd.OutOrStdout(), result, format)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runInput.bind(runCmd)
	runCmd.Flags().StringVarP(&runConnection, "connection", "c", "", "Connection to run on when the model does not name one")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "table", "Output format: table or json")
	runCmd.Flags().BoolVar(&runShowSQL, "show-sql", false, "Print the generated SQL to stderr")
}
