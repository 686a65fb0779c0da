// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"io"
	"path/filepath"

	"malloy/cli/internal/compiler"
	apperrors "malloy/cli/internal/errors"
	"malloy/cli/internal/render"
	"malloy/cli/internal/watch"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	compileInput inputFlags
	compileWatch bool
)

// compileCmd compiles a query to SQL without running it.
var compileCmd = &cobra.Command{
	Use:   "compile [model.malloy]",
	Short: "Compile a Malloy query to SQL",
	Long: `The compile command sends a model and query to the Malloy compiler and prints
the generated SQL. Imports are read from disk or S3 and table schemas are fetched
from the configured connections as the compiler asks for them.

With --watch the model is recompiled whenever it or a .malloy file next to it changes.`,
	Example: `  malloy compile flights.malloy -q 'run: flights -> { aggregate: flight_count }'
  malloy compile flights.malloy -n by_carrier --watch
  echo 'source: s is duckdb.table("t")' | malloy compile --source - -q 'run: s -> { select: * }'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := compileInput.input(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if compileWatch && in.EntryPath == "" {
			return apperrors.New(apperrors.InvalidInput, "--watch needs a model file")
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

		out := cmd.OutOrStdout()
		once := func(ctx context.Context) error {
			return compileOnce(ctx, out, env.rt, in)
		}
		if !compileWatch {
			return once(cmd.Context())
		}

		// A failing first compile is reported and the watch continues.
		_ = once(cmd.Context())
		w, err := watch.New([]string{in.EntryPath}, watch.Options{Logger: logger})
		if err != nil {
			return err
		}
		pterm.Info.Printfln("Watching %s for changes (Ctrl+C to stop)", filepath.Base(in.EntryPath))
		return w.Run(cmd.Context(), once)
	},
}

// compileOnce compiles in and prints the SQL, or the failure to stderr.
func compileOnce(ctx context.Context, out io.Writer, rt *compiler.Runtime, in compiler.Input) error {
	stop := startSpinner("Compiling")
	res, err := rt.CompileSQL(ctx, in)
	stop()

	if !res.OK() {
		return compileFailure(res, err)
	}
	return render.SQL(out, res)
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileInput.bind(compileCmd)
	compileCmd.Flags().BoolVarP(&compileWatch, "watch", "w", false, "Recompile when the model changes")
}
