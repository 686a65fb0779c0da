// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"io"
	"path/filepath"
	"strings"

	"malloy/cli/internal/compiler"
	apperrors "malloy/cli/internal/errors"

	"github.com/spf13/cobra"
)

// inputFlags are the flags shared by commands that compile a query.
type inputFlags struct {
	query      string
	namedQuery string
	source     string
	baseDir    string
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Query text to compile against the model")
	cmd.Flags().StringVarP(&f.namedQuery, "named-query", "n", "", "Name of a query defined in the model")
	cmd.Flags().StringVar(&f.source, "source", "", "Inline model source instead of a file; - reads stdin")
	cmd.Flags().StringVar(&f.baseDir, "base-dir", "", "Directory relative imports resolve against")
}

// input builds a compile input from the flags and the optional file argument.
func (f *inputFlags) input(args []string, stdin io.Reader) (compiler.Input, error) {
	in := compiler.Input{
		Query:      f.query,
		NamedQuery: f.namedQuery,
		Source:     f.source,
	}
	if in.Source == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return in, apperrors.Wrap(apperrors.InvalidInput, "read source from stdin", err)
		}
		in.Source = string(b)
		if strings.TrimSpace(in.Source) == "" {
			return in, apperrors.New(apperrors.InvalidInput, "no source on stdin")
		}
	}

	switch {
	case len(args) > 0 && in.Source != "":
		return in, apperrors.New(apperrors.InvalidInput, "give a model file or --source, not both")
	case len(args) > 0:
		p, err := filepath.Abs(args[0])
		if err != nil {
			return in, apperrors.Wrap(apperrors.InvalidInput, "resolve "+args[0], err)
		}
		in.EntryPath = p
	case in.Source == "":
		return in, apperrors.New(apperrors.InvalidInput, "a model file or --source is required")
	}

	if in.Query == "" && in.NamedQuery == "" {
		return in, apperrors.New(apperrors.InvalidInput, "one of --query or --named-query is required")
	}

	if f.baseDir != "" {
		d, err := filepath.Abs(f.baseDir)
		if err != nil {
			return in, apperrors.Wrap(apperrors.InvalidInput, "resolve "+f.baseDir, err)
		}
		in.BaseDir = d
	}
	return in, nil
}
