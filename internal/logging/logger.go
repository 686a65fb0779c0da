// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = zerolog.WarnLevel

// ParseLevel accepts zerolog level names; empty selects DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return DefaultLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return DefaultLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Setup builds the process logger writing to w. Console output is
// human-readable; otherwise one JSON object per line. Credentials are masked
// in either form.
func Setup(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := io.Writer(maskWriter{w})
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

type maskWriter struct{ w io.Writer }

// Write masks p before writing. It reports len(p) on success since callers
// account for the bytes they handed over, not the masked length.
func (m maskWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(m.w, Mask(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
