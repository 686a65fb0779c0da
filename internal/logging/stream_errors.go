// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// StreamErrorType represents the category of a compiler channel error
type StreamErrorType int

const (
	StreamErrorUnknown StreamErrorType = iota
	StreamErrorNetwork
	StreamErrorTimeout
	StreamErrorInternal
	StreamErrorUnavailable
	StreamErrorClosed
)

// ParseStreamError categorizes a compiler channel error message
func ParseStreamError(errMsg string) StreamErrorType {
	lower := strings.ToLower(errMsg)

	if strings.Contains(lower, "rst_stream") || strings.Contains(lower, "connection reset") {
		return StreamErrorNetwork
	}
	if strings.Contains(lower, "closed the stream") || strings.Contains(lower, "stream_closed") {
		return StreamErrorClosed
	}
	if strings.Contains(lower, "internal_error") || strings.Contains(lower, "code = internal") {
		return StreamErrorInternal
	}
	if strings.Contains(lower, "unavailable") || strings.Contains(lower, "transient_failure") ||
		strings.Contains(lower, "connection refused") {
		return StreamErrorUnavailable
	}
	if strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") {
		return StreamErrorTimeout
	}

	return StreamErrorUnknown
}

// FormatStreamError formats a compiler channel error in a user-friendly way
func FormatStreamError(errMsg string) string {
	errType := ParseStreamError(errMsg)

	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Compiler Unreachable"))
	builder.WriteString("\n\n")

	switch errType {
	case StreamErrorNetwork:
		builder.WriteString("The connection to the compiler service was interrupted.\n")
		builder.WriteString("This usually happens when the service process was stopped\n")
		builder.WriteString("or a proxy in front of it closed the connection.\n")

	case StreamErrorInternal:
		builder.WriteString("The compiler service hit an internal error while compiling.\n")

	case StreamErrorUnavailable:
		builder.WriteString("The compiler service is not accepting connections.\n")
		builder.WriteString("Check that the service binary is installed next to malloy,\n")
		builder.WriteString("or that the address given with --compiler is reachable.\n")

	case StreamErrorTimeout:
		builder.WriteString("The compiler service did not answer in time.\n")

	case StreamErrorClosed:
		builder.WriteString("The compiler service ended the compilation without a result.\n")

	default:
		builder.WriteString("The compilation was interrupted.\n")
	}

	builder.WriteString("\n")
	builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Please try running the command again"))
	builder.WriteString("\n")

	if strings.TrimSpace(errMsg) != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(errMsg)))
	}

	return builder.String()
}

// PresentStreamError displays a formatted compiler channel error
func PresentStreamError(errMsg string) {
	fmt.Println()
	fmt.Println(FormatStreamError(errMsg))
	fmt.Println()
}
