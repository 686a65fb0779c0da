// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	apperrors "malloy/cli/internal/errors"
)

var hints = map[apperrors.Kind]string{
	apperrors.ConfigInvalid:      "Check the config file or the MALLOY_* environment variables.",
	apperrors.NoConnections:      "Add a connection with: malloy connections add <name> <dsn>",
	apperrors.ConnectionNotFound: "List configured connections with: malloy connections list",
	apperrors.ServiceFailed:      "Start a compiler yourself and pass its address with --compiler.",
}

// PresentError formats an error for user display with masking. Errors of a
// known kind get a hint on the following line.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", context, Mask(err.Error()))
	if hint, ok := hints[apperrors.KindOf(err)]; ok {
		msg += "\n   " + hint
	}
	return msg
}
