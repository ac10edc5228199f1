// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors defines the error taxonomy shared by the pipeline, the
// query engine, and the service surfaces.
//
// Every failure carries a Kind (the stable machine-readable category),
// user-facing Message/Cause/Fix text, and the CLI exit code. API handlers
// render the kind into {success:false, error:{kind,message}} responses; the
// CLI maps kinds to exit codes and colored terminal output.
//
// # Exit Codes
//
//   - ExitSuccess (0): successful execution
//   - ExitInput (2): invalid argument or malformed request
//   - ExitFetch (3): repository fetch failure
//   - ExitParse (4): repository parse failure
//   - ExitIndex (5): vector index unreachable
//   - ExitQuery (6): query failed
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for the CLI wrapper.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitInput indicates an invalid argument or malformed request.
	ExitInput = 2

	// ExitFetch indicates the repository could not be fetched.
	ExitFetch = 3

	// ExitParse indicates the repository could not be parsed.
	ExitParse = 4

	// ExitIndex indicates the vector index is unreachable.
	ExitIndex = 5

	// ExitQuery indicates a query operation failed.
	ExitQuery = 6
)

// Kind is the stable error category surfaced to clients.
type Kind string

const (
	KindInvalidInput     Kind = "InvalidInput"
	KindFetchFailed      Kind = "FetchFailed"
	KindParseFailed      Kind = "ParseFailed"
	KindEmbedFailed      Kind = "EmbedFailed"
	KindIndexUnavailable Kind = "IndexUnavailable"
	KindIndexNotReady    Kind = "IndexNotReady"
	KindTimeout          Kind = "Timeout"
	KindNotFound         Kind = "NotFound"
	KindInternal         Kind = "Internal"
)

// UserError is an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred.
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// Kind is the machine-readable category.
	Kind Kind

	// ExitCode is used when the CLI exits due to this error.
	ExitCode int

	// Err is the underlying error (optional), for errors.Is/As chains.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewInvalidInput creates an InvalidInput error with exit code ExitInput.
func NewInvalidInput(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindInvalidInput, ExitCode: ExitInput, Err: err}
}

// NewFetchFailed creates a FetchFailed error with exit code ExitFetch.
func NewFetchFailed(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindFetchFailed, ExitCode: ExitFetch, Err: err}
}

// NewParseFailed creates a ParseFailed error with exit code ExitParse.
func NewParseFailed(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindParseFailed, ExitCode: ExitParse, Err: err}
}

// NewEmbedFailed creates an EmbedFailed error with exit code ExitQuery.
func NewEmbedFailed(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindEmbedFailed, ExitCode: ExitQuery, Err: err}
}

// NewIndexUnavailable creates an IndexUnavailable error with exit code
// ExitIndex.
func NewIndexUnavailable(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindIndexUnavailable, ExitCode: ExitIndex, Err: err}
}

// NewTimeout creates a Timeout error with exit code ExitQuery.
func NewTimeout(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindTimeout, ExitCode: ExitQuery, Err: err}
}

// NewNotFound creates a NotFound error with exit code ExitQuery.
func NewNotFound(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindNotFound, ExitCode: ExitQuery, Err: err}
}

// NewInternal creates an Internal error with exit code ExitQuery.
func NewInternal(msg string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    "An unexpected internal error occurred",
		Fix:      "This is a bug; please report it with the log output",
		Kind:     KindInternal,
		ExitCode: ExitQuery,
		Err:      err,
	}
}

// KindOf extracts the Kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindInternal
}

// ExitCodeOf extracts the exit code from an error chain, defaulting to
// ExitQuery.
func ExitCodeOf(err error) int {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.ExitCode
	}
	return ExitQuery
}

// Format returns colored terminal output:
//
//	Error: Cannot reach the vector index
//	Cause: Connection to http://localhost:6333 refused
//	Fix:   Start Qdrant or set QDRANT_URL
func (e *UserError) Format(noColor bool) string {
	var b strings.Builder

	errLabel := "Error:"
	causeLabel := "Cause:"
	fixLabel := "Fix:  "
	if !noColor {
		errLabel = color.New(color.FgRed, color.Bold).Sprint("Error:")
		causeLabel = color.New(color.FgYellow).Sprint("Cause:")
		fixLabel = color.New(color.FgGreen).Sprint("Fix:  ")
	}

	fmt.Fprintf(&b, "%s %s\n", errLabel, e.Message)
	if e.Cause != "" {
		fmt.Fprintf(&b, "%s %s\n", causeLabel, e.Cause)
	}
	if e.Fix != "" {
		fmt.Fprintf(&b, "%s %s\n", fixLabel, e.Fix)
	}
	return b.String()
}

// ToJSON returns the machine-readable form of the error.
func (e *UserError) ToJSON() map[string]any {
	out := map[string]any{
		"error":     e.Message,
		"kind":      string(e.Kind),
		"exit_code": e.ExitCode,
	}
	if e.Cause != "" {
		out["cause"] = e.Cause
	}
	if e.Fix != "" {
		out["fix"] = e.Fix
	}
	return out
}

// FatalError prints err and exits with its exit code. Plain errors exit
// with ExitQuery.
func FatalError(err error, jsonOutput bool) {
	var ue *UserError
	if !errors.As(err, &ue) {
		ue = NewInternal(err.Error(), err)
	}

	if jsonOutput {
		_ = json.NewEncoder(os.Stderr).Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	os.Exit(ue.ExitCode)
}
