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

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryKindAndExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		kind Kind
		code int
	}{
		{"invalid input", NewInvalidInput("m", "c", "f", nil), KindInvalidInput, ExitInput},
		{"fetch failed", NewFetchFailed("m", "c", "f", nil), KindFetchFailed, ExitFetch},
		{"parse failed", NewParseFailed("m", "c", "f", nil), KindParseFailed, ExitParse},
		{"embed failed", NewEmbedFailed("m", "c", "f", nil), KindEmbedFailed, ExitQuery},
		{"index unavailable", NewIndexUnavailable("m", "c", "f", nil), KindIndexUnavailable, ExitIndex},
		{"timeout", NewTimeout("m", "c", "f", nil), KindTimeout, ExitQuery},
		{"not found", NewNotFound("m", "c", "f", nil), KindNotFound, ExitQuery},
		{"internal", NewInternal("m", nil), KindInternal, ExitQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.ExitCode)
		})
	}
}

func TestErrorMessageIncludesWrapped(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := NewIndexUnavailable("Cannot reach the index", "down", "start it", inner)

	assert.Contains(t, err.Error(), "Cannot reach the index")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, inner))
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := NewParseFailed("parse broke", "", "", nil)
	wrapped := fmt.Errorf("job failed: %w", base)

	assert.Equal(t, KindParseFailed, KindOf(wrapped))
	assert.Equal(t, ExitParse, ExitCodeOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	assert.Equal(t, ExitQuery, ExitCodeOf(fmt.Errorf("boom")))
}

func TestFormatNoColor(t *testing.T) {
	err := NewFetchFailed("Cannot clone", "host unreachable", "check the URL", nil)
	out := err.Format(true)

	require.Contains(t, out, "Error: Cannot clone")
	require.Contains(t, out, "Cause: host unreachable")
	require.Contains(t, out, "Fix:   check the URL")
}

func TestFormatOmitsEmptySections(t *testing.T) {
	err := &UserError{Message: "just a message", Kind: KindInternal, ExitCode: ExitQuery}
	out := err.Format(true)
	assert.Contains(t, out, "Error: just a message")
	assert.NotContains(t, out, "Cause:")
	assert.NotContains(t, out, "Fix:")
}

func TestToJSON(t *testing.T) {
	err := NewInvalidInput("bad request", "top_k out of range", "use 1-50", nil)
	data := err.ToJSON()

	assert.Equal(t, "bad request", data["error"])
	assert.Equal(t, "InvalidInput", data["kind"])
	assert.Equal(t, ExitInput, data["exit_code"])
	assert.Equal(t, "top_k out of range", data["cause"])
}
