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

package output

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONToPrettyPrints(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, map[string]int{"count": 3}))

	assert.Contains(t, buf.String(), "  \"count\": 3")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestJSONCompactToSingleLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONCompactTo(&buf, map[string]int{"count": 3}))

	assert.Equal(t, "{\"count\":3}\n", buf.String())
}

func TestJSONToUnencodable(t *testing.T) {
	var buf bytes.Buffer
	err := JSONTo(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON encoding failed")
}

func TestJSONErrorTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONErrorTo(&buf, fmt.Errorf("graph not found")))

	assert.Contains(t, buf.String(), "\"error\": \"graph not found\"")
}
