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

package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	apperrors "github.com/kraklabs/repocanvas/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api.json.encode_failed", "err", err)
	}
}

// errEnvelope is the structured failure response; query endpoints never
// raise past the transport layer.
type errEnvelope struct {
	Success bool      `json:"success"`
	Error   errDetail `json:"error"`
}

type errDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorBody(kind apperrors.Kind, msg string) errEnvelope {
	return errEnvelope{Success: false, Error: errDetail{Kind: string(kind), Message: msg}}
}

// statusForKind maps error kinds onto HTTP status codes.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindIndexUnavailable, apperrors.KindIndexNotReady:
		return http.StatusServiceUnavailable
	case apperrors.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
