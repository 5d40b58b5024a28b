// Package transport is the console's gateway to the EMR REST backend. Every
// backend response is normalized into an Envelope; transport-level failures
// and envelope-level failures are reported as distinct error types.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/emr/console/pkg/pagination"
)

// DefaultErrorMessage is shown when neither data.message nor message is set.
const DefaultErrorMessage = "Something went wrong. Please try again."

// Envelope is the backend's response wrapper. Success is authoritative over
// the HTTP status code.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ExtractMessage returns the user-facing message of an envelope. data.message
// wins over message; fallback is used when both are empty.
func ExtractMessage(env *Envelope, fallback string) string {
	if env == nil {
		return fallback
	}
	if len(env.Data) > 0 && env.Data[0] == '{' {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if env.Message != "" {
		return env.Message
	}
	return fallback
}

// DecodePage decodes a paginated envelope payload. A bare JSON array is
// accepted as a single page holding every record.
func DecodePage[T any](env *Envelope) (pagination.PagedData[T], error) {
	var page pagination.PagedData[T]
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return page, nil
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, &page.Data); err != nil {
			return page, fmt.Errorf("decode records: %w", err)
		}
		n := len(page.Data)
		page.Page, page.LastPage, page.PerPage, page.Total = 1, 1, n, n
		return page, nil
	}

	if err := json.Unmarshal(data, &page); err != nil {
		return page, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

// DecodeRecord decodes a single-record envelope payload. An empty payload
// yields the zero value.
func DecodeRecord[T any](env *Envelope) (T, error) {
	var rec T
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
