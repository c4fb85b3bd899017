package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the optional {success, message, data} wrapper some backend
// endpoints use.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// TestResult is what a connection test reports.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Decode reads either the raw resource or an Envelope around it. An
// envelope reporting success=false becomes an error carrying its message.
func Decode[T any](raw []byte) (T, error) {
	var zero T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return zero, errors.New("domain: empty payload")
	}
	if raw[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err == nil && isEnvelope(probe) {
			var env Envelope[T]
			if err := json.Unmarshal(raw, &env); err != nil {
				return zero, fmt.Errorf("domain: decode envelope: %w", err)
			}
			if !env.Success {
				msg := env.Message
				if msg == "" {
					msg = "request failed"
				}
				return zero, fmt.Errorf("domain: %s", msg)
			}
			return env.Data, nil
		}
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("domain: decode: %w", err)
	}
	return out, nil
}

func isEnvelope(probe map[string]json.RawMessage) bool {
	if _, ok := probe["success"]; !ok {
		return false
	}
	for key := range probe {
		switch key {
		case "success", "message", "data":
		default:
			return false
		}
	}
	return true
}
