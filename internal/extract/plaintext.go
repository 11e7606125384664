package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

type plainTextBackend struct{}

func NewPlainTextBackend() Backend { return plainTextBackend{} }

func (plainTextBackend) Name() string { return "plaintext" }

// Extract treats the bytes as UTF-8 text. Form feeds, when present, mark
// unit boundaries; otherwise the whole file is one unit. Binary input is
// rejected so the cascade can report a clean failure.
func (plainTextBackend) Extract(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("input is not valid utf-8 text")
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("input contains NUL bytes")
	}

	text := string(data)
	var units []string
	if strings.Contains(text, "\f") {
		for _, part := range strings.Split(text, "\f") {
			if strings.TrimSpace(part) != "" {
				units = append(units, part)
			}
		}
	} else {
		units = []string{text}
	}

	return &Result{Units: units, Metadata: map[string]string{}, Backend: "plaintext"}, nil
}
