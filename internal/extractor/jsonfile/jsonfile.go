// Package jsonfile adapts pre-extracted document payloads produced by an
// external text and table conversion step.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"medbill/internal/port"
)

type payload struct {
	Text   string       `json:"text"`
	Tables [][][]string `json:"tables"`
}

// Extractor reads {"text": ..., "tables": [...]} JSON files.
type Extractor struct{}

// New creates a jsonfile Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract loads the payload at path.
func (e *Extractor) Extract(_ context.Context, path string) (*port.Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading extraction payload: %w", err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding extraction payload %s: %w", path, err)
	}
	return &port.Extraction{Text: p.Text, Tables: p.Tables}, nil
}
