package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload reports a stored payload that does not decode into a Result.
var ErrMalformedPayload = errors.New("malformed summary payload")

// ErrVersionMismatch reports a payload written by a different format version.
var ErrVersionMismatch = errors.New("summary version mismatch")

type wirePayload struct {
	Version     *int64                                  `json:"version"`
	Directories map[string]map[string]*wirePerTypeCount `json:"summaries"`
}

type wirePerTypeCount struct {
	Count       *int64 `json:"count"`
	DisplayName string `json:"display_name"`
}

// Encode renders r as indented JSON. Map keys are sorted, so structurally
// equal results encode to the same bytes.
func Encode(r Result) ([]byte, error) {
	dirs := make(map[string]DirectoryCounts, len(r.Directories))
	for dir, counts := range r.Directories {
		if counts == nil {
			counts = DirectoryCounts{}
		}
		dirs[dir] = counts
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Result{Version: r.Version, Directories: dirs}); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a payload produced by Encode. Any shape problem is reported
// as ErrMalformedPayload.
func Decode(payload []byte) (Result, error) {
	var w wirePayload
	if err := json.Unmarshal(payload, &w); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.Version == nil {
		return Result{}, fmt.Errorf("%w: missing version", ErrMalformedPayload)
	}
	if w.Directories == nil {
		return Result{}, fmt.Errorf("%w: missing summaries", ErrMalformedPayload)
	}
	out := Result{
		Version:     *w.Version,
		Directories: make(map[string]DirectoryCounts, len(w.Directories)),
	}
	for dir, counts := range w.Directories {
		if counts == nil {
			return Result{}, fmt.Errorf("%w: directory %q has no counts", ErrMalformedPayload, dir)
		}
		dc := make(DirectoryCounts, len(counts))
		for typeLabel, info := range counts {
			if typeLabel == "" {
				return Result{}, fmt.Errorf("%w: empty type label in %q", ErrMalformedPayload, dir)
			}
			if info == nil || info.Count == nil {
				return Result{}, fmt.Errorf("%w: %q/%q missing count", ErrMalformedPayload, dir, typeLabel)
			}
			if *info.Count < 0 {
				return Result{}, fmt.Errorf("%w: %q/%q negative count", ErrMalformedPayload, dir, typeLabel)
			}
			dc[typeLabel] = PerTypeCount{Count: *info.Count, DisplayLabel: info.DisplayName}
		}
		out.Directories[dir] = dc
	}
	return out, nil
}

// Validate explains why a decode outcome cannot be reused. It returns nil for
// a reusable result, the decode error itself, or ErrVersionMismatch.
func Validate(r Result, decodeErr error, expected int64) error {
	if decodeErr != nil {
		return decodeErr
	}
	if r.Version != expected {
		return fmt.Errorf("%w: stored %d, want %d", ErrVersionMismatch, r.Version, expected)
	}
	return nil
}

// IsReusable reports whether a decoded payload may be returned without
// recomputing.
func IsReusable(r Result, decodeErr error, expected int64) bool {
	return Validate(r, decodeErr, expected) == nil
}
