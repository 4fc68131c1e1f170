// Package render prints a summary payload for humans or tools.
package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dirsummary/internal/summary"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml or text)", s)
	}
}

// Write prints the result. JSON output is the payload itself, byte for byte
// apart from trailing newlines.
func Write(w io.Writer, f Format, payload []byte, r summary.Result) error {
	switch f {
	case FormatJSON, "":
		_, err := fmt.Fprintf(w, "%s\n", bytes.TrimRight(payload, "\n"))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText:
		return writeText(w, r)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

func writeText(w io.Writer, r summary.Result) error {
	dirs := make([]string, 0, len(r.Directories))
	for dir := range r.Directories {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var sb strings.Builder
	for _, dir := range dirs {
		name := dir
		if name == summary.RootDir {
			name = "."
		}
		sb.WriteString(name)
		sb.WriteString("\n")

		counts := r.Directories[dir]
		types := make([]string, 0, len(counts))
		for typeLabel := range counts {
			types = append(types, typeLabel)
		}
		sort.Slice(types, func(i, j int) bool {
			ci, cj := counts[types[i]].Count, counts[types[j]].Count
			if ci != cj {
				return ci > cj
			}
			return types[i] < types[j]
		})
		for _, typeLabel := range types {
			info := counts[typeLabel]
			fmt.Fprintf(&sb, "  %6d  %s\n", info.Count, info.DisplayLabel)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
