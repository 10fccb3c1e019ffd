// Package render writes query results to the output stream.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kula-app/steam-app-info/internal/config"
	"github.com/kula-app/steam-app-info/internal/steam"
)

// Indent is the nesting indentation used by every format
const Indent = "  "

// JSON writes info indented by two spaces and followed by a newline. Object
// keys keep the order in which the service sent them.
func JSON(w io.Writer, info steam.ProductInfo) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, info.Raw(), "", Indent); err != nil {
		return fmt.Errorf("failed to indent product info: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// Value writes any JSON-serializable value, indented and newline-terminated
func Value(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// YAML writes v as a YAML document indented by two spaces. json.Number
// values, as produced by steam.ProductInfo.Value, become YAML numbers.
func YAML(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(len(Indent))
	if err := enc.Encode(normalize(v)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ProductInfo writes info in the given format
func ProductInfo(w io.Writer, format string, info steam.ProductInfo) error {
	switch format {
	case config.FormatJSON:
		return JSON(w, info)
	case config.FormatYAML:
		v, err := info.Value()
		if err != nil {
			return err
		}
		return YAML(w, v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Write writes an arbitrary value in the given format
func Write(w io.Writer, format string, v any) error {
	switch format {
	case config.FormatJSON:
		return Value(w, v)
	case config.FormatYAML:
		return YAML(w, v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// normalize rewrites json.Number leaves into int64 or float64 so that YAML
// does not quote them as strings. Integers outside the int64 range are kept
// as plain scalars with their original digits.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if !strings.ContainsAny(x.String(), ".eE") {
			return &yaml.Node{Kind: yaml.ScalarNode, Value: x.String()}
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
