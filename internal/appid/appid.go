// Package appid parses Steam application identifiers from command-line
// arguments.
package appid

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports an argument that is not a valid application identifier
type ParseError struct {
	Index int    // position of the argument in the input
	Value string // argument as given
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid app id %q (argument %d): %v", e.Value, e.Index+1, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts every argument to an app id, preserving order and duplicates.
// It returns nil and a *ParseError for the first argument that is not a base-10
// integer in the uint32 range. An empty input yields an empty, non-nil slice.
func Parse(args []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(args))
	for i, arg := range args {
		id, err := parseOne(arg)
		if err != nil {
			return nil, &ParseError{Index: i, Value: arg, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOne(arg string) (uint32, error) {
	value := strings.TrimSpace(arg)
	value = strings.TrimPrefix(value, "+")
	if value == "" {
		return 0, fmt.Errorf("empty value")
	}
	// ParseUint accepts underscores only with base 0, so base 10 already
	// rejects "0x..", "1_000" and signs.
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok {
			return 0, ne.Err
		}
		return 0, err
	}
	return uint32(n), nil
}

// Join renders ids as a comma-separated list of decimal numbers
func Join(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
