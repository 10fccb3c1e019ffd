package productinfo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Cache maps app ids to their digests. It is stored as YAML with ids in
// ascending order.
type Cache map[uint32]Entry

// LoadCache reads the cache at path. A missing file yields an empty cache.
func LoadCache(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	cache := Cache{}
	if err := yaml.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache %s: %w", path, err)
	}
	return cache, nil
}

// Marshal renders the cache as YAML
func (c Cache) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[uint32]Entry(c)); err != nil {
		return nil, fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode cache: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders the cache as a JSON object with ids in ascending
// numeric order.
func (c Cache) MarshalJSON() ([]byte, error) {
	ids := make([]uint32, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.FormatUint(uint64(id), 10)))
		buf.WriteByte(':')
		if err := enc.Encode(c[id]); err != nil {
			return nil, fmt.Errorf("failed to encode cache entry %d: %w", id, err)
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Save writes the cache to path unless the file already holds the same
// content. It reports whether the file was written.
func (c Cache) Save(path string) (bool, error) {
	data, err := c.Marshal()
	if err != nil {
		return false, err
	}

	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write cache: %w", err)
	}
	return true, nil
}

// Merge replaces the entries for every id in entries
func (c Cache) Merge(entries map[uint32]Entry) {
	for id, entry := range entries {
		c[id] = entry
	}
}

// Outdated returns the ids of entries marked outdated, in ascending order
func (c Cache) Outdated() []uint32 {
	var ids []uint32
	for id, entry := range c {
		if entry.State == StateOutdated {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
