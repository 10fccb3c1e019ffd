// Package productinfo decodes the parts of a Steam product-info document that
// describe where a game keeps its saves and how it is launched, and keeps a
// digest of them in a YAML cache.
package productinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kula-app/steam-app-info/internal/steam"
)

// Response is the typed view of a product-info document
type Response struct {
	Apps map[string]App `json:"apps"`
}

// App is the subset of an app's product info that the digest uses
type App struct {
	Common AppCommon `json:"common"`
	Config AppConfig `json:"config"`
	UFS    AppUFS    `json:"ufs"`

	// UnknownKeys lists save-file and root-override keys outside the known set
	UnknownKeys []string `json:"-"`
}

type AppCommon struct {
	Name          string            `json:"name"`
	NameLocalized map[string]string `json:"name_localized"`
}

type AppConfig struct {
	InstallDir string             `json:"installdir"`
	Launch     Indexed[AppLaunch] `json:"launch"`
}

type AppLaunch struct {
	Executable  string          `json:"executable"`
	Arguments   string          `json:"arguments"`
	WorkingDir  string          `json:"workingdir"`
	Type        string          `json:"type"`
	Config      AppLaunchConfig `json:"config"`
	Description string          `json:"description"`
}

type AppLaunchConfig struct {
	BetaKey string `json:"betakey"`
	OSArch  string `json:"osarch"`
	OSList  string `json:"oslist"`
	OwnsDLC string `json:"ownsdlc"`
}

// AppUFS is the Steam Cloud (user file system) section
type AppUFS struct {
	SaveFiles     Indexed[AppSaveFile]     `json:"savefiles"`
	RootOverrides Indexed[AppRootOverride] `json:"rootoverrides"`
}

type AppSaveFile struct {
	Path      string          `json:"path"`
	Pattern   string          `json:"pattern"`
	Platforms Indexed[string] `json:"platforms"`
	Recursive Bool            `json:"recursive"`
	Root      string          `json:"root"`
}

type AppRootOverride struct {
	AddPath        string                    `json:"addpath"`
	OS             string                    `json:"os"`
	OSCompare      string                    `json:"oscompare"`
	PathTransforms Indexed[AppPathTransform] `json:"pathtransforms"`
	Platforms      Indexed[string]           `json:"platforms"`
	Recursive      Bool                      `json:"recursive"`
	Root           string                    `json:"root"`
	UseInstead     string                    `json:"useinstead"`
}

type AppPathTransform struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

var (
	knownSaveFileKeys = map[string]bool{
		"path": true, "pattern": true, "platforms": true, "recursive": true, "root": true,
	}
	knownRootOverrideKeys = map[string]bool{
		"addpath": true, "os": true, "oscompare": true, "pathtransforms": true,
		"platforms": true, "recursive": true, "root": true, "useinstead": true,
	}
)

// rawResponse keeps the key names of the cloud entries for irregularity checks
type rawResponse struct {
	Apps map[string]struct {
		UFS struct {
			SaveFiles     Indexed[map[string]json.RawMessage] `json:"savefiles"`
			RootOverrides Indexed[map[string]json.RawMessage] `json:"rootoverrides"`
		} `json:"ufs"`
	} `json:"apps"`
}

// Parse decodes info into a Response and records unknown cloud keys per app
func Parse(info steam.ProductInfo) (*Response, error) {
	var resp Response
	if err := info.Decode(&resp); err != nil {
		return nil, err
	}

	var raw rawResponse
	if err := info.Decode(&raw); err != nil {
		return nil, err
	}

	for id, rawApp := range raw.Apps {
		app, ok := resp.Apps[id]
		if !ok {
			continue
		}
		var unknown []string
		for _, save := range rawApp.UFS.SaveFiles.Items {
			unknown = appendUnknown(unknown, "savefiles", save, knownSaveFileKeys)
		}
		for _, override := range rawApp.UFS.RootOverrides.Items {
			unknown = appendUnknown(unknown, "rootoverrides", override, knownRootOverrideKeys)
		}
		app.UnknownKeys = unknown
		resp.Apps[id] = app
	}

	return &resp, nil
}

func appendUnknown(dst []string, section string, entry map[string]json.RawMessage, known map[string]bool) []string {
	keys := make([]string, 0, len(entry))
	for key := range entry {
		if !known[strings.ToLower(key)] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		dst = append(dst, section+"."+key)
	}
	return dst
}

// Indexed decodes the KeyValues idiom for lists, an object keyed "0", "1", ...
// Items are ordered by numeric key. Keys that are not numbers are collected in
// Unexpected instead of failing the decode. A JSON array is accepted as is.
type Indexed[T any] struct {
	Items      []T
	Unexpected []string
}

// UnmarshalJSON implements json.Unmarshaler
func (x *Indexed[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*x = Indexed[T]{}
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			items = nil
		}
		*x = Indexed[T]{Items: items}
		return nil
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(data, &byKey); err != nil {
		return err
	}

	type indexedItem struct {
		index uint64
		raw   json.RawMessage
	}
	items := make([]indexedItem, 0, len(byKey))
	var unexpected []string
	for key, raw := range byKey {
		index, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			unexpected = append(unexpected, key)
			continue
		}
		items = append(items, indexedItem{index: index, raw: raw})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })
	sort.Strings(unexpected)

	out := Indexed[T]{Unexpected: unexpected}
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item.raw, &v); err != nil {
			return fmt.Errorf("entry %d: %w", item.index, err)
		}
		out.Items = append(out.Items, v)
	}
	*x = out
	return nil
}

// Bool decodes KeyValues booleans, which arrive as "1" and "0"
type Bool bool

// UnmarshalJSON implements json.Unmarshaler
func (b *Bool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = Bool(x)
	case float64:
		*b = Bool(x != 0)
	case string:
		*b = Bool(x == "1" || strings.EqualFold(x, "true"))
	default:
		return fmt.Errorf("cannot decode %s as a boolean", string(data))
	}
	return nil
}
