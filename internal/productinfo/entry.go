package productinfo

import (
	"log/slog"
	"strconv"
)

// State tracks whether a cache entry needs to be fetched again
type State string

const (
	// StateHandled is the zero value: the entry is up to date
	StateHandled State = ""

	// StateOutdated marks an entry that must be re-fetched
	StateOutdated State = "outdated"

	// StateUpdated marks an entry that was re-fetched but not yet consumed downstream
	StateUpdated State = "updated"
)

// Entry is the digest of one app kept in the cache
type Entry struct {
	State         State             `yaml:"state,omitempty" json:"state,omitempty"`
	Irregular     bool              `yaml:"irregular,omitempty" json:"irregular,omitempty"`
	Cloud         Cloud             `yaml:"cloud,omitempty" json:"cloud,omitzero"`
	InstallDir    string            `yaml:"installDir,omitempty" json:"installDir,omitempty"`
	Launch        []Launch          `yaml:"launch,omitempty" json:"launch,omitempty"`
	NameLocalized map[string]string `yaml:"nameLocalized,omitempty" json:"nameLocalized,omitempty"`
}

// Cloud lists the Steam Cloud save locations of an app
type Cloud struct {
	Saves     []CloudSave     `yaml:"saves,omitempty" json:"saves,omitempty"`
	Overrides []CloudOverride `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// IsZero reports whether the app has no cloud configuration
func (c Cloud) IsZero() bool {
	return len(c.Saves) == 0 && len(c.Overrides) == 0
}

type CloudSave struct {
	Path      string   `yaml:"path" json:"path"`
	Pattern   string   `yaml:"pattern" json:"pattern"`
	Platforms []string `yaml:"platforms,omitempty" json:"platforms,omitempty"`
	Recursive bool     `yaml:"recursive,omitempty" json:"recursive,omitempty"`
	Root      string   `yaml:"root" json:"root"`
}

type CloudOverride struct {
	AddPath        string           `yaml:"addPath,omitempty" json:"addPath,omitempty"`
	OS             string           `yaml:"os,omitempty" json:"os,omitempty"`
	OSCompare      string           `yaml:"osCompare,omitempty" json:"osCompare,omitempty"`
	PathTransforms []CloudTransform `yaml:"pathTransforms,omitempty" json:"pathTransforms,omitempty"`
	Recursive      bool             `yaml:"recursive,omitempty" json:"recursive,omitempty"`
	Root           string           `yaml:"root" json:"root"`
	UseInstead     string           `yaml:"useInstead,omitempty" json:"useInstead,omitempty"`
}

type CloudTransform struct {
	Find    string `yaml:"find" json:"find"`
	Replace string `yaml:"replace" json:"replace"`
}

// Launch is one launch option of an app
type Launch struct {
	Arguments   string       `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Config      LaunchConfig `yaml:"config,omitempty" json:"config,omitzero"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Executable  string       `yaml:"executable,omitempty" json:"executable,omitempty"`
	Type        string       `yaml:"type,omitempty" json:"type,omitempty"`
	WorkingDir  string       `yaml:"workingdir,omitempty" json:"workingdir,omitempty"`
}

// IsZero reports whether the launch option carries no information
func (l Launch) IsZero() bool {
	return l.Arguments == "" && l.Config.IsZero() && l.Description == "" &&
		l.Executable == "" && l.Type == "" && l.WorkingDir == ""
}

type LaunchConfig struct {
	BetaKey string `yaml:"betakey,omitempty" json:"betakey,omitempty"`
	OSArch  string `yaml:"osarch,omitempty" json:"osarch,omitempty"`
	OSList  string `yaml:"oslist,omitempty" json:"oslist,omitempty"`
	OwnsDLC string `yaml:"ownsdlc,omitempty" json:"ownsdlc,omitempty"`
}

func (c LaunchConfig) IsZero() bool {
	return c.BetaKey == "" && c.OSArch == "" && c.OSList == "" && c.OwnsDLC == ""
}

// Digest builds one entry per requested app. Apps absent from the response
// get an empty entry so the cache remembers they were checked.
func Digest(resp *Response, ids []uint32, logger *slog.Logger) map[uint32]Entry {
	entries := make(map[uint32]Entry, len(ids))
	for _, id := range ids {
		if _, seen := entries[id]; seen {
			continue
		}

		app, ok := resp.Apps[strconv.FormatUint(uint64(id), 10)]
		if !ok {
			logger.Warn("no results for app", "app_id", id)
			entries[id] = Entry{}
			continue
		}

		logger.Debug("digesting app", "app_id", id, "name", app.Common.Name)
		entries[id] = newEntry(id, app, logger)
	}
	return entries
}

func newEntry(id uint32, app App, logger *slog.Logger) Entry {
	for _, key := range app.UnknownKeys {
		logger.Warn("unknown cloud key", "app_id", id, "key", key)
	}
	for section, keys := range map[string][]string{
		"config.launch":     app.Config.Launch.Unexpected,
		"ufs.savefiles":     app.UFS.SaveFiles.Unexpected,
		"ufs.rootoverrides": app.UFS.RootOverrides.Unexpected,
	} {
		for _, key := range keys {
			logger.Warn("unexpected list key", "app_id", id, "section", section, "key", key)
		}
	}

	entry := Entry{
		State:         StateHandled,
		Irregular:     len(app.UnknownKeys) > 0,
		InstallDir:    app.Config.InstallDir,
		NameLocalized: app.Common.NameLocalized,
	}

	for _, l := range app.Config.Launch.Items {
		launch := Launch{
			Arguments:   l.Arguments,
			Description: l.Description,
			Executable:  l.Executable,
			Type:        l.Type,
			WorkingDir:  l.WorkingDir,
			Config: LaunchConfig{
				BetaKey: l.Config.BetaKey,
				OSArch:  l.Config.OSArch,
				OSList:  l.Config.OSList,
				OwnsDLC: l.Config.OwnsDLC,
			},
		}
		if launch.IsZero() {
			continue
		}
		entry.Launch = append(entry.Launch, launch)
	}

	for _, s := range app.UFS.SaveFiles.Items {
		entry.Cloud.Saves = append(entry.Cloud.Saves, CloudSave{
			Path:      s.Path,
			Pattern:   s.Pattern,
			Platforms: s.Platforms.Items,
			Recursive: bool(s.Recursive),
			Root:      s.Root,
		})
	}

	for _, o := range app.UFS.RootOverrides.Items {
		override := CloudOverride{
			AddPath:    o.AddPath,
			OS:         o.OS,
			OSCompare:  o.OSCompare,
			Recursive:  bool(o.Recursive),
			Root:       o.Root,
			UseInstead: o.UseInstead,
		}
		for _, t := range o.PathTransforms.Items {
			override.PathTransforms = append(override.PathTransforms, CloudTransform{Find: t.Find, Replace: t.Replace})
		}
		entry.Cloud.Overrides = append(entry.Cloud.Overrides, override)
	}

	return entry
}
