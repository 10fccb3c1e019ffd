package lookup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kula-app/steam-app-info/internal/config"
	"github.com/kula-app/steam-app-info/internal/productinfo"
	"github.com/kula-app/steam-app-info/internal/render"
	"github.com/kula-app/steam-app-info/internal/steam"
)

// Lookup runs one batched product-info query and writes the result
type Lookup struct {
	dialer steam.Dialer
	logger *slog.Logger
	config *config.Config
}

// NewLookup creates a new lookup
func NewLookup(dialer steam.Dialer, logger *slog.Logger, cfg *config.Config) *Lookup {
	return &Lookup{
		dialer: dialer,
		logger: logger,
		config: cfg,
	}
}

// Run opens a session, queries all ids in one request and writes the rendered
// result to w. Output is written only after every step has succeeded.
func (l *Lookup) Run(ctx context.Context, ids []uint32, w io.Writer) error {
	startTime := time.Now()

	// 1. Load the cache and add outdated entries to the batch
	var cache productinfo.Cache
	if l.config.CacheFile != "" {
		var err error
		cache, err = productinfo.LoadCache(l.config.CacheFile)
		if err != nil {
			return err
		}
		l.logger.Debug("cache loaded", "path", l.config.CacheFile, "entries", len(cache))

		if l.config.Outdated {
			outdated := cache.Outdated()
			ids = appendMissing(ids, outdated)
			l.logger.Info("outdated cache entries added", "count", len(outdated))
		}
	}

	// 2. Authenticate
	session, err := l.dialer.OpenAnonymousSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			l.logger.Debug("failed to close session", "error", err)
		}
	}()

	// 3. Query the whole batch at once
	l.logger.Info("requesting product info", "app_count", len(ids))
	info, err := session.QueryProductInfo(ctx, ids)
	if err != nil {
		return err
	}

	// 4. Render into a buffer so that failures leave stdout untouched
	var buf bytes.Buffer
	if l.config.Summary || cache != nil {
		entries, err := l.digest(info, ids)
		if err != nil {
			return err
		}

		if l.config.Summary {
			if err := render.Write(&buf, l.config.Format, entries); err != nil {
				return err
			}
		}

		if cache != nil {
			cache.Merge(entries)
			written, err := cache.Save(l.config.CacheFile)
			if err != nil {
				return err
			}
			l.logger.Info("cache updated",
				"path", l.config.CacheFile,
				"entries", len(cache),
				"written", written)
		}
	}
	if !l.config.Summary {
		if err := render.ProductInfo(&buf, l.config.Format, info); err != nil {
			return err
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	l.logger.Info("lookup completed",
		"app_count", len(ids),
		"bytes", buf.Len(),
		"duration", time.Since(startTime))
	return nil
}

func (l *Lookup) digest(info steam.ProductInfo, ids []uint32) (productinfo.Cache, error) {
	resp, err := productinfo.Parse(info)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product info: %w", err)
	}
	return productinfo.Cache(productinfo.Digest(resp, ids, l.logger)), nil
}

// appendMissing appends the extra ids that ids does not contain yet
func appendMissing(ids, extra []uint32) []uint32 {
	seen := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range extra {
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	return ids
}
