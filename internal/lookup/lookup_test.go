package lookup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kula-app/steam-app-info/internal/config"
	"github.com/kula-app/steam-app-info/internal/productinfo"
	"github.com/kula-app/steam-app-info/internal/steam"
)

// stubDialer is a steam.Dialer that hands out a stubSession
type stubDialer struct {
	openErr error
	session *stubSession
	opens   int
}

func (d *stubDialer) OpenAnonymousSession(context.Context) (steam.Session, error) {
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.session, nil
}

type stubSession struct {
	info     steam.ProductInfo
	queryErr error
	queries  [][]uint32
	closed   int
}

func (s *stubSession) QueryProductInfo(_ context.Context, apps []uint32) (steam.ProductInfo, error) {
	s.queries = append(s.queries, append([]uint32(nil), apps...))
	if s.queryErr != nil {
		return steam.ProductInfo{}, s.queryErr
	}
	return s.info, nil
}

func (s *stubSession) Close() error {
	s.closed++
	return nil
}

func newStub(raw string) (*stubDialer, *stubSession) {
	session := &stubSession{info: steam.MustProductInfo(raw)}
	return &stubDialer{session: session}, session
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLookup_Run(t *testing.T) {
	dialer, session := newStub(`{"apps": {"730": {"name": "Example"}}}`)
	l := NewLookup(dialer, testLogger(), config.DefaultConfig())

	var out bytes.Buffer
	require.NoError(t, l.Run(context.Background(), []uint32{730}, &out))

	want := "{\n  \"apps\": {\n    \"730\": {\n      \"name\": \"Example\"\n    }\n  }\n}\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, [][]uint32{{730}}, session.queries)
	assert.Equal(t, 1, session.closed)
}

func TestLookup_Run_PassesIDsInOrder(t *testing.T) {
	dialer, session := newStub(`{"apps": {}}`)
	l := NewLookup(dialer, testLogger(), config.DefaultConfig())

	require.NoError(t, l.Run(context.Background(), []uint32{730, 440, 730}, io.Discard))
	assert.Equal(t, [][]uint32{{730, 440, 730}}, session.queries)
}

func TestLookup_Run_EmptyBatch(t *testing.T) {
	dialer, session := newStub(`{"apps": {}, "packages": {}}`)
	l := NewLookup(dialer, testLogger(), config.DefaultConfig())

	var out bytes.Buffer
	require.NoError(t, l.Run(context.Background(), []uint32{}, &out))

	require.Len(t, session.queries, 1, "empty batch still issues exactly one query")
	assert.Empty(t, session.queries[0])
	assert.Equal(t, "{\n  \"apps\": {},\n  \"packages\": {}\n}\n", out.String())
}

func TestLookup_Run_Deterministic(t *testing.T) {
	raw := `{"apps": {"730": {"common": {"name": "Example", "oslist": "windows,linux"}}, "440": {"common": {}}}}`

	var first, second bytes.Buffer
	for _, out := range []*bytes.Buffer{&first, &second} {
		dialer, _ := newStub(raw)
		l := NewLookup(dialer, testLogger(), config.DefaultConfig())
		require.NoError(t, l.Run(context.Background(), []uint32{730, 440}, out))
	}
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestLookup_Run_AuthenticationFailure(t *testing.T) {
	session := &stubSession{}
	authErr := &steam.AuthenticationError{Err: errors.New("anonymous logins disabled")}
	dialer := &stubDialer{openErr: authErr, session: session}
	l := NewLookup(dialer, testLogger(), config.DefaultConfig())

	var out bytes.Buffer
	err := l.Run(context.Background(), []uint32{730}, &out)

	var gotAuth *steam.AuthenticationError
	require.ErrorAs(t, err, &gotAuth)
	assert.Same(t, authErr, gotAuth, "error is surfaced as is")
	assert.Empty(t, session.queries, "no query after failed login")
	assert.Empty(t, out.String(), "no output after failed login")
}

func TestLookup_Run_QueryFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "network", err: &steam.NetworkError{Op: "product info", Err: errors.New("connection reset")}},
		{name: "protocol", err: &steam.ProtocolError{Op: "product info", Message: "rate limited"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer, session := newStub(`{}`)
			session.queryErr = tt.err
			l := NewLookup(dialer, testLogger(), config.DefaultConfig())

			var out bytes.Buffer
			err := l.Run(context.Background(), []uint32{730}, &out)

			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, session.queries, 1, "no retry")
			assert.Equal(t, 1, session.closed, "session is released on failure")
			assert.Empty(t, out.String())
		})
	}
}

func TestLookup_Run_YAML(t *testing.T) {
	dialer, _ := newStub(`{"apps": {"730": {"name": "Example"}}}`)
	cfg := config.DefaultConfig()
	cfg.Format = config.FormatYAML
	l := NewLookup(dialer, testLogger(), cfg)

	var out bytes.Buffer
	require.NoError(t, l.Run(context.Background(), []uint32{730}, &out))
	assert.Equal(t, "apps:\n  \"730\":\n    name: Example\n", out.String())
}

const cloudInfo = `{"apps": {"730": {
  "common": {"name": "Example"},
  "config": {"installdir": "example"},
  "ufs": {"savefiles": {"0": {"path": "saves", "pattern": "*.sav", "root": "WinAppDataRoaming"}}}
}}}`

func TestLookup_Run_Summary(t *testing.T) {
	dialer, _ := newStub(cloudInfo)
	cfg := config.DefaultConfig()
	cfg.Summary = true
	l := NewLookup(dialer, testLogger(), cfg)

	var out bytes.Buffer
	require.NoError(t, l.Run(context.Background(), []uint32{730}, &out))

	want := `{
  "730": {
    "cloud": {
      "saves": [
        {
          "path": "saves",
          "pattern": "*.sav",
          "root": "WinAppDataRoaming"
        }
      ]
    },
    "installDir": "example"
  }
}
`
	assert.Equal(t, want, out.String())
}

func TestLookup_Run_SummaryNumericOrder(t *testing.T) {
	raw := `{"apps": {"1000": {"config": {"installdir": "b"}}, "440": {"config": {"installdir": "a"}}}}`
	tests := []struct {
		format string
		want   string
	}{
		{
			format: config.FormatJSON,
			want:   "{\n  \"440\": {\n    \"installDir\": \"a\"\n  },\n  \"1000\": {\n    \"installDir\": \"b\"\n  }\n}\n",
		},
		{
			format: config.FormatYAML,
			want:   "440:\n  installDir: a\n1000:\n  installDir: b\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dialer, _ := newStub(raw)
			cfg := config.DefaultConfig()
			cfg.Summary = true
			cfg.Format = tt.format
			l := NewLookup(dialer, testLogger(), cfg)

			var out bytes.Buffer
			require.NoError(t, l.Run(context.Background(), []uint32{1000, 440}, &out))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestLookup_Run_Cache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steam-game-cache.yaml")
	seed := productinfo.Cache{
		440: {State: productinfo.StateOutdated},
		570: {InstallDir: "dota 2 beta"},
	}
	_, err := seed.Save(path)
	require.NoError(t, err)

	dialer, session := newStub(cloudInfo)
	cfg := config.DefaultConfig()
	cfg.CacheFile = path
	cfg.Outdated = true
	l := NewLookup(dialer, testLogger(), cfg)

	var out bytes.Buffer
	require.NoError(t, l.Run(context.Background(), []uint32{730}, &out))

	assert.Equal(t, [][]uint32{{730, 440}}, session.queries, "outdated ids are appended to the batch")
	assert.Contains(t, out.String(), `"installdir": "example"`, "raw result is still printed")

	cache, err := productinfo.LoadCache(path)
	require.NoError(t, err)
	assert.Equal(t, "example", cache[730].InstallDir)
	assert.Equal(t, productinfo.Entry{}, cache[440], "missing app is recorded as handled")
	assert.Equal(t, "dota 2 beta", cache[570].InstallDir, "untouched entries survive")
}

func TestLookup_Run_CacheUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o644))

	dialer, session := newStub(`{}`)
	cfg := config.DefaultConfig()
	cfg.CacheFile = path
	l := NewLookup(dialer, testLogger(), cfg)

	err := l.Run(context.Background(), []uint32{730}, io.Discard)
	assert.ErrorContains(t, err, "failed to parse cache")
	assert.Zero(t, dialer.opens, "no network activity with a broken cache")
	assert.Empty(t, session.queries)
}

func TestAppendMissing(t *testing.T) {
	assert.Equal(t, []uint32{730, 440, 730, 10}, appendMissing([]uint32{730, 440, 730}, []uint32{440, 10, 10}))
	assert.Equal(t, []uint32{1}, appendMissing(nil, []uint32{1}))
	assert.Equal(t, []uint32{}, appendMissing([]uint32{}, nil))
}
