package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuild(t *testing.T, version, commit string, bi *debug.BuildInfo) {
	t.Helper()
	oldVersion, oldCommit, oldRead := Version, GitCommit, readBuildInfo
	t.Cleanup(func() { Version, GitCommit, readBuildInfo = oldVersion, oldCommit, oldRead })

	Version, GitCommit = version, commit
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestGet(t *testing.T) {
	vcs := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/jingkaihe/skillforge", Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	t.Run("ldflags win", func(t *testing.T) {
		withBuild(t, "1.2.0", "feedface", vcs)
		info := Get()
		assert.Equal(t, "1.2.0", info.Version)
		assert.Equal(t, "feedface", info.GitCommit)
		assert.True(t, info.Modified)
		assert.Equal(t, runtime.Version(), info.GoVersion)
	})

	t.Run("falls back to embedded build info", func(t *testing.T) {
		withBuild(t, "dev", unknown, vcs)
		info := Get()
		assert.Equal(t, "0.4.1", info.Version)
		assert.Equal(t, "0123456789abcdef0123", info.GitCommit)
		assert.Equal(t, "0123456789ab", info.ShortCommit())
		assert.Equal(t, "skillforge 0.4.1 (0123456789ab-dirty, "+runtime.Version()+")", info.String())
	})

	t.Run("devel module keeps dev", func(t *testing.T) {
		withBuild(t, "dev", unknown, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
		info := Get()
		assert.Equal(t, "dev", info.Version)
		assert.Equal(t, unknown, info.GitCommit)
		assert.False(t, info.Modified)
		assert.Equal(t, "skillforge/dev", info.UserAgent())
	})

	t.Run("no build info", func(t *testing.T) {
		withBuild(t, "dev", unknown, nil)
		assert.Equal(t, Info{Version: "dev", GitCommit: unknown, GoVersion: runtime.Version()}, Get())
	})
}

func TestJSON(t *testing.T) {
	out, err := Info{Version: "1.0.0", GitCommit: "abc", GoVersion: "go1.25.1"}.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "1.0.0", decoded["version"])
	assert.Equal(t, "abc", decoded["gitCommit"])
	assert.NotContains(t, decoded, "modified")
}
