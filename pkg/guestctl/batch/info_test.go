package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInfoPath(t *testing.T) {
	dir := t.TempDir()
	infosDir := filepath.Join(dir, "experiment_infos")
	require.NoError(t, os.MkdirAll(infosDir, 0o755))
	inInfos := filepath.Join(infosDir, "2026-02-11T14-05-09_tq_experiment.json")
	require.NoError(t, os.WriteFile(inInfos, []byte(`{}`), 0o600))
	direct := filepath.Join(dir, "direct.json")
	require.NoError(t, os.WriteFile(direct, []byte(`{}`), 0o600))

	resolved, err := ResolveInfoPath(direct, infosDir)
	require.NoError(t, err)
	assert.Equal(t, direct, resolved)

	resolved, err = ResolveInfoPath("2026-02-11T14-05-09_tq_experiment.json", infosDir)
	require.NoError(t, err)
	assert.Equal(t, inInfos, resolved)

	_, err = ResolveInfoPath("missing.json", infosDir)
	require.ErrorContains(t, err, "not found")

	_, err = ResolveInfoPath("", infosDir)
	require.Error(t, err)
}

func TestLoadTaskIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"c":{"angle":1},"a":{"angle":0},"b":null}`), 0o600))

	ids, err := LoadTaskIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, os.WriteFile(path, []byte(`["a","b"]`), 0o600))
	_, err = LoadTaskIDs(path)
	require.ErrorContains(t, err, "invalid JSON")
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("batch_results", "2026-02-11T14-05-09"),
		DefaultOutputDir("batch_results", "experiment_infos/2026-02-11T14-05-09_tq_experiment.json"))
	assert.Equal(t, filepath.Join("out", "manual"), DefaultOutputDir("out", "manual.json"))
}
