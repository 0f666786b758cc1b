package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biofloc/wqmodel/pkg/train"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	dir := t.TempDir()

	c1, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), c1)

	c1.MaxIter = 200
	c1.Strategy = train.Multinomial
	c1.Version = "1.0.0"

	require.NoError(t, Save(dir, c1))

	c2, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestReadOrCreate_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := ReadOrCreate(dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)

	_, err = ReadOrCreate("")
	assert.Error(t, err)
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("c: 0.5\n"), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.C)
	assert.Equal(t, 1000, c.MaxIter)
	assert.Equal(t, train.OneVsRest, c.Strategy)
	assert.Equal(t, "0.1.0", c.Version)

	o := c.TrainOptions()
	assert.Equal(t, 0.5, o.C)
	assert.Equal(t, 1e-4, o.Tolerance)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "c: [",
		"bad strategy": "strategy: tree\n",
		"negative c":   "c: -1\n",
		"bad version":  "version: latest\n",
		"bad format":   "format: xml\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSave_Invalid(t *testing.T) {
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(t.TempDir(), nil))
}

func TestGetOrCreateHomeDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, created, err := GetOrCreateHomeDir("wqmodel")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ".wqmodel", filepath.Base(dir))

	again, created, err := GetOrCreateHomeDir(".wqmodel")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, dir, again)

	_, _, err = GetOrCreateHomeDir("")
	assert.Error(t, err)
}
