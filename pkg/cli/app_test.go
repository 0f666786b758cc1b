package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/biofloc/wqmodel/internal/testutil"
	"github.com/biofloc/wqmodel/pkg/data"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := newApp(&buf).Run(context.Background(), append([]string{appName}, args...))
	return buf.String(), err
}

func writeReadings(t *testing.T, n int, seed uint64, labeled bool) string {
	t.Helper()
	d := testutil.Dataset(n, seed)
	if labeled {
		d.Synthesize()
		d.Labeled = true
	}

	path := filepath.Join(t.TempDir(), "readings.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, testutil.WriteCSV(f, d))
	return path
}

func TestTrain_Stdout(t *testing.T) {
	in := writeReadings(t, 200, 21, false)

	out, err := runApp(t, "train", "--no-history", "--input", in)
	require.NoError(t, err)

	a, err := model.Decode(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultVersion, a.Version)
	assert.Equal(t, quality.FeatureNames(), a.Features)
	assert.True(t, strings.HasPrefix(out, "{\n  \"version\""))
}

func TestTrain_RemoteInput(t *testing.T) {
	in := writeReadings(t, 120, 29, false)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/readings.csv" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, in)
	}))
	defer srv.Close()

	remote, err := runApp(t, "train", "--no-history", srv.URL+"/readings.csv")
	require.NoError(t, err)
	local, err := runApp(t, "train", "--no-history", in)
	require.NoError(t, err)
	assert.Equal(t, local, remote)

	_, err = runApp(t, "train", "--no-history", srv.URL+"/missing.csv")
	assert.Error(t, err)
}

func TestTrain_OutputFileYAML(t *testing.T) {
	in := writeReadings(t, 200, 22, true)
	path := filepath.Join(t.TempDir(), "model.yaml")

	out, err := runApp(t, "--format", "yaml", "train", "--no-history", "--artifact-version", "1.2.0", "--output", path, in)
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 200")
	assert.Contains(t, out, "synthesized: false")

	a, err := model.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", a.Version)
}

func TestTrain_Reproducible(t *testing.T) {
	in := writeReadings(t, 150, 23, false)

	first, err := runApp(t, "train", "--no-history", in)
	require.NoError(t, err)
	second, err := runApp(t, "train", "--no-history", in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTrain_Errors(t *testing.T) {
	in := writeReadings(t, 50, 24, false)

	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"train", "--no-history"}},
		{"missing file", []string{"train", "--no-history", filepath.Join(t.TempDir(), "missing.csv")}},
		{"bad strategy", []string{"train", "--no-history", "--strategy", "tree", in}},
		{"bad c", []string{"train", "--no-history", "--c", "-1", in}},
		{"bad version", []string{"train", "--no-history", "--artifact-version", "latest", in}},
		{"bad format", []string{"--format", "xml", "train", "--no-history", in}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, tt.args...)
			assert.Error(t, err)
			assert.Empty(t, out, "nothing written on failure")
		})
	}
}

func TestTrain_RecordsHistory(t *testing.T) {
	in := writeReadings(t, 150, 25, false)
	db := filepath.Join(t.TempDir(), data.DataFileName)

	out, err := runApp(t, "--db", db, "train", in)
	require.NoError(t, err)
	trained, err := model.Decode(strings.NewReader(out))
	require.NoError(t, err)

	out, err = runApp(t, "--db", db, "history", "list")
	require.NoError(t, err)

	var runs []*data.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, in, runs[0].Source)
	assert.Equal(t, 150, runs[0].Rows)
	assert.True(t, runs[0].Synthesized)

	digest, err := trained.Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, runs[0].Digest)

	out, err = runApp(t, "--db", db, "history", "show", runs[0].ID)
	require.NoError(t, err)

	var detail struct {
		ID       string          `json:"id"`
		Artifact *model.Artifact `json:"artifact"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, runs[0].ID, detail.ID)
	assert.True(t, trained.Equal(detail.Artifact))
}

func TestHistory_ShowErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), data.DataFileName)

	_, err := runApp(t, "--db", db, "history", "show")
	assert.Error(t, err)

	_, err = runApp(t, "--db", db, "history", "show", "6f1c1a52-8a39-4a39-9f53-2b1c8f0c8f11")
	assert.ErrorIs(t, err, data.ErrRunNotFound)
}

func TestLabel_Compare(t *testing.T) {
	in := writeReadings(t, 80, 26, true)

	out, err := runApp(t, "label", "--compare", "--summary", in)
	require.NoError(t, err)

	var rep labelReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 80, rep.Rows)
	require.NotNil(t, rep.Agreement)
	assert.Equal(t, 1.0, *rep.Agreement)
	assert.Empty(t, rep.Results)
	assert.Equal(t, 80, rep.Counts["good"]+rep.Counts["warning"]+rep.Counts["critical"])
}

func TestLabel_Rows(t *testing.T) {
	in := writeReadings(t, 10, 27, false)

	out, err := runApp(t, "label", in)
	require.NoError(t, err)

	var rep labelReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Results, 10)
	assert.Nil(t, rep.Agreement)
	for _, r := range rep.Results {
		assert.Equal(t, quality.DefaultThresholds.Classify(r.Score), r.Label)
		assert.Nil(t, r.Given)
	}

	_, err = runApp(t, "label", "--compare", in)
	assert.Error(t, err, "compare needs a quality_label column")
}

func TestPredict(t *testing.T) {
	in := writeReadings(t, 200, 28, false)
	path := filepath.Join(t.TempDir(), "model.json")
	_, err := runApp(t, "train", "--no-history", "--output", path, in)
	require.NoError(t, err)

	args := []string{"predict", "--model", path}
	n := testutil.Nominal()
	for _, name := range quality.FeatureNames() {
		v, _ := n.Value(name)
		args = append(args, "--"+name, strconvFloat(v))
	}

	out, err := runApp(t, args...)
	require.NoError(t, err)

	var res predictResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Prediction)
	assert.Equal(t, 100, res.Heuristic.Score)
	assert.Equal(t, quality.Good, res.Heuristic.Label)
	assert.GreaterOrEqual(t, res.Prediction.Score, 0)
	assert.LessOrEqual(t, res.Prediction.Score, 100)

	out, err = runApp(t, "predict", "--model", path, in)
	require.NoError(t, err)
	var list []predictResult
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 200)
	assert.Equal(t, 2, list[0].Line)

	_, err = runApp(t, "predict", "--model", path, "--ph", "7.5")
	assert.ErrorIs(t, err, quality.ErrMissingFeature)

	_, err = runApp(t, "predict", "--model", filepath.Join(t.TempDir(), "none.json"), in)
	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: multinomial\nmax_iter: 300\nformat: yaml\n"), 0600))

	out, err := runApp(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: multinomial")
	assert.Contains(t, out, "max_iter: 300")

	out, err = runApp(t, "--config", path, "--format", "json", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"max_iter": 300`)
}

func TestConfigInit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runApp(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, `"strategy": "ovr"`)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, "."+appName, "config.yaml"))
	assert.NoError(t, err)
}

func strconvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
