package forest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArtifact writes the given JSON to a temp file and returns its path
func writeArtifact(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "classifier.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	return path
}

// twoTreeArtifact splits on feature 0 at 0.5.  Tree one returns 1.0 above
// the split and 0.0 below, tree two always returns 0.5, so the ensemble
// scores 0.75 above and 0.25 below.
const twoTreeArtifact = `{
	"feature_count": 3,
	"threshold": 0.5,
	"trees": [
		{"nodes": [
			{"feature": 0, "threshold": 0.5, "left": 1, "right": 2},
			{"left": -1, "right": -1, "value": 0.0},
			{"left": -1, "right": -1, "value": 1.0}
		]},
		{"nodes": [
			{"left": -1, "right": -1, "value": 0.5}
		]}
	]
}`

func TestLoadAndScore(t *testing.T) {

	f, err := Load(writeArtifact(t, twoTreeArtifact))
	require.NoError(t, err)

	assert.Equal(t, 0.5, f.Threshold)
	assert.Len(t, f.Trees, 2)

	high, err := f.Score([]float64{0.9, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, high, 1e-9)

	low, err := f.Score([]float64{0.1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, low, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformed(t *testing.T) {

	cases := []struct {
		name string
		data string
	}{
		{"not json", `{tree`},
		{"no trees", `{"feature_count": 3, "threshold": 0.5, "trees": []}`},
		{"bad threshold", `{"feature_count": 3, "threshold": 1.5,
			"trees": [{"nodes": [{"left": -1, "right": -1, "value": 0.5}]}]}`},
		{"feature out of range", `{"feature_count": 1, "threshold": 0.5,
			"trees": [{"nodes": [
				{"feature": 5, "threshold": 0.5, "left": 1, "right": 2},
				{"left": -1, "right": -1, "value": 0.0},
				{"left": -1, "right": -1, "value": 1.0}
			]}]}`},
		{"child cycle", `{"feature_count": 1, "threshold": 0.5,
			"trees": [{"nodes": [
				{"feature": 0, "threshold": 0.5, "left": 0, "right": 0}
			]}]}`},
		{"leaf value out of range", `{"feature_count": 1, "threshold": 0.5,
			"trees": [{"nodes": [{"left": -1, "right": -1, "value": 2.0}]}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeArtifact(t, tc.data))
			assert.Error(t, err, "artifact should have been rejected")
		})
	}
}

func TestScoreRejectsWrongLength(t *testing.T) {

	f, err := Load(writeArtifact(t, twoTreeArtifact))
	require.NoError(t, err)

	_, err = f.Score([]float64{0.9})
	assert.Error(t, err)
}
