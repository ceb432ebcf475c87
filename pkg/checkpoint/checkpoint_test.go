package checkpoint

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"storylm/pkg/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	dict := map[string]*mat.Dense{
		"output.w":   mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		"norm.scale": mat.NewDense(1, 3, []float64{1, 1, 1}),
	}
	require.NoError(t, Save(path, dict))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for name, want := range dict {
		got, ok := loaded[name]
		require.True(t, ok, name)
		assert.True(t, mat.Equal(want, got), name)
	}
}

func TestModelStateSurvivesRoundTrip(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.VocabSize = 12
	cfg.EmbeddingWidth = 8
	cfg.ContextLength = 4
	cfg.NumLayers = 1
	cfg.NumHeads = 2
	cfg.Dropout = 0

	src, err := model.New(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, Save(path, src.StateDict()))

	dict, err := Load(path)
	require.NoError(t, err)
	cfg.Seed = 99
	dst, err := model.New(cfg)
	require.NoError(t, err)
	require.NoError(t, dst.LoadStateDict(dict))

	inputs := [][]int{{1, 2, 3, 4}}
	targets := [][]int{{2, 3, 4, 5}}
	_, wantLoss, err := src.Forward(inputs, targets)
	require.NoError(t, err)
	_, gotLoss, err := dst.Forward(inputs, targets)
	require.NoError(t, err)
	assert.InDelta(t, wantLoss, gotLoss, 1e-12)
}

func TestLoadRejectsCorruptEntry(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.ckpt")
	f, err := os.Create(bad)
	require.NoError(t, err)
	// Shape disagrees with the payload length.
	require.NoError(t, gob.NewEncoder(f).Encode([]entry{
		{Name: "w", Rows: 2, Cols: 2, Data: []float64{1}},
	}))
	require.NoError(t, f.Close())

	_, err = Load(bad)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ckpt"))
	assert.Error(t, err)
}
