// Package checkpoint persists a model state dict to disk. The core only
// exposes the named parameter mapping; the gob encoding here is a
// collaborator concern.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type entry struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// Save writes the state dict to path, entries sorted by name so the file
// is stable across runs.
func Save(path string, dict map[string]*mat.Dense) error {
	names := make([]string, 0, len(dict))
	for name := range dict {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]entry, 0, len(names))
	for _, name := range names {
		m := dict[name]
		r, c := m.Dims()
		data := make([]float64, r*c)
		copy(data, m.RawMatrix().Data)
		entries = append(entries, entry{Name: name, Rows: r, Cols: c, Data: data})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating checkpoint: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	return nil
}

// Load reads a state dict written by Save.
func Load(path string) (map[string]*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint: %w", err)
	}
	defer f.Close()

	var entries []entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}
	dict := make(map[string]*mat.Dense, len(entries))
	for _, e := range entries {
		if e.Rows*e.Cols != len(e.Data) {
			return nil, fmt.Errorf("entry %q: %dx%d does not match %d values",
				e.Name, e.Rows, e.Cols, len(e.Data))
		}
		dict[e.Name] = mat.NewDense(e.Rows, e.Cols, e.Data)
	}
	return dict, nil
}
