package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/helvemed/meddiff/internal/model"
)

// WriteJSON serializes v pretty-printed to path. The file is written to a
// temporary sibling first and renamed into place, so a failed run never
// leaves a partial output file behind.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal json")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "report: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "report: create temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "report: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "report: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "report: rename into %s", path)
	}
	return nil
}

// ReadChangeSet loads a change-set file written by one of the diff commands.
func ReadChangeSet(path string) (*model.ChangeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read change-set %s", path)
	}
	var cs model.ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, eris.Wrapf(err, "report: parse change-set %s", path)
	}
	return &cs, nil
}
