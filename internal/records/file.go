package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one indented JSON array per kind under base, e.g.
// exam_data/results.json. Saves go through a temp file and a rename so a
// reader never observes a half-written collection.
type FileStore struct{ base string }

func NewFileStore(base string) (*FileStore, error) {
	if base == "" {
		base = "./exam_data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{base: base}, nil
}

func (s *FileStore) path(kind Kind) string {
	return filepath.Join(s.base, filepath.Base(string(kind))+".json")
}

func (s *FileStore) LoadAll(ctx context.Context, kind Kind) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("load", kind, err)
	}
	b, err := os.ReadFile(s.path(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, unavailable("load", kind, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []json.RawMessage{}, nil
	}
	var recs []json.RawMessage
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, unavailable("decode", kind, err)
	}
	if recs == nil {
		recs = []json.RawMessage{}
	}
	return recs, nil
}

func (s *FileStore) SaveAll(ctx context.Context, kind Kind, recs []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return unavailable("save", kind, err)
	}
	if recs == nil {
		recs = []json.RawMessage{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return unavailable("encode", kind, err)
	}

	dst := s.path(kind)
	tmp, err := os.CreateTemp(s.base, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return unavailable("save", kind, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return unavailable("save", kind, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return unavailable("save", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("save", kind, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return unavailable("save", kind, err)
	}
	return nil
}
