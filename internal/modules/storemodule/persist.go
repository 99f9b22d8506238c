package storemodule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TempFilePrefix marks the store's own scratch files so the directory
// watcher can ignore them; without this the persistence write would be
// observed as an image add.
const TempFilePrefix = "tmp_"

// load reads the data file, upgrading legacy-shaped entries. A missing
// file yields an empty store; a corrupt file is a hard error so startup
// fails loudly instead of silently discarding metadata.
func (s *Store) load() error {
	data, err := os.ReadFile(s.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return s.persistLocked() // create an empty data file
		}
		return fmt.Errorf("failed to read %s: %w", s.dataFile, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("corrupt data file %s: %w", s.dataFile, err)
	}

	for id, entry := range raw {
		rec, err := decodeRecord(id, entry)
		if err != nil {
			return fmt.Errorf("corrupt data file %s: %w", s.dataFile, err)
		}
		s.records[id] = rec
	}

	return nil
}

// persistLocked writes the whole store to disk. The write goes to a
// tmp_-prefixed sibling first and is renamed over the data file, so a
// crash mid-write leaves either the old or the new complete file.
// Callers must hold the store lock.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.dataFile), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	payload := make(map[string]*ImageRecord, len(s.records))
	for id, rec := range s.records {
		payload[id] = rec
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode image data: %w", err)
	}

	dir := filepath.Dir(s.dataFile)
	tmp, err := os.CreateTemp(dir, TempFilePrefix+filepath.Base(s.dataFile)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp data file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp data file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp data file: %w", err)
	}

	if err := os.Rename(tmpName, s.dataFile); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace data file: %w", err)
	}

	return nil
}
