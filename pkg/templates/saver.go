package templates

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"pkg.jsn.cam/synthgen/pkg/storage"
)

// StoreFile is the database file written under the output directory.
const StoreFile = "items.db"

var (
	itemsBucket = []byte("items")
	metaBucket  = []byte("meta")
	runKey      = []byte("run")
)

// RunInfo is the metadata written when a save finishes.
type RunInfo struct {
	Version    string    `json:"version"`
	RunID      string    `json:"run_id"`
	Template   string    `json:"template"`
	Items      int       `json:"items"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// itemSaver implements synthgen.Saver on top of a storage backend.
// Each template embeds one.
type itemSaver struct {
	template string
	kind     string

	dir   string
	store *storage.JSONStore
	info  RunInfo
}

func newItemSaver(template string, cfg map[string]any) (itemSaver, error) {
	save, err := section(cfg, "save")
	if err != nil {
		return itemSaver{}, err
	}
	kind, err := stringOption(save, "backend", storage.KindBbolt)
	if err != nil {
		return itemSaver{}, err
	}
	return itemSaver{template: template, kind: kind}, nil
}

// InitSave opens the store in dir and clears any previous run. The run
// metadata is only written back by EndSave, so an unfinished run never looks
// finished to OpenSaved.
func (s *itemSaver) InitSave(dir string) error {
	if s.store != nil {
		return fmt.Errorf("save already initialised for %s", s.dir)
	}

	backend, err := storage.Open(s.kind, filepath.Join(dir, StoreFile))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	for _, step := range []func() error{
		func() error { return backend.DeleteBucket(itemsBucket) },
		func() error { return backend.DeleteBucket(metaBucket) },
		func() error { return backend.CreateBucket(itemsBucket) },
		func() error { return backend.CreateBucket(metaBucket) },
	} {
		if err := step(); err != nil {
			backend.Close()
			return fmt.Errorf("prepare store: %w", err)
		}
	}

	s.dir = dir
	s.store = storage.NewJSONStore(backend)
	s.info = RunInfo{
		Version:   StoreVersion,
		RunID:     uuid.New().String(),
		Template:  s.template,
		StartedAt: time.Now().UTC(),
	}

	log.Printf("[SAVE] Run %s writing %s items to %s (%s)", s.info.RunID, s.template, dir, s.kind)
	return nil
}

// Save stores payload under its task index.
func (s *itemSaver) Save(dir string, payload any, index int) error {
	if err := s.check(dir); err != nil {
		return err
	}
	if err := s.store.PutJSON(itemsBucket, storage.IndexKey(index), payload); err != nil {
		return fmt.Errorf("save item %d: %w", index, err)
	}
	s.info.Items++
	return nil
}

// EndSave records the run metadata and closes the store.
func (s *itemSaver) EndSave(dir string) error {
	if err := s.check(dir); err != nil {
		return err
	}

	s.info.FinishedAt = time.Now().UTC()
	err := s.store.PutJSON(metaBucket, runKey, s.info)
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	s.store = nil

	if err != nil {
		return fmt.Errorf("finish save: %w", err)
	}
	log.Printf("[SAVE] Run %s saved %d items", s.info.RunID, s.info.Items)
	return nil
}

// AbortSave closes the store without recording run metadata. Items saved so
// far stay on disk but OpenSaved rejects the store as unfinished.
func (s *itemSaver) AbortSave(dir string) error {
	if err := s.check(dir); err != nil {
		return err
	}

	err := s.store.Close()
	s.store = nil
	if err != nil {
		return fmt.Errorf("abort save: %w", err)
	}
	log.Printf("[SAVE] Run %s aborted after %d items", s.info.RunID, s.info.Items)
	return nil
}

func (s *itemSaver) check(dir string) error {
	if s.store == nil {
		return fmt.Errorf("save not initialised")
	}
	if dir != s.dir {
		return fmt.Errorf("save directory %s does not match initialised %s", dir, s.dir)
	}
	return nil
}

// SavedRun is a read-only view of a store written by a template.
type SavedRun struct {
	Info  RunInfo
	store *storage.JSONStore
}

// OpenSaved opens the bbolt store that a template saved under dir.
func OpenSaved(dir string) (*SavedRun, error) {
	path := filepath.Join(dir, StoreFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open saved run: %w", err)
	}

	backend, err := storage.NewBboltBackend(path)
	if err != nil {
		return nil, err
	}
	store := storage.NewJSONStore(backend)

	run := &SavedRun{store: store}
	found, err := store.GetJSON(metaBucket, runKey, &run.Info)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("read run metadata: %w", err)
	}
	if !found {
		store.Close()
		return nil, fmt.Errorf("read run metadata: run in %s was not finished", dir)
	}
	if err := checkStoreVersion(run.Info.Version); err != nil {
		store.Close()
		return nil, err
	}
	return run, nil
}

// Count returns the number of stored items.
func (r *SavedRun) Count() (int, error) {
	return r.store.Backend().Count(itemsBucket)
}

// Each visits the stored items in index order.
func (r *SavedRun) Each(fn func(index int, raw []byte) error) error {
	return r.store.ForEachJSON(itemsBucket, func(key []byte, raw json.RawMessage) error {
		index, err := storage.KeyIndex(key)
		if err != nil {
			return err
		}
		return fn(index, raw)
	})
}

func (r *SavedRun) Close() error {
	return r.store.Close()
}
