package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound indicates the named target does not exist in the store.
var ErrNotFound = errors.New("target not found")

// ErrDuplicate indicates a create with an already-used target name.
var ErrDuplicate = errors.New("target name already exists")

// ErrPersist indicates a failure to write the store back to disk.
var ErrPersist = errors.New("config store write failed")

// Store is the durable record of backup targets. All mutation goes through
// the store's lock; the scheduler funnels outcome writes through a single
// goroutine on top of that, so concurrent workers never race on the file.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// Open loads the YAML file at path and returns a Store bound to it.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.cfg.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenDefault creates a store with an empty config persisted at path. Used
// by the add command when no config file exists yet.
func OpenDefault(path string) (*Store, error) {
	s := &Store{path: path}
	s.cfg.applyDefaults()
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file, picking up targets added, edited, or
// toggled by another process. On parse failure the previous in-memory
// state is kept.
func (s *Store) Reload() error {
	var fresh Config
	if err := fresh.Load(s.path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// The file read happened outside the lock, so an outcome recorded in
	// the meantime can be newer than the snapshot. Per target, keep
	// whichever run state has the later last_run_at; installing the stale
	// snapshot wholesale would roll last_run_at backwards and a later
	// save() would persist the regression. Operator-owned fields always
	// come from disk.
	for i := range fresh.Targets {
		ft := &fresh.Targets[i]
		j := s.index(ft.Name)
		if j < 0 {
			continue
		}
		cur := &s.cfg.Targets[j]
		if cur.LastRunAt == nil {
			continue
		}
		if ft.LastRunAt == nil || cur.LastRunAt.After(*ft.LastRunAt) {
			stamp := *cur.LastRunAt
			ft.LastRunAt = &stamp
			ft.LastFingerprint = cur.LastFingerprint
		}
	}

	s.cfg = fresh
	return nil
}

// Daemon returns the scheduler loop settings.
func (s *Store) Daemon() DaemonConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Daemon
}

// Backup returns the global backup settings.
func (s *Store) Backup() BackupConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Backup
}

// Vault returns the Vault connection settings.
func (s *Store) Vault() VaultConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Vault
}

// Targets returns a snapshot of all targets.
func (s *Store) Targets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Target, len(s.cfg.Targets))
	copy(out, s.cfg.Targets)
	return out
}

// Get returns the target with the given name.
func (s *Store) Get(name string) (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return Target{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.cfg.Targets[i], nil
}

// Put creates a new target. The name must be unused.
func (s *Store) Put(t Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(t.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicate, t.Name)
	}
	if t.OutputDir == "" {
		t.OutputDir = s.cfg.Backup.OutputDirectory
	}
	if t.RetentionCount <= 0 {
		t.RetentionCount = DefaultRetention
	}
	s.cfg.Targets = append(s.cfg.Targets, t)
	return s.save()
}

// Update replaces a target's operator-owned fields. Run state (last_run_at
// and the fingerprint) carries over from the stored target so an edit never
// resets dedup or schedule bookkeeping.
func (s *Store) Update(t Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(t.Name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, t.Name)
	}
	t.LastRunAt = s.cfg.Targets[i].LastRunAt
	t.LastFingerprint = s.cfg.Targets[i].LastFingerprint
	if t.OutputDir == "" {
		t.OutputDir = s.cfg.Backup.OutputDirectory
	}
	if t.RetentionCount <= 0 {
		t.RetentionCount = DefaultRetention
	}
	s.cfg.Targets[i] = t
	return s.save()
}

// Delete removes the target with the given name. An in-flight execution for
// a deleted target completes but its outcome write comes back ErrNotFound
// and is discarded by the caller.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.cfg.Targets = append(s.cfg.Targets[:i], s.cfg.Targets[i+1:]...)
	return s.save()
}

// SetEnabled toggles a target. Takes effect on the daemon's next poll tick.
func (s *Store) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.cfg.Targets[i].Enabled = enabled
	return s.save()
}

// RecordOutcome atomically updates a target's run state after one execution
// attempt. LastRunAt always advances (never backwards); the fingerprint is
// replaced only when the attempt produced one, so a failed run cannot
// corrupt a later dedup check.
func (s *Store) RecordOutcome(name string, at time.Time, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	t := &s.cfg.Targets[i]
	if t.LastRunAt == nil || at.After(*t.LastRunAt) {
		stamp := at
		t.LastRunAt = &stamp
	}
	if fingerprint != "" {
		t.LastFingerprint = fingerprint
	}
	return s.save()
}

// index returns the position of name in the target list, or -1.
// Caller holds the lock.
func (s *Store) index(name string) int {
	for i := range s.cfg.Targets {
		if s.cfg.Targets[i].Name == name {
			return i
		}
	}
	return -1
}

// save writes the config back to disk via a temp file and rename so a crash
// mid-write never truncates the store. Caller holds the lock.
func (s *Store) save() error {
	data, err := yaml.Marshal(&s.cfg)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersist, err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %q: %v", ErrPersist, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".dbshield-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrPersist, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write temp: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: close temp: %v", ErrPersist, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: rename: %v", ErrPersist, err)
	}
	return nil
}
