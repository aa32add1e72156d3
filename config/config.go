// Package config is a persistent key/value store for small settings.
//
// Keys are declared up front with their size and default value. A key
// that was never set (or was reset) reads as its default.
// Changes are appended to a journal file which is compacted when it grows.
package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/kjk/flashlog/log"
)

var (
	ErrUnknownKey = errors.New("config: unknown key")
	ErrSize       = errors.New("config: invalid value size")
	ErrNotOpen    = errors.New("config: not opened")
)

// compact the journal when it has this many lines more than live values
const compactSlack = 64

type Key struct {
	Name string
	// size of the value in bytes, 0 means any size
	Size    int
	Default []byte
	// reset by ResetConfigs
	Resettable bool
}

type Manager struct {
	// Path of the journal file
	Path string
	Keys []Key
	// if nil, registers "config" in log.Default
	Log *log.Source

	mu     sync.Mutex
	vals   map[string][]byte
	nLines int
}

// Open loads the journal
func Open(m *Manager) error {
	if m.Path == "" {
		return fmt.Errorf("config: Path is not set")
	}
	if m.Log == nil {
		m.Log = log.Register("config", log.LevelInf)
	}
	seen := map[string]bool{}
	for _, k := range m.Keys {
		if k.Name == "" || seen[k.Name] {
			return fmt.Errorf("config: empty or duplicate key '%s'", k.Name)
		}
		if k.Size > 0 && len(k.Default) != k.Size {
			return fmt.Errorf("%w: default of '%s' is %d bytes, expected %d", ErrSize, k.Name, len(k.Default), k.Size)
		}
		seen[k.Name] = true
	}

	var err error
	m.Path, err = filepath.Abs(m.Path)
	if err != nil {
		return err
	}
	j, err := readJournal(m.Path)
	if err != nil {
		return fmt.Errorf("failed to read config journal '%s': %w", m.Path, err)
	}
	// values of keys that are no longer declared are dropped on next compaction
	for k := range j.vals {
		if !seen[k] {
			m.Log.Wrnf("ignoring unknown key '%s' in '%s'", k, m.Path)
			delete(j.vals, k)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals = j.vals
	m.nLines = j.nLines
	if j.torn != "" {
		// appending after a partial line would corrupt the next change
		m.Log.Wrnf("dropping incomplete last line '%s' in '%s'", j.torn, m.Path)
		if err = m.compact(); err != nil {
			m.vals = nil
			return fmt.Errorf("failed to rewrite config journal '%s': %w", m.Path, err)
		}
	}
	return nil
}

func (m *Manager) key(name string) (*Key, error) {
	for i := range m.Keys {
		if m.Keys[i].Name == name {
			return &m.Keys[i], nil
		}
	}
	return nil, fmt.Errorf("%w: '%s'", ErrUnknownKey, name)
}

// Get returns the stored value of a key or its default
func (m *Manager) Get(name string) ([]byte, error) {
	k, err := m.key(name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vals[name]; ok {
		return slices.Clone(v), nil
	}
	return slices.Clone(k.Default), nil
}

// IsSet returns true if a key has a stored value
func (m *Manager) IsSet(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.vals[name]
	return ok
}

func (m *Manager) Set(name string, v []byte) error {
	k, err := m.key(name)
	if err != nil {
		return err
	}
	if k.Size > 0 && len(v) != k.Size {
		return fmt.Errorf("%w: '%s' is %d bytes, got %d", ErrSize, name, k.Size, len(v))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &change{
		TimestampMs: time.Now().UTC().UnixMilli(),
		Kind:        kindSet,
		Key:         name,
		Value:       slices.Clone(v),
	}
	if err = m.apply([]*change{c}); err != nil {
		m.Log.Errf("failed to write config value for key %s: %v", name, err)
		return err
	}
	return nil
}

// Delete removes the stored value, the key reads as default afterwards
func (m *Manager) Delete(name string) error {
	if _, err := m.key(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteKeys([]string{name})
}

// ResetAll deletes stored values of all keys
func (m *Manager) ResetAll() error {
	return m.reset(func(*Key) bool { return true })
}

// ResetConfigs deletes stored values of resettable keys
func (m *Manager) ResetConfigs() error {
	return m.reset(func(k *Key) bool { return k.Resettable })
}

func (m *Manager) reset(match func(*Key) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for i := range m.Keys {
		k := &m.Keys[i]
		if _, ok := m.vals[k.Name]; ok && match(k) {
			names = append(names, k.Name)
		}
	}
	if err := m.deleteKeys(names); err != nil {
		m.Log.Errf("failed to reset %v to default: %v", names, err)
		return err
	}
	for _, name := range names {
		m.Log.Dbgf("reset %s to default", name)
	}
	return nil
}

func (m *Manager) deleteKeys(names []string) error {
	if len(names) == 0 {
		return nil
	}
	ts := time.Now().UTC().UnixMilli()
	var changes []*change
	for _, name := range names {
		changes = append(changes, &change{TimestampMs: ts, Kind: kindDel, Key: name})
	}
	return m.apply(changes)
}

// apply must be called with mu held
func (m *Manager) apply(changes []*change) error {
	if m.vals == nil {
		return ErrNotOpen
	}
	if err := appendChanges(m.Path, changes); err != nil {
		return err
	}
	for _, c := range changes {
		if c.Kind == kindDel {
			delete(m.vals, c.Key)
		} else {
			m.vals[c.Key] = c.Value
		}
	}
	m.nLines += len(changes)
	if m.nLines > len(m.vals)+compactSlack {
		if err := m.compact(); err != nil {
			// the journal is still valid, only longer than needed
			m.Log.Wrnf("failed to compact '%s': %v", m.Path, err)
		}
	}
	return nil
}

// Compact rewrites the journal to contain only current values
func (m *Manager) Compact() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		return ErrNotOpen
	}
	return m.compact()
}

func (m *Manager) compact() error {
	var names []string
	for _, k := range m.Keys {
		names = append(names, k.Name)
	}
	if err := writeSnapshot(m.Path, names, m.vals); err != nil {
		return err
	}
	m.nLines = len(m.vals)
	return nil
}

// List prints all keys with their values in hex, 16 bytes per line
func (m *Manager) List(w io.Writer) {
	fmt.Fprintf(w, "Configuration Values:\n")
	fmt.Fprintf(w, "====================\n")
	for _, k := range m.Keys {
		v, _ := m.Get(k.Name)
		if len(v) == 0 {
			fmt.Fprintf(w, "  %s: <no data>\n", k.Name)
			continue
		}
		fmt.Fprintf(w, "  %s:", k.Name)
		for i, b := range v {
			if i > 0 && i%16 == 0 {
				fmt.Fprintf(w, "\n           ")
			}
			fmt.Fprintf(w, " %02X", b)
		}
		src := "default"
		if m.IsSet(k.Name) {
			src = "stored"
		}
		fmt.Fprintf(w, " (%s)\n", src)
	}
}
