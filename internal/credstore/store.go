// Package credstore persists the bearer token and display name.
//
// The store is the only unit of authentication state shared between
// processes: another taskman invocation (or the browse UI in a second
// terminal) sees the same credentials file, and a logout performed there is
// observed here through the change watcher rather than a restart.
package credstore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Credential is the persisted authentication snapshot. Empty fields mean
// "absent"; the two fields are always written and cleared together.
type Credential struct {
	Token       string `json:"access_token"`
	DisplayName string `json:"display_name"`
}

// Present reports whether a token is stored.
func (c Credential) Present() bool { return c.Token != "" }

// DefaultPollInterval is how often the watcher checks the file for
// out-of-process changes.
const DefaultPollInterval = 500 * time.Millisecond

// Store is a file-backed credential store. Same-process reads observe
// writes immediately; writes by other processes are delivered to
// subscribers asynchronously.
type Store struct {
	path string

	// PollInterval controls the watcher frequency. Set before Subscribe.
	PollInterval time.Duration

	mu       sync.Mutex
	subs     []chan Credential
	lastStat fileStamp
	watching bool
	stop     chan struct{}
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

// New creates a store backed by the file at path. The file may not exist
// yet; Get returns an empty Credential until the first Set.
func New(path string) *Store {
	s := &Store{path: path, PollInterval: DefaultPollInterval}
	s.lastStat = s.stat()
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get reads the current credential. A missing or unreadable file yields an
// empty Credential, never an error: absence of credentials is a normal state.
func (s *Store) Get() Credential {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Credential{}
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}
	}
	return c
}

// Set writes the credential with mode 0600, creating the directory if
// needed. Both fields are replaced together.
func (s *Store) Set(token, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Credential{Token: token, DisplayName: displayName}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}
	// Own writes must not come back as external-change notifications.
	s.lastStat = s.stat()
	return nil
}

// Clear removes the credential file. Clearing an already-empty store is a
// no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.lastStat = s.stat()
	return nil
}

// Subscribe returns a channel that receives the current Credential whenever
// the backing file changes from outside this process. The first call starts
// the watcher goroutine. Notifications are coalesced: a burst of external
// writes may deliver only the final snapshot.
func (s *Store) Subscribe() <-chan Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Credential, 1)
	s.subs = append(s.subs, ch)
	if !s.watching {
		s.watching = true
		s.stop = make(chan struct{})
		go s.watch(s.stop)
	}
	return ch
}

// Close stops the watcher and closes all subscriber channels.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watching {
		close(s.stop)
		s.watching = false
	}
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func (s *Store) watch(stop chan struct{}) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.checkChanged()
		}
	}
}

func (s *Store) checkChanged() {
	s.mu.Lock()
	cur := s.stat()
	changed := cur != s.lastStat
	s.lastStat = cur
	subs := s.subs
	s.mu.Unlock()

	if !changed {
		return
	}
	snapshot := s.Get()
	for _, ch := range subs {
		// Drop the stale pending value so the channel always holds the
		// latest snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *Store) stat() fileStamp {
	fi, err := os.Stat(s.path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: fi.Size(), modTime: fi.ModTime()}
}
