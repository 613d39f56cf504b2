package credential

import (
	"log/slog"
	"sync"
)

// Manager holds the in-memory credential pool and implements count-based
// rotation. With a pool of P credentials and a rotation count of N, the
// active slot is (served / N) mod P where served counts completed requests.
// One request is counted per completed call; a backend auth rejection does
// not count but invalidates the rejected credential, which advances the
// pool implicitly by shrinking it.
//
// Operators can override the automatic selection: a manual pin makes one
// credential serve every request until the pin is cleared, and rotation can
// be paused, freezing the active slot in place while the counter keeps
// running.
//
// All state transitions happen under a single mutex so the served counter
// and the derived active index can never be observed out of step.
type Manager struct {
	mu       sync.Mutex
	store    *Store
	records  []*Record
	invalid  map[string]bool
	served   int64
	rotation int

	// manualID pins the active credential; empty means automatic.
	manualID string

	// autoRotate gates the rotation law. While false the active slot is
	// derived from frozenServed instead of the live counter.
	autoRotate   bool
	frozenServed int64

	logger *slog.Logger
}

// NewManager creates a rotation manager over the given store. rotation is
// the number of served requests per credential before advancing; values
// below 1 are treated as 1.
func NewManager(store *Store, rotation int) *Manager {
	if rotation < 1 {
		rotation = 1
	}
	return &Manager{
		store:      store,
		invalid:    make(map[string]bool),
		rotation:   rotation,
		autoRotate: true,
		logger:     slog.Default().With("component", "credential-rotation"),
	}
}

// Reload rebuilds the pool from disk. Invalidation marks are discarded: a
// reload means the files changed, and a rewritten file may carry a fresh
// token for a previously rejected credential.
func (m *Manager) Reload() error {
	records, err := m.store.LoadAll()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.records = records
	m.invalid = make(map[string]bool)
	if m.manualID != "" && !containsID(records, m.manualID) {
		m.manualID = ""
	}
	m.mu.Unlock()

	m.logger.Info("credential pool reloaded", "pool_size", len(records))
	return nil
}

// Acquire returns the currently active credential. It returns
// ErrNoCredentials when every record is missing, unusable, or invalidated.
// Expired credentials are still returned; expiry is only acted on when the
// backend rejects the token. A manual pin takes precedence over the
// rotation law; a pin whose credential left the pool is dropped.
func (m *Manager) Acquire() (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	valid := m.validLocked()
	if len(valid) == 0 {
		return nil, ErrNoCredentials
	}

	if m.manualID != "" {
		for _, rec := range valid {
			if rec.ID == m.manualID {
				return rec, nil
			}
		}
		m.manualID = ""
	}

	served := m.served
	if !m.autoRotate {
		served = m.frozenServed
	}
	idx := int(served/int64(m.rotation)) % len(valid)
	if idx < 0 || idx >= len(valid) {
		idx = 0
	}
	return valid[idx], nil
}

// SelectManual pins the credential with the given id as the active one for
// every request until ClearManual or a reload that drops it. It returns
// ErrUnknownCredential when the id is not in the usable pool.
func (m *Manager) SelectManual(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.validLocked() {
		if rec.ID == id {
			m.manualID = id
			m.logger.Info("credential manually selected", "id", id)
			return nil
		}
	}
	return ErrUnknownCredential
}

// ClearManual removes the manual pin and resumes automatic selection.
func (m *Manager) ClearManual() {
	m.mu.Lock()
	cleared := m.manualID != ""
	m.manualID = ""
	m.mu.Unlock()

	if cleared {
		m.logger.Info("manual credential selection cleared")
	}
}

// ManualID returns the id of the manually pinned credential, or "" when
// selection is automatic.
func (m *Manager) ManualID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manualID
}

// ToggleRotation flips automatic rotation and returns the new state. While
// disabled the active slot is frozen where the toggle found it; the served
// counter keeps running so re-enabling resumes from the live position.
func (m *Manager) ToggleRotation() bool {
	m.mu.Lock()
	m.autoRotate = !m.autoRotate
	if !m.autoRotate {
		m.frozenServed = m.served
	}
	enabled := m.autoRotate
	m.mu.Unlock()

	m.logger.Info("automatic rotation toggled", "enabled", enabled)
	return enabled
}

// RotationEnabled reports whether automatic rotation is running.
func (m *Manager) RotationEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoRotate
}

// RecordServed counts one completed request against the rotation counter.
// Called after a request finishes without a backend auth rejection.
func (m *Manager) RecordServed() {
	m.mu.Lock()
	m.served++
	m.mu.Unlock()
}

// Invalidate removes a credential from rotation without counting the
// request. The next Acquire resolves against the shrunken pool, so the
// caller's retry lands on a different credential when one exists.
func (m *Manager) Invalidate(id string) {
	m.mu.Lock()
	already := m.invalid[id]
	m.invalid[id] = true
	if m.manualID == id {
		m.manualID = ""
	}
	remaining := len(m.validLocked())
	m.mu.Unlock()

	if !already {
		m.logger.Warn("credential invalidated after backend auth rejection",
			"id", id,
			"remaining", remaining)
	}
}

// PoolSize returns the number of credentials currently in rotation.
func (m *Manager) PoolSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.validLocked())
}

// Served returns the number of requests counted toward rotation so far.
func (m *Manager) Served() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.served
}

// Snapshot returns a copy of all loaded records, including invalidated
// ones, for the management listing endpoint.
func (m *Manager) Snapshot() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.records))
	copy(out, m.records)
	return out
}

// Invalidated reports whether the given record has been removed from
// rotation since the last reload.
func (m *Manager) Invalidated(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalid[id]
}

func (m *Manager) validLocked() []*Record {
	valid := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Usable() && !m.invalid[rec.ID] {
			valid = append(valid, rec)
		}
	}
	return valid
}

func containsID(records []*Record, id string) bool {
	for _, rec := range records {
		if rec.ID == id {
			return true
		}
	}
	return false
}
