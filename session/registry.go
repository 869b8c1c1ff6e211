// Package session owns the per-tenant state machine for pairing, reconnecting
// and routing events of a tenant's messaging identity.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
)

type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusWaitingQR    Status = "waiting_qr"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
	StatusDisconnected Status = "disconnected"
)

// stableStatuses release the tenant's connect lock when reached.
var stableStatuses = map[Status]bool{
	StatusIdle:         true,
	StatusReady:        true,
	StatusError:        true,
	StatusDisconnected: true,
}

// State is one tenant's connection state as observed by callers.
type State struct {
	TenantID     string    `json:"tenant_id"`
	Status       Status    `json:"status"`
	QRPayload    string    `json:"qr_payload,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// connectFuture is the shared result concurrent Connect callers wait on.
type connectFuture struct {
	done  chan struct{}
	state State
	err   error
}

func newConnectFuture() *connectFuture {
	return &connectFuture{done: make(chan struct{})}
}

func (f *connectFuture) wait(ctx context.Context) (State, error) {
	select {
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-f.done:
		return f.state, f.err
	}
}

func (f *connectFuture) resolve(state State, err error) {
	f.state = state
	f.err = err
	close(f.done)
}

type connectMode int

const (
	connectStarted connectMode = iota
	connectJoined
	connectBusy
)

type tenantEntry struct {
	state          State
	locked         bool
	future         *connectFuture
	client         messaging.Client
	qrTimer        *time.Timer
	reconnectTimer *time.Timer
}

// Registry is the only in-process shared state: per-tenant session state,
// mutual-exclusion locks and pending connect futures. It is constructed once
// and injected into every component; there are no package-level maps.
type Registry struct {
	mu      sync.Mutex
	tenants map[string]*tenantEntry
}

func NewRegistry() *Registry {
	return &Registry{tenants: make(map[string]*tenantEntry)}
}

// entry lazily creates the tenant record. Caller must hold r.mu.
func (r *Registry) entry(tenantID string) *tenantEntry {
	e, ok := r.tenants[tenantID]
	if !ok {
		e = &tenantEntry{state: State{TenantID: tenantID, Status: StatusIdle, UpdatedAt: time.Now()}}
		r.tenants[tenantID] = e
	}
	return e
}

// State returns a copy of the tenant's current state.
func (r *Registry) State(tenantID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(tenantID).state
}

// Update mutates the tenant's state under the registry lock and enforces the
// transition invariants: the QR payload never survives a transition away from
// waiting_qr, the QR timer is cancelled when pairing becomes moot, and the
// connect lock is released whenever a stable status is reached.
func (r *Registry) Update(tenantID string, fn func(*State)) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	prev := e.state.Status
	fn(&e.state)
	e.state.TenantID = tenantID
	e.state.UpdatedAt = time.Now()

	if prev == StatusWaitingQR && e.state.Status != StatusWaitingQR {
		e.state.QRPayload = ""
		if e.state.Status != StatusInitializing && e.qrTimer != nil {
			e.qrTimer.Stop()
			e.qrTimer = nil
		}
	}
	if stableStatuses[e.state.Status] {
		e.locked = false
	}
	return e.state
}

// IncrementAttempts bumps the bounded retry counter and returns the new value.
func (r *Registry) IncrementAttempts(tenantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	e.state.AttemptCount++
	e.state.UpdatedAt = time.Now()
	return e.state.AttemptCount
}

// BeginConnect implements the single-flight contract: the first caller starts
// the flight, concurrent callers join the pending future, and callers that
// find the lock held without a future back off with the current state.
func (r *Registry) BeginConnect(tenantID string) (*connectFuture, connectMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	if e.future != nil {
		return e.future, connectJoined
	}
	if e.locked {
		return nil, connectBusy
	}
	e.locked = true
	e.future = newConnectFuture()
	return e.future, connectStarted
}

// FinishConnect resolves and clears the pending future. The lock itself is
// only released by a stable status transition (or an explicit reset).
func (r *Registry) FinishConnect(tenantID string, state State, err error) {
	r.mu.Lock()
	fut := r.entry(tenantID).future
	r.entry(tenantID).future = nil
	r.mu.Unlock()
	if fut != nil {
		fut.resolve(state, err)
	}
}

// ClearLock force-releases the tenant's lock. A pending future is left in
// place: the owning flight resolves it through FinishConnect.
func (r *Registry) ClearLock(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(tenantID).locked = false
}

func (r *Registry) Client(tenantID string) messaging.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(tenantID).client
}

func (r *Registry) SetClient(tenantID string, client messaging.Client) {
	r.mu.Lock()
	r.entry(tenantID).client = client
	r.mu.Unlock()
}

// TakeClient removes and returns the tenant's live client handle.
func (r *Registry) TakeClient(tenantID string) messaging.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	client := e.client
	e.client = nil
	return client
}

// SetQRTimer replaces the tenant's QR window timer, stopping any previous one.
func (r *Registry) SetQRTimer(tenantID string, t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	if e.qrTimer != nil {
		e.qrTimer.Stop()
	}
	e.qrTimer = t
}

func (r *Registry) StopQRTimer(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	if e.qrTimer != nil {
		e.qrTimer.Stop()
		e.qrTimer = nil
	}
}

func (r *Registry) SetReconnectTimer(tenantID string, t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
	}
	e.reconnectTimer = t
}

func (r *Registry) StopReconnectTimer(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenantID)
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
}

// TenantIDs returns every tenant the registry has seen, for shutdown sweeps.
func (r *Registry) TenantIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids
}
