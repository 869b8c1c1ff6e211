package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
)

// Publisher fans session and message events out to connected realtime
// subscribers. The websocket hub implements it; tests use NopPublisher.
type Publisher interface {
	PublishState(tenantID string, state State)
	PublishMessage(tenantID string, payload any)
	PublishAck(tenantID string, payload any)
	PublishReaction(tenantID string, payload any)
	PublishAssigned(tenantID string, payload any)
}

type NopPublisher struct{}

func (NopPublisher) PublishState(string, State)  {}
func (NopPublisher) PublishMessage(string, any)  {}
func (NopPublisher) PublishAck(string, any)      {}
func (NopPublisher) PublishReaction(string, any) {}
func (NopPublisher) PublishAssigned(string, any) {}

// Manager drives the per-tenant lifecycle: connect, QR pairing, reconnect
// supervision, reset and teardown. All state lives in the registry.
type Manager struct {
	registry  *Registry
	factory   messaging.Factory
	cfg       *config.Config
	publisher Publisher
	router    *EventRouter
	closing   atomic.Bool
}

func NewManager(registry *Registry, factory messaging.Factory, cfg *config.Config, publisher Publisher) *Manager {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Manager{
		registry:  registry,
		factory:   factory,
		cfg:       cfg,
		publisher: publisher,
	}
}

// SetRouter attaches the inbound event router. Wired after construction
// because the router and manager are built from the same registry.
func (m *Manager) SetRouter(router *EventRouter) {
	m.router = router
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// State returns the tenant's current session state.
func (m *Manager) State(tenantID string) State {
	return m.registry.State(tenantID)
}

// Connect establishes (or resumes) the tenant's session. Concurrent calls for
// the same tenant collapse into a single flight: only one goroutine touches
// the underlying client, everyone else observes its outcome.
func (m *Manager) Connect(ctx context.Context, tenantID string) (State, error) {
	fut, mode := m.registry.BeginConnect(tenantID)
	switch mode {
	case connectJoined:
		return fut.wait(ctx)
	case connectBusy:
		logrus.WithField("tenant", tenantID).Debug("[SESSION] connect skipped, session busy")
		return m.registry.State(tenantID), nil
	}

	state, err := m.doConnect(ctx, tenantID)
	m.registry.FinishConnect(tenantID, state, err)
	return state, err
}

func (m *Manager) doConnect(ctx context.Context, tenantID string) (State, error) {
	m.registry.StopReconnectTimer(tenantID)
	m.transition(tenantID, func(s *State) {
		s.Status = StatusInitializing
		s.LastError = ""
	})

	client := m.registry.Client(tenantID)
	if client == nil {
		var err error
		client, err = m.factory.NewClient(tenantID)
		if err != nil {
			state := m.transition(tenantID, func(s *State) {
				s.Status = StatusError
				s.LastError = "could not start the messaging session, please try again"
			})
			return state, fmt.Errorf("create client for tenant %s: %w", tenantID, err)
		}
		m.registry.SetClient(tenantID, client)
		go m.pumpEvents(tenantID, client)
	}

	if err := client.Initialize(ctx); err != nil {
		logrus.WithField("tenant", tenantID).Errorf("[SESSION] initialization failed: %v", err)
		m.teardown(context.Background(), tenantID, true)
		state := m.transition(tenantID, func(s *State) {
			s.Status = StatusError
			s.LastError = "could not start the messaging session, please try again"
		})
		return state, fmt.Errorf("initialize session for tenant %s: %w", tenantID, err)
	}

	logrus.WithField("tenant", tenantID).Info("[SESSION] client initialized, waiting for pairing events")
	return m.registry.State(tenantID), nil
}

// pumpEvents drains the client's event stream until the client is destroyed.
func (m *Manager) pumpEvents(tenantID string, client messaging.Client) {
	for ev := range client.Events() {
		m.handleEvent(tenantID, ev)
	}
}

func (m *Manager) handleEvent(tenantID string, ev messaging.Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("tenant", tenantID).Errorf("[SESSION] panic handling %s event: %v", ev.Type, r)
		}
	}()

	switch ev.Type {
	case messaging.EventQR:
		m.handleQR(tenantID, ev.QRCode)
	case messaging.EventReady:
		m.registry.StopQRTimer(tenantID)
		m.transition(tenantID, func(s *State) {
			s.Status = StatusReady
			s.QRPayload = ""
			s.LastError = ""
			s.AttemptCount = 0
		})
		logrus.WithField("tenant", tenantID).Info("[SESSION] session ready")
	case messaging.EventAuthFailure:
		m.registry.StopQRTimer(tenantID)
		m.transition(tenantID, func(s *State) {
			s.Status = StatusError
			s.LastError = "authentication rejected by the network, reset the session to pair again"
		})
	case messaging.EventDisconnected:
		m.handleDisconnected(tenantID, ev.Reason)
	case messaging.EventMessage, messaging.EventAck, messaging.EventReaction:
		if m.router != nil {
			m.router.Enqueue(tenantID, ev)
		}
	}
}

// handleDisconnected distinguishes a deliberate logout, which invalidates the
// stored credentials, from a transient drop, which schedules an automatic
// reconnect after a short delay.
func (m *Manager) handleDisconnected(tenantID, reason string) {
	m.registry.StopQRTimer(tenantID)
	if client := m.registry.TakeClient(tenantID); client != nil {
		go func() {
			if err := client.Destroy(context.Background()); err != nil {
				logrus.WithField("tenant", tenantID).Warnf("[SESSION] destroy after disconnect: %v", err)
			}
		}()
	}

	m.transition(tenantID, func(s *State) {
		s.Status = StatusDisconnected
		s.LastError = reason
	})

	if reason == messaging.ReasonLoggedOut {
		logrus.WithField("tenant", tenantID).Info("[SESSION] logged out, clearing credentials")
		if err := m.ResetSession(context.Background(), tenantID, false); err != nil {
			logrus.WithField("tenant", tenantID).Errorf("[SESSION] reset after logout: %v", err)
		}
		return
	}

	if m.closing.Load() {
		return
	}
	logrus.WithField("tenant", tenantID).Infof("[SESSION] transient disconnect (%s), reconnecting in %s", reason, m.cfg.Messaging.ReconnectDelay)
	timer := time.AfterFunc(m.cfg.Messaging.ReconnectDelay, func() {
		if m.closing.Load() {
			return
		}
		if _, err := m.Connect(context.Background(), tenantID); err != nil {
			logrus.WithField("tenant", tenantID).Errorf("[SESSION] scheduled reconnect failed: %v", err)
		}
	})
	m.registry.SetReconnectTimer(tenantID, timer)
}

// ResetSession tears the session down completely: live client destroyed,
// stored credentials deleted, lock released, status back to idle. Pairing
// retries preserve the attempt counter across the reset; operator resets
// clear it.
func (m *Manager) ResetSession(ctx context.Context, tenantID string, preserveAttempts bool) error {
	m.teardown(ctx, tenantID, preserveAttempts)
	m.transition(tenantID, func(s *State) {
		s.Status = StatusIdle
		s.QRPayload = ""
		s.LastError = ""
		if !preserveAttempts {
			s.AttemptCount = 0
		}
	})
	logrus.WithField("tenant", tenantID).Info("[SESSION] session reset")
	return nil
}

// teardown releases every resource a session holds without touching the
// visible status: timers, live client, connect lock, stored credentials.
func (m *Manager) teardown(ctx context.Context, tenantID string, preserveAttempts bool) {
	m.registry.StopQRTimer(tenantID)
	m.registry.StopReconnectTimer(tenantID)

	if client := m.registry.TakeClient(tenantID); client != nil {
		if err := client.Destroy(ctx); err != nil {
			logrus.WithField("tenant", tenantID).Warnf("[SESSION] destroy during teardown: %v", err)
		}
	}
	m.registry.ClearLock(tenantID)

	if err := m.factory.DeleteCredentials(tenantID); err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[SESSION] delete credentials: %v", err)
	}
	if !preserveAttempts {
		m.registry.Update(tenantID, func(s *State) { s.AttemptCount = 0 })
	}
}

// Disconnect stops the live session but keeps the stored credentials, so the
// next Connect can resume without a new pairing.
func (m *Manager) Disconnect(ctx context.Context, tenantID string) (State, error) {
	m.registry.StopQRTimer(tenantID)
	m.registry.StopReconnectTimer(tenantID)

	if client := m.registry.TakeClient(tenantID); client != nil {
		if err := client.Destroy(ctx); err != nil {
			logrus.WithField("tenant", tenantID).Warnf("[SESSION] destroy on disconnect: %v", err)
		}
	}
	m.registry.ClearLock(tenantID)
	state := m.transition(tenantID, func(s *State) {
		s.Status = StatusDisconnected
		s.LastError = ""
	})
	logrus.WithField("tenant", tenantID).Info("[SESSION] disconnected by operator")
	return state, nil
}

// Ready reports whether the tenant can send right now.
func (m *Manager) Ready(tenantID string) bool {
	if m.registry.State(tenantID).Status != StatusReady {
		return false
	}
	client := m.registry.Client(tenantID)
	return client != nil && client.Connected() && client.LoggedIn()
}

// Shutdown destroys every live session. Credentials stay on disk so sessions
// resume on the next boot.
func (m *Manager) Shutdown(ctx context.Context) {
	m.closing.Store(true)
	for _, tenantID := range m.registry.TenantIDs() {
		m.registry.StopQRTimer(tenantID)
		m.registry.StopReconnectTimer(tenantID)
		if client := m.registry.TakeClient(tenantID); client != nil {
			if err := client.Destroy(ctx); err != nil {
				logrus.WithField("tenant", tenantID).Warnf("[SESSION] destroy on shutdown: %v", err)
			}
		}
	}
}

func (m *Manager) transition(tenantID string, fn func(*State)) State {
	state := m.registry.Update(tenantID, fn)
	m.publisher.PublishState(tenantID, state)
	return state
}
