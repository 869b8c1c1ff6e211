package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// handleQR publishes the fresh pairing payload and arms the pairing window.
// Each new QR emission from the network restarts the window.
func (m *Manager) handleQR(tenantID, code string) {
	m.transition(tenantID, func(s *State) {
		s.Status = StatusWaitingQR
		s.QRPayload = code
	})
	m.startQRTimer(tenantID)
	logrus.WithField("tenant", tenantID).Debug("[SESSION] QR payload published")
}

func (m *Manager) startQRTimer(tenantID string) {
	window := m.cfg.Messaging.QRWindow
	timer := time.AfterFunc(window, func() {
		m.onQRTimeout(tenantID)
	})
	m.registry.SetQRTimer(tenantID, timer)
}

// onQRTimeout fires when the pairing window elapses without a scan. The
// session is silently torn down and retried with a fresh client; after the
// configured number of expired windows the tenant lands in a terminal error
// until an operator resets.
func (m *Manager) onQRTimeout(tenantID string) {
	state := m.registry.State(tenantID)
	if state.Status != StatusWaitingQR && state.Status != StatusInitializing {
		return
	}

	logrus.WithField("tenant", tenantID).Warn("[SESSION] pairing window expired")
	m.teardown(context.Background(), tenantID, true)
	attempts := m.registry.IncrementAttempts(tenantID)

	if attempts < m.cfg.Messaging.QRMaxAttempts {
		m.transition(tenantID, func(s *State) {
			s.Status = StatusIdle
			s.QRPayload = ""
		})
		logrus.WithFields(logrus.Fields{"tenant": tenantID, "attempt": attempts + 1}).
			Info("[SESSION] retrying pairing with a fresh client")
		go func() {
			if _, err := m.Connect(context.Background(), tenantID); err != nil {
				logrus.WithField("tenant", tenantID).Errorf("[SESSION] pairing retry failed: %v", err)
			}
		}()
		return
	}

	m.transition(tenantID, func(s *State) {
		s.Status = StatusError
		s.QRPayload = ""
		s.LastError = fmt.Sprintf("pairing code was not scanned after %d attempts, reset the session to try again", attempts)
	})
	logrus.WithField("tenant", tenantID).Error("[SESSION] pairing abandoned after repeated expired windows")
}
