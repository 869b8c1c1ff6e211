package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging/fake"
)

func TestPairingRetriesThenTerminalError(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventQR, QRCode: "QR"}) }
	}
	cfg := testConfig()
	m := NewManager(NewRegistry(), factory, cfg, nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)

	// Nobody ever scans: the window expires three times, the first two expiries
	// retry with a fresh client, the third lands in a terminal error.
	waitFor(t, 2*time.Second, func() bool { return m.State("acme").Status == StatusError }, "never reached terminal error")

	s := m.State("acme")
	require.Equal(t, cfg.Messaging.QRMaxAttempts, s.AttemptCount)
	require.NotEmpty(t, s.LastError)
	require.Empty(t, s.QRPayload)
	require.GreaterOrEqual(t, len(factory.Deleted), cfg.Messaging.QRMaxAttempts, "each expired window must tear the session down")

	// The error is sticky until an operator resets.
	time.Sleep(3 * cfg.Messaging.QRWindow)
	require.Equal(t, StatusError, m.State("acme").Status)

	require.NoError(t, m.ResetSession(context.Background(), "acme", false))
	s = m.State("acme")
	require.Equal(t, StatusIdle, s.Status)
	require.Zero(t, s.AttemptCount)
}

func TestPairingScanBeforeTimeoutKeepsSession(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventQR, QRCode: "QR"}) }
	}
	cfg := testConfig()
	m := NewManager(NewRegistry(), factory, cfg, nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusWaitingQR }, "never waiting_qr")

	factory.Client("acme").Emit(messaging.Event{Type: messaging.EventReady})
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusReady }, "never ready")

	// The pairing window must be disarmed by the successful scan.
	time.Sleep(3 * cfg.Messaging.QRWindow)
	s := m.State("acme")
	require.Equal(t, StatusReady, s.Status)
	require.Zero(t, s.AttemptCount)
}

func TestPairingFreshQRRestartsWindow(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventQR, QRCode: "QR-1"}) }
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return m.State("acme").QRPayload == "QR-1" }, "first payload missing")

	factory.Client("acme").Emit(messaging.Event{Type: messaging.EventQR, QRCode: "QR-2"})
	waitFor(t, time.Second, func() bool { return m.State("acme").QRPayload == "QR-2" }, "refreshed payload missing")
	require.Equal(t, StatusWaitingQR, m.State("acme").Status)
}
