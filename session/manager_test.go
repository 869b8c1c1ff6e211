package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging/fake"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Messaging.QRWindow = 40 * time.Millisecond
	cfg.Messaging.ReconnectDelay = 25 * time.Millisecond
	cfg.Messaging.AutomationDelay = time.Millisecond
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectSingleFlight(t *testing.T) {
	factory := fake.NewFactory()
	block := make(chan struct{})
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { <-block }
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Connect(context.Background(), "acme")
		}()
	}
	waitFor(t, time.Second, func() bool { return factory.Client("acme") != nil }, "client never created")
	close(block)
	wg.Wait()

	require.Equal(t, 1, factory.Client("acme").InitCalls(), "concurrent connects must collapse into one flight")
}

func TestConnectPairsAndBecomesReady(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventQR, QRCode: "QR-1"}) }
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	state, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	require.NotEqual(t, StatusError, state.Status)

	waitFor(t, time.Second, func() bool {
		s := m.State("acme")
		return s.Status == StatusWaitingQR && s.QRPayload == "QR-1"
	}, "never reached waiting_qr with payload")

	factory.Client("acme").Emit(messaging.Event{Type: messaging.EventReady})
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusReady }, "never reached ready")

	s := m.State("acme")
	require.Empty(t, s.QRPayload, "payload must be cleared on leaving waiting_qr")
	require.Zero(t, s.AttemptCount)
	require.True(t, m.Ready("acme"))
}

func TestConnectInitFailure(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.InitializeErr = errors.New("socket refused")
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	state, err := m.Connect(context.Background(), "acme")
	require.Error(t, err)
	require.Equal(t, StatusError, state.Status)
	require.NotEmpty(t, state.LastError)

	require.Equal(t, 1, factory.Client("acme").DestroyCalls())
	require.Contains(t, factory.Deleted, "acme")
}

func TestDisconnectLogoutResetsSession(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventReady}) }
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusReady }, "never ready")

	factory.Client("acme").Emit(messaging.Event{Type: messaging.EventDisconnected, Reason: messaging.ReasonLoggedOut})

	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusIdle }, "logout must land in idle")
	require.Contains(t, factory.Deleted, "acme", "logout must clear stored credentials")
	require.Zero(t, m.State("acme").AttemptCount)

	// No reconnect may be scheduled after a logout.
	first := factory.Client("acme")
	time.Sleep(4 * testConfig().Messaging.ReconnectDelay)
	require.Same(t, first, factory.Client("acme"))
}

func TestDisconnectTransientReconnects(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventReady}) }
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusReady }, "never ready")
	first := factory.Client("acme")

	first.Emit(messaging.Event{Type: messaging.EventDisconnected, Reason: "stream error"})

	waitFor(t, time.Second, func() bool {
		return factory.Client("acme") != first && m.State("acme").Status == StatusReady
	}, "transient drop must reconnect with a fresh client")
	require.Equal(t, 1, first.DestroyCalls())
}

func TestDisconnectByOperatorKeepsCredentials(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventReady}) }
	}
	cfg := testConfig()
	m := NewManager(NewRegistry(), factory, cfg, nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusReady }, "never ready")
	first := factory.Client("acme")

	state, err := m.Disconnect(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, StatusDisconnected, state.Status)
	require.NotContains(t, factory.Deleted, "acme")

	// Operator disconnects must not trigger the reconnect supervisor.
	time.Sleep(4 * cfg.Messaging.ReconnectDelay)
	require.Same(t, first, factory.Client("acme"))
	require.Equal(t, StatusDisconnected, m.State("acme").Status)
}

func TestResetSessionClearsEverything(t *testing.T) {
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventQR, QRCode: "QR-9"}) }
	}
	m := NewManager(NewRegistry(), factory, testConfig(), nil)

	_, err := m.Connect(context.Background(), "acme")
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return m.State("acme").Status == StatusWaitingQR }, "never waiting_qr")

	require.NoError(t, m.ResetSession(context.Background(), "acme", false))

	s := m.State("acme")
	require.Equal(t, StatusIdle, s.Status)
	require.Empty(t, s.QRPayload)
	require.Zero(t, s.AttemptCount)
	require.Contains(t, factory.Deleted, "acme")
}
