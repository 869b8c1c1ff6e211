package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainCampaign "github.com/bizlinkhq/wa-engine/domains/campaign"
	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/contactcache"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging/fake"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
	"github.com/bizlinkhq/wa-engine/session"
)

type campaignEnv struct {
	sendEnv
	campaigns *serviceCampaign
	done      chan string
}

func newCampaignEnv(t *testing.T) *campaignEnv {
	t.Helper()
	cfg := testConfig()
	factory := fake.NewFactory()
	factory.Prepare = func(c *fake.Client) {
		c.OnInitialize = func() { c.Emit(messaging.Event{Type: messaging.EventReady}) }
	}
	registry := session.NewRegistry()
	manager := session.NewManager(registry, factory, cfg, nil)
	repo := chatstorage.NewMemoryRepository()
	resolver := session.NewResolver(registry, contactcache.NewMemoryStore(cfg.Messaging.ContactCacheTTL), cfg)
	sender := NewSendService(manager, resolver, repo, cfg)

	svc := NewCampaignService(manager, sender, repo, cfg).(*serviceCampaign)
	svc.jitter = func() time.Duration { return 0 }
	done := make(chan string, 8)
	svc.done = done

	return &campaignEnv{
		sendEnv:   sendEnv{cfg: cfg, factory: factory, manager: manager, repo: repo, sender: sender},
		campaigns: svc,
		done:      done,
	}
}

func (e *campaignEnv) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast never finished")
	}
}

func TestCampaignRequiresReadySession(t *testing.T) {
	env := newCampaignEnv(t)

	_, err := env.campaigns.Create(context.Background(), domainCampaign.CreateRequest{
		TenantID: "acme",
		Name:     "launch",
		Template: "hi",
	})
	require.Error(t, err)
	var notReady pkgError.SessionNotReadyError
	require.ErrorAs(t, err, &notReady)
}

func TestCampaignBroadcastsDedupedRecipients(t *testing.T) {
	env := newCampaignEnv(t)
	client := env.connect(t)

	// The same phone appears as a customer and as a contact in different
	// formats; the later occurrence's name wins and it is messaged once.
	env.repo.AddCustomer(domainChatStorage.Customer{ID: "c1", TenantID: "acme", Phone: "+20 100 111 2222", Name: "Customer Ali", Active: true})
	env.repo.AddContact(domainChatStorage.Contact{ID: "k1", TenantID: "acme", Phone: "201001112222", Name: "Contact Ali"})
	env.repo.AddContact(domainChatStorage.Contact{ID: "k2", TenantID: "acme", Phone: "201003334444", Name: "Mona"})

	resp, err := env.campaigns.Create(context.Background(), domainCampaign.CreateRequest{
		TenantID: "acme",
		Name:     "launch",
		Template: "hi {{name}}, this is {{phone}}",
		Filter:   "all",
	})
	require.NoError(t, err)
	env.waitDone(t)

	progress, err := env.campaigns.Progress(context.Background(), "acme", resp.CampaignID)
	require.NoError(t, err)
	require.Equal(t, domainChatStorage.CampaignStatusCompleted, progress.Status)
	require.Equal(t, 2, progress.Total)
	require.Equal(t, 2, progress.Succeeded)
	require.Zero(t, progress.Failed)

	sent := client.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, "hi Contact Ali, this is 201001112222", sent[0].Content.Text)
	require.Equal(t, "hi Mona, this is 201003334444", sent[1].Content.Text)
}

func TestCampaignResumeSkipsDelivered(t *testing.T) {
	env := newCampaignEnv(t)
	client := env.connect(t)

	env.repo.AddCustomer(domainChatStorage.Customer{ID: "c1", TenantID: "acme", Phone: "201001110001", Name: "A", Active: true})
	env.repo.AddCustomer(domainChatStorage.Customer{ID: "c2", TenantID: "acme", Phone: "201001110002", Name: "B", Active: true})
	env.repo.AddCustomer(domainChatStorage.Customer{ID: "c3", TenantID: "acme", Phone: "201001110003", Name: "C", Active: true})

	campaign := &domainChatStorage.Campaign{
		ID:       "camp-1",
		TenantID: "acme",
		Name:     "interrupted",
		Template: "hi {{name}}",
		Filter:   "all",
		Status:   domainChatStorage.CampaignStatusProcessing,
	}
	require.NoError(t, env.repo.CreateCampaign(context.Background(), campaign))
	require.NoError(t, env.repo.AppendDeliveryLog(context.Background(), &domainChatStorage.DeliveryLog{
		CampaignID: "camp-1",
		TenantID:   "acme",
		Phone:      "201001110001",
		Status:     domainChatStorage.DeliveryStatusSent,
	}))

	require.NoError(t, env.campaigns.Resume(context.Background(), "acme", "camp-1"))
	env.waitDone(t)

	progress, err := env.campaigns.Progress(context.Background(), "acme", "camp-1")
	require.NoError(t, err)
	require.Equal(t, domainChatStorage.CampaignStatusCompleted, progress.Status)
	require.Equal(t, 3, progress.Total)
	require.Equal(t, 3, progress.Succeeded)

	sent := client.Sent()
	require.Len(t, sent, 2, "recipient already in the delivery log must not be re-sent")
	require.Equal(t, "hi B", sent[0].Content.Text)
	require.Equal(t, "hi C", sent[1].Content.Text)
}

func TestCampaignAbortsOnReadinessLossThenResumes(t *testing.T) {
	env := newCampaignEnv(t)
	env.connect(t)

	for i, phone := range []string{"201001110001", "201001110002", "201001110003"} {
		env.repo.AddCustomer(domainChatStorage.Customer{
			ID: "c" + phone, TenantID: "acme", Phone: phone,
			Name: string(rune('A' + i)), Active: true,
		})
	}

	// Kill readiness during the second recipient's pre-send pause.
	calls := 0
	env.campaigns.jitter = func() time.Duration {
		calls++
		if calls == 2 {
			_, _ = env.manager.Disconnect(context.Background(), "acme")
		}
		return 0
	}

	resp, err := env.campaigns.Create(context.Background(), domainCampaign.CreateRequest{
		TenantID: "acme",
		Name:     "fragile",
		Template: "hi {{name}}",
		Filter:   "all",
	})
	require.NoError(t, err)
	env.waitDone(t)

	progress, err := env.campaigns.Progress(context.Background(), "acme", resp.CampaignID)
	require.NoError(t, err)
	require.Equal(t, domainChatStorage.CampaignStatusFailed, progress.Status)
	require.NotEmpty(t, progress.StatusMsg)
	require.Equal(t, 1, progress.Succeeded)

	// Reconnect and resume: only the recipients without a "sent" log entry
	// are attempted again.
	env.campaigns.jitter = func() time.Duration { return 0 }
	env.connect(t)
	require.NoError(t, env.campaigns.Resume(context.Background(), "acme", resp.CampaignID))
	env.waitDone(t)

	progress, err = env.campaigns.Progress(context.Background(), "acme", resp.CampaignID)
	require.NoError(t, err)
	require.Equal(t, domainChatStorage.CampaignStatusCompleted, progress.Status)
	require.Equal(t, 3, progress.Succeeded)

	sentPhones := map[string]int{}
	for _, d := range env.repo.DeliveryLogs() {
		if d.Status == domainChatStorage.DeliveryStatusSent {
			sentPhones[d.Phone]++
		}
	}
	for phone, count := range sentPhones {
		require.Equal(t, 1, count, "phone %s must be delivered exactly once", phone)
	}
	require.Len(t, sentPhones, 3)
}

func TestCampaignWithNoRecipientsCompletes(t *testing.T) {
	env := newCampaignEnv(t)
	env.connect(t)

	resp, err := env.campaigns.Create(context.Background(), domainCampaign.CreateRequest{
		TenantID: "acme",
		Name:     "empty",
		Template: "hi",
		Filter:   "all",
	})
	require.NoError(t, err)
	env.waitDone(t)

	progress, err := env.campaigns.Progress(context.Background(), "acme", resp.CampaignID)
	require.NoError(t, err)
	require.Equal(t, domainChatStorage.CampaignStatusCompleted, progress.Status)
	require.Zero(t, progress.Total)
}

func TestCampaignResumeOfCompletedIsNoop(t *testing.T) {
	env := newCampaignEnv(t)
	client := env.connect(t)

	campaign := &domainChatStorage.Campaign{
		ID:       "camp-done",
		TenantID: "acme",
		Name:     "done",
		Template: "hi",
		Status:   domainChatStorage.CampaignStatusCompleted,
	}
	require.NoError(t, env.repo.CreateCampaign(context.Background(), campaign))

	require.NoError(t, env.campaigns.Resume(context.Background(), "acme", "camp-done"))
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, client.Sent())
}
