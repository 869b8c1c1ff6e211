package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
	"github.com/bizlinkhq/wa-engine/webhook"
)

type recordingPublisher struct {
	mu        sync.Mutex
	states    []State
	messages  []any
	acks      []any
	reactions []any
	assigned  []any
}

func (p *recordingPublisher) PublishState(_ string, s State) {
	p.mu.Lock()
	p.states = append(p.states, s)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishMessage(_ string, payload any) {
	p.mu.Lock()
	p.messages = append(p.messages, payload)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishAck(_ string, payload any) {
	p.mu.Lock()
	p.acks = append(p.acks, payload)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishReaction(_ string, payload any) {
	p.mu.Lock()
	p.reactions = append(p.reactions, payload)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishAssigned(_ string, payload any) {
	p.mu.Lock()
	p.assigned = append(p.assigned, payload)
	p.mu.Unlock()
}

func (p *recordingPublisher) messageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []webhook.Payload
}

func (s *recordingSink) Notify(_ context.Context, _ string, payload webhook.Payload) error {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) delivered() []webhook.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webhook.Payload(nil), s.payloads...)
}

type recordingAutomation struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingAutomation) OnInboundMessage(_ context.Context, _ string, conv *domainChatStorage.Conversation, msg *domainChatStorage.Message) {
	a.mu.Lock()
	a.calls = append(a.calls, msg.ID)
	a.mu.Unlock()
}

func (a *recordingAutomation) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func inboundEvent(id, chatID, body string) messaging.Event {
	return messaging.Event{
		Type: messaging.EventMessage,
		Message: &messaging.IncomingMessage{
			ID:             id,
			ChatID:         chatID,
			SenderID:       chatID,
			To:             "999888777@s.whatsapp.net",
			PushName:       "Omar",
			FormattedPhone: "+20 100 123 4567",
			Body:           body,
			Timestamp:      time.Now(),
		},
	}
}

func TestEventRouterInboundMessageFansOut(t *testing.T) {
	repo := chatstorage.NewMemoryRepository()
	pub := &recordingPublisher{}
	sink := &recordingSink{}
	router := NewEventRouter(NewRegistry(), repo, pub, sink, testConfig())

	router.Enqueue("acme", inboundEvent("MSG-1", "201001234567@s.whatsapp.net", "hello"))
	waitFor(t, time.Second, func() bool { return pub.messageCount() == 1 }, "message never published")
	router.Close()

	msg, err := repo.GetMessage(context.Background(), "acme", "MSG-1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, domainChatStorage.DirectionInbound, msg.Direction)
	require.Equal(t, "hello", msg.Body)
	require.Equal(t, "received", msg.Status)

	conv, err := repo.GetOrCreateConversation(context.Background(), "acme", "201001234567@s.whatsapp.net", "", "")
	require.NoError(t, err)
	require.Equal(t, "201001234567", conv.CustomerPhone)
	require.Equal(t, "Omar", conv.CustomerName)

	waitFor(t, time.Second, func() bool { return len(sink.delivered()) == 1 }, "webhook never delivered")
	payload := sink.delivered()[0]
	require.Equal(t, "message", payload.Event)
	require.Equal(t, "acme", payload.TenantID)
	require.Equal(t, "MSG-1", payload.MessageID)
	require.Equal(t, "hello", payload.Body)
}

func TestEventRouterDuplicateDeliveryUpserts(t *testing.T) {
	repo := chatstorage.NewMemoryRepository()
	pub := &recordingPublisher{}
	router := NewEventRouter(NewRegistry(), repo, pub, &recordingSink{}, testConfig())

	router.Enqueue("acme", inboundEvent("MSG-7", "201001234567@s.whatsapp.net", "first"))
	router.Enqueue("acme", inboundEvent("MSG-7", "201001234567@s.whatsapp.net", "first edited"))
	waitFor(t, time.Second, func() bool { return pub.messageCount() == 2 }, "events not processed")
	router.Close()

	msg, err := repo.GetMessage(context.Background(), "acme", "MSG-7")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "first edited", msg.Body, "repeated delivery must upsert in place")
}

func TestEventRouterPhoneReconciliation(t *testing.T) {
	repo := chatstorage.NewMemoryRepository()
	pub := &recordingPublisher{}
	router := NewEventRouter(NewRegistry(), repo, pub, &recordingSink{}, testConfig())

	// First contact only exposes an internal network identifier, not a phone.
	first := messaging.Event{
		Type: messaging.EventMessage,
		Message: &messaging.IncomingMessage{
			ID:        "MSG-A",
			ChatID:    "120363998877@g.us",
			SenderID:  "120363111222@s.whatsapp.net",
			Body:      "hi",
			Timestamp: time.Now(),
		},
	}
	router.Enqueue("acme", first)
	waitFor(t, time.Second, func() bool { return pub.messageCount() == 1 }, "first event not processed")

	conv, err := repo.GetOrCreateConversation(context.Background(), "acme", "120363998877@g.us", "", "")
	require.NoError(t, err)
	require.Empty(t, conv.CustomerPhone)

	// A later event reveals a plausible phone; the conversation is reconciled.
	second := messaging.Event{
		Type: messaging.EventMessage,
		Message: &messaging.IncomingMessage{
			ID:        "MSG-B",
			ChatID:    "120363998877@g.us",
			SenderID:  "120363111222@s.whatsapp.net",
			RawPhone:  "201001234567",
			Body:      "hi again",
			Timestamp: time.Now(),
		},
	}
	router.Enqueue("acme", second)
	waitFor(t, time.Second, func() bool { return pub.messageCount() == 2 }, "second event not processed")
	router.Close()

	conv, err = repo.GetOrCreateConversation(context.Background(), "acme", "120363998877@g.us", "", "")
	require.NoError(t, err)
	require.Equal(t, "201001234567", conv.CustomerPhone)
}

func TestEventRouterAckAndReaction(t *testing.T) {
	repo := chatstorage.NewMemoryRepository()
	pub := &recordingPublisher{}
	router := NewEventRouter(NewRegistry(), repo, pub, &recordingSink{}, testConfig())

	require.NoError(t, repo.UpsertMessage(context.Background(), &domainChatStorage.Message{
		ID:       "MSG-9",
		TenantID: "acme",
		Body:     "outbound",
		Status:   "sent",
	}))

	router.Enqueue("acme", messaging.Event{
		Type: messaging.EventAck,
		Ack:  &messaging.MessageAck{MessageID: "MSG-9", ChatID: "c", Status: "delivered", Code: 3},
	})
	router.Enqueue("acme", messaging.Event{
		Type:     messaging.EventReaction,
		Reaction: &messaging.MessageReaction{MessageID: "MSG-9", ChatID: "c", SenderID: "s1", Emoji: "❤"},
	})
	router.Enqueue("acme", messaging.Event{
		Type:     messaging.EventReaction,
		Reaction: &messaging.MessageReaction{MessageID: "MSG-9", ChatID: "c", SenderID: "s1", Emoji: ""},
	})
	router.Close()

	msg, err := repo.GetMessage(context.Background(), "acme", "MSG-9")
	require.NoError(t, err)
	require.Equal(t, "delivered", msg.Status)

	reactions, err := repo.ListReactions(context.Background(), "MSG-9")
	require.NoError(t, err)
	require.Empty(t, reactions, "empty emoji must remove the sender's reaction")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.acks, 1)
	require.Len(t, pub.reactions, 2)
}

func TestEventRouterDelayedAutomation(t *testing.T) {
	repo := chatstorage.NewMemoryRepository()
	auto := &recordingAutomation{}
	router := NewEventRouter(NewRegistry(), repo, &recordingPublisher{}, &recordingSink{}, testConfig(), auto)

	router.Enqueue("acme", inboundEvent("MSG-5", "201001234567@s.whatsapp.net", "hello"))
	waitFor(t, time.Second, func() bool { return auto.callCount() == 1 }, "automation never invoked")
	router.Close()
}

func TestEventRouterSkipsOwnEchoes(t *testing.T) {
	repo := chatstorage.NewMemoryRepository()
	pub := &recordingPublisher{}
	router := NewEventRouter(NewRegistry(), repo, pub, &recordingSink{}, testConfig())

	ev := inboundEvent("MSG-ME", "201001234567@s.whatsapp.net", "echo")
	ev.Message.FromMe = true
	router.Enqueue("acme", ev)
	router.Close()

	msg, err := repo.GetMessage(context.Background(), "acme", "MSG-ME")
	require.NoError(t, err)
	require.Nil(t, msg)
	require.Zero(t, pub.messageCount())
}
