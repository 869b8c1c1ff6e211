package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bizlinkhq/wa-engine/core/config"
	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
	"github.com/bizlinkhq/wa-engine/pkg/chatid"
	"github.com/bizlinkhq/wa-engine/webhook"
)

// Automation is a hook invoked after an inbound message has been persisted
// and announced. Auto-assignment is one implementation.
type Automation interface {
	OnInboundMessage(ctx context.Context, tenantID string, conv *domainChatStorage.Conversation, msg *domainChatStorage.Message)
}

// WebhookSink delivers an event payload to the tenant's external endpoint.
type WebhookSink interface {
	Notify(ctx context.Context, tenantID string, payload webhook.Payload) error
}

// EventRouter consumes inbound network events and fans each message out to
// the store, realtime subscribers, the tenant webhook and delayed automation.
// Events are processed strictly in arrival order per tenant.
type EventRouter struct {
	registry    *Registry
	storage     domainChatStorage.IChatStorageRepository
	publisher   Publisher
	notifier    WebhookSink
	automations []Automation
	cfg         *config.Config

	mu     sync.Mutex
	queues map[string]chan messaging.Event
	wg     sync.WaitGroup
	closed bool

	// automationDelay defaults to the configured value; tests shrink it.
	automationDelay time.Duration
}

func NewEventRouter(registry *Registry, storage domainChatStorage.IChatStorageRepository, publisher Publisher, notifier WebhookSink, cfg *config.Config, automations ...Automation) *EventRouter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &EventRouter{
		registry:        registry,
		storage:         storage,
		publisher:       publisher,
		notifier:        notifier,
		automations:     automations,
		cfg:             cfg,
		queues:          make(map[string]chan messaging.Event),
		automationDelay: cfg.Messaging.AutomationDelay,
	}
}

// Enqueue hands an event to the tenant's ordered queue, starting the drain
// goroutine on first use. A full queue drops the event rather than blocking
// the client's event pump.
func (r *EventRouter) Enqueue(tenantID string, ev messaging.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	q, ok := r.queues[tenantID]
	if !ok {
		q = make(chan messaging.Event, 256)
		r.queues[tenantID] = q
		r.wg.Add(1)
		go r.drain(tenantID, q)
	}
	r.mu.Unlock()

	select {
	case q <- ev:
	default:
		logrus.WithField("tenant", tenantID).Warnf("[EVENTS] queue full, dropping %s event", ev.Type)
	}
}

// Close stops accepting events and waits for the queues to drain.
func (r *EventRouter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, q := range r.queues {
		close(q)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *EventRouter) drain(tenantID string, q <-chan messaging.Event) {
	defer r.wg.Done()
	for ev := range q {
		r.process(tenantID, ev)
	}
}

func (r *EventRouter) process(tenantID string, ev messaging.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithField("tenant", tenantID).Errorf("[EVENTS] panic processing %s event: %v", ev.Type, rec)
		}
	}()

	ctx := context.Background()
	switch ev.Type {
	case messaging.EventMessage:
		if ev.Message != nil {
			r.handleMessage(ctx, tenantID, ev.Message)
		}
	case messaging.EventAck:
		if ev.Ack != nil {
			r.handleAck(ctx, tenantID, ev.Ack)
		}
	case messaging.EventReaction:
		if ev.Reaction != nil {
			r.handleReaction(ctx, tenantID, ev.Reaction)
		}
	}
}

func (r *EventRouter) handleMessage(ctx context.Context, tenantID string, msg *messaging.IncomingMessage) {
	if msg.FromMe {
		// Outbound echoes are persisted by the dispatcher; nothing to do here.
		return
	}

	phone := r.bestPhone(msg)
	conv, err := r.storage.GetOrCreateConversation(ctx, tenantID, msg.ChatID, msg.PushName, phone)
	if err != nil {
		logrus.WithField("tenant", tenantID).Errorf("[EVENTS] conversation lookup for chat %s: %v", msg.ChatID, err)
		return
	}

	// Reconcile: replace a missing or garbage stored phone once the network
	// reveals a plausible one.
	if phone != "" && phone != conv.CustomerPhone && r.phoneLooksWrong(conv.CustomerPhone) {
		if err := r.storage.UpdateConversationPhone(ctx, conv.ID, phone); err != nil {
			logrus.WithField("tenant", tenantID).Warnf("[EVENTS] phone reconciliation for conversation %s: %v", conv.ID, err)
		} else {
			conv.CustomerPhone = phone
		}
	}

	msgType := msg.Type
	if msgType == "" {
		msgType = "text"
	}
	record := &domainChatStorage.Message{
		ID:             msg.ID,
		TenantID:       tenantID,
		ConversationID: conv.ID,
		Direction:      domainChatStorage.DirectionInbound,
		Body:           msg.Body,
		Sender:         msg.SenderID,
		Recipient:      msg.To,
		Type:           msgType,
		QuotedID:       msg.QuotedID,
		Status:         "received",
		Timestamp:      msg.Timestamp,
	}
	if msg.Location != nil {
		lat, lng := msg.Location.Latitude, msg.Location.Longitude
		record.Latitude = &lat
		record.Longitude = &lng
	}

	if err := r.storage.UpsertMessage(ctx, record); err != nil {
		logrus.WithField("tenant", tenantID).Errorf("[EVENTS] persist message %s: %v", msg.ID, err)
		return
	}

	r.publisher.PublishMessage(tenantID, record)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.WithField("tenant", tenantID).Errorf("[EVENTS] panic in webhook delivery: %v", rec)
			}
		}()
		payload := webhook.Payload{
			Event:     "message",
			TenantID:  tenantID,
			From:      msg.SenderID,
			To:        msg.To,
			Body:      msg.Body,
			Timestamp: msg.Timestamp.Unix(),
			MessageID: msg.ID,
		}
		if err := r.notifier.Notify(context.Background(), tenantID, payload); err != nil {
			logrus.WithField("tenant", tenantID).Warnf("[EVENTS] webhook delivery: %v", err)
		}
	}()

	if len(r.automations) > 0 {
		convCopy := *conv
		recordCopy := *record
		time.AfterFunc(r.automationDelay, func() {
			defer func() {
				if rec := recover(); rec != nil {
					logrus.WithField("tenant", tenantID).Errorf("[EVENTS] panic in automation: %v", rec)
				}
			}()
			for _, a := range r.automations {
				a.OnInboundMessage(context.Background(), tenantID, &convCopy, &recordCopy)
			}
		})
	}
}

func (r *EventRouter) handleAck(ctx context.Context, tenantID string, ack *messaging.MessageAck) {
	if err := r.storage.UpdateMessageStatus(ctx, tenantID, ack.MessageID, ack.Status); err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[EVENTS] ack for message %s: %v", ack.MessageID, err)
		return
	}
	r.publisher.PublishAck(tenantID, map[string]any{
		"message_id": ack.MessageID,
		"chat_id":    ack.ChatID,
		"status":     ack.Status,
		"code":       ack.Code,
	})
}

func (r *EventRouter) handleReaction(ctx context.Context, tenantID string, reaction *messaging.MessageReaction) {
	if err := r.storage.UpsertReaction(ctx, reaction.MessageID, reaction.SenderID, reaction.Emoji); err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[EVENTS] reaction on message %s: %v", reaction.MessageID, err)
		return
	}
	reactions, err := r.storage.ListReactions(ctx, reaction.MessageID)
	if err != nil {
		logrus.WithField("tenant", tenantID).Warnf("[EVENTS] list reactions for message %s: %v", reaction.MessageID, err)
		return
	}
	r.publisher.PublishReaction(tenantID, map[string]any{
		"message_id": reaction.MessageID,
		"chat_id":    reaction.ChatID,
		"reactions":  reactions,
	})
}

// bestPhone picks the most plausible customer phone from the identity
// candidates the network exposes, in order of trust: the formatted phone,
// the raw phone, then the digits of the sender identifier itself. Internal
// network identifiers are never phones.
func (r *EventRouter) bestPhone(msg *messaging.IncomingMessage) string {
	maxDigits := r.cfg.Messaging.MaxPhoneDigits
	candidates := []string{msg.FormattedPhone, msg.RawPhone, userPart(msg.SenderID)}
	for _, c := range candidates {
		digits := chatid.Normalize(c, maxDigits)
		if digits == "" || chatid.IsFullIdentifier(digits) {
			continue
		}
		if chatid.HasInternalPrefix(digits, r.cfg.Messaging.InternalIDPrefixes) {
			continue
		}
		return digits
	}
	return ""
}

// phoneLooksWrong reports whether the stored phone should be replaced when a
// better candidate arrives.
func (r *EventRouter) phoneLooksWrong(stored string) bool {
	if stored == "" {
		return true
	}
	if len(stored) > r.cfg.Messaging.MaxPhoneDigits {
		return true
	}
	return chatid.HasInternalPrefix(stored, r.cfg.Messaging.InternalIDPrefixes)
}

func userPart(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		return id[:i]
	}
	return id
}
