// Package fake provides a deterministic in-memory messaging client for tests.
// It records every send and lets tests script the event stream, so the whole
// state machine runs without a live network.
package fake

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
)

// SentMessage is one recorded send, either direct or via the chat path.
type SentMessage struct {
	ChatID  string
	Content messaging.Content
	Opts    messaging.SendOptions
	ViaChat bool
}

type Client struct {
	TenantID string

	mu        sync.Mutex
	sent      []SentMessage
	events    chan messaging.Event
	connected bool
	loggedIn  bool
	closed    bool

	initCalls    int64
	destroyCalls int64

	// Hooks scripted by tests. All optional.
	InitializeErr  error
	OnInitialize   func()
	SendErr        error
	ChatSendErr    error
	GetChatErr     error
	ValidateFunc   func(digits string) (string, bool, error)
	MessageIDSeq   int64
	MarkReadCalls  [][]string
	ReactionsSent  []messaging.MessageReaction
}

func NewClient(tenantID string) *Client {
	return &Client{
		TenantID: tenantID,
		events:   make(chan messaging.Event, 64),
	}
}

func (c *Client) Initialize(ctx context.Context) error {
	atomic.AddInt64(&c.initCalls, 1)
	if c.OnInitialize != nil {
		c.OnInitialize()
	}
	if c.InitializeErr != nil {
		return c.InitializeErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Destroy(ctx context.Context) error {
	atomic.AddInt64(&c.destroyCalls, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.loggedIn = false
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) SetLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

func (c *Client) SendMessage(ctx context.Context, chatID string, content messaging.Content, opts messaging.SendOptions) (messaging.SendResponse, error) {
	if c.SendErr != nil {
		return messaging.SendResponse{}, c.SendErr
	}
	return c.record(chatID, content, opts, false), nil
}

func (c *Client) GetChatByID(ctx context.Context, chatID string) (messaging.Chat, error) {
	if c.GetChatErr != nil {
		return nil, c.GetChatErr
	}
	return &fakeChat{client: c, id: chatID}, nil
}

func (c *Client) ValidateNumber(ctx context.Context, digits string) (string, bool, error) {
	if c.ValidateFunc != nil {
		return c.ValidateFunc(digits)
	}
	return digits + "@s.whatsapp.net", true, nil
}

func (c *Client) MarkRead(ctx context.Context, chatID string, messageIDs []string) error {
	c.mu.Lock()
	c.MarkReadCalls = append(c.MarkReadCalls, messageIDs)
	c.mu.Unlock()
	return nil
}

func (c *Client) React(ctx context.Context, chatID, messageID, emoji string) error {
	c.mu.Lock()
	c.ReactionsSent = append(c.ReactionsSent, messaging.MessageReaction{
		MessageID: messageID, ChatID: chatID, Emoji: emoji,
	})
	c.mu.Unlock()
	return nil
}

func (c *Client) Events() <-chan messaging.Event {
	return c.events
}

// Emit pushes a scripted event into the stream.
func (c *Client) Emit(ev messaging.Event) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Type == messaging.EventReady {
		c.mu.Lock()
		c.loggedIn = true
		c.connected = true
		c.mu.Unlock()
	}
	c.events <- ev
}

func (c *Client) InitCalls() int {
	return int(atomic.LoadInt64(&c.initCalls))
}

func (c *Client) DestroyCalls() int {
	return int(atomic.LoadInt64(&c.destroyCalls))
}

func (c *Client) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Client) record(chatID string, content messaging.Content, opts messaging.SendOptions, viaChat bool) messaging.SendResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, SentMessage{ChatID: chatID, Content: content, Opts: opts, ViaChat: viaChat})
	c.MessageIDSeq++
	return messaging.SendResponse{
		MessageID: "FAKE" + strconv.FormatInt(c.MessageIDSeq, 10),
		Timestamp: time.Now(),
	}
}

type fakeChat struct {
	client *Client
	id     string
}

func (f *fakeChat) ID() string { return f.id }

func (f *fakeChat) Send(ctx context.Context, content messaging.Content, opts messaging.SendOptions) (messaging.SendResponse, error) {
	if f.client.ChatSendErr != nil {
		return messaging.SendResponse{}, f.client.ChatSendErr
	}
	return f.client.record(f.id, content, opts, true), nil
}

// Factory hands out fake clients and tracks credential deletions.
type Factory struct {
	mu       sync.Mutex
	clients  map[string]*Client
	Deleted  []string
	Prepare  func(c *Client)
	NewErr   error
}

func NewFactory() *Factory {
	return &Factory{clients: make(map[string]*Client)}
}

func (f *Factory) NewClient(tenantID string) (messaging.Client, error) {
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	c := NewClient(tenantID)
	if f.Prepare != nil {
		f.Prepare(c)
	}
	f.mu.Lock()
	f.clients[tenantID] = c
	f.mu.Unlock()
	return c, nil
}

func (f *Factory) DeleteCredentials(tenantID string) error {
	f.mu.Lock()
	f.Deleted = append(f.Deleted, tenantID)
	f.mu.Unlock()
	return nil
}

// Client returns the most recently created client for a tenant.
func (f *Factory) Client(tenantID string) *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[tenantID]
}
