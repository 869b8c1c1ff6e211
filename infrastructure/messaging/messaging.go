// Package messaging defines the narrow capability seam to the external
// real-time messaging network. The session engine only ever talks to this
// interface; the whatsmeow adapter and the deterministic fake both satisfy it.
package messaging

import (
	"context"
	"time"
)

// ReasonLoggedOut is the disconnect reason emitted when the identity was
// explicitly logged out on the network side. A logged-out identity cannot
// resume from stored credentials.
const ReasonLoggedOut = "logged_out"

type EventType string

const (
	EventQR           EventType = "qr"
	EventReady        EventType = "ready"
	EventAuthFailure  EventType = "auth_failure"
	EventDisconnected EventType = "disconnected"
	EventMessage      EventType = "message"
	EventAck          EventType = "message_ack"
	EventReaction     EventType = "message_reaction"
)

// Event is one item of the client's inbound stream. Exactly one of the
// payload pointers is set depending on Type.
type Event struct {
	Type      EventType
	QRCode    string
	Reason    string
	Message   *IncomingMessage
	Ack       *MessageAck
	Reaction  *MessageReaction
	Timestamp time.Time
}

type Location struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// IncomingMessage carries the identity candidates the network exposes for
// the sender. FormattedPhone and RawPhone feed the reconciliation heuristics
// in the event router; either may be empty or garbage.
type IncomingMessage struct {
	ID             string
	ChatID         string
	SenderID       string
	To             string
	PushName       string
	FormattedPhone string
	RawPhone       string
	Body           string
	Type           string
	QuotedID       string
	Location       *Location
	FromMe         bool
	Timestamp      time.Time
}

type MessageAck struct {
	MessageID string
	ChatID    string
	Status    string
	Code      int
}

// MessageReaction with an empty Emoji means the sender removed their reaction.
type MessageReaction struct {
	MessageID string
	ChatID    string
	SenderID  string
	Emoji     string
}

type ContentKind string

const (
	ContentUnspecified ContentKind = ""
	ContentText        ContentKind = "text"
	ContentMedia       ContentKind = "media"
	ContentContact     ContentKind = "contact"
	ContentButtons     ContentKind = "buttons"
	ContentList        ContentKind = "list"
)

type Media struct {
	Data     []byte
	MimeType string
	Filename string
	Caption  string
}

type ContactCard struct {
	Name  string
	Phone string
}

type Button struct {
	ID    string
	Label string
}

type ButtonsPayload struct {
	Body    string
	Footer  string
	Buttons []Button
}

type ListRow struct {
	ID          string
	Title       string
	Description string
}

type ListSection struct {
	Title string
	Rows  []ListRow
}

type ListPayload struct {
	Body       string
	ButtonText string
	Sections   []ListSection
}

// Content is a tagged union for outbound message content. Exactly the field
// matching Kind is read; everything else is ignored.
type Content struct {
	Kind    ContentKind
	Text    string
	Media   *Media
	Contact *ContactCard
	Buttons *ButtonsPayload
	List    *ListPayload
}

func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

func MediaContent(m *Media) Content {
	return Content{Kind: ContentMedia, Media: m}
}

func ContactContent(c *ContactCard) Content {
	return Content{Kind: ContentContact, Contact: c}
}

func ButtonsContent(b *ButtonsPayload) Content {
	return Content{Kind: ContentButtons, Buttons: b}
}

func ListContent(l *ListPayload) Content {
	return Content{Kind: ContentList, List: l}
}

type SendOptions struct {
	QuotedMessageID string
}

type SendResponse struct {
	MessageID string
	Timestamp time.Time
}

// Chat is the alternate send path: a chat object fetched by id. The network
// occasionally rejects the direct path for reasons unrelated to recipient
// validity; sending through the fetched chat works around that.
type Chat interface {
	ID() string
	Send(ctx context.Context, content Content, opts SendOptions) (SendResponse, error)
}

// Client is one tenant's live connection to the messaging network.
type Client interface {
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
	Connected() bool
	LoggedIn() bool
	SendMessage(ctx context.Context, chatID string, content Content, opts SendOptions) (SendResponse, error)
	GetChatByID(ctx context.Context, chatID string) (Chat, error)
	// ValidateNumber asks the network to canonicalize bare digits. ok is false
	// when the number is not registered on the network.
	ValidateNumber(ctx context.Context, digits string) (canonical string, ok bool, err error)
	MarkRead(ctx context.Context, chatID string, messageIDs []string) error
	React(ctx context.Context, chatID, messageID, emoji string) error
	Events() <-chan Event
}

// Factory creates tenant-scoped clients and owns their persisted credential
// material.
type Factory interface {
	NewClient(tenantID string) (Client, error)
	// DeleteCredentials removes the tenant's stored pairing blob. Called on
	// reset and logout; a destroyed client keeps its credentials.
	DeleteCredentials(tenantID string) error
}
