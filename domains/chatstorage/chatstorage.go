package chatstorage

import (
	"context"
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Conversation groups the messages exchanged with one chat identifier.
// CustomerPhone is reconciled over time: the network can reveal better
// identity information than was available at first contact.
type Conversation struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	TenantID      string    `gorm:"index:idx_conv_tenant_chat,unique" json:"tenant_id"`
	ChatID        string    `gorm:"index:idx_conv_tenant_chat,unique" json:"chat_id"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	AssigneeID    string    `json:"assignee_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Message is keyed by the externally-assigned message id, the natural key
// for deduplication: repeated delivery of the same event upserts in place.
type Message struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	TenantID       string     `gorm:"index" json:"tenant_id"`
	ConversationID string     `gorm:"index" json:"conversation_id"`
	Direction      string     `json:"direction"`
	Body           string     `json:"body"`
	Sender         string     `json:"sender"`
	Recipient      string     `json:"recipient"`
	Type           string     `json:"type"`
	QuotedID       string     `json:"quoted_id,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	Status         string     `json:"status"`
	Reactions      []Reaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Reaction is keyed by (message, sender): one live reaction per sender.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID string    `gorm:"index:idx_reaction_msg_sender,unique" json:"message_id"`
	SenderID  string    `gorm:"index:idx_reaction_msg_sender,unique" json:"sender_id"`
	Emoji     string    `json:"emoji"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer and Contact are the two recipient sources campaigns draw from.
type Customer struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index" json:"tenant_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Segment   string    `json:"segment"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Contact struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index" json:"tenant_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamMember struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index" json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type TenantSettings struct {
	TenantID          string    `gorm:"primaryKey" json:"tenant_id"`
	WebhookURL        string    `json:"webhook_url"`
	WebhookSecret     string    `json:"webhook_secret"`
	AutoAssignEnabled bool      `json:"auto_assign_enabled"`
	LastAssignedIndex int       `json:"last_assigned_index"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const (
	CampaignStatusProcessing = "processing"
	CampaignStatusCompleted  = "completed"
	CampaignStatusFailed     = "failed"
)

type Campaign struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index" json:"tenant_id"`
	Name      string    `json:"name"`
	Template  string    `json:"template"`
	Filter    string    `json:"filter"`
	Status    string    `json:"status"`
	StatusMsg string    `json:"status_msg"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryLog is append-only; the (campaign, status=sent) lookup is the
// idempotency mechanism that makes campaign resume safe.
type DeliveryLog struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	CampaignID string    `gorm:"index" json:"campaign_id"`
	TenantID   string    `json:"tenant_id"`
	Phone      string    `json:"phone"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IChatStorageRepository is the data-store collaborator. The store is the
// system of record for durable entities; concurrent upserts are resolved by
// natural/business keys, not by locks in this subsystem.
type IChatStorageRepository interface {
	Init(ctx context.Context) error

	// Messages
	UpsertMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, tenantID, messageID string) (*Message, error)
	UpdateMessageStatus(ctx context.Context, tenantID, messageID, status string) error
	UpsertReaction(ctx context.Context, messageID, senderID, emoji string) error
	ListReactions(ctx context.Context, messageID string) ([]Reaction, error)

	// Conversations
	GetOrCreateConversation(ctx context.Context, tenantID, chatID, name, phone string) (*Conversation, error)
	UpdateConversationPhone(ctx context.Context, conversationID, phone string) error
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	AssignConversation(ctx context.Context, conversationID, assigneeID string) error

	// Tenant settings and team
	GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
	SaveTenantSettings(ctx context.Context, settings *TenantSettings) error
	SetLastAssignedIndex(ctx context.Context, tenantID string, index int) error
	ListTeamMembers(ctx context.Context, tenantID string) ([]TeamMember, error)

	// Campaign recipient sources
	ListCustomers(ctx context.Context, tenantID, filter string) ([]Customer, error)
	ListContacts(ctx context.Context, tenantID string) ([]Contact, error)

	// Campaigns
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, tenantID, campaignID string) (*Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID, status, statusMsg string) error
	UpdateCampaignProgress(ctx context.Context, campaignID string, total, succeeded, failed int) error
	AppendDeliveryLog(ctx context.Context, entry *DeliveryLog) error
	ListDeliveredPhones(ctx context.Context, campaignID string) ([]string, error)
}
