package send

import (
	"context"
	"time"
)

// ISendUsecase dispatches outbound messages for a ready tenant session.
type ISendUsecase interface {
	SendText(ctx context.Context, req TextRequest) (Response, error)
	SendMedia(ctx context.Context, req MediaRequest) (Response, error)
	SendContact(ctx context.Context, req ContactRequest) (Response, error)
	SendButtons(ctx context.Context, req ButtonsRequest) (Response, error)
	SendList(ctx context.Context, req ListRequest) (Response, error)
	React(ctx context.Context, req ReactionRequest) error
	MarkRead(ctx context.Context, req MarkReadRequest) error
}

type TextRequest struct {
	TenantID       string `json:"tenant_id" form:"tenant_id"`
	Recipient      string `json:"recipient" form:"recipient"`
	Message        string `json:"message" form:"message"`
	ReplyMessageID string `json:"reply_message_id,omitempty" form:"reply_message_id"`
}

// MediaRequest carries media either inline (Data, decoded from base64 by the
// transport layer) or by URL. Recipient must already be a valid chat id or a
// resolvable phone; media sends never fall back to an alternate path.
type MediaRequest struct {
	TenantID  string `json:"tenant_id" form:"tenant_id"`
	Recipient string `json:"recipient" form:"recipient"`
	Caption   string `json:"caption,omitempty" form:"caption"`
	MimeType  string `json:"mime_type" form:"mime_type"`
	Filename  string `json:"filename,omitempty" form:"filename"`
	Data      []byte `json:"data,omitempty"`
	URL       string `json:"url,omitempty" form:"url"`
	Compress  bool   `json:"compress,omitempty" form:"compress"`
}

type ContactRequest struct {
	TenantID     string `json:"tenant_id" form:"tenant_id"`
	Recipient    string `json:"recipient" form:"recipient"`
	ContactName  string `json:"contact_name" form:"contact_name"`
	ContactPhone string `json:"contact_phone" form:"contact_phone"`
}

type ButtonsRequest struct {
	TenantID  string   `json:"tenant_id" form:"tenant_id"`
	Recipient string   `json:"recipient" form:"recipient"`
	Body      string   `json:"body" form:"body"`
	Footer    string   `json:"footer,omitempty" form:"footer"`
	Buttons   []Button `json:"buttons"`
}

type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ListRequest struct {
	TenantID   string    `json:"tenant_id" form:"tenant_id"`
	Recipient  string    `json:"recipient" form:"recipient"`
	Body       string    `json:"body" form:"body"`
	ButtonText string    `json:"button_text" form:"button_text"`
	Sections   []Section `json:"sections"`
}

type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ReactionRequest struct {
	TenantID  string `json:"tenant_id" form:"tenant_id"`
	ChatID    string `json:"chat_id" form:"chat_id"`
	MessageID string `json:"message_id" form:"message_id"`
	Emoji     string `json:"emoji" form:"emoji"`
}

type MarkReadRequest struct {
	TenantID   string   `json:"tenant_id" form:"tenant_id"`
	ChatID     string   `json:"chat_id" form:"chat_id"`
	MessageIDs []string `json:"message_ids"`
}

type Response struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
