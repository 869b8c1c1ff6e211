// Package whatsapp adapts whatsmeow to the messaging capability seam. Each
// tenant gets its own client with its own credential store on disk.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
)

type client struct {
	tenantID string
	wa       *whatsmeow.Client
	cfg      *config.Config

	events    chan messaging.Event
	closeOnce sync.Once
}

func newClient(tenantID string, wa *whatsmeow.Client, cfg *config.Config) *client {
	c := &client{
		tenantID: tenantID,
		wa:       wa,
		cfg:      cfg,
		events:   make(chan messaging.Event, 256),
	}
	// The session engine owns reconnect policy; whatsmeow must not race it.
	wa.EnableAutoReconnect = false
	wa.AddEventHandler(c.handleEvent)
	return c
}

func (c *client) Initialize(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		// The pairing window outlives the connect request; its lifetime is
		// bounded by the session supervisor's QR timer, not by ctx.
		qrChan, err := c.wa.GetQRChannel(context.WithoutCancel(ctx))
		if err != nil {
			return fmt.Errorf("qr channel for tenant %s: %w", c.tenantID, err)
		}
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("connect tenant %s: %w", c.tenantID, err)
		}
		go func() {
			for item := range qrChan {
				if item.Event == "code" {
					c.emit(messaging.Event{Type: messaging.EventQR, QRCode: item.Code})
				}
			}
		}()
		return nil
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect tenant %s: %w", c.tenantID, err)
	}
	return nil
}

func (c *client) Destroy(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.wa.Disconnect()
		close(c.events)
	})
	return nil
}

func (c *client) Connected() bool { return c.wa.IsConnected() }
func (c *client) LoggedIn() bool  { return c.wa.IsLoggedIn() }

func (c *client) Events() <-chan messaging.Event { return c.events }

func (c *client) emit(ev messaging.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	defer func() {
		// A destroyed client closes the channel; late whatsmeow callbacks
		// are expected and harmless.
		_ = recover()
	}()
	select {
	case c.events <- ev:
	default:
		logrus.WithField("tenant", c.tenantID).Warnf("[WA] event buffer full, dropping %s", ev.Type)
	}
}

func (c *client) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Connected:
		c.emit(messaging.Event{Type: messaging.EventReady})
	case *events.LoggedOut:
		c.emit(messaging.Event{Type: messaging.EventDisconnected, Reason: messaging.ReasonLoggedOut})
	case *events.StreamReplaced:
		c.emit(messaging.Event{Type: messaging.EventDisconnected, Reason: "stream_replaced"})
	case *events.Disconnected:
		c.emit(messaging.Event{Type: messaging.EventDisconnected, Reason: "connection_lost"})
	case *events.Message:
		c.handleMessage(evt)
	case *events.Receipt:
		c.handleReceipt(evt)
	}
}

func (c *client) handleMessage(evt *events.Message) {
	if reaction := evt.Message.GetReactionMessage(); reaction != nil {
		c.emit(messaging.Event{
			Type: messaging.EventReaction,
			Reaction: &messaging.MessageReaction{
				MessageID: reaction.GetKey().GetID(),
				ChatID:    evt.Info.Chat.String(),
				SenderID:  evt.Info.Sender.String(),
				Emoji:     reaction.GetText(),
			},
			Timestamp: evt.Info.Timestamp,
		})
		return
	}

	msg := &messaging.IncomingMessage{
		ID:        evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		SenderID:  evt.Info.Sender.String(),
		PushName:  evt.Info.PushName,
		RawPhone:  evt.Info.Sender.User,
		Body:      extractText(evt.Message),
		Type:      messageKind(evt.Message),
		FromMe:    evt.Info.IsFromMe,
		Timestamp: evt.Info.Timestamp,
	}
	if c.wa.Store.ID != nil {
		msg.To = c.wa.Store.ID.ToNonAD().String()
	}
	if !evt.Info.Sender.IsEmpty() && evt.Info.Sender.Server == types.DefaultUserServer {
		msg.FormattedPhone = evt.Info.Sender.User
	}
	if ext := evt.Message.GetExtendedTextMessage(); ext != nil {
		msg.QuotedID = ext.GetContextInfo().GetStanzaID()
	}
	if loc := evt.Message.GetLocationMessage(); loc != nil {
		msg.Location = &messaging.Location{
			Latitude:  loc.GetDegreesLatitude(),
			Longitude: loc.GetDegreesLongitude(),
			Address:   loc.GetAddress(),
		}
	}
	c.emit(messaging.Event{Type: messaging.EventMessage, Message: msg, Timestamp: evt.Info.Timestamp})
}

func (c *client) handleReceipt(evt *events.Receipt) {
	var status string
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		status = "delivered"
	case types.ReceiptTypeRead:
		status = "read"
	default:
		return
	}
	for _, id := range evt.MessageIDs {
		c.emit(messaging.Event{
			Type: messaging.EventAck,
			Ack: &messaging.MessageAck{
				MessageID: id,
				ChatID:    evt.Chat.String(),
				Status:    status,
			},
			Timestamp: evt.Timestamp,
		})
	}
}

func (c *client) SendMessage(ctx context.Context, chatID string, content messaging.Content, opts messaging.SendOptions) (messaging.SendResponse, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return messaging.SendResponse{}, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	waMsg, err := c.buildMessage(ctx, content, opts)
	if err != nil {
		return messaging.SendResponse{}, err
	}
	resp, err := c.wa.SendMessage(ctx, jid, waMsg)
	if err != nil {
		return messaging.SendResponse{}, err
	}
	return messaging.SendResponse{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (c *client) buildMessage(ctx context.Context, content messaging.Content, opts messaging.SendOptions) (*waE2E.Message, error) {
	switch content.Kind {
	case messaging.ContentText:
		if opts.QuotedMessageID != "" {
			return &waE2E.Message{
				ExtendedTextMessage: &waE2E.ExtendedTextMessage{
					Text: proto.String(content.Text),
					ContextInfo: &waE2E.ContextInfo{
						StanzaID: proto.String(opts.QuotedMessageID),
					},
				},
			}, nil
		}
		return &waE2E.Message{Conversation: proto.String(content.Text)}, nil

	case messaging.ContentMedia:
		return c.buildMediaMessage(ctx, content.Media)

	case messaging.ContentContact:
		vcard := fmt.Sprintf("BEGIN:VCARD\nVERSION:3.0\nN:;%s;;;\nFN:%s\nTEL;type=CELL;waid=%s:+%s\nEND:VCARD",
			content.Contact.Name, content.Contact.Name, content.Contact.Phone, content.Contact.Phone)
		return &waE2E.Message{
			ContactMessage: &waE2E.ContactMessage{
				DisplayName: proto.String(content.Contact.Name),
				Vcard:       proto.String(vcard),
			},
		}, nil

	case messaging.ContentButtons:
		buttons := make([]*waE2E.ButtonsMessage_Button, 0, len(content.Buttons.Buttons))
		for _, b := range content.Buttons.Buttons {
			buttons = append(buttons, &waE2E.ButtonsMessage_Button{
				ButtonID: proto.String(b.ID),
				ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{
					DisplayText: proto.String(b.Label),
				},
				Type: waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
			})
		}
		return &waE2E.Message{
			ButtonsMessage: &waE2E.ButtonsMessage{
				ContentText: proto.String(content.Buttons.Body),
				FooterText:  proto.String(content.Buttons.Footer),
				HeaderType:  waE2E.ButtonsMessage_EMPTY.Enum(),
				Buttons:     buttons,
			},
		}, nil

	case messaging.ContentList:
		sections := make([]*waE2E.ListMessage_Section, 0, len(content.List.Sections))
		for _, section := range content.List.Sections {
			rows := make([]*waE2E.ListMessage_Row, 0, len(section.Rows))
			for _, row := range section.Rows {
				rows = append(rows, &waE2E.ListMessage_Row{
					RowID:       proto.String(row.ID),
					Title:       proto.String(row.Title),
					Description: proto.String(row.Description),
				})
			}
			sections = append(sections, &waE2E.ListMessage_Section{
				Title: proto.String(section.Title),
				Rows:  rows,
			})
		}
		return &waE2E.Message{
			ListMessage: &waE2E.ListMessage{
				Description: proto.String(content.List.Body),
				ButtonText:  proto.String(content.List.ButtonText),
				ListType:    waE2E.ListMessage_SINGLE_SELECT.Enum(),
				Sections:    sections,
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported content kind %q", content.Kind)
}

func (c *client) buildMediaMessage(ctx context.Context, media *messaging.Media) (*waE2E.Message, error) {
	mediaType := whatsmeow.MediaDocument
	if strings.HasPrefix(media.MimeType, "image/") {
		mediaType = whatsmeow.MediaImage
	}

	uploaded, err := c.wa.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	if mediaType == whatsmeow.MediaImage {
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				Caption:       proto.String(media.Caption),
				Mimetype:      proto.String(media.MimeType),
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    proto.Uint64(uploaded.FileLength),
			},
		}, nil
	}
	return &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			Caption:       proto.String(media.Caption),
			FileName:      proto.String(media.Filename),
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	}, nil
}

// chat is the alternate send path. whatsmeow has no separate chat object, so
// the path degrades to a direct send against the parsed identifier; other
// backends and the test fake give the two paths distinct behavior.
type chat struct {
	client *client
	id     string
}

func (ch *chat) ID() string { return ch.id }

func (ch *chat) Send(ctx context.Context, content messaging.Content, opts messaging.SendOptions) (messaging.SendResponse, error) {
	return ch.client.SendMessage(ctx, ch.id, content, opts)
}

func (c *client) GetChatByID(ctx context.Context, chatID string) (messaging.Chat, error) {
	if _, err := types.ParseJID(chatID); err != nil {
		return nil, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	return &chat{client: c, id: chatID}, nil
}

func (c *client) ValidateNumber(ctx context.Context, digits string) (string, bool, error) {
	resp, err := c.wa.IsOnWhatsApp(ctx, []string{"+" + digits})
	if err != nil {
		return "", false, err
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return "", false, nil
	}
	return resp[0].JID.String(), true, nil
}

func (c *client) MarkRead(ctx context.Context, chatID string, messageIDs []string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	ids := make([]types.MessageID, 0, len(messageIDs))
	for _, id := range messageIDs {
		ids = append(ids, types.MessageID(id))
	}
	return c.wa.MarkRead(ctx, ids, time.Now(), jid, jid)
}

func (c *client) React(ctx context.Context, chatID, messageID, emoji string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	msg := c.wa.BuildReaction(jid, jid, types.MessageID(messageID), emoji)
	_, err = c.wa.SendMessage(ctx, jid, msg)
	return err
}

func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	return ""
}

func messageKind(msg *waE2E.Message) string {
	switch {
	case msg == nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetLocationMessage() != nil:
		return "location"
	case msg.GetContactMessage() != nil:
		return "contact"
	default:
		return "text"
	}
}
