package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/bizlinkhq/wa-engine/core/config"
	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	domainSend "github.com/bizlinkhq/wa-engine/domains/send"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
	"github.com/bizlinkhq/wa-engine/pkg/chatid"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
	"github.com/bizlinkhq/wa-engine/session"
	"github.com/bizlinkhq/wa-engine/validations"
)

type serviceSend struct {
	manager  *session.Manager
	resolver *session.Resolver
	storage  domainChatStorage.IChatStorageRepository
	cfg      *config.Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewSendService(manager *session.Manager, resolver *session.Resolver, storage domainChatStorage.IChatStorageRepository, cfg *config.Config) domainSend.ISendUsecase {
	return &serviceSend{
		manager:  manager,
		resolver: resolver,
		storage:  storage,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// client gates every send on actual session readiness, not just the recorded
// status: the client must still be connected and logged in.
func (s *serviceSend) client(tenantID string) (messaging.Client, error) {
	if !s.manager.Ready(tenantID) {
		return nil, pkgError.SessionNotReadyError("session is not ready to send, connect it first")
	}
	client := s.manager.Registry().Client(tenantID)
	if client == nil {
		return nil, pkgError.SessionNotReadyError("session is not ready to send, connect it first")
	}
	return client, nil
}

func (s *serviceSend) limiter(tenantID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[tenantID]
	if !ok {
		perSecond := rate.Limit(float64(s.cfg.Messaging.SendRatePerMinute) / 60.0)
		l = rate.NewLimiter(perSecond, 5)
		s.limiters[tenantID] = l
	}
	return l
}

func (s *serviceSend) SendText(ctx context.Context, req domainSend.TextRequest) (domainSend.Response, error) {
	if err := validations.ValidateSendText(ctx, req); err != nil {
		return domainSend.Response{}, err
	}
	client, err := s.client(req.TenantID)
	if err != nil {
		return domainSend.Response{}, err
	}
	chatID, err := s.resolver.Resolve(ctx, req.TenantID, req.Recipient)
	if err != nil {
		return domainSend.Response{}, err
	}
	if err := s.limiter(req.TenantID).Wait(ctx); err != nil {
		return domainSend.Response{}, err
	}

	content := messaging.TextContent(req.Message)
	opts := messaging.SendOptions{QuotedMessageID: req.ReplyMessageID}

	resp, err := client.SendMessage(ctx, chatID, content, opts)
	if err != nil {
		// The network occasionally rejects the direct path even for valid
		// recipients; retry once through the fetched chat object.
		logrus.WithField("tenant", req.TenantID).Debugf("[SEND] direct path failed, trying chat path: %v", err)
		chat, chatErr := client.GetChatByID(ctx, chatID)
		if chatErr != nil {
			return domainSend.Response{}, pkgError.SendError(fmt.Sprintf("message to %s could not be delivered: %v", chatID, err))
		}
		resp, err = chat.Send(ctx, content, opts)
		if err != nil {
			return domainSend.Response{}, pkgError.SendError(fmt.Sprintf("message to %s could not be delivered: %v", chatID, err))
		}
	}

	s.persistOutbound(req.TenantID, chatID, req.Message, "text", req.ReplyMessageID, resp)
	return toSendResponse(chatID, resp), nil
}

func (s *serviceSend) SendMedia(ctx context.Context, req domainSend.MediaRequest) (domainSend.Response, error) {
	if err := validations.ValidateSendMedia(ctx, req); err != nil {
		return domainSend.Response{}, err
	}
	client, err := s.client(req.TenantID)
	if err != nil {
		return domainSend.Response{}, err
	}
	chatID, err := s.resolver.Resolve(ctx, req.TenantID, req.Recipient)
	if err != nil {
		return domainSend.Response{}, err
	}
	// Media is only ever sent to a verified chat identifier; the suffix
	// fallback the resolver allows for text is not good enough here.
	if !chatid.IsValidChatID(chatID) {
		return domainSend.Response{}, pkgError.InvalidRecipientError(fmt.Sprintf("%s is not a verified chat id, media requires one", chatID))
	}

	data := req.Data
	if req.URL != "" {
		data, err = s.fetchMedia(req.URL)
		if err != nil {
			return domainSend.Response{}, err
		}
	}

	mimeType := req.MimeType
	if req.Compress && isCompressibleImage(mimeType) {
		if compressed, compressedMime, cErr := compressImage(data); cErr != nil {
			logrus.WithField("tenant", req.TenantID).Warnf("[SEND] image recompression failed, sending original: %v", cErr)
		} else {
			data, mimeType = compressed, compressedMime
		}
	}

	if strings.HasPrefix(mimeType, "image/") && int64(len(data)) > s.cfg.Messaging.MaxImageSize {
		return domainSend.Response{}, pkgError.ValidationError(fmt.Sprintf("image exceeds the %d byte limit", s.cfg.Messaging.MaxImageSize))
	}
	if int64(len(data)) > s.cfg.Messaging.MaxMediaSize {
		return domainSend.Response{}, pkgError.ValidationError(fmt.Sprintf("media exceeds the %d byte limit", s.cfg.Messaging.MaxMediaSize))
	}

	if err := s.limiter(req.TenantID).Wait(ctx); err != nil {
		return domainSend.Response{}, err
	}

	content := messaging.MediaContent(&messaging.Media{
		Data:     data,
		MimeType: mimeType,
		Filename: req.Filename,
		Caption:  req.Caption,
	})
	resp, err := client.SendMessage(ctx, chatID, content, messaging.SendOptions{})
	if err != nil {
		// No alternate path for media: a failed upload must surface as-is.
		return domainSend.Response{}, pkgError.SendError(fmt.Sprintf("media to %s could not be delivered: %v", chatID, err))
	}

	body := req.Caption
	if body == "" {
		body = req.Filename
	}
	s.persistOutbound(req.TenantID, chatID, body, "media", "", resp)
	return toSendResponse(chatID, resp), nil
}

func (s *serviceSend) SendContact(ctx context.Context, req domainSend.ContactRequest) (domainSend.Response, error) {
	if err := validations.ValidateSendContact(ctx, req); err != nil {
		return domainSend.Response{}, err
	}
	content := messaging.ContactContent(&messaging.ContactCard{
		Name:  req.ContactName,
		Phone: req.ContactPhone,
	})
	return s.sendStructured(ctx, req.TenantID, req.Recipient, content, "contact", req.ContactName)
}

func (s *serviceSend) SendButtons(ctx context.Context, req domainSend.ButtonsRequest) (domainSend.Response, error) {
	if err := validations.ValidateSendButtons(ctx, req); err != nil {
		return domainSend.Response{}, err
	}
	buttons := make([]messaging.Button, 0, len(req.Buttons))
	for _, b := range req.Buttons {
		buttons = append(buttons, messaging.Button{ID: b.ID, Label: b.Label})
	}
	content := messaging.ButtonsContent(&messaging.ButtonsPayload{
		Body:    req.Body,
		Footer:  req.Footer,
		Buttons: buttons,
	})
	return s.sendStructured(ctx, req.TenantID, req.Recipient, content, "buttons", req.Body)
}

func (s *serviceSend) SendList(ctx context.Context, req domainSend.ListRequest) (domainSend.Response, error) {
	if err := validations.ValidateSendList(ctx, req); err != nil {
		return domainSend.Response{}, err
	}
	sections := make([]messaging.ListSection, 0, len(req.Sections))
	for _, section := range req.Sections {
		rows := make([]messaging.ListRow, 0, len(section.Rows))
		for _, row := range section.Rows {
			rows = append(rows, messaging.ListRow{ID: row.ID, Title: row.Title, Description: row.Description})
		}
		sections = append(sections, messaging.ListSection{Title: section.Title, Rows: rows})
	}
	content := messaging.ListContent(&messaging.ListPayload{
		Body:       req.Body,
		ButtonText: req.ButtonText,
		Sections:   sections,
	})
	return s.sendStructured(ctx, req.TenantID, req.Recipient, content, "list", req.Body)
}

// sendStructured is the shared path for rich content: structured payloads are
// fragile enough that a silent alternate-path retry would hide real problems,
// so failures surface immediately.
func (s *serviceSend) sendStructured(ctx context.Context, tenantID, recipient string, content messaging.Content, msgType, body string) (domainSend.Response, error) {
	client, err := s.client(tenantID)
	if err != nil {
		return domainSend.Response{}, err
	}
	chatID, err := s.resolver.Resolve(ctx, tenantID, recipient)
	if err != nil {
		return domainSend.Response{}, err
	}
	if err := s.limiter(tenantID).Wait(ctx); err != nil {
		return domainSend.Response{}, err
	}

	resp, err := client.SendMessage(ctx, chatID, content, messaging.SendOptions{})
	if err != nil {
		return domainSend.Response{}, pkgError.SendError(fmt.Sprintf("%s message to %s could not be delivered: %v", msgType, chatID, err))
	}

	s.persistOutbound(tenantID, chatID, body, msgType, "", resp)
	return toSendResponse(chatID, resp), nil
}

func (s *serviceSend) React(ctx context.Context, req domainSend.ReactionRequest) error {
	if err := validations.ValidateReaction(ctx, req); err != nil {
		return err
	}
	client, err := s.client(req.TenantID)
	if err != nil {
		return err
	}
	return client.React(ctx, req.ChatID, req.MessageID, req.Emoji)
}

func (s *serviceSend) MarkRead(ctx context.Context, req domainSend.MarkReadRequest) error {
	if err := validations.ValidateMarkRead(ctx, req); err != nil {
		return err
	}
	client, err := s.client(req.TenantID)
	if err != nil {
		return err
	}
	return client.MarkRead(ctx, req.ChatID, req.MessageIDs)
}

// persistOutbound records the sent message asynchronously; storage problems
// must never fail a delivery that already happened on the network.
func (s *serviceSend) persistOutbound(tenantID, chatID, body, msgType, quotedID string, resp messaging.SendResponse) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.WithField("tenant", tenantID).Errorf("[SEND] panic persisting outbound message: %v", rec)
			}
		}()
		ctx := context.Background()
		phone := chatid.Normalize(chatID, s.cfg.Messaging.MaxPhoneDigits)
		if chatid.IsFullIdentifier(phone) {
			phone = ""
		}
		conv, err := s.storage.GetOrCreateConversation(ctx, tenantID, chatID, "", phone)
		if err != nil {
			logrus.WithField("tenant", tenantID).Warnf("[SEND] conversation for outbound message: %v", err)
			return
		}
		err = s.storage.UpsertMessage(ctx, &domainChatStorage.Message{
			ID:             resp.MessageID,
			TenantID:       tenantID,
			ConversationID: conv.ID,
			Direction:      domainChatStorage.DirectionOutbound,
			Body:           body,
			Recipient:      chatID,
			Type:           msgType,
			QuotedID:       quotedID,
			Status:         "sent",
			Timestamp:      resp.Timestamp,
		})
		if err != nil {
			logrus.WithField("tenant", tenantID).Warnf("[SEND] persist outbound message %s: %v", resp.MessageID, err)
		}
	}()
}

func (s *serviceSend) fetchMedia(url string) ([]byte, error) {
	status, body, err := fasthttp.GetTimeout(nil, url, 15*time.Second)
	if err != nil {
		return nil, pkgError.ValidationError(fmt.Sprintf("media url could not be fetched: %v", err))
	}
	if status != fasthttp.StatusOK {
		return nil, pkgError.ValidationError(fmt.Sprintf("media url returned status %d", status))
	}
	if int64(len(body)) > s.cfg.Messaging.MaxMediaSize {
		return nil, pkgError.ValidationError(fmt.Sprintf("media exceeds the %d byte limit", s.cfg.Messaging.MaxMediaSize))
	}
	return body, nil
}

func isCompressibleImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

// compressImage re-encodes large images as bounded JPEG so uploads stay small.
func compressImage(data []byte) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Dx() > 1280 {
		img = imaging.Resize(img, 1280, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(75)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

func toSendResponse(chatID string, resp messaging.SendResponse) domainSend.Response {
	return domainSend.Response{
		MessageID: resp.MessageID,
		ChatID:    chatID,
		Status:    "sent",
		Timestamp: resp.Timestamp,
	}
}
