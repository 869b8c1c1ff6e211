package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bizlinkhq/wa-engine/core/config"
	domainCampaign "github.com/bizlinkhq/wa-engine/domains/campaign"
	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	domainSend "github.com/bizlinkhq/wa-engine/domains/send"
	"github.com/bizlinkhq/wa-engine/pkg/chatid"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
	"github.com/bizlinkhq/wa-engine/session"
	"github.com/bizlinkhq/wa-engine/validations"
)

type serviceCampaign struct {
	manager *session.Manager
	sender  domainSend.ISendUsecase
	storage domainChatStorage.IChatStorageRepository
	cfg     *config.Config

	// jitter spaces out consecutive sends; tests replace it with zero.
	jitter func() time.Duration
	// done, when set, is signalled after each broadcast run finishes.
	done chan string
}

func NewCampaignService(manager *session.Manager, sender domainSend.ISendUsecase, storage domainChatStorage.IChatStorageRepository, cfg *config.Config) domainCampaign.ICampaignUsecase {
	s := &serviceCampaign{
		manager: manager,
		sender:  sender,
		storage: storage,
		cfg:     cfg,
	}
	s.jitter = func() time.Duration {
		min, max := cfg.Campaign.JitterMin, cfg.Campaign.JitterMax
		if max <= min {
			return min
		}
		return min + time.Duration(rand.Int63n(int64(max-min)))
	}
	return s
}

func (s *serviceCampaign) Create(ctx context.Context, req domainCampaign.CreateRequest) (domainCampaign.CreateResponse, error) {
	if err := validations.ValidateCreateCampaign(ctx, req); err != nil {
		return domainCampaign.CreateResponse{}, err
	}
	if !s.manager.Ready(req.TenantID) {
		return domainCampaign.CreateResponse{}, pkgError.SessionNotReadyError("session must be ready before starting a broadcast")
	}

	campaign := &domainChatStorage.Campaign{
		ID:       uuid.NewString(),
		TenantID: req.TenantID,
		Name:     req.Name,
		Template: req.Template,
		Filter:   req.Filter,
		Status:   domainChatStorage.CampaignStatusProcessing,
	}
	if err := s.storage.CreateCampaign(ctx, campaign); err != nil {
		return domainCampaign.CreateResponse{}, err
	}

	go s.run(campaign)
	return domainCampaign.CreateResponse{CampaignID: campaign.ID, Status: campaign.Status}, nil
}

func (s *serviceCampaign) Resume(ctx context.Context, tenantID, campaignID string) error {
	campaign, err := s.storage.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return pkgError.NotFoundError("campaign not found")
	}
	if campaign.Status == domainChatStorage.CampaignStatusCompleted {
		return nil
	}
	if !s.manager.Ready(tenantID) {
		return pkgError.SessionNotReadyError("session must be ready before resuming a broadcast")
	}

	if err := s.storage.UpdateCampaignStatus(ctx, campaignID, domainChatStorage.CampaignStatusProcessing, ""); err != nil {
		return err
	}
	campaign.Status = domainChatStorage.CampaignStatusProcessing
	go s.run(campaign)
	return nil
}

func (s *serviceCampaign) Progress(ctx context.Context, tenantID, campaignID string) (domainCampaign.ProgressResponse, error) {
	campaign, err := s.storage.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return domainCampaign.ProgressResponse{}, err
	}
	if campaign == nil {
		return domainCampaign.ProgressResponse{}, pkgError.NotFoundError("campaign not found")
	}
	return domainCampaign.ProgressResponse{
		CampaignID: campaign.ID,
		Status:     campaign.Status,
		StatusMsg:  campaign.StatusMsg,
		Total:      campaign.Total,
		Succeeded:  campaign.Succeeded,
		Failed:     campaign.Failed,
	}, nil
}

type recipient struct {
	phone string
	name  string
}

// run executes the broadcast. It is safe to call again for an interrupted
// campaign: the delivery log tells it which recipients were already reached.
func (s *serviceCampaign) run(campaign *domainChatStorage.Campaign) {
	ctx := context.Background()
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithField("campaign", campaign.ID).Errorf("[CAMPAIGN] panic during broadcast: %v", rec)
			_ = s.storage.UpdateCampaignStatus(ctx, campaign.ID, domainChatStorage.CampaignStatusFailed, fmt.Sprintf("broadcast crashed: %v", rec))
		}
		if s.done != nil {
			s.done <- campaign.ID
		}
	}()

	recipients, err := s.gather(ctx, campaign)
	if err != nil {
		logrus.WithField("campaign", campaign.ID).Errorf("[CAMPAIGN] gathering recipients: %v", err)
		_ = s.storage.UpdateCampaignStatus(ctx, campaign.ID, domainChatStorage.CampaignStatusFailed, "could not gather recipients")
		return
	}

	deliveredList, err := s.storage.ListDeliveredPhones(ctx, campaign.ID)
	if err != nil {
		logrus.WithField("campaign", campaign.ID).Errorf("[CAMPAIGN] reading delivery log: %v", err)
		_ = s.storage.UpdateCampaignStatus(ctx, campaign.ID, domainChatStorage.CampaignStatusFailed, "could not read the delivery log")
		return
	}
	delivered := make(map[string]bool, len(deliveredList))
	for _, phone := range deliveredList {
		delivered[phone] = true
	}

	total := len(recipients)
	succeeded, failed := 0, 0
	for _, r := range recipients {
		if delivered[r.phone] {
			succeeded++
		}
	}
	_ = s.storage.UpdateCampaignProgress(ctx, campaign.ID, total, succeeded, failed)

	logrus.WithFields(logrus.Fields{
		"campaign":   campaign.ID,
		"tenant":     campaign.TenantID,
		"recipients": total,
		"delivered":  succeeded,
	}).Info("[CAMPAIGN] broadcast starting")

	for _, r := range recipients {
		if delivered[r.phone] {
			continue
		}
		if !s.manager.Ready(campaign.TenantID) {
			logrus.WithField("campaign", campaign.ID).Warn("[CAMPAIGN] session lost readiness, aborting broadcast")
			_ = s.storage.UpdateCampaignStatus(ctx, campaign.ID, domainChatStorage.CampaignStatusFailed, "session lost readiness mid-broadcast")
			return
		}

		if d := s.jitter(); d > 0 {
			time.Sleep(d)
		}

		body := renderTemplate(campaign.Template, r)
		_, sendErr := s.sender.SendText(ctx, domainSend.TextRequest{
			TenantID:  campaign.TenantID,
			Recipient: chatid.Dialable(r.phone, s.cfg.Messaging.DefaultCountryCode),
			Message:   body,
		})

		entry := &domainChatStorage.DeliveryLog{
			CampaignID: campaign.ID,
			TenantID:   campaign.TenantID,
			Phone:      r.phone,
			Status:     domainChatStorage.DeliveryStatusSent,
		}
		if sendErr != nil {
			entry.Status = domainChatStorage.DeliveryStatusFailed
			entry.Error = sendErr.Error()
			failed++
			logrus.WithField("campaign", campaign.ID).Warnf("[CAMPAIGN] send to %s failed: %v", r.phone, sendErr)
		} else {
			succeeded++
		}
		if err := s.storage.AppendDeliveryLog(ctx, entry); err != nil {
			logrus.WithField("campaign", campaign.ID).Errorf("[CAMPAIGN] appending delivery log: %v", err)
		}
		_ = s.storage.UpdateCampaignProgress(ctx, campaign.ID, total, succeeded, failed)
	}

	_ = s.storage.UpdateCampaignStatus(ctx, campaign.ID, domainChatStorage.CampaignStatusCompleted, "")
	logrus.WithFields(logrus.Fields{
		"campaign":  campaign.ID,
		"succeeded": succeeded,
		"failed":    failed,
	}).Info("[CAMPAIGN] broadcast finished")
}

// gather merges customers (honoring the campaign filter) and contacts into a
// deduplicated recipient list. Duplicates keep their first position but the
// later occurrence's name wins, since contact data is assumed fresher the
// later it was recorded.
func (s *serviceCampaign) gather(ctx context.Context, campaign *domainChatStorage.Campaign) ([]recipient, error) {
	customers, err := s.storage.ListCustomers(ctx, campaign.TenantID, campaign.Filter)
	if err != nil {
		return nil, err
	}
	contacts, err := s.storage.ListContacts(ctx, campaign.TenantID)
	if err != nil {
		return nil, err
	}

	maxDigits := s.cfg.Messaging.MaxPhoneDigits
	var order []string
	byPhone := make(map[string]recipient)

	add := func(rawPhone, name string) {
		phone := chatid.Normalize(rawPhone, maxDigits)
		if phone == "" || chatid.IsFullIdentifier(phone) {
			return
		}
		if _, seen := byPhone[phone]; !seen {
			order = append(order, phone)
		}
		byPhone[phone] = recipient{phone: phone, name: name}
	}

	for _, c := range customers {
		add(c.Phone, c.Name)
	}
	for _, c := range contacts {
		add(c.Phone, c.Name)
	}

	out := make([]recipient, 0, len(order))
	for _, phone := range order {
		out = append(out, byPhone[phone])
	}
	return out, nil
}

func renderTemplate(template string, r recipient) string {
	body := strings.ReplaceAll(template, "{{name}}", r.name)
	return strings.ReplaceAll(body, "{{phone}}", r.phone)
}
