package usecase

import (
	"context"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	domainSettings "github.com/bizlinkhq/wa-engine/domains/settings"
	"github.com/bizlinkhq/wa-engine/validations"
)

type serviceSettings struct {
	storage domainChatStorage.IChatStorageRepository
}

func NewSettingsService(storage domainChatStorage.IChatStorageRepository) domainSettings.ISettingsUsecase {
	return &serviceSettings{storage: storage}
}

func (s *serviceSettings) Get(ctx context.Context, tenantID string) (domainSettings.Response, error) {
	settings, err := s.storage.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return domainSettings.Response{}, err
	}
	return toSettingsResponse(settings), nil
}

func (s *serviceSettings) Save(ctx context.Context, req domainSettings.SaveRequest) (domainSettings.Response, error) {
	if err := validations.ValidateSaveSettings(ctx, req); err != nil {
		return domainSettings.Response{}, err
	}

	current, err := s.storage.GetTenantSettings(ctx, req.TenantID)
	if err != nil {
		return domainSettings.Response{}, err
	}
	current.WebhookURL = req.WebhookURL
	if req.WebhookSecret != "" {
		current.WebhookSecret = req.WebhookSecret
	}
	current.AutoAssignEnabled = req.AutoAssignEnabled

	if err := s.storage.SaveTenantSettings(ctx, current); err != nil {
		return domainSettings.Response{}, err
	}
	return toSettingsResponse(current), nil
}

func toSettingsResponse(settings *domainChatStorage.TenantSettings) domainSettings.Response {
	return domainSettings.Response{
		TenantID:          settings.TenantID,
		WebhookURL:        settings.WebhookURL,
		AutoAssignEnabled: settings.AutoAssignEnabled,
		WebhookSecretSet:  settings.WebhookSecret != "",
	}
}
