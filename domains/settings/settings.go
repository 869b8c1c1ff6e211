package settings

import "context"

// ISettingsUsecase manages per-tenant engine settings.
type ISettingsUsecase interface {
	Get(ctx context.Context, tenantID string) (Response, error)
	Save(ctx context.Context, req SaveRequest) (Response, error)
}

type SaveRequest struct {
	TenantID          string `json:"tenant_id" form:"tenant_id"`
	WebhookURL        string `json:"webhook_url" form:"webhook_url"`
	WebhookSecret     string `json:"webhook_secret" form:"webhook_secret"`
	AutoAssignEnabled bool   `json:"auto_assign_enabled" form:"auto_assign_enabled"`
}

type Response struct {
	TenantID          string `json:"tenant_id"`
	WebhookURL        string `json:"webhook_url"`
	AutoAssignEnabled bool   `json:"auto_assign_enabled"`
	// The secret is write-only; responses only reveal whether one is set.
	WebhookSecretSet bool `json:"webhook_secret_set"`
}
