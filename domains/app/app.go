package app

import (
	"context"
	"time"
)

// IAppUsecase drives the lifecycle of a tenant's messaging session.
type IAppUsecase interface {
	Connect(ctx context.Context, tenantID string) (StatusResponse, error)
	Disconnect(ctx context.Context, tenantID string) (StatusResponse, error)
	Reset(ctx context.Context, tenantID string) (StatusResponse, error)
	Status(ctx context.Context, tenantID string) (StatusResponse, error)
	// QRImage renders the current pairing payload as a PNG, or errors when the
	// tenant is not waiting for a scan.
	QRImage(ctx context.Context, tenantID string, size int) ([]byte, error)
}

type StatusResponse struct {
	TenantID     string    `json:"tenant_id"`
	Status       string    `json:"status"`
	QRPayload    string    `json:"qr_payload,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedAgo   string    `json:"updated_ago"`
}
