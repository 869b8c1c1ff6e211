package usecase

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/skip2/go-qrcode"

	"github.com/bizlinkhq/wa-engine/core/config"
	domainApp "github.com/bizlinkhq/wa-engine/domains/app"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
	"github.com/bizlinkhq/wa-engine/session"
)

type serviceApp struct {
	manager *session.Manager
	cfg     *config.Config
}

func NewAppService(manager *session.Manager, cfg *config.Config) domainApp.IAppUsecase {
	return &serviceApp{manager: manager, cfg: cfg}
}

func (s *serviceApp) Connect(ctx context.Context, tenantID string) (domainApp.StatusResponse, error) {
	if tenantID == "" {
		return domainApp.StatusResponse{}, pkgError.ValidationError("tenant id is required")
	}
	state, err := s.manager.Connect(ctx, tenantID)
	return toStatusResponse(state), err
}

func (s *serviceApp) Disconnect(ctx context.Context, tenantID string) (domainApp.StatusResponse, error) {
	if tenantID == "" {
		return domainApp.StatusResponse{}, pkgError.ValidationError("tenant id is required")
	}
	state, err := s.manager.Disconnect(ctx, tenantID)
	return toStatusResponse(state), err
}

func (s *serviceApp) Reset(ctx context.Context, tenantID string) (domainApp.StatusResponse, error) {
	if tenantID == "" {
		return domainApp.StatusResponse{}, pkgError.ValidationError("tenant id is required")
	}
	if err := s.manager.ResetSession(ctx, tenantID, false); err != nil {
		return domainApp.StatusResponse{}, err
	}
	return toStatusResponse(s.manager.State(tenantID)), nil
}

func (s *serviceApp) Status(ctx context.Context, tenantID string) (domainApp.StatusResponse, error) {
	if tenantID == "" {
		return domainApp.StatusResponse{}, pkgError.ValidationError("tenant id is required")
	}
	return toStatusResponse(s.manager.State(tenantID)), nil
}

func (s *serviceApp) QRImage(ctx context.Context, tenantID string, size int) ([]byte, error) {
	state := s.manager.State(tenantID)
	if state.Status != session.StatusWaitingQR || state.QRPayload == "" {
		return nil, pkgError.NotFoundError("no pairing code available, connect the session first")
	}
	if size < 128 || size > 1024 {
		size = 256
	}
	png, err := qrcode.Encode(state.QRPayload, qrcode.Medium, size)
	if err != nil {
		return nil, pkgError.InternalServerError("could not render the pairing code")
	}
	return png, nil
}

func toStatusResponse(state session.State) domainApp.StatusResponse {
	return domainApp.StatusResponse{
		TenantID:     state.TenantID,
		Status:       string(state.Status),
		QRPayload:    state.QRPayload,
		LastError:    state.LastError,
		AttemptCount: state.AttemptCount,
		UpdatedAt:    state.UpdatedAt,
		UpdatedAgo:   humanize.Time(state.UpdatedAt),
	}
}
