package campaign

import "context"

// ICampaignUsecase creates and supervises bulk broadcasts. Create persists the
// campaign and starts the broadcast in the background; Resume restarts an
// interrupted one without re-sending to recipients already delivered.
type ICampaignUsecase interface {
	Create(ctx context.Context, req CreateRequest) (CreateResponse, error)
	Resume(ctx context.Context, tenantID, campaignID string) error
	Progress(ctx context.Context, tenantID, campaignID string) (ProgressResponse, error)
}

type CreateRequest struct {
	TenantID string `json:"tenant_id" form:"tenant_id"`
	Name     string `json:"name" form:"name"`
	// Template supports {{name}} and {{phone}} placeholders.
	Template string `json:"template" form:"template"`
	// Filter selects customers: "all", "active" or a segment name.
	Filter string `json:"filter" form:"filter"`
}

type CreateResponse struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
}

type ProgressResponse struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
	StatusMsg  string `json:"status_msg,omitempty"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}
