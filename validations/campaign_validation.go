package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainCampaign "github.com/bizlinkhq/wa-engine/domains/campaign"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
)

func ValidateCreateCampaign(ctx context.Context, request domainCampaign.CreateRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&request.Template, validation.Required, validation.Length(1, 4096)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
