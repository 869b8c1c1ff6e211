package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domainSettings "github.com/bizlinkhq/wa-engine/domains/settings"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
)

func ValidateSaveSettings(ctx context.Context, request domainSettings.SaveRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.WebhookURL, validation.When(request.WebhookURL != "", is.URL)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
