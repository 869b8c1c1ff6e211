package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domainSend "github.com/bizlinkhq/wa-engine/domains/send"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
)

func ValidateSendText(ctx context.Context, request domainSend.TextRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.Recipient, validation.Required),
		validation.Field(&request.Message, validation.Required, validation.Length(1, 4096)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendMedia(ctx context.Context, request domainSend.MediaRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.Recipient, validation.Required),
		validation.Field(&request.MimeType, validation.Required),
		validation.Field(&request.URL, validation.When(request.URL != "", is.URL)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if len(request.Data) == 0 && request.URL == "" {
		return pkgError.ValidationError("either inline data or a media url is required")
	}
	if len(request.Data) > 0 && request.URL != "" {
		return pkgError.ValidationError("inline data and a media url are mutually exclusive")
	}
	return nil
}

func ValidateSendContact(ctx context.Context, request domainSend.ContactRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.Recipient, validation.Required),
		validation.Field(&request.ContactName, validation.Required),
		validation.Field(&request.ContactPhone, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateSendButtons(ctx context.Context, request domainSend.ButtonsRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.Recipient, validation.Required),
		validation.Field(&request.Body, validation.Required),
		validation.Field(&request.Buttons, validation.Required, validation.Length(1, 3)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	for _, b := range request.Buttons {
		if b.Label == "" {
			return pkgError.ValidationError("every button needs a label")
		}
	}
	return nil
}

func ValidateSendList(ctx context.Context, request domainSend.ListRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.Recipient, validation.Required),
		validation.Field(&request.Body, validation.Required),
		validation.Field(&request.ButtonText, validation.Required),
		validation.Field(&request.Sections, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	for _, section := range request.Sections {
		if len(section.Rows) == 0 {
			return pkgError.ValidationError("every list section needs at least one row")
		}
	}
	return nil
}

func ValidateReaction(ctx context.Context, request domainSend.ReactionRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.ChatID, validation.Required),
		validation.Field(&request.MessageID, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateMarkRead(ctx context.Context, request domainSend.MarkReadRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.ChatID, validation.Required),
		validation.Field(&request.MessageIDs, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
