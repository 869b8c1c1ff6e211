package rest

import (
	"github.com/gofiber/fiber/v2"

	domainSettings "github.com/bizlinkhq/wa-engine/domains/settings"
	"github.com/bizlinkhq/wa-engine/pkg/utils"
)

type Settings struct {
	Service domainSettings.ISettingsUsecase
}

func InitRestSettings(app fiber.Router, service domainSettings.ISettingsUsecase) Settings {
	rest := Settings{Service: service}
	app.Get("/settings/:tenantId", rest.Get)
	app.Put("/settings/:tenantId", rest.Save)

	return rest
}

func (handler *Settings) Get(c *fiber.Ctx) error {
	response, err := handler.Service.Get(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tenant settings",
		Results: response,
	})
}

func (handler *Settings) Save(c *fiber.Ctx) error {
	var request domainSettings.SaveRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.Save(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tenant settings saved",
		Results: response,
	})
}
