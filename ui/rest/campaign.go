package rest

import (
	"github.com/gofiber/fiber/v2"

	domainCampaign "github.com/bizlinkhq/wa-engine/domains/campaign"
	"github.com/bizlinkhq/wa-engine/pkg/utils"
)

type Campaign struct {
	Service domainCampaign.ICampaignUsecase
}

func InitRestCampaign(app fiber.Router, service domainCampaign.ICampaignUsecase) Campaign {
	rest := Campaign{Service: service}
	app.Post("/campaigns/:tenantId", rest.Create)
	app.Post("/campaigns/:tenantId/:campaignId/resume", rest.Resume)
	app.Get("/campaigns/:tenantId/:campaignId", rest.Progress)

	return rest
}

func (handler *Campaign) Create(c *fiber.Ctx) error {
	var request domainCampaign.CreateRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Campaign started",
		Results: response,
	})
}

func (handler *Campaign) Resume(c *fiber.Ctx) error {
	err := handler.Service.Resume(c.UserContext(), c.Params("tenantId"), c.Params("campaignId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Campaign resumed",
	})
}

func (handler *Campaign) Progress(c *fiber.Ctx) error {
	response, err := handler.Service.Progress(c.UserContext(), c.Params("tenantId"), c.Params("campaignId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Campaign progress",
		Results: response,
	})
}
