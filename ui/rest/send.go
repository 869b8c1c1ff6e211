package rest

import (
	"github.com/gofiber/fiber/v2"

	domainSend "github.com/bizlinkhq/wa-engine/domains/send"
	"github.com/bizlinkhq/wa-engine/pkg/utils"
)

type Send struct {
	Service domainSend.ISendUsecase
}

func InitRestSend(app fiber.Router, service domainSend.ISendUsecase) Send {
	rest := Send{Service: service}
	app.Post("/send/:tenantId/text", rest.SendText)
	app.Post("/send/:tenantId/media", rest.SendMedia)
	app.Post("/send/:tenantId/contact", rest.SendContact)
	app.Post("/send/:tenantId/buttons", rest.SendButtons)
	app.Post("/send/:tenantId/list", rest.SendList)
	app.Post("/send/:tenantId/react", rest.React)
	app.Post("/send/:tenantId/read", rest.MarkRead)

	return rest
}

func (handler *Send) SendText(c *fiber.Ctx) error {
	var request domainSend.TextRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.SendText(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message sent",
		Results: response,
	})
}

// SendMedia accepts inline content as base64 in the "data" field, or a URL
// the engine fetches itself.
func (handler *Send) SendMedia(c *fiber.Ctx) error {
	var request domainSend.MediaRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.SendMedia(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Media sent",
		Results: response,
	})
}

func (handler *Send) SendContact(c *fiber.Ctx) error {
	var request domainSend.ContactRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.SendContact(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contact sent",
		Results: response,
	})
}

func (handler *Send) SendButtons(c *fiber.Ctx) error {
	var request domainSend.ButtonsRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.SendButtons(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Buttons sent",
		Results: response,
	})
}

func (handler *Send) SendList(c *fiber.Ctx) error {
	var request domainSend.ListRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	response, err := handler.Service.SendList(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "List sent",
		Results: response,
	})
}

func (handler *Send) React(c *fiber.Ctx) error {
	var request domainSend.ReactionRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	err := handler.Service.React(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Reaction sent",
	})
}

func (handler *Send) MarkRead(c *fiber.Ctx) error {
	var request domainSend.MarkReadRequest
	utils.PanicIfNeeded(c.BodyParser(&request))
	request.TenantID = c.Params("tenantId")

	err := handler.Service.MarkRead(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Messages marked as read",
	})
}
