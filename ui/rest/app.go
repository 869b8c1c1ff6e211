package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bizlinkhq/wa-engine/core/config"
	domainApp "github.com/bizlinkhq/wa-engine/domains/app"
	"github.com/bizlinkhq/wa-engine/pkg/utils"
)

type App struct {
	Service domainApp.IAppUsecase
}

func InitRestApp(app fiber.Router, service domainApp.IAppUsecase) App {
	rest := App{Service: service}
	app.Get("/app/:tenantId/connect", rest.Connect)
	app.Get("/app/:tenantId/disconnect", rest.Disconnect)
	app.Get("/app/:tenantId/reset", rest.Reset)
	app.Get("/app/:tenantId/status", rest.Status)
	app.Get("/app/:tenantId/qr", rest.QR)
	app.Get("/app/version", rest.GetVersion)

	return rest
}

func (handler *App) GetVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": config.Global.App.Version,
	})
}

func (handler *App) Connect(c *fiber.Ctx) error {
	response, err := handler.Service.Connect(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Connect requested",
		Results: response,
	})
}

func (handler *App) Disconnect(c *fiber.Ctx) error {
	response, err := handler.Service.Disconnect(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session disconnected",
		Results: response,
	})
}

func (handler *App) Reset(c *fiber.Ctx) error {
	response, err := handler.Service.Reset(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session reset",
		Results: response,
	})
}

func (handler *App) Status(c *fiber.Ctx) error {
	response, err := handler.Service.Status(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session status",
		Results: response,
	})
}

func (handler *App) QR(c *fiber.Ctx) error {
	png, err := handler.Service.QRImage(c.UserContext(), c.Params("tenantId"), c.QueryInt("size", 256))
	utils.PanicIfNeeded(err)

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
