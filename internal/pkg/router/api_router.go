package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/portraitforge/portraitforge/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	v1.Get("/credits", controllers.HandleGetCredits)

	v1.Post("/generations", controllers.HandleSubmitGeneration)
	v1.Get("/generations/:id", controllers.HandlePollGeneration)

	v1.Post("/downloads", controllers.HandleCreateDownload)
	v1.Get("/downloads/:token", controllers.HandleRedeemDownload)

	// Webhooks carry their own HMAC auth, no session involved
	v1.Post("/payments/webhook", controllers.HandlePaymentWebhook)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
