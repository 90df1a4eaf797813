package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/auth"
	"github.com/fathima-sithara/messaging-service/internal/config"
	"github.com/fathima-sithara/messaging-service/internal/service"
	ws "github.com/fathima-sithara/messaging-service/internal/ws"
)

func NewServer(cfg *config.Config, svc *service.MessageService, wsrv *ws.Server, delivery Deliverer, uploader Uploader, jv *auth.Validator, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.S3.MaxUploadBytes) + 1024*1024,
	})
	app.Use(fiberlogger.New())

	h := NewHandlers(svc, delivery, uploader, cfg.S3.MaxUploadBytes, log)
	limiter := NewIPRateLimiter(cfg.App.RateLimitPerMin, log)

	v1 := app.Group("/api/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authed := v1.Group("", RequireAuth(jv))

	authed.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	authed.Get("/ws", websocket.New(wsrv.HandleWS))

	msg := authed.Group("/message", limiter.Handler())
	msg.Post("/send", h.sendMessage)
	msg.Get("/all/:otherUserId", h.getMessages)
	msg.Get("/conversations", h.getConversations)
	msg.Patch("/:messageId", h.editMessage)

	return app
}
