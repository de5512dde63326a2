package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/handlers"
	"github.com/fivlabs/fivapp-backend/internal/middleware"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/services"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// Deps carries everything the route tree needs.
type Deps struct {
	Store     storage.Store
	Gateway   services.Gateway
	Pipeline  *services.Pipeline
	Responder *services.AutoResponder
	Notifier  realtime.Notifier
	Hub       *realtime.Hub
	JWTSecret string
	Log       *logrus.Logger
}

// Setup configures all API routes.
func Setup(app *fiber.App, deps Deps) {
	webhookHandler := handlers.NewWebhookHandler(deps.Pipeline, deps.Log)
	whatsappHandler := handlers.NewWhatsAppHandler(deps.Store, deps.Gateway, deps.Notifier, deps.Log)
	conversationHandler := handlers.NewConversationHandler(deps.Store, deps.Gateway, deps.Notifier, deps.Responder, deps.Log)
	authHandler := handlers.NewAuthHandler(deps.Store, deps.JWTSecret, deps.Log)
	aiConfigHandler := handlers.NewAIConfigHandler(deps.Store, deps.Responder, deps.Log)
	healthHandler := handlers.NewHealthHandler(deps.Gateway)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Fi.V App Backend",
			"version": "1.0.0",
		})
	})
	app.Get("/health", healthHandler.Check)

	// Provider webhooks, guarded by the shared secret
	webhooks := app.Group("/webhook", middleware.ValidateWebhookSecret(deps.Log))
	webhooks.Post("/evolution", webhookHandler.HandleEvolution)
	webhooks.Post("/waha/:tenantId", webhookHandler.HandleWaha)

	// Public auth
	app.Post("/api/auth/login", authHandler.Login)

	// Dashboard API
	api := app.Group("/api", middleware.RequireAuth(deps.JWTSecret))

	api.Get("/auth/me", authHandler.Me)
	api.Post("/users", authHandler.CreateUser)
	api.Get("/users", authHandler.ListUsers)
	api.Post("/queues", authHandler.CreateQueue)
	api.Get("/queues", authHandler.ListQueues)

	api.Get("/clients", conversationHandler.ListClients)
	api.Post("/clients", conversationHandler.CreateClient)
	api.Put("/clients/:id", conversationHandler.UpdateClient)

	conversations := api.Group("/conversations")
	conversations.Get("/", conversationHandler.List)
	conversations.Get("/:id", conversationHandler.Get)
	conversations.Get("/:id/messages", conversationHandler.Messages)
	conversations.Post("/:id/messages", conversationHandler.SendMessage)
	conversations.Post("/:id/read", conversationHandler.MarkRead)
	conversations.Patch("/:id/status", conversationHandler.UpdateStatus)

	connections := api.Group("/whatsapp/connections")
	connections.Post("/", whatsappHandler.CreateConnection)
	connections.Get("/", whatsappHandler.ListConnections)
	connections.Get("/:id", whatsappHandler.GetConnection)
	connections.Post("/:id/connect", whatsappHandler.ConnectConnection)
	connections.Get("/:id/status", whatsappHandler.GetConnectionStatus)
	connections.Delete("/:id", whatsappHandler.DeleteConnection)

	api.Get("/whatsapp/instances", whatsappHandler.ListInstances)

	api.Get("/ai-config/:tenantId", aiConfigHandler.Get)
	api.Put("/ai-config/:tenantId", aiConfigHandler.Save)

	// Realtime dashboard feed
	deps.Hub.RegisterRoutes(app)
}
