package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/database"
	"github.com/fivlabs/fivapp-backend/internal/jobs"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/routes"
	"github.com/fivlabs/fivapp-backend/internal/services"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Info("⚠️ No .env file found, using environment variables")
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	// Storage
	var store storage.Store
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Warn("⚠️ Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Info("📦 Connecting to PostgreSQL database...")
		db, err := database.Connect()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		dbStore := storage.NewDatabaseStore(db)
		log.Info("🔄 Running database migrations...")
		if err := dbStore.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Info("✅ Database ready")
		store = dbStore
	}

	// WhatsApp gateway
	var gateway services.Gateway
	if os.Getenv("WHATSAPP_PROVIDER") == "waha" {
		gateway = services.NewWahaService(os.Getenv("WAHA_API_URL"), os.Getenv("WAHA_API_KEY"), log)
		log.Info("📱 Using WAHA WhatsApp gateway")
	} else {
		gateway = services.NewEvolutionService(os.Getenv("EVOLUTION_API_URL"), os.Getenv("EVOLUTION_API_KEY"), log)
		log.Info("📱 Using Evolution API WhatsApp gateway")
	}

	// Realtime notifiers
	hub := realtime.NewHub(log)
	go hub.Run()

	var notifier realtime.Notifier = hub
	var amqpNotifier *realtime.AMQPNotifier
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		queue := os.Getenv("RABBITMQ_QUEUE")
		if queue == "" {
			queue = "fivapp_events"
		}
		var err error
		amqpNotifier, err = realtime.NewAMQPNotifier(url, queue, log)
		if err != nil {
			log.Errorf("❌ RabbitMQ unavailable, events stay local: %v", err)
		} else {
			notifier = realtime.MultiNotifier{hub, amqpNotifier}
		}
	}

	// Chatbot and ingestion pipeline
	responder := services.NewAutoResponder(store, gateway, notifier, log)
	pipeline := services.NewPipeline(store, notifier, responder, log)

	// Background jobs
	cleanupJob := jobs.NewCleanupJob(store, notifier, log)
	cleanupJob.Start()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Warn("⚠️ JWT_SECRET not set, using insecure default")
		jwtSecret = "insecure-dev-secret"
	}

	app := fiber.New(fiber.Config{
		AppName: "Fi.V App Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Webhook-Secret",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	routes.Setup(app, routes.Deps{
		Store:     store,
		Gateway:   gateway,
		Pipeline:  pipeline,
		Responder: responder,
		Notifier:  notifier,
		Hub:       hub,
		JWTSecret: jwtSecret,
		Log:       log,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("🛑 Gracefully shutting down...")
		cleanupJob.Stop()
		hub.Stop()
		if amqpNotifier != nil {
			amqpNotifier.Close()
		}
		_ = app.Shutdown()
	}()

	log.Infof("🚀 Fi.V App Backend starting on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
