package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/unibox-backend/database"
	"github.com/Ananth-NQI/unibox-backend/internal/config"
	"github.com/Ananth-NQI/unibox-backend/internal/handlers"
	"github.com/Ananth-NQI/unibox-backend/internal/jobs"
	"github.com/Ananth-NQI/unibox-backend/internal/lock"
	applog "github.com/Ananth-NQI/unibox-backend/internal/logger"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/realtime"
	"github.com/Ananth-NQI/unibox-backend/internal/routes"
	"github.com/Ananth-NQI/unibox-backend/internal/services"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			if err = godotenv.Load("environments/.env.development"); err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	applog.Init(cfg.LogLevel, cfg.LogFormat)
	slogger := applog.L

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Store
	if cfg.MemoryOnly {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		db, err := database.Connect(cfg.Database)
		if err != nil {
			log.Fatal(err)
		}

		log.Println("🔄 Running database migrations...")
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to migrate database: ", err)
		}
		log.Println("✅ Database migrations completed!")
		store = storage.NewDatabaseStore(db)
	}

	senders, mailbox := buildSenders(ctx, cfg, slogger)

	var media handlers.Uploader
	if cfg.AWS.S3Bucket != "" {
		awsCfg, err := services.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			log.Fatal("Failed to load AWS config: ", err)
		}
		media = services.NewMediaStore(awsCfg, cfg.AWS.S3Bucket, slogger)
		log.Printf("✅ Attachments stored in s3://%s", cfg.AWS.S3Bucket)
	}

	// Realtime fan-out and the scheduled batch lock are process-local
	// unless redis is configured.
	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis: ", err)
		}

		broker := realtime.NewRedisBroker(rdb, cfg.Redis.RealtimeChannel, hub, slogger)
		go func() {
			if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slogger.Error("realtime broker stopped", "error", err)
			}
		}()
		publisher = broker
		locker = lock.NewRedisLocker(rdb)
		log.Printf("✅ Redis connected at %s", cfg.Redis.Address)
	}

	// Initialize all services
	contacts := services.NewContactService(store, slogger)
	conversations := services.NewConversationReconciler(store)
	ledger := services.NewMessageLedger(store, slogger)
	inbound := services.NewInboundService(contacts, conversations, ledger, publisher, slogger)
	dispatcher := services.NewDispatcher(store, conversations, ledger, senders, slogger)
	processor := services.NewScheduledProcessor(store, conversations, ledger, senders, locker,
		cfg.Scheduler.BatchSize, cfg.Scheduler.LockTTL, slogger)

	var emailSync *services.EmailSyncService
	if mailbox != nil {
		emailSync = services.NewEmailSyncService(mailbox, inbound, ledger, slogger)
	}

	var scheduledJob *jobs.ScheduledSendJob
	if cfg.Scheduler.Cron != "" {
		scheduledJob = jobs.NewScheduledSendJob(processor, cfg.Scheduler.LockTTL, slogger)
		if err := scheduledJob.Start(cfg.Scheduler.Cron); err != nil {
			log.Fatal("Invalid SCHEDULED_SEND_CRON: ", err)
		}
	}

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:      "UniBox Backend v" + version,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-User-Role",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Health:        handlers.NewHealthHandler(version, store),
		Webhooks:      handlers.NewWebhookHandler(inbound, slogger),
		Messages:      handlers.NewMessageHandler(dispatcher),
		Conversations: handlers.NewConversationHandler(conversations, dispatcher),
		Contacts:      handlers.NewContactHandler(contacts),
		Notes:         handlers.NewNoteHandler(services.NewNoteService(store)),
		Scheduled:     handlers.NewScheduledHandler(processor),
		Sync:          handlers.NewSyncHandler(emailSync),
		Attachments:   handlers.NewAttachmentHandler(media, slogger),
		Analytics:     handlers.NewAnalyticsHandler(services.NewAnalyticsService(store)),
		Realtime:      handlers.NewRealtimeHandler(hub, slogger),
	}, cfg, slogger)

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		log.Println("\n🛑 Gracefully shutting down...")
		if scheduledJob != nil {
			log.Println("⏹️  Stopping scheduled send job...")
			scheduledJob.Stop()
		}
		log.Println("⏹️  Shutting down server...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Println("========================================")
	log.Printf("🚀 UniBox Backend starting on port %s", cfg.Server.Port)
	log.Printf("📊 Storage: %s", storageType(cfg))
	log.Printf("🌍 Environment: %s", cfg.Server.Environment)
	log.Printf("📱 SMS/WhatsApp: %s", configured(cfg.Twilio.Configured()))
	log.Printf("📧 Email: %s", emailStatus(cfg, senders))
	log.Printf("⏰ Scheduled sends: %s", schedulerStatus(cfg))
	log.Println("========================================")

	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal(err)
	}
}

// buildSenders registers a sender for every channel with credentials.
// The mailbox is returned when the mailer API can also list the inbox.
func buildSenders(ctx context.Context, cfg *config.Config, slogger *slog.Logger) (*services.SenderRegistry, services.Mailbox) {
	senders := services.NewSenderRegistry()

	if cfg.Twilio.Configured() {
		twilioService, err := services.NewTwilioService(cfg.Twilio, slogger)
		if err != nil {
			log.Fatal("Failed to initialize Twilio service: ", err)
		}
		senders.Register(models.ChannelSMS, twilioService.SMS())
		senders.Register(models.ChannelWhatsApp, twilioService.WhatsApp())
		log.Println("✅ Twilio service initialized")
	} else {
		log.Println("⚠️  Twilio credentials not found - SMS and WhatsApp sends disabled")
	}

	var mailbox services.Mailbox
	mailer := services.NewMailerClient(cfg.Email, slogger)
	if cfg.Email.InboundAPIURL != "" {
		mailbox = mailer
	}

	switch cfg.Email.Provider {
	case "ses":
		awsCfg, err := services.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			log.Fatal("Failed to load AWS config: ", err)
		}
		senders.Register(models.ChannelEmail, services.NewSESSender(awsCfg, cfg.Email, slogger))
	case "smtp":
		smtpSender, err := services.NewSMTPSender(cfg.Email, slogger)
		if err != nil {
			log.Fatal("Failed to initialize SMTP sender: ", err)
		}
		senders.Register(models.ChannelEmail, smtpSender)
	default:
		if cfg.Email.APIURL != "" && cfg.Email.APIKey != "" {
			senders.Register(models.ChannelEmail, mailer)
		} else {
			log.Println("⚠️  Email API not configured - email sends disabled")
		}
	}
	return senders, mailbox
}

func storageType(cfg *config.Config) string {
	if cfg.MemoryOnly {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func configured(ok bool) string {
	if ok {
		return "Configured"
	}
	return "Not configured"
}

func emailStatus(cfg *config.Config, senders *services.SenderRegistry) string {
	if _, ok := senders.Lookup(models.ChannelEmail); !ok {
		return "Not configured"
	}
	return "Configured (" + cfg.Email.Provider + ")"
}

func schedulerStatus(cfg *config.Config) string {
	if cfg.Scheduler.Cron == "" {
		return "external trigger only"
	}
	return "cron " + cfg.Scheduler.Cron
}
