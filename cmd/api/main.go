package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"questlog_backend/internal/controller"
	"questlog_backend/internal/gamedata"
	"questlog_backend/internal/ledger"
	"questlog_backend/internal/middleware"
	"questlog_backend/internal/model"
	"questlog_backend/internal/oauth"
	"questlog_backend/internal/payments"
	"questlog_backend/internal/ratelimit"
	"questlog_backend/pkg/config"
	"questlog_backend/pkg/cron"
	"questlog_backend/pkg/database"
	"questlog_backend/pkg/entitlement"
	"questlog_backend/pkg/utils/jwt"
	"questlog_backend/pkg/utils/storage"
)

type controllers struct {
	auth     *controller.AuthController
	payment  *controller.PaymentController
	webhook  *controller.WebhookController
	download *controller.DownloadController
	game     *controller.GameController
}

func setupRoutes(app *fiber.App, ctrl controllers, store *ledger.Store) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", ctrl.auth.Register)
	auth.Post("/login", ctrl.auth.Login)
	auth.Get("/:provider", ctrl.auth.OAuthRedirect)
	auth.Get("/:provider/callback", ctrl.auth.OAuthCallback)

	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", ctrl.auth.GetMe)

	// Game content routes (premium guides behind entitlement check)
	games := api.Group("/games")
	games.Get("/", ctrl.game.ListGames)
	games.Get("/:game_id/guides/:category",
		middleware.AuthMiddleware(),
		middleware.CheckFeatureAccess(store, entitlement.PremiumGuides),
		ctrl.game.Search)
	games.Get("/:game_id/:category", ctrl.game.Search)
	games.Get("/:game_id/:category/:id", ctrl.game.Get)

	// Payment routes
	paymentsGroup := api.Group("/payments")
	paymentsGroup.Get("/config", ctrl.payment.GetConfig)

	paymentsProtected := paymentsGroup.Use(middleware.AuthMiddleware())
	paymentsProtected.Post("/create-subscription", ctrl.payment.CreateSubscription)
	paymentsProtected.Post("/purchase-game", ctrl.payment.PurchaseGame)
	paymentsProtected.Post("/cancel", ctrl.payment.CancelSubscription)
	paymentsProtected.Get("/subscription", ctrl.payment.GetMySubscription)
	paymentsProtected.Get("/purchases", ctrl.payment.ListPurchases)

	// Download routes; the gate does its own auth so a CSRF failure can be
	// reported before credentials are touched
	api.Get("/download/token", middleware.AuthMiddleware(), ctrl.download.GetCSRFToken)
	api.Get("/download/:version", ctrl.download.Download)

	// Stripe webhook
	api.Post("/webhook", ctrl.webhook.HandleStripeWebhook)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	jwt.Init(cfg.JWT.Secret)

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db,
		&model.User{},
		&model.UserSubscription{},
		&model.Purchase{},
		&model.DownloadAttempt{},
		&model.WebhookEvent{},
	); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	store := ledger.New(db)

	objectStorage, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal("Could not initialize object storage:", err)
	}

	provider := payments.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.PriceID, cfg.Stripe.TrialDays)

	oauthProviders := map[string]oauth.Provider{
		"google":  oauth.NewGoogle(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), os.Getenv("GOOGLE_REDIRECT_URL")),
		"github":  oauth.NewGitHub(os.Getenv("GITHUB_CLIENT_ID"), os.Getenv("GITHUB_CLIENT_SECRET"), os.Getenv("GITHUB_REDIRECT_URL")),
		"discord": oauth.NewDiscord(os.Getenv("DISCORD_CLIENT_ID"), os.Getenv("DISCORD_CLIENT_SECRET"), os.Getenv("DISCORD_REDIRECT_URL")),
		"twitch":  oauth.NewTwitch(os.Getenv("TWITCH_CLIENT_ID"), os.Getenv("TWITCH_CLIENT_SECRET"), os.Getenv("TWITCH_REDIRECT_URL")),
	}

	gameData := gamedata.NewStore(cfg.GameData.Dir)
	defer gameData.Close()

	ctrl := controllers{
		auth:     controller.NewAuthController(store, oauthProviders),
		payment:  controller.NewPaymentController(store, provider, cfg.Stripe.PublishableKey),
		webhook:  controller.NewWebhookController(store, cfg.Stripe.WebhookSecret),
		download: controller.NewDownloadController(store, ratelimit.New(store), objectStorage, cfg.JWT.Secret),
		game:     controller.NewGameController(gameData),
	}

	cron.InitDownloadCleanupCron(store)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, ctrl, store)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
