package main

import (
	"log"
	"strings"

	"agrichain-backend/internal/auth"
	"agrichain-backend/internal/batch"
	"agrichain-backend/internal/config"
	"agrichain-backend/internal/database"
	"agrichain-backend/internal/insight"
	"agrichain-backend/internal/ledger"
	"agrichain-backend/internal/marketplace"
	"agrichain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Uyarı: .env dosyası bulunamadı, sistem environment değişkenleri kullanılıyor")
	}

	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	app.Use(logger.New())

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// QR izleme ucu herkese açık: tüketici telefonuyla tarayıp geçmişi görür
	api.Get("/trace/:batchId", batch.TraceBatchHandler())

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())
	protected.Get("/users", auth.ListUsersByRoleHandler())

	// Parti yaşam döngüsü
	protected.Post("/batches", batch.CreateBatchHandler(cfg))
	protected.Get("/batches", batch.ListUserBatchesHandler())
	protected.Get("/batches/pending", batch.ListPendingBatchesHandler())
	protected.Post("/batches/:batchId/transfer", batch.TransferBatchHandler())
	protected.Post("/batches/:batchId/accept-from-farmer", batch.AcceptBatchFromFarmerHandler())
	protected.Post("/batches/:batchId/retailer-accept", batch.RetailerAcceptBatchHandler())
	protected.Put("/batches/:batchId/status", batch.UpdateBatchStatusHandler())

	// Pazar yeri
	protected.Post("/listings", marketplace.CreateListingHandler())
	protected.Get("/listings", marketplace.ListOpenListingsHandler())
	protected.Get("/listings/mine", marketplace.MyListingsHandler())
	protected.Get("/listings/:id", marketplace.ListingDetailsHandler())
	protected.Post("/listings/:id/bids", marketplace.PlaceBidHandler())
	protected.Post("/listings/:id/accept-bid", marketplace.AcceptBidHandler())
	protected.Get("/bids/mine", marketplace.MyBidsHandler())

	// Fiyat içgörüleri
	protected.Get("/price-insights", insight.PriceInsightsHandler())

	// Ledger görünümü (denetim)
	ledgerRoutes := protected.Group("/ledger")
	ledgerRoutes.Use(auth.RequireRole(models.RoleGovernment, models.RoleAdmin))
	ledgerRoutes.Get("/", ledger.ListEntriesHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
