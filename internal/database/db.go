package database

import (
	"log"

	"agrichain-backend/internal/config"
	"agrichain-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate - şemayı günceller. Testler aynı migration'ı kendi bağlantıları
// üzerinde çalıştırır.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Batch{},
		&models.Transaction{}, // ledger: sadece insert edilir
		&models.Listing{},
		&models.Bid{},
	)
}
