package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"agrichain-backend/internal/database"
	"agrichain-backend/internal/models"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB - test başına tek kullanımlık Postgres container'ı ayağa
// kaldırır, şemayı migrate eder ve global database.DB'yi bu bağlantıya
// yönlendirir. Servisler global handle üzerinden çalıştığı için testler
// ekstra kablolama gerektirmez.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Postgres container başlatılamadı: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Container host alınamadı: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Container port alınamadı: %v", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Port())

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migration hatası: %v", err)
	}

	database.DB = db

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Container kapatılamadı: %v", err)
		}
	})

	return db
}

// CreateUser - test kullanıcısı ekler
func CreateUser(t *testing.T, db *gorm.DB, name, email string, role models.UserRole) *models.User {
	t.Helper()

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Test kullanıcısı oluşturulamadı: %v", err)
	}
	return &user
}
