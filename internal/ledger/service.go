package ledger

import (
	"fmt"

	"agrichain-backend/internal/models"

	"gorm.io/gorm"
)

// EntryOptions - tek bir ledger kaydının alanları. Her durum değişikliği tam
// olarak bir kayıt üretir; kayıtlar sonradan güncellenmez ve silinmez.
type EntryOptions struct {
	BatchID        string
	FromUserID     uint
	ToUserID       uint
	Type           models.TransactionType
	PreviousStatus *models.BatchStatus
	NewStatus      models.BatchStatus
	Price          *float64
	Notes          string

	// Lojistik bilgileri (sadece transfer kayıtlarında dolu)
	TransportMode string
	StorageInfo   string
	Destination   string
}

// Write - kaydı verilen gorm handle'ı üzerinden ekler. Mutasyonla aynı
// veritabanı transaction'ı içinde çağrılmalıdır ki parti güncellemesi ile
// ledger kaydı ya birlikte yazılsın ya da hiç yazılmasın.
func Write(tx *gorm.DB, opts EntryOptions) error {
	entry := models.Transaction{
		BatchID:        opts.BatchID,
		FromUserID:     opts.FromUserID,
		ToUserID:       opts.ToUserID,
		Type:           opts.Type,
		PreviousStatus: opts.PreviousStatus,
		NewStatus:      opts.NewStatus,
		Price:          opts.Price,
		Notes:          opts.Notes,
		TransportMode:  opts.TransportMode,
		StorageInfo:    opts.StorageInfo,
		Destination:    opts.Destination,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("ledger kaydı yazılamadı: %w", err)
	}

	return nil
}
