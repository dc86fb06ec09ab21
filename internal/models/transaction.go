package models

import "time"

// TransactionType - ledger kaydının türü
type TransactionType string

const (
	TxCreation       TransactionType = "creation"
	TxTransfer       TransactionType = "transfer"
	TxStatusUpdate   TransactionType = "status_update"
	TxListingCreated TransactionType = "listing_created"
	TxBidPlaced      TransactionType = "bid_placed"
	TxOrderCreated   TransactionType = "order_created"
)

// Transaction - parti üzerindeki her durum değişikliğinin değiştirilemez
// kaydı. Asla güncellenmez ve silinmez; her mutasyon aynı veritabanı
// transaction'ı içinde tam olarak bir kayıt üretir.
type Transaction struct {
	ID         uint   `gorm:"primaryKey"`
	BatchID    string `gorm:"size:40;index;not null"`
	FromUserID uint   `gorm:"index;not null"`
	ToUserID   uint   `gorm:"index;not null"`

	Type           TransactionType `gorm:"size:30;index;not null"`
	PreviousStatus *BatchStatus    `gorm:"size:30"`
	NewStatus      BatchStatus     `gorm:"size:30;not null"`
	Price          *float64
	Notes          string `gorm:"size:500"`

	// Lojistik bilgileri (dağıtıcı teslim alma akışı)
	TransportMode string `gorm:"size:50"`
	StorageInfo   string `gorm:"size:150"`
	Destination   string `gorm:"size:150"`

	CreatedAt time.Time `gorm:"index"`
}
