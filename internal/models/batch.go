package models

import "time"

// BatchStatus - partinin tedarik zincirindeki durumu
type BatchStatus string

const (
	BatchCreated                BatchStatus = "created"
	BatchInTransitToDistributor BatchStatus = "in_transit_to_distributor"
	BatchWithDistributor        BatchStatus = "with_distributor"
	BatchInTransitToRetailer    BatchStatus = "in_transit_to_retailer"
	BatchWithRetailer           BatchStatus = "with_retailer"
	BatchSold                   BatchStatus = "sold"
)

func (s BatchStatus) Valid() bool {
	switch s {
	case BatchCreated, BatchInTransitToDistributor, BatchWithDistributor,
		BatchInTransitToRetailer, BatchWithRetailer, BatchSold:
		return true
	}
	return false
}

// Batch - zincirde izlenen ürün partisi. Kayıtlar hiçbir zaman silinmez,
// izlenebilirlik tüm geçmişin kalıcı olmasını gerektirir.
type Batch struct {
	ID      uint   `gorm:"primaryKey"`
	BatchID string `gorm:"size:40;uniqueIndex;not null"` // BATCH_<ts36>_<rand36> formatında
	FarmerID uint  `gorm:"index;not null"`
	Farmer   User  `gorm:"foreignKey:FarmerID"`

	// Ürün bilgileri
	CropVariety   string    `gorm:"size:100;index;not null"`
	Quantity      float64   `gorm:"not null"`
	Unit          string    `gorm:"size:20;not null"` // kg, ton vs.
	QualityGrade  string    `gorm:"size:30;not null"`
	HarvestDate   time.Time `gorm:"not null"`
	ExpectedPrice float64   `gorm:"not null"`
	FarmLocation  string    `gorm:"size:150"`
	Notes         string    `gorm:"size:500"`
	ShelfLocation string    `gorm:"size:100"` // perakendeci raf bilgisi

	// Mevcut durum ve sahiplik
	Status         BatchStatus `gorm:"size:30;index;not null"`
	CurrentOwnerID uint        `gorm:"index;not null"`
	// Devir başlatıldı ama henüz kabul edilmedi (perakendeci devri)
	PendingOwnerID *uint `gorm:"index"`

	// El değiştirme başına kaydedilen fiyatlar
	FarmerPrice      *float64
	DistributorPrice *float64
	RetailPrice      *float64

	// QR izleme URL'i (<site>/trace/<batchId>)
	QRCode string `gorm:"size:255;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
