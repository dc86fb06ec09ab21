package models

import "time"

// ListingStatus - ilanın pazar yeri durumu (partinin zincir durumundan bağımsız)
type ListingStatus string

const (
	ListingOpen     ListingStatus = "open"
	ListingLockedIn ListingStatus = "locked_in"
	ListingSold     ListingStatus = "sold"
)

// Listing - çiftçinin bir partiyi satışa çıkarması. Bir parti için aynı anda
// en fazla bir açık ilan bulunabilir. İlanlar silinmez.
type Listing struct {
	ID       uint   `gorm:"primaryKey"`
	BatchID  string `gorm:"size:40;index;not null"`
	FarmerID uint   `gorm:"index;not null"`
	Farmer   User   `gorm:"foreignKey:FarmerID"`

	Quantity      float64 `gorm:"not null"`
	Unit          string  `gorm:"size:20;not null"`
	ExpectedPrice float64 `gorm:"not null"`

	NegotiationAllowed bool   `gorm:"default:false"`
	SpecialTerms       string `gorm:"size:500"`
	Description        string `gorm:"size:1000"`
	Images             string `gorm:"type:jsonb"` // görsel URL listesi (JSON dizi)

	Status        ListingStatus `gorm:"size:20;index;not null"`
	AcceptedBidID *uint
	AcceptedAt    *time.Time `gorm:"index"`
	FinalPrice    *float64

	// Partiden / çiftçiden denormalize alanlar
	Location    string `gorm:"size:150"`
	CropVariety string `gorm:"size:100;index;not null"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
