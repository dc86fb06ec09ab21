package models

import "time"

// BidStatus - teklifin durumu; accepted ve rejected uç durumlardır
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

// Bid - dağıtıcının açık bir ilana verdiği teklif. Bir ilanda en fazla bir
// teklif accepted olabilir; ilan open durumundan çıktıktan sonra yeni teklif
// alınmaz. Teklifler silinmez.
type Bid struct {
	ID            uint `gorm:"primaryKey"`
	ListingID     uint `gorm:"index;not null"`
	DistributorID uint `gorm:"index;not null"`
	Distributor   User `gorm:"foreignKey:DistributorID"`

	PricePerUnit float64  `gorm:"not null"`
	MinQuantity  *float64
	MaxQuantity  *float64

	PickupProposal string `gorm:"size:300"`
	PaymentTerms   string `gorm:"size:300"`
	Comments       string `gorm:"size:500"`

	Status BidStatus `gorm:"size:20;index;not null"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
