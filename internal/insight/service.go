package insight

import (
	"sort"
	"time"

	"agrichain-backend/internal/database"
	"agrichain-backend/internal/models"
)

// testlerde sabitlenebilir saat (7 günlük pencere deterministik test edilsin)
var now = time.Now

const weekWindow = 7 * 24 * time.Hour

// RecentDeal - son kabul edilen ilanların özet görünümü
type RecentDeal struct {
	ListingID       uint
	CropVariety     string
	FinalPrice      *float64
	AcceptedAt      *time.Time
	FarmerName      string
	DistributorName string
	Quantity        float64
	Unit            string
}

// PriceInsights - bir ürün çeşidi için fiyat özeti. Nil alanlar "veri yok"
// anlamına gelir, sıfır fiyatla karışmasın diye pointer tutulur.
type PriceInsights struct {
	CropVariety              string
	AverageAcceptedPrice     *float64
	MinAcceptedPriceThisWeek *float64
	MaxAcceptedPriceThisWeek *float64
	RecentAccepted           []RecentDeal
	TotalDeals               int
	DealsThisWeek            int
}

func emptyInsights() *PriceInsights {
	return &PriceInsights{
		CropVariety:    "",
		RecentAccepted: []RecentDeal{},
	}
}

// acceptedTime - sıralama için acceptedAt, yoksa oluşturma zamanı
func acceptedTime(l *models.Listing) time.Time {
	if l.AcceptedAt != nil {
		return *l.AcceptedAt
	}
	return l.CreatedAt
}

// GetPriceInsightsForCrop - kapanan anlaşmalardan fiyat istatistikleri türetir.
// Ürün çeşidi verilmezse hata yerine boş varsayılan döner. "Kabul edilmiş"
// sayılmak için ilanın locked_in veya sold durumunda olması ve finalPrice
// taşıması gerekir. Haftalık pencere çağrı anından geriye sabit 7x24 saattir.
func GetPriceInsightsForCrop(cropVariety string) (*PriceInsights, error) {
	if cropVariety == "" {
		return emptyInsights(), nil
	}

	var listings []models.Listing
	if err := database.DB.
		Where("crop_variety = ? AND status IN ? AND final_price IS NOT NULL",
			cropVariety, []models.ListingStatus{models.ListingLockedIn, models.ListingSold}).
		Find(&listings).Error; err != nil {
		return nil, err
	}

	result := &PriceInsights{
		CropVariety:    cropVariety,
		RecentAccepted: []RecentDeal{},
		TotalDeals:     len(listings),
	}

	if len(listings) == 0 {
		return result, nil
	}

	nowTs := now()
	weekAgo := nowTs.Add(-weekWindow)

	var sum float64
	var minWeek, maxWeek *float64
	for i := range listings {
		l := &listings[i]
		price := *l.FinalPrice
		sum += price

		// acceptedAt'i olmayan kayıtlar haftalık pencereye girmez
		if l.AcceptedAt != nil && !l.AcceptedAt.Before(weekAgo) {
			result.DealsThisWeek++
			if minWeek == nil || price < *minWeek {
				p := price
				minWeek = &p
			}
			if maxWeek == nil || price > *maxWeek {
				p := price
				maxWeek = &p
			}
		}
	}

	avg := sum / float64(len(listings))
	result.AverageAcceptedPrice = &avg
	result.MinAcceptedPriceThisWeek = minWeek
	result.MaxAcceptedPriceThisWeek = maxWeek

	// En son kabul edilen 5 anlaşma
	sort.Slice(listings, func(i, j int) bool {
		return acceptedTime(&listings[i]).After(acceptedTime(&listings[j]))
	})
	recent := listings
	if len(recent) > 5 {
		recent = recent[:5]
	}

	for i := range recent {
		l := &recent[i]
		deal := RecentDeal{
			ListingID:   l.ID,
			CropVariety: l.CropVariety,
			FinalPrice:  l.FinalPrice,
			AcceptedAt:  l.AcceptedAt,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
		}

		var farmer models.User
		if err := database.DB.First(&farmer, "id = ?", l.FarmerID).Error; err == nil {
			deal.FarmerName = farmer.DisplayName()
		}
		if l.AcceptedBidID != nil {
			var bid models.Bid
			if err := database.DB.First(&bid, "id = ?", *l.AcceptedBidID).Error; err == nil {
				var distributor models.User
				if err := database.DB.First(&distributor, "id = ?", bid.DistributorID).Error; err == nil {
					deal.DistributorName = distributor.DisplayName()
				}
			}
		}

		result.RecentAccepted = append(result.RecentAccepted, deal)
	}

	return result, nil
}
