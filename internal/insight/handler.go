package insight

import (
	"errors"

	"agrichain-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

type RecentDealResponse struct {
	ListingID       uint     `json:"listing_id"`
	CropVariety     string   `json:"crop_variety"`
	FinalPrice      *float64 `json:"final_price"`
	AcceptedAt      *int64   `json:"accepted_at"`
	FarmerName      string   `json:"farmer_name"`
	DistributorName string   `json:"distributor_name"`
	Quantity        float64  `json:"quantity"`
	Unit            string   `json:"unit"`
}

type PriceInsightsResponse struct {
	CropVariety              string               `json:"crop_variety"`
	AverageAcceptedPrice     *float64             `json:"average_accepted_price"`
	MinAcceptedPriceThisWeek *float64             `json:"min_accepted_price_this_week"`
	MaxAcceptedPriceThisWeek *float64             `json:"max_accepted_price_this_week"`
	RecentAccepted           []RecentDealResponse `json:"recent_accepted"`
	TotalDeals               int                  `json:"total_deals"`
	DealsThisWeek            int                  `json:"deals_this_week"`
}

// GET /api/price-insights?crop_variety=...
func PriceInsightsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		insights, err := GetPriceInsightsForCrop(c.Query("crop_variety"))
		if err != nil {
			var e *apperr.Error
			if errors.As(err, &e) {
				return fiber.NewError(apperr.HTTPStatus(e), e.Message)
			}
			return err
		}

		resp := PriceInsightsResponse{
			CropVariety:              insights.CropVariety,
			AverageAcceptedPrice:     insights.AverageAcceptedPrice,
			MinAcceptedPriceThisWeek: insights.MinAcceptedPriceThisWeek,
			MaxAcceptedPriceThisWeek: insights.MaxAcceptedPriceThisWeek,
			RecentAccepted:           make([]RecentDealResponse, 0, len(insights.RecentAccepted)),
			TotalDeals:               insights.TotalDeals,
			DealsThisWeek:            insights.DealsThisWeek,
		}
		for _, deal := range insights.RecentAccepted {
			var acceptedAt *int64
			if deal.AcceptedAt != nil {
				ms := deal.AcceptedAt.UnixMilli()
				acceptedAt = &ms
			}
			resp.RecentAccepted = append(resp.RecentAccepted, RecentDealResponse{
				ListingID:       deal.ListingID,
				CropVariety:     deal.CropVariety,
				FinalPrice:      deal.FinalPrice,
				AcceptedAt:      acceptedAt,
				FarmerName:      deal.FarmerName,
				DistributorName: deal.DistributorName,
				Quantity:        deal.Quantity,
				Unit:            deal.Unit,
			})
		}

		return c.JSON(resp)
	}
}
