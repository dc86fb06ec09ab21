package marketplace

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"agrichain-backend/internal/apperr"
	"agrichain-backend/internal/auth"
	"agrichain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateListingBody struct {
	BatchID            string   `json:"batch_id"`
	Quantity           float64  `json:"quantity"`
	Unit               string   `json:"unit"`
	ExpectedPrice      float64  `json:"expected_price"`
	NegotiationAllowed bool     `json:"negotiation_allowed"`
	SpecialTerms       string   `json:"special_terms"`
	Description        string   `json:"description"`
	Images             []string `json:"images"`
}

type PlaceBidBody struct {
	PricePerUnit   float64  `json:"price_per_unit"`
	MinQuantity    *float64 `json:"min_quantity"`
	MaxQuantity    *float64 `json:"max_quantity"`
	PickupProposal string   `json:"pickup_proposal"`
	PaymentTerms   string   `json:"payment_terms"`
	Comments       string   `json:"comments"`
}

type AcceptBidBody struct {
	BidID uint `json:"bid_id"`
}

type FarmerSummary struct {
	Name     string `json:"name"`
	FarmName string `json:"farm_name"`
	Location string `json:"location"`
}

type DistributorSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type ListingResponse struct {
	ID                 uint     `json:"id"`
	BatchID            string   `json:"batch_id"`
	FarmerID           uint     `json:"farmer_id"`
	Quantity           float64  `json:"quantity"`
	Unit               string   `json:"unit"`
	ExpectedPrice      float64  `json:"expected_price"`
	NegotiationAllowed bool     `json:"negotiation_allowed"`
	SpecialTerms       string   `json:"special_terms,omitempty"`
	Description        string   `json:"description,omitempty"`
	Images             []string `json:"images"`
	Status             string   `json:"status"`
	AcceptedBidID      *uint    `json:"accepted_bid_id"`
	AcceptedAt         *int64   `json:"accepted_at"`
	FinalPrice         *float64 `json:"final_price"`
	Location           string   `json:"location,omitempty"`
	CropVariety        string   `json:"crop_variety"`
	CreatedAt          string   `json:"created_at"`
}

type BidResponse struct {
	ID             uint     `json:"id"`
	ListingID      uint     `json:"listing_id"`
	DistributorID  uint     `json:"distributor_id"`
	PricePerUnit   float64  `json:"price_per_unit"`
	MinQuantity    *float64 `json:"min_quantity"`
	MaxQuantity    *float64 `json:"max_quantity"`
	PickupProposal string   `json:"pickup_proposal,omitempty"`
	PaymentTerms   string   `json:"payment_terms,omitempty"`
	Comments       string   `json:"comments,omitempty"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
}

func toListingResponse(l *models.Listing) ListingResponse {
	var acceptedAt *int64
	if l.AcceptedAt != nil {
		ms := l.AcceptedAt.UnixMilli()
		acceptedAt = &ms
	}
	return ListingResponse{
		ID:                 l.ID,
		BatchID:            l.BatchID,
		FarmerID:           l.FarmerID,
		Quantity:           l.Quantity,
		Unit:               l.Unit,
		ExpectedPrice:      l.ExpectedPrice,
		NegotiationAllowed: l.NegotiationAllowed,
		SpecialTerms:       l.SpecialTerms,
		Description:        l.Description,
		Images:             decodeImages(l.Images),
		Status:             string(l.Status),
		AcceptedBidID:      l.AcceptedBidID,
		AcceptedAt:         acceptedAt,
		FinalPrice:         l.FinalPrice,
		Location:           l.Location,
		CropVariety:        l.CropVariety,
		CreatedAt:          l.CreatedAt.Format(time.RFC3339),
	}
}

func toBidResponse(b *models.Bid) BidResponse {
	return BidResponse{
		ID:             b.ID,
		ListingID:      b.ListingID,
		DistributorID:  b.DistributorID,
		PricePerUnit:   b.PricePerUnit,
		MinQuantity:    b.MinQuantity,
		MaxQuantity:    b.MaxQuantity,
		PickupProposal: b.PickupProposal,
		PaymentTerms:   b.PaymentTerms,
		Comments:       b.Comments,
		Status:         string(b.Status),
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
	}
}

func toFarmerSummary(u *models.User) *FarmerSummary {
	if u == nil {
		return nil
	}
	return &FarmerSummary{Name: u.Name, FarmName: u.FarmName, Location: u.Location}
}

func toDistributorSummary(u *models.User) *DistributorSummary {
	if u == nil {
		return nil
	}
	return &DistributorSummary{Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

func httpError(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return fiber.NewError(apperr.HTTPStatus(e), e.Message)
	}
	return err
}

// -------------------------
// Handlers
// -------------------------

// POST /api/listings
func CreateListingHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body CreateListingBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		if strings.TrimSpace(body.BatchID) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "batch_id zorunlu")
		}
		if body.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity 0'dan büyük olmalı")
		}
		if strings.TrimSpace(body.Unit) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "unit boş olamaz")
		}
		if body.ExpectedPrice <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "expected_price 0'dan büyük olmalı")
		}

		listing, err := CreateListing(caller, CreateListingRequest{
			BatchID:            strings.TrimSpace(body.BatchID),
			Quantity:           body.Quantity,
			Unit:               strings.TrimSpace(body.Unit),
			ExpectedPrice:      body.ExpectedPrice,
			NegotiationAllowed: body.NegotiationAllowed,
			SpecialTerms:       strings.TrimSpace(body.SpecialTerms),
			Description:        strings.TrimSpace(body.Description),
			Images:             body.Images,
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(toListingResponse(listing))
	}
}

// GET /api/listings?crop_variety=...
func ListOpenListingsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		listings, err := ListOpenListings(c.Query("crop_variety"))
		if err != nil {
			return httpError(err)
		}

		type item struct {
			ListingResponse
			Farmer *FarmerSummary `json:"farmer"`
		}
		resp := make([]item, 0, len(listings))
		for i := range listings {
			resp = append(resp, item{
				ListingResponse: toListingResponse(&listings[i].Listing),
				Farmer:          toFarmerSummary(listings[i].Farmer),
			})
		}
		return c.JSON(resp)
	}
}

// GET /api/listings/mine
func MyListingsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		listings, err := GetMyListings(caller)
		if err != nil {
			return httpError(err)
		}

		type acceptedBid struct {
			BidResponse
			Distributor *DistributorSummary `json:"distributor"`
		}
		type item struct {
			ListingResponse
			AcceptedBid *acceptedBid `json:"accepted_bid"`
		}
		resp := make([]item, 0, len(listings))
		for i := range listings {
			it := item{ListingResponse: toListingResponse(&listings[i].Listing)}
			if ab := listings[i].AcceptedBid; ab != nil {
				it.AcceptedBid = &acceptedBid{
					BidResponse: toBidResponse(&ab.Bid),
					Distributor: toDistributorSummary(ab.Distributor),
				}
			}
			resp = append(resp, it)
		}
		return c.JSON(resp)
	}
}

// GET /api/listings/:id
func ListingDetailsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var listingID uint
		if _, err := fmt.Sscan(c.Params("id"), &listingID); err != nil || listingID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ilan ID")
		}

		details, err := GetListingDetails(listingID)
		if err != nil {
			return httpError(err)
		}
		if details == nil {
			return c.JSON(nil)
		}

		type bidItem struct {
			BidResponse
			Distributor *DistributorSummary `json:"distributor"`
		}
		bids := make([]bidItem, 0, len(details.Bids))
		for i := range details.Bids {
			bids = append(bids, bidItem{
				BidResponse: toBidResponse(&details.Bids[i].Bid),
				Distributor: toDistributorSummary(details.Bids[i].Distributor),
			})
		}

		resp := fiber.Map{
			"listing": toListingResponse(&details.Listing),
			"farmer":  toFarmerSummary(details.Farmer),
			"bids":    bids,
		}
		if details.Batch != nil {
			resp["batch"] = fiber.Map{
				"batch_id":      details.Batch.BatchID,
				"crop_variety":  details.Batch.CropVariety,
				"quantity":      details.Batch.Quantity,
				"unit":          details.Batch.Unit,
				"quality_grade": details.Batch.QualityGrade,
				"harvest_date":  details.Batch.HarvestDate.UnixMilli(),
				"status":        string(details.Batch.Status),
				"farm_location": details.Batch.FarmLocation,
			}
		} else {
			resp["batch"] = nil
		}

		return c.JSON(resp)
	}
}

// POST /api/listings/:id/bids
func PlaceBidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var listingID uint
		if _, err := fmt.Sscan(c.Params("id"), &listingID); err != nil || listingID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ilan ID")
		}

		var body PlaceBidBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if body.PricePerUnit <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "price_per_unit 0'dan büyük olmalı")
		}

		bid, err := PlaceBid(caller, listingID, PlaceBidRequest{
			PricePerUnit:   body.PricePerUnit,
			MinQuantity:    body.MinQuantity,
			MaxQuantity:    body.MaxQuantity,
			PickupProposal: strings.TrimSpace(body.PickupProposal),
			PaymentTerms:   strings.TrimSpace(body.PaymentTerms),
			Comments:       strings.TrimSpace(body.Comments),
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(toBidResponse(bid))
	}
}

// GET /api/bids/mine
func MyBidsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		bids, err := GetMyBids(caller)
		if err != nil {
			return httpError(err)
		}

		type listingItem struct {
			ListingResponse
			Farmer *FarmerSummary `json:"farmer"`
		}
		type item struct {
			BidResponse
			Listing *listingItem `json:"listing"`
		}
		resp := make([]item, 0, len(bids))
		for i := range bids {
			it := item{BidResponse: toBidResponse(&bids[i].Bid)}
			if bids[i].Listing != nil {
				it.Listing = &listingItem{
					ListingResponse: toListingResponse(bids[i].Listing),
					Farmer:          toFarmerSummary(bids[i].Farmer),
				}
			}
			resp = append(resp, it)
		}
		return c.JSON(resp)
	}
}

// POST /api/listings/:id/accept-bid
func AcceptBidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var listingID uint
		if _, err := fmt.Sscan(c.Params("id"), &listingID); err != nil || listingID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ilan ID")
		}

		var body AcceptBidBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if body.BidID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "bid_id zorunlu")
		}

		listing, err := AcceptBid(caller, listingID, body.BidID)
		if err != nil {
			return httpError(err)
		}

		return c.JSON(toListingResponse(listing))
	}
}
