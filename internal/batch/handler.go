package batch

import (
	"errors"
	"strings"
	"time"

	"agrichain-backend/internal/apperr"
	"agrichain-backend/internal/auth"
	"agrichain-backend/internal/config"
	"agrichain-backend/internal/ledger"
	"agrichain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateBatchBody struct {
	CropVariety   string  `json:"crop_variety"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	QualityGrade  string  `json:"quality_grade"`
	HarvestDate   int64   `json:"harvest_date"` // epoch milisaniye
	ExpectedPrice float64 `json:"expected_price"`
	FarmLocation  string  `json:"farm_location"`
	Notes         string  `json:"notes"`
}

type TransferBody struct {
	ToUserID uint     `json:"to_user_id"`
	Price    *float64 `json:"price"`
	Notes    string   `json:"notes"`
}

type AcceptFromFarmerBody struct {
	Price         *float64 `json:"price"`
	TransportMode string   `json:"transport_mode"`
	StorageInfo   string   `json:"storage_info"`
	Destination   string   `json:"destination"`
	Notes         string   `json:"notes"`
}

type RetailerAcceptBody struct {
	Notes string `json:"notes"`
}

type StatusUpdateBody struct {
	Status        string   `json:"status"`
	RetailPrice   *float64 `json:"retail_price"`
	ShelfLocation string   `json:"shelf_location"`
	Notes         string   `json:"notes"`
}

type BatchResponse struct {
	ID               uint     `json:"id"`
	BatchID          string   `json:"batch_id"`
	FarmerID         uint     `json:"farmer_id"`
	CropVariety      string   `json:"crop_variety"`
	Quantity         float64  `json:"quantity"`
	Unit             string   `json:"unit"`
	QualityGrade     string   `json:"quality_grade"`
	HarvestDate      int64    `json:"harvest_date"`
	ExpectedPrice    float64  `json:"expected_price"`
	FarmLocation     string   `json:"farm_location,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	ShelfLocation    string   `json:"shelf_location,omitempty"`
	Status           string   `json:"status"`
	CurrentOwnerID   uint     `json:"current_owner_id"`
	PendingOwnerID   *uint    `json:"pending_owner_id"`
	FarmerPrice      *float64 `json:"farmer_price"`
	DistributorPrice *float64 `json:"distributor_price"`
	RetailPrice      *float64 `json:"retail_price"`
	QRCode           string   `json:"qr_code"`
	CreatedAt        string   `json:"created_at"`
}

type FarmerSummary struct {
	Name     string `json:"name"`
	FarmName string `json:"farm_name"`
	Location string `json:"location"`
}

type ParticipantSummary struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type LedgerEntryResponse struct {
	ledger.EntryResponse
	FromUser *ParticipantSummary `json:"from_user"`
	ToUser   *ParticipantSummary `json:"to_user"`
}

type BatchDetailsResponse struct {
	BatchResponse
	Farmer       *FarmerSummary        `json:"farmer"`
	Transactions []LedgerEntryResponse `json:"transactions"`
}

type LastTransferResponse struct {
	FromUserName string `json:"from_user_name"`
	Timestamp    int64  `json:"timestamp"`
}

type PendingBatchResponse struct {
	BatchResponse
	LastTransfer *LastTransferResponse `json:"last_transfer"`
}

func toBatchResponse(b *models.Batch) BatchResponse {
	return BatchResponse{
		ID:               b.ID,
		BatchID:          b.BatchID,
		FarmerID:         b.FarmerID,
		CropVariety:      b.CropVariety,
		Quantity:         b.Quantity,
		Unit:             b.Unit,
		QualityGrade:     b.QualityGrade,
		HarvestDate:      b.HarvestDate.UnixMilli(),
		ExpectedPrice:    b.ExpectedPrice,
		FarmLocation:     b.FarmLocation,
		Notes:            b.Notes,
		ShelfLocation:    b.ShelfLocation,
		Status:           string(b.Status),
		CurrentOwnerID:   b.CurrentOwnerID,
		PendingOwnerID:   b.PendingOwnerID,
		FarmerPrice:      b.FarmerPrice,
		DistributorPrice: b.DistributorPrice,
		RetailPrice:      b.RetailPrice,
		QRCode:           b.QRCode,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

// httpError - servis hatasını fiber hatasına çevirir; sınıflandırılmamış
// hatalar merkezi error handler'a düşer (500)
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

// POST /api/batches
func CreateBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body CreateBatchBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		if strings.TrimSpace(body.CropVariety) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "crop_variety boş olamaz")
		}
		if body.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity 0'dan büyük olmalı")
		}
		if strings.TrimSpace(body.Unit) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "unit boş olamaz")
		}
		if strings.TrimSpace(body.QualityGrade) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "quality_grade boş olamaz")
		}
		if body.ExpectedPrice <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "expected_price 0'dan büyük olmalı")
		}
		if body.HarvestDate <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "harvest_date zorunlu (epoch ms)")
		}

		b, err := CreateBatch(caller, cfg.SiteURL, CreateBatchRequest{
			CropVariety:   strings.TrimSpace(body.CropVariety),
			Quantity:      body.Quantity,
			Unit:          strings.TrimSpace(body.Unit),
			QualityGrade:  strings.TrimSpace(body.QualityGrade),
			HarvestDate:   time.UnixMilli(body.HarvestDate),
			ExpectedPrice: body.ExpectedPrice,
			FarmLocation:  strings.TrimSpace(body.FarmLocation),
			Notes:         strings.TrimSpace(body.Notes),
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(toBatchResponse(b))
	}
}

// POST /api/batches/:batchId/transfer
func TransferBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body TransferBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if body.ToUserID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "to_user_id zorunlu")
		}

		b, err := TransferBatch(caller, c.Params("batchId"), TransferRequest{
			ToUserID: body.ToUserID,
			Price:    body.Price,
			Notes:    strings.TrimSpace(body.Notes),
		})
		if err != nil {
			return httpError(err)
		}

		return c.JSON(toBatchResponse(b))
	}
}

// POST /api/batches/:batchId/accept-from-farmer
func AcceptBatchFromFarmerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body AcceptFromFarmerBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		b, err := AcceptBatchFromFarmer(caller, c.Params("batchId"), AcceptFromFarmerRequest{
			Price:         body.Price,
			TransportMode: strings.TrimSpace(body.TransportMode),
			StorageInfo:   strings.TrimSpace(body.StorageInfo),
			Destination:   strings.TrimSpace(body.Destination),
			Notes:         strings.TrimSpace(body.Notes),
		})
		if err != nil {
			return httpError(err)
		}

		return c.JSON(toBatchResponse(b))
	}
}

// POST /api/batches/:batchId/retailer-accept
func RetailerAcceptBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body RetailerAcceptBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		b, err := RetailerAcceptBatch(caller, c.Params("batchId"), strings.TrimSpace(body.Notes))
		if err != nil {
			return httpError(err)
		}

		return c.JSON(toBatchResponse(b))
	}
}

// PUT /api/batches/:batchId/status
func UpdateBatchStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body StatusUpdateBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		b, err := UpdateBatchStatus(caller, c.Params("batchId"), StatusUpdateRequest{
			Status:        models.BatchStatus(body.Status),
			RetailPrice:   body.RetailPrice,
			ShelfLocation: strings.TrimSpace(body.ShelfLocation),
			Notes:         strings.TrimSpace(body.Notes),
		})
		if err != nil {
			return httpError(err)
		}

		return c.JSON(toBatchResponse(b))
	}
}

// GET /api/trace/:batchId - herkese açık izleme ucu (QR tarayıcı buraya düşer)
func TraceBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		details, err := GetBatchByID(c.Params("batchId"))
		if err != nil {
			return httpError(err)
		}
		if details == nil {
			// Bulunamayan parti hata değil: tarayıcı boş sonuç gösterir
			return c.JSON(nil)
		}

		resp := BatchDetailsResponse{
			BatchResponse: toBatchResponse(&details.Batch),
			Transactions:  make([]LedgerEntryResponse, 0, len(details.Entries)),
		}
		if details.Farmer != nil {
			resp.Farmer = &FarmerSummary{
				Name:     details.Farmer.Name,
				FarmName: details.Farmer.FarmName,
				Location: details.Farmer.Location,
			}
		}
		for i := range details.Entries {
			e := details.Entries[i]
			entry := LedgerEntryResponse{EntryResponse: ledger.ToEntryResponse(&e.Entry)}
			if e.FromUser != nil {
				entry.FromUser = &ParticipantSummary{Name: e.FromUser.Name, Role: string(e.FromUser.Role)}
			}
			if e.ToUser != nil {
				entry.ToUser = &ParticipantSummary{Name: e.ToUser.Name, Role: string(e.ToUser.Role)}
			}
			resp.Transactions = append(resp.Transactions, entry)
		}

		return c.JSON(resp)
	}
}

// GET /api/batches
func ListUserBatchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		batches, err := GetUserBatches(caller)
		if err != nil {
			return httpError(err)
		}

		resp := make([]BatchResponse, 0, len(batches))
		for i := range batches {
			resp = append(resp, toBatchResponse(&batches[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/batches/pending
func ListPendingBatchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		pending, err := GetPendingBatchesForRetailer(caller)
		if err != nil {
			return httpError(err)
		}

		resp := make([]PendingBatchResponse, 0, len(pending))
		for i := range pending {
			pb := PendingBatchResponse{BatchResponse: toBatchResponse(&pending[i].Batch)}
			if pending[i].LastTransfer != nil {
				pb.LastTransfer = &LastTransferResponse{
					FromUserName: pending[i].LastTransfer.FromUserName,
					Timestamp:    pending[i].LastTransfer.Timestamp.UnixMilli(),
				}
			}
			resp = append(resp, pb)
		}
		return c.JSON(resp)
	}
}
