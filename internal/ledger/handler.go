package ledger

import (
	"fmt"
	"time"

	"agrichain-backend/internal/database"
	"agrichain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type EntryResponse struct {
	ID             uint     `json:"id"`
	BatchID        string   `json:"batch_id"`
	FromUserID     uint     `json:"from_user_id"`
	ToUserID       uint     `json:"to_user_id"`
	Type           string   `json:"type"`
	PreviousStatus *string  `json:"previous_status"`
	NewStatus      string   `json:"new_status"`
	Price          *float64 `json:"price"`
	Notes          string   `json:"notes"`
	TransportMode  string   `json:"transport_mode,omitempty"`
	StorageInfo    string   `json:"storage_info,omitempty"`
	Destination    string   `json:"destination,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

func ToEntryResponse(entry *models.Transaction) EntryResponse {
	var prev *string
	if entry.PreviousStatus != nil {
		s := string(*entry.PreviousStatus)
		prev = &s
	}
	return EntryResponse{
		ID:             entry.ID,
		BatchID:        entry.BatchID,
		FromUserID:     entry.FromUserID,
		ToUserID:       entry.ToUserID,
		Type:           string(entry.Type),
		PreviousStatus: prev,
		NewStatus:      string(entry.NewStatus),
		Price:          entry.Price,
		Notes:          entry.Notes,
		TransportMode:  entry.TransportMode,
		StorageInfo:    entry.StorageInfo,
		Destination:    entry.Destination,
		CreatedAt:      entry.CreatedAt.Format(time.RFC3339),
	}
}

// GET /api/ledger?batch_id=...&user_id=...&type=... (government/admin)
func ListEntriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Transaction{})

		if batchID := c.Query("batch_id"); batchID != "" {
			dbq = dbq.Where("batch_id = ?", batchID)
		}

		if userIDStr := c.Query("user_id"); userIDStr != "" {
			var uid uint
			if _, err := fmt.Sscan(userIDStr, &uid); err == nil && uid > 0 {
				dbq = dbq.Where("from_user_id = ? OR to_user_id = ?", uid, uid)
			}
		}

		if txType := c.Query("type"); txType != "" {
			dbq = dbq.Where("type = ?", txType)
		}

		var entries []models.Transaction
		if err := dbq.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ledger kayıtları listelenemedi")
		}

		resp := make([]EntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, ToEntryResponse(&entries[i]))
		}

		return c.JSON(resp)
	}
}
