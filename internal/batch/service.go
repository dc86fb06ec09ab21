package batch

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"agrichain-backend/internal/apperr"
	"agrichain-backend/internal/database"
	"agrichain-backend/internal/ledger"
	"agrichain-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateBatchID - zaman damgası + rastgele sonek, blockchain tarzı okunabilir
// kimlik. Çakışma ihtimali ihmal edilebilir; batch_id kolonundaki unique index
// yine de son sigorta.
func generateBatchID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return strings.ToUpper(fmt.Sprintf("BATCH_%s_%s", ts, string(suffix)))
}

type CreateBatchRequest struct {
	CropVariety   string
	Quantity      float64
	Unit          string
	QualityGrade  string
	HarvestDate   time.Time
	ExpectedPrice float64
	FarmLocation  string
	Notes         string
}

// CreateBatch - yeni parti oluşturur. Sadece çiftçiler (veya rolü atanmamış
// kullanıcılar) parti oluşturabilir. Parti kaydı ile creation ledger kaydı
// aynı transaction içinde yazılır.
func CreateBatch(caller *models.User, siteURL string, req CreateBatchRequest) (*models.Batch, error) {
	if !caller.Role.CanActAsFarmer() {
		return nil, apperr.New(apperr.Forbidden, "Sadece çiftçiler parti oluşturabilir")
	}

	batchID := generateBatchID()

	b := models.Batch{
		BatchID:        batchID,
		FarmerID:       caller.ID,
		CropVariety:    req.CropVariety,
		Quantity:       req.Quantity,
		Unit:           req.Unit,
		QualityGrade:   req.QualityGrade,
		HarvestDate:    req.HarvestDate,
		ExpectedPrice:  req.ExpectedPrice,
		FarmLocation:   req.FarmLocation,
		Notes:          req.Notes,
		Status:         models.BatchCreated,
		CurrentOwnerID: caller.ID,
		QRCode:         fmt.Sprintf("%s/trace/%s", siteURL, batchID),
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		return ledger.Write(tx, ledger.EntryOptions{
			BatchID:    batchID,
			FromUserID: caller.ID,
			ToUserID:   caller.ID,
			Type:       models.TxCreation,
			NewStatus:  models.BatchCreated,
		})
	})
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// lockBatch - parti satırını FOR UPDATE ile kilitleyerek okur. Aynı partiye
// dokunan eşzamanlı mutasyonlar bu kilit üzerinden sıralanır.
func lockBatch(tx *gorm.DB, batchID string) (*models.Batch, error) {
	var b models.Batch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("batch_id = ?", batchID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Parti bulunamadı")
		}
		return nil, err
	}
	return &b, nil
}

type TransferRequest struct {
	ToUserID uint
	Price    *float64
	Notes    string
}

// TransferBatch - partiyi bir sonraki paydaşa devreder. Dağıtıcıya devirde
// sahiplik anında geçer; perakendeciye devirde parti "yolda" durumuna alınır,
// sahiplik perakendeci kabul edene kadar gönderende kalır.
func TransferBatch(caller *models.User, batchID string, req TransferRequest) (*models.Batch, error) {
	var result *models.Batch

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		b, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}

		if b.CurrentOwnerID != caller.ID {
			return apperr.New(apperr.Forbidden, "Bu partinin sahibi değilsiniz")
		}

		var toUser models.User
		if err := tx.First(&toUser, "id = ?", req.ToUserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Alıcı bulunamadı")
			}
			return err
		}

		previous := b.Status

		switch toUser.Role {
		case models.RoleDistributor:
			// Dağıtıcı kabulü örtük: sahiplik hemen geçer
			b.Status = models.BatchWithDistributor
			b.CurrentOwnerID = toUser.ID
			b.PendingOwnerID = nil
			if req.Price != nil {
				b.FarmerPrice = req.Price
			}
		case models.RoleRetailer:
			// Perakendeci kabulü açık: parti yolda, sahiplik gönderende
			b.Status = models.BatchInTransitToRetailer
			b.PendingOwnerID = &toUser.ID
			if req.Price != nil {
				b.DistributorPrice = req.Price
			}
		default:
			return apperr.New(apperr.InvalidArgument, "Alıcı rolü devir için uygun değil")
		}

		if err := tx.Save(b).Error; err != nil {
			return err
		}

		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        batchID,
			FromUserID:     caller.ID,
			ToUserID:       toUser.ID,
			Type:           models.TxTransfer,
			PreviousStatus: &previous,
			NewStatus:      b.Status,
			Price:          req.Price,
			Notes:          req.Notes,
		}); err != nil {
			return err
		}

		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type AcceptFromFarmerRequest struct {
	Price         *float64
	TransportMode string
	StorageInfo   string
	Destination   string
	Notes         string
}

// AcceptBatchFromFarmer - dağıtıcının çiftçiye ait bir partiyi sahada teslim
// alması (QR taramalı toplama akışı). Sahiplik doğrudan dağıtıcıya geçer.
func AcceptBatchFromFarmer(caller *models.User, batchID string, req AcceptFromFarmerRequest) (*models.Batch, error) {
	if caller.Role != models.RoleDistributor {
		return nil, apperr.New(apperr.Forbidden, "Sadece dağıtıcılar parti teslim alabilir")
	}

	var result *models.Batch

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		b, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}

		var currentOwner models.User
		if err := tx.First(&currentOwner, "id = ?", b.CurrentOwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Partinin mevcut sahibi bulunamadı")
			}
			return err
		}
		if currentOwner.Role != models.RoleFarmer {
			return apperr.New(apperr.Conflict, "Parti sadece çiftçiden teslim alınabilir")
		}

		previous := b.Status
		b.Status = models.BatchWithDistributor
		b.CurrentOwnerID = caller.ID
		if req.Price != nil {
			b.FarmerPrice = req.Price
		}

		if err := tx.Save(b).Error; err != nil {
			return err
		}

		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        batchID,
			FromUserID:     currentOwner.ID,
			ToUserID:       caller.ID,
			Type:           models.TxTransfer,
			PreviousStatus: &previous,
			NewStatus:      models.BatchWithDistributor,
			Price:          req.Price,
			Notes:          req.Notes,
			TransportMode:  req.TransportMode,
			StorageInfo:    req.StorageInfo,
			Destination:    req.Destination,
		}); err != nil {
			return err
		}

		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RetailerAcceptBatch - perakendecinin kendisine atanmış devri kabul etmesi.
// Parti zaten perakendecideyse tekrar çağrılması hata değildir (idempotent).
func RetailerAcceptBatch(caller *models.User, batchID string, notes string) (*models.Batch, error) {
	if caller.Role != models.RoleRetailer {
		return nil, apperr.New(apperr.Forbidden, "Sadece perakendeciler parti kabul edebilir")
	}

	var result *models.Batch

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		b, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}

		isIntended := b.PendingOwnerID != nil && *b.PendingOwnerID == caller.ID
		alreadyOwner := b.CurrentOwnerID == caller.ID
		if !isIntended && !alreadyOwner {
			return apperr.New(apperr.Forbidden, "Bu parti size atanmamış")
		}

		previous := b.Status
		b.Status = models.BatchWithRetailer
		b.CurrentOwnerID = caller.ID
		b.PendingOwnerID = nil

		if err := tx.Save(b).Error; err != nil {
			return err
		}

		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        batchID,
			FromUserID:     caller.ID,
			ToUserID:       caller.ID,
			Type:           models.TxStatusUpdate,
			PreviousStatus: &previous,
			NewStatus:      models.BatchWithRetailer,
			Notes:          notes,
		}); err != nil {
			return err
		}

		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type StatusUpdateRequest struct {
	Status        models.BatchStatus
	RetailPrice   *float64
	ShelfLocation string
	Notes         string
}

// UpdateBatchStatus - sahibin serbest durum düzeltmesi (ör. perakendecinin
// "satıldı" işaretlemesi). İleri geçiş doğrulaması yapılmaz; ledger önceki ve
// yeni durumu tuttuğu için düzeltmeler de izlenebilir kalır.
func UpdateBatchStatus(caller *models.User, batchID string, req StatusUpdateRequest) (*models.Batch, error) {
	if !req.Status.Valid() {
		return nil, apperr.New(apperr.InvalidArgument, "Geçersiz parti durumu")
	}

	var result *models.Batch

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		b, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}

		if b.CurrentOwnerID != caller.ID {
			return apperr.New(apperr.Forbidden, "Bu partinin sahibi değilsiniz")
		}

		previous := b.Status
		b.Status = req.Status
		if req.RetailPrice != nil {
			b.RetailPrice = req.RetailPrice
		}
		if req.ShelfLocation != "" {
			b.ShelfLocation = req.ShelfLocation
		}
		if req.Notes != "" {
			b.Notes = req.Notes
		}

		if err := tx.Save(b).Error; err != nil {
			return err
		}

		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        batchID,
			FromUserID:     caller.ID,
			ToUserID:       caller.ID,
			Type:           models.TxStatusUpdate,
			PreviousStatus: &previous,
			NewStatus:      req.Status,
			Price:          req.RetailPrice,
			Notes:          req.Notes,
		}); err != nil {
			return err
		}

		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// LedgerEntryDetails - ledger kaydı + katılımcı özetleri
type LedgerEntryDetails struct {
	Entry    models.Transaction
	FromUser *models.User
	ToUser   *models.User
}

// BatchDetails - izleme ekranı için parti + çiftçi + tüm geçmiş
type BatchDetails struct {
	Batch   models.Batch
	Farmer  *models.User
	Entries []LedgerEntryDetails
}

// GetBatchByID - izleme sorgusu. Parti yoksa veya id boşsa hata değil nil
// döner; QR tarayıcı geçersiz kodları sessizce gösterebilsin diye.
func GetBatchByID(batchID string) (*BatchDetails, error) {
	if batchID == "" {
		return nil, nil
	}

	var b models.Batch
	if err := database.DB.Where("batch_id = ?", batchID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	details := &BatchDetails{Batch: b}

	var farmer models.User
	if err := database.DB.First(&farmer, "id = ?", b.FarmerID).Error; err == nil {
		details.Farmer = &farmer
	}

	var entries []models.Transaction
	if err := database.DB.Where("batch_id = ?", batchID).
		Order("created_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	// Katılımcıları tek sorguda topla
	userIDs := make([]uint, 0, len(entries)*2)
	for _, e := range entries {
		userIDs = append(userIDs, e.FromUserID, e.ToUserID)
	}
	users := map[uint]*models.User{}
	if len(userIDs) > 0 {
		var list []models.User
		if err := database.DB.Where("id IN ?", userIDs).Find(&list).Error; err != nil {
			return nil, err
		}
		for i := range list {
			users[list[i].ID] = &list[i]
		}
	}

	for _, e := range entries {
		details.Entries = append(details.Entries, LedgerEntryDetails{
			Entry:    e,
			FromUser: users[e.FromUserID],
			ToUser:   users[e.ToUserID],
		})
	}

	return details, nil
}

// GetUserBatches - government tüm partileri, diğer herkes sadece sahibi olduğu
// partileri görür.
func GetUserBatches(caller *models.User) ([]models.Batch, error) {
	var batches []models.Batch

	dbq := database.DB.Order("created_at desc, id desc")
	if caller.Role != models.RoleGovernment {
		dbq = dbq.Where("current_owner_id = ?", caller.ID)
	}

	if err := dbq.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// IncomingTransfer - bekleyen partinin son gelen devri
type IncomingTransfer struct {
	FromUserName string
	Timestamp    time.Time
}

type PendingBatch struct {
	Batch        models.Batch
	LastTransfer *IncomingTransfer
}

// GetPendingBatchesForRetailer - perakendecinin kabulünü bekleyen devirler.
// Perakendeci olmayanlar için boş liste döner.
func GetPendingBatchesForRetailer(caller *models.User) ([]PendingBatch, error) {
	if caller.Role != models.RoleRetailer {
		return []PendingBatch{}, nil
	}

	var batches []models.Batch
	if err := database.DB.Where("pending_owner_id = ?", caller.ID).
		Order("created_at desc, id desc").
		Find(&batches).Error; err != nil {
		return nil, err
	}

	result := make([]PendingBatch, 0, len(batches))
	for _, b := range batches {
		pb := PendingBatch{Batch: b}

		// Bu perakendeciye yapılmış en son transfer kaydı
		var entry models.Transaction
		err := database.DB.
			Where("batch_id = ? AND to_user_id = ? AND type = ?", b.BatchID, caller.ID, models.TxTransfer).
			Order("created_at desc, id desc").
			First(&entry).Error
		if err == nil {
			var fromUser models.User
			name := ""
			if err := database.DB.First(&fromUser, "id = ?", entry.FromUserID).Error; err == nil {
				name = fromUser.DisplayName()
			}
			pb.LastTransfer = &IncomingTransfer{
				FromUserName: name,
				Timestamp:    entry.CreatedAt,
			}
		}

		result = append(result, pb)
	}

	return result, nil
}
