package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agrichain-backend/internal/apperr"
	"agrichain-backend/internal/database"
	"agrichain-backend/internal/ledger"
	"agrichain-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// testlerde sabitlenebilir saat
var now = time.Now

type CreateListingRequest struct {
	BatchID            string
	Quantity           float64
	Unit               string
	ExpectedPrice      float64
	NegotiationAllowed bool
	SpecialTerms       string
	Description        string
	Images             []string
}

func encodeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeImages(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return []string{}
	}
	return images
}

// CreateListing - partiyi pazara çıkarır. Çiftçi (veya rolü atanmamış
// kullanıcı) olmalı ve partinin ya orijinal çiftçisi ya da mevcut sahibi
// olmalı. Bir parti için aynı anda tek açık ilan olabilir; kontrol, parti
// satırı kilitliyken yapılır ki eşzamanlı iki ilan denemesi sıralansın.
func CreateListing(caller *models.User, req CreateListingRequest) (*models.Listing, error) {
	if !caller.Role.CanActAsFarmer() {
		return nil, apperr.New(apperr.Forbidden, "Sadece çiftçiler ilan oluşturabilir")
	}

	var result *models.Listing

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var b models.Batch
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("batch_id = ?", req.BatchID).
			First(&b).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Parti bulunamadı")
			}
			return err
		}

		if b.FarmerID != caller.ID && b.CurrentOwnerID != caller.ID {
			return apperr.New(apperr.Forbidden, "Sadece kendi partilerinizi ilana çıkarabilirsiniz")
		}

		var openCount int64
		if err := tx.Model(&models.Listing{}).
			Where("batch_id = ? AND status = ?", req.BatchID, models.ListingOpen).
			Count(&openCount).Error; err != nil {
			return err
		}
		if openCount > 0 {
			return apperr.New(apperr.Conflict, "Bu parti için zaten açık bir ilan var")
		}

		listing := models.Listing{
			BatchID:            req.BatchID,
			FarmerID:           caller.ID,
			Quantity:           req.Quantity,
			Unit:               req.Unit,
			ExpectedPrice:      req.ExpectedPrice,
			NegotiationAllowed: req.NegotiationAllowed,
			SpecialTerms:       req.SpecialTerms,
			Description:        req.Description,
			Images:             encodeImages(req.Images),
			Status:             models.ListingOpen,
			Location:           caller.Location,
			CropVariety:        b.CropVariety,
		}
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}

		// İlan, partinin zincir durumunu değiştirmez: önceki = yeni durum
		price := req.ExpectedPrice
		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        req.BatchID,
			FromUserID:     caller.ID,
			ToUserID:       caller.ID,
			Type:           models.TxListingCreated,
			PreviousStatus: &b.Status,
			NewStatus:      b.Status,
			Price:          &price,
			Notes:          fmt.Sprintf("Pazara çıkarıldı: %g %s, birim fiyat %g", req.Quantity, req.Unit, req.ExpectedPrice),
		}); err != nil {
			return err
		}

		result = &listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListingWithFarmer - açık ilan + çiftçi özeti
type ListingWithFarmer struct {
	Listing models.Listing
	Farmer  *models.User
}

// ListOpenListings - açık ilanlar, en yeni önce. cropVariety boşsa filtre yok.
func ListOpenListings(cropVariety string) ([]ListingWithFarmer, error) {
	dbq := database.DB.Where("status = ?", models.ListingOpen)
	if cropVariety != "" {
		dbq = dbq.Where("crop_variety = ?", cropVariety)
	}

	var listings []models.Listing
	if err := dbq.Order("created_at desc, id desc").Find(&listings).Error; err != nil {
		return nil, err
	}

	result := make([]ListingWithFarmer, 0, len(listings))
	for _, l := range listings {
		item := ListingWithFarmer{Listing: l}
		var farmer models.User
		if err := database.DB.First(&farmer, "id = ?", l.FarmerID).Error; err == nil {
			item.Farmer = &farmer
		}
		result = append(result, item)
	}

	return result, nil
}

// BidWithDistributor - teklif + dağıtıcı kimliği
type BidWithDistributor struct {
	Bid         models.Bid
	Distributor *models.User
}

// MyListing - çiftçinin ilanı + varsa kabul edilen teklif
type MyListing struct {
	Listing     models.Listing
	AcceptedBid *BidWithDistributor
}

// GetMyListings - çağıranın tüm ilanları (her durumda), en yeni önce.
func GetMyListings(caller *models.User) ([]MyListing, error) {
	var listings []models.Listing
	if err := database.DB.Where("farmer_id = ?", caller.ID).
		Order("created_at desc, id desc").
		Find(&listings).Error; err != nil {
		return nil, err
	}

	result := make([]MyListing, 0, len(listings))
	for _, l := range listings {
		item := MyListing{Listing: l}
		if l.AcceptedBidID != nil {
			var bid models.Bid
			if err := database.DB.First(&bid, "id = ?", *l.AcceptedBidID).Error; err == nil {
				bwd := BidWithDistributor{Bid: bid}
				var distributor models.User
				if err := database.DB.First(&distributor, "id = ?", bid.DistributorID).Error; err == nil {
					bwd.Distributor = &distributor
				}
				item.AcceptedBid = &bwd
			}
		}
		result = append(result, item)
	}

	return result, nil
}

type PlaceBidRequest struct {
	PricePerUnit   float64
	MinQuantity    *float64
	MaxQuantity    *float64
	PickupProposal string
	PaymentTerms   string
	Comments       string
}

// PlaceBid - açık bir ilana teklif verir. Sadece dağıtıcılar teklif verebilir;
// ilan open durumundan çıktıysa Conflict döner. İlan satırı kilitlenir ki
// eşzamanlı bir acceptBid ile yarış oluşmasın.
func PlaceBid(caller *models.User, listingID uint, req PlaceBidRequest) (*models.Bid, error) {
	if caller.Role != models.RoleDistributor {
		return nil, apperr.New(apperr.Forbidden, "Sadece dağıtıcılar teklif verebilir")
	}

	var result *models.Bid

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&listing, "id = ?", listingID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "İlan bulunamadı")
			}
			return err
		}

		if listing.Status != models.ListingOpen {
			return apperr.New(apperr.Conflict, "Bu ilan artık teklif kabul etmiyor")
		}

		bid := models.Bid{
			ListingID:      listingID,
			DistributorID:  caller.ID,
			PricePerUnit:   req.PricePerUnit,
			MinQuantity:    req.MinQuantity,
			MaxQuantity:    req.MaxQuantity,
			PickupProposal: req.PickupProposal,
			PaymentTerms:   req.PaymentTerms,
			Comments:       req.Comments,
			Status:         models.BidPending,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return err
		}

		var b models.Batch
		if err := tx.Where("batch_id = ?", listing.BatchID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Parti bulunamadı")
			}
			return err
		}

		notes := fmt.Sprintf("Teklif verildi: birim fiyat %g", req.PricePerUnit)
		if req.Comments != "" {
			notes = fmt.Sprintf("%s - %s", notes, req.Comments)
		}
		price := req.PricePerUnit
		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        listing.BatchID,
			FromUserID:     caller.ID,
			ToUserID:       listing.FarmerID,
			Type:           models.TxBidPlaced,
			PreviousStatus: &b.Status,
			NewStatus:      b.Status,
			Price:          &price,
			Notes:          notes,
		}); err != nil {
			return err
		}

		result = &bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// BidDetails - dağıtıcının teklifi + ilanı + ilanın çiftçisi
type BidDetails struct {
	Bid     models.Bid
	Listing *models.Listing
	Farmer  *models.User
}

// GetMyBids - çağıranın teklifleri, en yeni önce.
func GetMyBids(caller *models.User) ([]BidDetails, error) {
	var bids []models.Bid
	if err := database.DB.Where("distributor_id = ?", caller.ID).
		Order("created_at desc, id desc").
		Find(&bids).Error; err != nil {
		return nil, err
	}

	result := make([]BidDetails, 0, len(bids))
	for _, bid := range bids {
		item := BidDetails{Bid: bid}
		var listing models.Listing
		if err := database.DB.First(&listing, "id = ?", bid.ListingID).Error; err == nil {
			item.Listing = &listing
			var farmer models.User
			if err := database.DB.First(&farmer, "id = ?", listing.FarmerID).Error; err == nil {
				item.Farmer = &farmer
			}
		}
		result = append(result, item)
	}

	return result, nil
}

// ListingDetails - ilan + parti + çiftçi + tüm teklifler
type ListingDetails struct {
	Listing models.Listing
	Batch   *models.Batch
	Farmer  *models.User
	Bids    []BidWithDistributor
}

// GetListingDetails - ilan yoksa hata değil nil döner.
func GetListingDetails(listingID uint) (*ListingDetails, error) {
	var listing models.Listing
	if err := database.DB.First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	details := &ListingDetails{Listing: listing}

	var farmer models.User
	if err := database.DB.First(&farmer, "id = ?", listing.FarmerID).Error; err == nil {
		details.Farmer = &farmer
	}

	var b models.Batch
	if err := database.DB.Where("batch_id = ?", listing.BatchID).First(&b).Error; err == nil {
		details.Batch = &b
	}

	var bids []models.Bid
	if err := database.DB.Where("listing_id = ?", listingID).
		Order("created_at desc, id desc").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	for _, bid := range bids {
		bwd := BidWithDistributor{Bid: bid}
		var distributor models.User
		if err := database.DB.First(&distributor, "id = ?", bid.DistributorID).Error; err == nil {
			bwd.Distributor = &distributor
		}
		details.Bids = append(details.Bids, bwd)
	}

	return details, nil
}

// AcceptBid - çiftçinin bir teklifi kabul etmesi. Tek atomik transaction
// içinde: ilan locked_in olur, seçilen teklif accepted, diğer tüm pending
// teklifler rejected olur ve bir order_created ledger kaydı yazılır. İlan
// satırı FOR UPDATE ile kilitlendiği için aynı ilana eşzamanlı iki kabul
// çağrısından yalnızca biri başarılı olabilir; diğeri open kontrolünde
// Conflict alır. Teklifler arasında fiyat/sıra önceliği yoktur, karar
// tamamen çiftçinindir.
func AcceptBid(caller *models.User, listingID uint, bidID uint) (*models.Listing, error) {
	var result *models.Listing

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&listing, "id = ?", listingID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "İlan bulunamadı")
			}
			return err
		}

		if listing.FarmerID != caller.ID {
			return apperr.New(apperr.Forbidden, "Sadece kendi ilanlarınızdaki teklifleri kabul edebilirsiniz")
		}
		if listing.Status != models.ListingOpen {
			return apperr.New(apperr.Conflict, "Bu ilan artık teklif kabul etmiyor")
		}

		var chosenBid models.Bid
		if err := tx.First(&chosenBid, "id = ?", bidID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.InvalidArgument, "Geçersiz teklif")
			}
			return err
		}
		if chosenBid.ListingID != listingID {
			return apperr.New(apperr.InvalidArgument, "Teklif bu ilana ait değil")
		}

		// 1) İlanı kilitle
		acceptedAt := now()
		listing.Status = models.ListingLockedIn
		listing.AcceptedBidID = &chosenBid.ID
		listing.AcceptedAt = &acceptedAt
		listing.FinalPrice = &chosenBid.PricePerUnit
		if err := tx.Save(&listing).Error; err != nil {
			return err
		}

		// 2) Seçilen teklif kabul edilir
		if err := tx.Model(&chosenBid).Update("status", models.BidAccepted).Error; err != nil {
			return err
		}

		// 3) Diğer bekleyen teklifler reddedilir (pending olmayanlara dokunulmaz)
		if err := tx.Model(&models.Bid{}).
			Where("listing_id = ? AND id <> ? AND status = ?", listingID, chosenBid.ID, models.BidPending).
			Update("status", models.BidRejected).Error; err != nil {
			return err
		}

		// 4) Ledger kaydı; partinin zincir durumu değişmez
		var b models.Batch
		if err := tx.Where("batch_id = ?", listing.BatchID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "Parti bulunamadı")
			}
			return err
		}

		distributorName := "dağıtıcı"
		var distributor models.User
		if err := tx.First(&distributor, "id = ?", chosenBid.DistributorID).Error; err == nil {
			distributorName = distributor.DisplayName()
		}

		notes := fmt.Sprintf("Sipariş onaylandı: birim fiyat %g, alıcı %s", chosenBid.PricePerUnit, distributorName)
		if chosenBid.Comments != "" {
			notes = fmt.Sprintf("%s - %s", notes, chosenBid.Comments)
		}
		price := chosenBid.PricePerUnit
		if err := ledger.Write(tx, ledger.EntryOptions{
			BatchID:        listing.BatchID,
			FromUserID:     caller.ID,
			ToUserID:       chosenBid.DistributorID,
			Type:           models.TxOrderCreated,
			PreviousStatus: &b.Status,
			NewStatus:      b.Status,
			Price:          &price,
			Notes:          notes,
		}); err != nil {
			return err
		}

		result = &listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
