package batch

import (
	"regexp"
	"testing"
	"time"

	"agrichain-backend/internal/apperr"
	"agrichain-backend/internal/models"
	"agrichain-backend/internal/testutil"
)

const testSiteURL = "http://localhost:5173"

func createTestBatch(t *testing.T, farmer *models.User) *models.Batch {
	t.Helper()

	b, err := CreateBatch(farmer, testSiteURL, CreateBatchRequest{
		CropVariety:   "Domates",
		Quantity:      500,
		Unit:          "kg",
		QualityGrade:  "A",
		HarvestDate:   time.Now().Add(-48 * time.Hour),
		ExpectedPrice: 3.50,
		FarmLocation:  "Antalya",
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	return b
}

func TestCreateBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)

	b := createTestBatch(t, farmer)

	if b.Status != models.BatchCreated {
		t.Errorf("Status created olmalı, geldi: %s", b.Status)
	}
	if b.CurrentOwnerID != farmer.ID {
		t.Errorf("CurrentOwnerID %d olmalı, geldi: %d", farmer.ID, b.CurrentOwnerID)
	}

	idPattern := regexp.MustCompile(`^BATCH_[0-9A-Z]+_[0-9A-Z]{9}$`)
	if !idPattern.MatchString(b.BatchID) {
		t.Errorf("BatchID formatı beklenen desene uymuyor: %s", b.BatchID)
	}
	if want := testSiteURL + "/trace/" + b.BatchID; b.QRCode != want {
		t.Errorf("QRCode %s olmalı, geldi: %s", want, b.QRCode)
	}

	var entries []models.Transaction
	if err := db.Where("batch_id = ?", b.BatchID).Find(&entries).Error; err != nil {
		t.Fatalf("Ledger sorgusu: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("1 ledger kaydı olmalı, geldi: %d", len(entries))
	}
	e := entries[0]
	if e.Type != models.TxCreation || e.FromUserID != farmer.ID || e.ToUserID != farmer.ID {
		t.Errorf("creation kaydı hatalı: type=%s from=%d to=%d", e.Type, e.FromUserID, e.ToUserID)
	}
	if e.NewStatus != models.BatchCreated {
		t.Errorf("creation kaydı NewStatus created olmalı, geldi: %s", e.NewStatus)
	}
}

func TestCreateBatchRoleGate(t *testing.T) {
	db := testutil.SetupTestDB(t)

	distributor := testutil.CreateUser(t, db, "Mehmet", "mehmet@example.com", models.RoleDistributor)
	if _, err := CreateBatch(distributor, testSiteURL, CreateBatchRequest{
		CropVariety: "Domates", Quantity: 10, Unit: "kg", QualityGrade: "A",
		HarvestDate: time.Now(), ExpectedPrice: 1,
	}); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("Dağıtıcı için Forbidden beklenirdi, geldi: %v", err)
	}

	// Rol atanmamış kullanıcı çiftçi sayılır
	unassigned := testutil.CreateUser(t, db, "Yeni", "yeni@example.com", models.RoleUnassigned)
	if _, err := CreateBatch(unassigned, testSiteURL, CreateBatchRequest{
		CropVariety: "Biber", Quantity: 10, Unit: "kg", QualityGrade: "B",
		HarvestDate: time.Now(), ExpectedPrice: 2,
	}); err != nil {
		t.Errorf("Rolsüz kullanıcı parti oluşturabilmeli: %v", err)
	}
}

func TestTransferBatchToDistributor(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	distributor := testutil.CreateUser(t, db, "Mehmet", "mehmet@example.com", models.RoleDistributor)

	b := createTestBatch(t, farmer)

	price := 4.25
	updated, err := TransferBatch(farmer, b.BatchID, TransferRequest{
		ToUserID: distributor.ID,
		Price:    &price,
	})
	if err != nil {
		t.Fatalf("TransferBatch: %v", err)
	}

	if updated.Status != models.BatchWithDistributor {
		t.Errorf("Status with_distributor olmalı, geldi: %s", updated.Status)
	}
	if updated.CurrentOwnerID != distributor.ID {
		t.Errorf("Sahiplik dağıtıcıya geçmeliydi")
	}
	if updated.FarmerPrice == nil || *updated.FarmerPrice != 4.25 {
		t.Errorf("FarmerPrice 4.25 olmalı, geldi: %v", updated.FarmerPrice)
	}

	var entry models.Transaction
	if err := db.Where("batch_id = ? AND type = ?", b.BatchID, models.TxTransfer).First(&entry).Error; err != nil {
		t.Fatalf("Transfer ledger kaydı bulunamadı: %v", err)
	}
	if entry.PreviousStatus == nil || *entry.PreviousStatus != models.BatchCreated {
		t.Errorf("PreviousStatus created olmalı")
	}
	if entry.NewStatus != models.BatchWithDistributor {
		t.Errorf("NewStatus with_distributor olmalı, geldi: %s", entry.NewStatus)
	}
	if entry.Price == nil || *entry.Price != 4.25 {
		t.Errorf("Ledger fiyatı 4.25 olmalı")
	}
}

func TestTransferBatchToRetailerTwoPhase(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	retailer := testutil.CreateUser(t, db, "Zeynep", "zeynep@example.com", models.RoleRetailer)

	b := createTestBatch(t, farmer)

	// Devir: sahiplik henüz geçmez, parti yolda
	updated, err := TransferBatch(farmer, b.BatchID, TransferRequest{ToUserID: retailer.ID})
	if err != nil {
		t.Fatalf("TransferBatch: %v", err)
	}
	if updated.Status != models.BatchInTransitToRetailer {
		t.Errorf("Status in_transit_to_retailer olmalı, geldi: %s", updated.Status)
	}
	if updated.CurrentOwnerID != farmer.ID {
		t.Errorf("Sahiplik kabulden önce gönderende kalmalı")
	}
	if updated.PendingOwnerID == nil || *updated.PendingOwnerID != retailer.ID {
		t.Errorf("PendingOwnerID perakendeci olmalı")
	}

	// Kabul: sahiplik geçer, pending temizlenir
	accepted, err := RetailerAcceptBatch(retailer, b.BatchID, "")
	if err != nil {
		t.Fatalf("RetailerAcceptBatch: %v", err)
	}
	if accepted.Status != models.BatchWithRetailer {
		t.Errorf("Status with_retailer olmalı, geldi: %s", accepted.Status)
	}
	if accepted.CurrentOwnerID != retailer.ID {
		t.Errorf("Sahiplik perakendeciye geçmeliydi")
	}
	if accepted.PendingOwnerID != nil {
		t.Errorf("PendingOwnerID temizlenmeliydi")
	}

	// İdempotent tekrar kabul
	again, err := RetailerAcceptBatch(retailer, b.BatchID, "")
	if err != nil {
		t.Fatalf("Tekrar kabul hata vermemeli: %v", err)
	}
	if again.CurrentOwnerID != retailer.ID || again.PendingOwnerID != nil {
		t.Errorf("Tekrar kabul sahipliği bozmamalı")
	}

	// Başka bir perakendeci kabul edemez
	other := testutil.CreateUser(t, db, "Ali", "ali@example.com", models.RoleRetailer)
	if _, err := RetailerAcceptBatch(other, b.BatchID, ""); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("Atanmamış perakendeci için Forbidden beklenirdi, geldi: %v", err)
	}
}

func TestTransferOwnershipGate(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	other := testutil.CreateUser(t, db, "Fatma", "fatma@example.com", models.RoleFarmer)
	distributor := testutil.CreateUser(t, db, "Mehmet", "mehmet@example.com", models.RoleDistributor)

	b := createTestBatch(t, farmer)

	if _, err := TransferBatch(other, b.BatchID, TransferRequest{ToUserID: distributor.ID}); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("Sahip olmayan devirde Forbidden beklenirdi, geldi: %v", err)
	}

	if _, err := UpdateBatchStatus(other, b.BatchID, StatusUpdateRequest{Status: models.BatchSold}); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("Sahip olmayan durum güncellemesinde Forbidden beklenirdi, geldi: %v", err)
	}
}

func TestTransferRecipientValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	government := testutil.CreateUser(t, db, "Denetçi", "gov@example.com", models.RoleGovernment)

	b := createTestBatch(t, farmer)

	if _, err := TransferBatch(farmer, b.BatchID, TransferRequest{ToUserID: government.ID}); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("Uygunsuz alıcı rolünde InvalidArgument beklenirdi, geldi: %v", err)
	}

	if _, err := TransferBatch(farmer, b.BatchID, TransferRequest{ToUserID: 99999}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Olmayan alıcıda NotFound beklenirdi, geldi: %v", err)
	}

	if _, err := TransferBatch(farmer, "BATCH_YOK", TransferRequest{ToUserID: government.ID}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Olmayan partide NotFound beklenirdi, geldi: %v", err)
	}
}

func TestAcceptBatchFromFarmer(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	distributor := testutil.CreateUser(t, db, "Mehmet", "mehmet@example.com", models.RoleDistributor)
	distributor2 := testutil.CreateUser(t, db, "Hasan", "hasan@example.com", models.RoleDistributor)
	retailer := testutil.CreateUser(t, db, "Zeynep", "zeynep@example.com", models.RoleRetailer)

	b := createTestBatch(t, farmer)

	price := 3.80
	updated, err := AcceptBatchFromFarmer(distributor, b.BatchID, AcceptFromFarmerRequest{
		Price:         &price,
		TransportMode: "kamyon",
		Destination:   "İstanbul hali",
	})
	if err != nil {
		t.Fatalf("AcceptBatchFromFarmer: %v", err)
	}
	if updated.Status != models.BatchWithDistributor || updated.CurrentOwnerID != distributor.ID {
		t.Errorf("Sahiplik dağıtıcıya geçmeliydi")
	}

	var entry models.Transaction
	if err := db.Where("batch_id = ? AND type = ?", b.BatchID, models.TxTransfer).First(&entry).Error; err != nil {
		t.Fatalf("Transfer ledger kaydı bulunamadı: %v", err)
	}
	if entry.TransportMode != "kamyon" || entry.Destination != "İstanbul hali" {
		t.Errorf("Lojistik alanları ledger'a yazılmalı")
	}

	// Parti artık çiftçide değil: ikinci dağıtıcı teslim alamaz
	if _, err := AcceptBatchFromFarmer(distributor2, b.BatchID, AcceptFromFarmerRequest{}); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("Dağıtıcıdan teslim almada Conflict beklenirdi, geldi: %v", err)
	}

	// Perakendeci bu akışı kullanamaz
	if _, err := AcceptBatchFromFarmer(retailer, b.BatchID, AcceptFromFarmerRequest{}); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("Perakendeci için Forbidden beklenirdi, geldi: %v", err)
	}
}

func TestUpdateBatchStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	b := createTestBatch(t, farmer)

	if _, err := UpdateBatchStatus(farmer, b.BatchID, StatusUpdateRequest{Status: "yanlis_durum"}); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("Geçersiz durumda InvalidArgument beklenirdi, geldi: %v", err)
	}

	price := 7.90
	updated, err := UpdateBatchStatus(farmer, b.BatchID, StatusUpdateRequest{
		Status:        models.BatchSold,
		RetailPrice:   &price,
		ShelfLocation: "Reyon 3",
	})
	if err != nil {
		t.Fatalf("UpdateBatchStatus: %v", err)
	}
	if updated.Status != models.BatchSold {
		t.Errorf("Status sold olmalı, geldi: %s", updated.Status)
	}
	if updated.RetailPrice == nil || *updated.RetailPrice != 7.90 {
		t.Errorf("RetailPrice 7.90 olmalı")
	}

	var count int64
	db.Model(&models.Transaction{}).
		Where("batch_id = ? AND type = ?", b.BatchID, models.TxStatusUpdate).
		Count(&count)
	if count != 1 {
		t.Errorf("1 status_update ledger kaydı olmalı, geldi: %d", count)
	}
}

func TestGetBatchByID(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	distributor := testutil.CreateUser(t, db, "Mehmet", "mehmet@example.com", models.RoleDistributor)

	b := createTestBatch(t, farmer)
	if _, err := TransferBatch(farmer, b.BatchID, TransferRequest{ToUserID: distributor.ID}); err != nil {
		t.Fatalf("TransferBatch: %v", err)
	}

	details, err := GetBatchByID(b.BatchID)
	if err != nil {
		t.Fatalf("GetBatchByID: %v", err)
	}
	if details == nil {
		t.Fatal("Detay nil olmamalı")
	}
	if details.Farmer == nil || details.Farmer.ID != farmer.ID {
		t.Errorf("Çiftçi özeti eksik")
	}
	if len(details.Entries) != 2 {
		t.Fatalf("2 ledger kaydı olmalı, geldi: %d", len(details.Entries))
	}
	// Kronolojik sıra: önce creation sonra transfer
	if details.Entries[0].Entry.Type != models.TxCreation || details.Entries[1].Entry.Type != models.TxTransfer {
		t.Errorf("Ledger kayıtları kronolojik sıralı olmalı")
	}
	if details.Entries[1].ToUser == nil || details.Entries[1].ToUser.ID != distributor.ID {
		t.Errorf("Transfer kaydının alıcı katılımcısı dolu olmalı")
	}

	// Bulunamayan ve boş id hata değil nil döner
	if missing, err := GetBatchByID("BATCH_YOK"); err != nil || missing != nil {
		t.Errorf("Olmayan parti için nil, nil beklenirdi")
	}
	if empty, err := GetBatchByID(""); err != nil || empty != nil {
		t.Errorf("Boş id için nil, nil beklenirdi")
	}
}

func TestGetUserBatches(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	farmer2 := testutil.CreateUser(t, db, "Fatma", "fatma@example.com", models.RoleFarmer)
	government := testutil.CreateUser(t, db, "Denetçi", "gov@example.com", models.RoleGovernment)

	createTestBatch(t, farmer)
	createTestBatch(t, farmer)
	createTestBatch(t, farmer2)

	mine, err := GetUserBatches(farmer)
	if err != nil {
		t.Fatalf("GetUserBatches: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("Çiftçi sadece kendi 2 partisini görmeli, geldi: %d", len(mine))
	}

	all, err := GetUserBatches(government)
	if err != nil {
		t.Fatalf("GetUserBatches: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Government tüm partileri görmeli, geldi: %d", len(all))
	}
}

func TestGetPendingBatchesForRetailer(t *testing.T) {
	db := testutil.SetupTestDB(t)

	farmer := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	retailer := testutil.CreateUser(t, db, "Zeynep", "zeynep@example.com", models.RoleRetailer)

	b := createTestBatch(t, farmer)
	if _, err := TransferBatch(farmer, b.BatchID, TransferRequest{ToUserID: retailer.ID}); err != nil {
		t.Fatalf("TransferBatch: %v", err)
	}

	pending, err := GetPendingBatchesForRetailer(retailer)
	if err != nil {
		t.Fatalf("GetPendingBatchesForRetailer: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("1 bekleyen parti olmalı, geldi: %d", len(pending))
	}
	if pending[0].LastTransfer == nil || pending[0].LastTransfer.FromUserName != "Ayşe" {
		t.Errorf("Son devrin göndereni zenginleştirilmeli")
	}

	// Perakendeci olmayan için boş liste
	empty, err := GetPendingBatchesForRetailer(farmer)
	if err != nil || len(empty) != 0 {
		t.Errorf("Perakendeci olmayan için boş liste beklenirdi")
	}
}
