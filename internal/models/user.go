package models

import "time"

type UserRole string

const (
	RoleFarmer      UserRole = "farmer"
	RoleDistributor UserRole = "distributor"
	RoleRetailer    UserRole = "retailer"
	RoleGovernment  UserRole = "government"
	RoleAdmin       UserRole = "admin"

	// RoleUnassigned: kayıt sırasında rol seçmemiş kullanıcı.
	// Parti ve ilan oluşturma için çiftçi gibi davranır.
	RoleUnassigned UserRole = ""
)

// Valid - atanabilir rollerden biri mi?
func (r UserRole) Valid() bool {
	switch r {
	case RoleFarmer, RoleDistributor, RoleRetailer, RoleGovernment, RoleAdmin:
		return true
	}
	return false
}

// CanActAsFarmer - rolü atanmamış kullanıcılar çiftçi sayılır
func (r UserRole) CanActAsFarmer() bool {
	return r == RoleFarmer || r == RoleUnassigned
}

type User struct {
	ID           uint     `gorm:"primaryKey"`
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;index"` // boş = rol atanmamış

	// Paydaş bilgileri
	FarmName      string `gorm:"size:100"`
	Location      string `gorm:"size:150"`
	Phone         string `gorm:"size:30"`
	LicenseNumber string `gorm:"size:50"`
	Verified      bool   `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName - isim yoksa email'e düş
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
