package auth

import (
	"strings"

	"agrichain-backend/internal/config"
	"agrichain-backend/internal/database"
	"agrichain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Opsiyonel: rol seçilmezse kullanıcı "rol atanmamış" kalır ve parti
	// oluştururken çiftçi sayılır
	Role          string `json:"role"`
	FarmName      string `json:"farm_name"`
	Location      string `json:"location"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userJSON(user *models.User) fiber.Map {
	return fiber.Map{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"role":           user.Role,
		"farm_name":      user.FarmName,
		"location":       user.Location,
		"phone":          user.Phone,
		"license_number": user.LicenseNumber,
		"verified":       user.Verified,
	}
}

func RegisterHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		if body.Email == "" || body.Password == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		role := models.UserRole(strings.TrimSpace(body.Role))
		if role != models.RoleUnassigned && !role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz rol")
		}
		// Admin hesapları kayıt formundan açılamaz
		if role == models.RoleAdmin {
			return fiber.NewError(fiber.StatusForbidden, "Admin rolü kayıt sırasında seçilemez")
		}

		var count int64
		database.DB.Model(&models.User{}).
			Where("email = ?", body.Email).
			Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu email ile kayıtlı bir kullanıcı zaten var")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		user := models.User{
			Name:          body.Name,
			Email:         body.Email,
			PasswordHash:  string(hash),
			Role:          role,
			FarmName:      strings.TrimSpace(body.FarmName),
			Location:      strings.TrimSpace(body.Location),
			Phone:         strings.TrimSpace(body.Phone),
			LicenseNumber: strings.TrimSpace(body.LicenseNumber),
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(userJSON(&user))
	}
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  userJSON(&user),
		})
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(userJSON(user))
	}
}

// GET /api/users?role=distributor - devir ekranlarındaki alıcı listeleri için
func ListUsersByRoleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := CurrentUser(c); err != nil {
			return err
		}

		role := models.UserRole(c.Query("role"))
		if !role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "role parametresi geçersiz")
		}

		var users []models.User
		if err := database.DB.Where("role = ?", role).Order("name asc").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		resp := make([]fiber.Map, 0, len(users))
		for i := range users {
			resp = append(resp, userJSON(&users[i]))
		}
		return c.JSON(resp)
	}
}
