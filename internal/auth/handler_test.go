package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agrichain-backend/internal/config"
	"agrichain-backend/internal/models"
	"agrichain-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret: "test-jwt-secret-en-az-otuz-iki-karakter",
	}
}

func newTestApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Beklenmeyen sunucu hatası"})
		},
	})

	app.Post("/api/auth/register", RegisterHandler(cfg))
	app.Post("/api/auth/login", LoginHandler(cfg))

	protected := app.Group("", JWTMiddleware(cfg))
	protected.Get("/api/auth/me", MeHandler())
	protected.Get("/api/users", ListUsersByRoleHandler())

	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, body io.Reader, out any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		t.Fatalf("Yanıt çözümlenemedi: %v", err)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	testutil.SetupTestDB(t)

	cfg := testConfig()
	app := newTestApp(cfg)

	resp, err := app.Test(jsonRequest("POST", "/api/auth/register",
		`{"name":"Ayşe","email":"Ayse@Example.com","password":"gizli123","role":"farmer","farm_name":"Güneş Çiftliği","location":"Antalya"}`), -1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("register 201 dönmeli, geldi: %d", resp.StatusCode)
	}
	var registered map[string]any
	decodeBody(t, resp.Body, &registered)
	// Email küçük harfe normalize edilir
	if registered["email"] != "ayse@example.com" {
		t.Errorf("Email normalize edilmeli, geldi: %v", registered["email"])
	}
	if registered["role"] != "farmer" {
		t.Errorf("Rol farmer olmalı, geldi: %v", registered["role"])
	}

	// Aynı email ile ikinci kayıt reddedilir
	resp, err = app.Test(jsonRequest("POST", "/api/auth/register",
		`{"name":"Sahte","email":"ayse@example.com","password":"baska"}`), -1)
	if err != nil {
		t.Fatalf("register dup: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("Tekrarlanan email 409 dönmeli, geldi: %d", resp.StatusCode)
	}

	// Admin rolü kayıt formundan seçilemez
	resp, err = app.Test(jsonRequest("POST", "/api/auth/register",
		`{"name":"Kötü","email":"kotu@example.com","password":"gizli123","role":"admin"}`), -1)
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Admin rolü 403 dönmeli, geldi: %d", resp.StatusCode)
	}

	// Tanımsız rol reddedilir
	resp, err = app.Test(jsonRequest("POST", "/api/auth/register",
		`{"name":"Bozuk","email":"bozuk@example.com","password":"gizli123","role":"uzayli"}`), -1)
	if err != nil {
		t.Fatalf("register bad role: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Geçersiz rol 400 dönmeli, geldi: %d", resp.StatusCode)
	}

	// Login: doğru şifreyle token alınır
	resp, err = app.Test(jsonRequest("POST", "/api/auth/login",
		`{"email":"ayse@example.com","password":"gizli123"}`), -1)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login 200 dönmeli, geldi: %d", resp.StatusCode)
	}
	var loginResp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	decodeBody(t, resp.Body, &loginResp)
	if loginResp.Token == "" {
		t.Fatal("Token boş olmamalı")
	}

	// Yanlış şifre
	resp, err = app.Test(jsonRequest("POST", "/api/auth/login",
		`{"email":"ayse@example.com","password":"yanlis"}`), -1)
	if err != nil {
		t.Fatalf("login wrong: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Yanlış şifre 401 dönmeli, geldi: %d", resp.StatusCode)
	}

	// Token ile /me güncel kaydı döner
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("me 200 dönmeli, geldi: %d", resp.StatusCode)
	}
	var me map[string]any
	decodeBody(t, resp.Body, &me)
	if me["email"] != "ayse@example.com" || me["farm_name"] != "Güneş Çiftliği" {
		t.Errorf("me güncel kullanıcı kaydını dönmeli, geldi: %v", me)
	}

	// Token'sız istek reddedilir
	resp, err = app.Test(httptest.NewRequest("GET", "/api/auth/me", nil), -1)
	if err != nil {
		t.Fatalf("me no token: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Token'sız istek 401 dönmeli, geldi: %d", resp.StatusCode)
	}
}

func TestListUsersByRole(t *testing.T) {
	db := testutil.SetupTestDB(t)

	cfg := testConfig()
	app := newTestApp(cfg)

	caller := testutil.CreateUser(t, db, "Ayşe", "ayse@example.com", models.RoleFarmer)
	testutil.CreateUser(t, db, "Mehmet", "mehmet@example.com", models.RoleDistributor)
	testutil.CreateUser(t, db, "Hasan", "hasan@example.com", models.RoleDistributor)
	testutil.CreateUser(t, db, "Zeynep", "zeynep@example.com", models.RoleRetailer)

	token, err := GenerateToken(cfg.JWTSecret, caller)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/users?role=distributor", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("users 200 dönmeli, geldi: %d", resp.StatusCode)
	}
	var users []map[string]any
	decodeBody(t, resp.Body, &users)
	if len(users) != 2 {
		t.Fatalf("2 dağıtıcı dönmeli, geldi: %d", len(users))
	}
	// İsme göre sıralı
	if users[0]["name"] != "Hasan" || users[1]["name"] != "Mehmet" {
		t.Errorf("Kullanıcılar isme göre sıralı dönmeli, geldi: %v, %v", users[0]["name"], users[1]["name"])
	}
	for _, u := range users {
		if u["role"] != "distributor" {
			t.Errorf("Sadece istenen roldeki kullanıcılar dönmeli, geldi: %v", u["role"])
		}
	}

	// Geçersiz rol parametresi
	req = httptest.NewRequest("GET", "/api/users?role=uzayli", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("users bad role: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Geçersiz rol parametresi 400 dönmeli, geldi: %d", resp.StatusCode)
	}

	// Boş rol parametresi de geçersizdir
	req = httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("users no role: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Rol parametresi olmadan 400 dönmeli, geldi: %d", resp.StatusCode)
	}
}
