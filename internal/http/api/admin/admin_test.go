package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/config"
	"github.com/Caqil/iprofit-admin-sub003/internal/db"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"github.com/Caqil/iprofit-admin-sub003/internal/notify"
	"github.com/Caqil/iprofit-admin-sub003/internal/ratelimit"
	"github.com/Caqil/iprofit-admin-sub003/internal/security"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "admin-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	limits, errLimits := ratelimit.NewSet(ratelimit.NewMemoryStore(), nil)
	if errLimits != nil {
		t.Fatalf("new limiter set: %v", errLimits)
	}

	engine := gin.New()
	RegisterAdminRoutes(engine, conn, Deps{
		JWT:        testJWT,
		Limits:     limits,
		Dispatcher: notify.NewDispatcher(conn, nil),
		Audit:      audit.NewRecorder(conn),
	})
	return engine, conn
}

func seedAdmin(t *testing.T, conn *gorm.DB, role models.AdminRole) models.Admin {
	t.Helper()
	hashed, errHash := security.HashPassword("password")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{
		Username: "op",
		Password: hashed,
		Role:     role,
		Active:   true,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	return admin
}

func authToken(t *testing.T, adminID uint64) string {
	t.Helper()
	token, errSign := security.SignAdminToken(testJWT.Secret, adminID, testJWT.Expiry)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	return token
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	engine, conn := newTestServer(t)
	seedAdmin(t, conn, models.AdminRoleSuper)

	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/login", "", gin.H{
		"username": "op",
		"password": "password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var out struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode login response: %v", errDecode)
	}
	if out.Token == "" {
		t.Fatal("expected a session token")
	}

	rec = doJSON(t, engine, http.MethodPost, "/v0/admin/login", "", gin.H{
		"username": "op",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}
}

func TestLogin_DeviceCheck(t *testing.T) {
	engine, conn := newTestServer(t)
	seedAdmin(t, conn, models.AdminRoleSuper)

	body, _ := json.Marshal(gin.H{"username": "op", "password": "password"})
	req := httptest.NewRequest(http.MethodPost, "/v0/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized device id: expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v0/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", "pixel-9-fp-abc123")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login with device id: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var entry models.AuditLog
	if errFind := conn.Where("action = ?", "admin.login").Order("id DESC").First(&entry).Error; errFind != nil {
		t.Fatalf("find audit entry: %v", errFind)
	}
	var details map[string]any
	if errDecode := json.Unmarshal(entry.Details, &details); errDecode != nil {
		t.Fatalf("decode audit details: %v", errDecode)
	}
	if details["device_id"] != "pixel-9-fp-abc123" {
		t.Fatalf("expected device id in audit details, got %v", details)
	}
}

func TestLogin_RequiresTOTPWhenEnrolled(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleSuper)
	if errSave := conn.Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("totp_secret", "JBSWY3DPEHPK3PXP").Error; errSave != nil {
		t.Fatalf("enable totp: %v", errSave)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/login", "", gin.H{
		"username": "op",
		"password": "password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without totp code, got %d", rec.Code)
	}
	var out struct {
		TOTPRequired bool `json:"totp_required"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !out.TOTPRequired {
		t.Fatal("expected totp_required flag")
	}
}

func TestAuthMiddleware(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleSuper)

	if rec := doJSON(t, engine, http.MethodGet, "/v0/admin/users", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}
	if rec := doJSON(t, engine, http.MethodGet, "/v0/admin/users", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}
	if rec := doJSON(t, engine, http.MethodGet, "/v0/admin/users", authToken(t, admin.ID), nil); rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	if errSave := conn.Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("active", false).Error; errSave != nil {
		t.Fatalf("disable admin: %v", errSave)
	}
	if rec := doJSON(t, engine, http.MethodGet, "/v0/admin/users", authToken(t, admin.ID), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("disabled admin: expected 403, got %d", rec.Code)
	}
}

func TestRequireRole_BlocksViewer(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleViewer)
	token := authToken(t, admin.ID)

	if rec := doJSON(t, engine, http.MethodGet, "/v0/admin/plans", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("viewer read: expected 200, got %d", rec.Code)
	}
	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/plans", token, gin.H{"name": "Gold"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer write: expected 403, got %d", rec.Code)
	}
}

func TestTransactionApprove_AppliesBalance(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleSuper)
	token := authToken(t, admin.ID)

	user := models.User{Username: "trader", Password: "x", Balance: 100, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	deposit := models.Transaction{
		Reference: "dep-1",
		UserID:    user.ID,
		Type:      models.TransactionTypeDeposit,
		Amount:    50,
		Fee:       5,
		Status:    models.TransactionStatusPending,
	}
	if errCreate := conn.Create(&deposit).Error; errCreate != nil {
		t.Fatalf("create transaction: %v", errCreate)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/transactions/1/approve", token, gin.H{})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if reloaded.Balance != 145 {
		t.Fatalf("expected balance 145 after deposit minus fee, got %v", reloaded.Balance)
	}

	// A second approval must be refused and leave the balance untouched.
	rec = doJSON(t, engine, http.MethodPost, "/v0/admin/transactions/1/approve", token, gin.H{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-approve: expected 409, got %d", rec.Code)
	}
	if errFind := conn.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if reloaded.Balance != 145 {
		t.Fatalf("expected balance unchanged after re-approve, got %v", reloaded.Balance)
	}
}

func TestWithdrawalApprove_InsufficientBalance(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleSuper)
	token := authToken(t, admin.ID)

	user := models.User{Username: "trader", Password: "x", Balance: 10, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	withdrawal := models.Transaction{
		Reference: "wd-1",
		UserID:    user.ID,
		Type:      models.TransactionTypeWithdrawal,
		Amount:    100,
		Status:    models.TransactionStatusPending,
	}
	if errCreate := conn.Create(&withdrawal).Error; errCreate != nil {
		t.Fatalf("create transaction: %v", errCreate)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/transactions/1/approve", token, gin.H{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient balance, got %d (%s)", rec.Code, rec.Body.String())
	}

	var reloaded models.Transaction
	if errFind := conn.First(&reloaded, withdrawal.ID).Error; errFind != nil {
		t.Fatalf("reload transaction: %v", errFind)
	}
	if reloaded.Status != models.TransactionStatusPending {
		t.Fatalf("expected transaction to stay pending, got %d", reloaded.Status)
	}
}

func TestKYCReview(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleModerator)
	token := authToken(t, admin.ID)

	user := models.User{
		Username:  "applicant",
		Password:  "x",
		Active:    true,
		KYCStatus: models.KYCStatusPending,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/users/1/kyc/reject", token, gin.H{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reject without remark: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/v0/admin/users/1/kyc/approve", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if reloaded.KYCStatus != models.KYCStatusApproved {
		t.Fatalf("expected approved kyc status, got %d", reloaded.KYCStatus)
	}
	if reloaded.KYCReviewedBy == nil || *reloaded.KYCReviewedBy != admin.ID {
		t.Fatal("expected reviewer to be recorded")
	}

	// Re-review must be refused.
	rec = doJSON(t, engine, http.MethodPost, "/v0/admin/users/1/kyc/approve", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-approve: expected 409, got %d", rec.Code)
	}
}

func TestLoanApprove_DisbursesAndSchedules(t *testing.T) {
	engine, conn := newTestServer(t)
	admin := seedAdmin(t, conn, models.AdminRoleSuper)
	token := authToken(t, admin.ID)

	user := models.User{Username: "borrower", Password: "x", Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	loan := models.Loan{
		UserID:       user.ID,
		Amount:       1200,
		InterestRate: 0,
		TenureMonths: 12,
		Status:       models.LoanStatusPending,
	}
	if errCreate := conn.Create(&loan).Error; errCreate != nil {
		t.Fatalf("create loan: %v", errCreate)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v0/admin/loans/1/approve", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var reloaded models.Loan
	if errFind := conn.First(&reloaded, loan.ID).Error; errFind != nil {
		t.Fatalf("reload loan: %v", errFind)
	}
	if reloaded.Status != models.LoanStatusActive {
		t.Fatalf("expected active loan, got status %d", reloaded.Status)
	}
	if reloaded.EMIAmount != 100 {
		t.Fatalf("expected emi 100 for zero-interest 1200/12, got %v", reloaded.EMIAmount)
	}

	var borrower models.User
	if errFind := conn.First(&borrower, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if borrower.Balance != 1200 {
		t.Fatalf("expected disbursed balance 1200, got %v", borrower.Balance)
	}

	var schedule []map[string]any
	if errDecode := json.Unmarshal(reloaded.Schedule, &schedule); errDecode != nil {
		t.Fatalf("decode schedule: %v", errDecode)
	}
	if len(schedule) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(schedule))
	}
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestServer(t)
	rec := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
