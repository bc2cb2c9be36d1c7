package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/config"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"github.com/Caqil/iprofit-admin-sub003/internal/security"
)

// AuthHandler manages admin sign-in and two-factor enrolment.
type AuthHandler struct {
	db    *gorm.DB         // Database handle for admin accounts.
	jwt   config.JWTConfig // Token signing configuration.
	audit *audit.Recorder  // Audit trail for auth events.
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwt config.JWTConfig, recorder *audit.Recorder) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, audit: recorder}
}

// loginRequest captures the sign-in payload.
type loginRequest struct {
	Username string `json:"username"`  // Admin login name.
	Password string `json:"password"`  // Plain-text password.
	TOTPCode string `json:"totp_code"` // Two-factor code, required when enrolled.
}

var errInvalidCredentials = errors.New("invalid username or password")

// Login verifies credentials (and the TOTP code when the account is
// enrolled) and issues a signed session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}
	if !security.VerifyPassword(admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials.Error()})
		return
	}

	if admin.TOTPSecret != "" {
		code := strings.TrimSpace(body.TOTPCode)
		if code == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "totp code required", "totp_required": true})
			return
		}
		if !security.ValidateTOTP(admin.TOTPSecret, code) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
			return
		}
	}

	token, errSign := security.SignAdminToken(h.jwt.Secret, admin.ID, h.jwt.Expiry)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	now := time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("last_login_at", now).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update login time failed"})
		return
	}

	ip, agent := clientContext(c)
	var details map[string]any
	if deviceID := DeviceID(c); deviceID != "" {
		details = map[string]any{"device_id": deviceID}
	}
	h.audit.Record(c.Request.Context(), admin.ID, "admin.login", "admin", admin.ID, details, ip, agent)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.jwt.Expiry.Seconds()),
		"admin":      formatAdmin(&admin),
	})
}

// TOTPSetup issues a fresh secret for the signed-in admin. The secret is
// not persisted until the admin confirms a valid code against it.
func (h *AuthHandler) TOTPSetup(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if admin.TOTPSecret != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp already enabled"})
		return
	}

	account := admin.Email
	if account == "" {
		account = admin.Username
	}
	secret, url, errGen := security.GenerateTOTPSecret(account)
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// totpConfirmRequest captures the enrolment confirmation payload.
type totpConfirmRequest struct {
	Secret string `json:"secret"` // Secret returned by setup.
	Code   string `json:"code"`   // Current code generated from the secret.
}

// TOTPConfirm verifies a code against the pending secret and enables
// two-factor for the signed-in admin.
func (h *AuthHandler) TOTPConfirm(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body totpConfirmRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	secret := strings.TrimSpace(body.Secret)
	code := strings.TrimSpace(body.Code)
	if secret == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret and code are required"})
		return
	}
	if !security.ValidateTOTP(secret, code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("totp_secret", secret).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable totp failed"})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "admin.totp_enable", "admin", admin.ID, nil, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

// totpDisableRequest captures the disable payload.
type totpDisableRequest struct {
	Code string `json:"code"` // Current code, proves possession before disabling.
}

// TOTPDisable turns off two-factor for the signed-in admin after verifying
// a current code.
func (h *AuthHandler) TOTPDisable(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if admin.TOTPSecret == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp not enabled"})
		return
	}

	var body totpDisableRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !security.ValidateTOTP(admin.TOTPSecret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("totp_secret", "").Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "admin.totp_disable", "admin", admin.ID, nil, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

// changePasswordRequest captures the password change payload.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"` // Current plain-text password.
	NewPassword     string `json:"new_password"`     // Replacement plain-text password.
}

// ChangePassword rotates the signed-in admin's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !security.VerifyPassword(admin.Password, body.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password incorrect"})
		return
	}
	hashed, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errHash.Error()})
		return
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("password", hashed).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update password failed"})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "admin.password_change", "admin", admin.ID, nil, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Me returns the signed-in admin's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, formatAdmin(&admin))
}

// formatAdmin shapes an admin record for API responses, omitting secrets.
func formatAdmin(admin *models.Admin) gin.H {
	return gin.H{
		"id":            admin.ID,
		"username":      admin.Username,
		"email":         admin.Email,
		"role":          int(admin.Role),
		"totp_enabled":  admin.TOTPSecret != "",
		"active":        admin.Active,
		"last_login_at": admin.LastLoginAt,
		"created_at":    admin.CreatedAt,
	}
}
