package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/config"
	handlers "github.com/Caqil/iprofit-admin-sub003/internal/http/api/admin/handlers"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"github.com/Caqil/iprofit-admin-sub003/internal/notify"
	"github.com/Caqil/iprofit-admin-sub003/internal/ratelimit"
	"github.com/Caqil/iprofit-admin-sub003/internal/security"
)

// Deps bundles everything the admin API needs beyond the database.
type Deps struct {
	JWT        config.JWTConfig   // Token signing configuration.
	Limits     *ratelimit.Set     // Request quota limiters per route class.
	Dispatcher *notify.Dispatcher // Notification delivery pipeline.
	Audit      *audit.Recorder    // Audit trail recorder.
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")
	if deps.Limits != nil {
		adminGroup.Use(ratelimit.Middleware(deps.Limits.API))
	}

	authHandler := handlers.NewAuthHandler(db, deps.JWT, deps.Audit)
	login := adminGroup.Group("")
	login.Use(deviceCheckMiddleware())
	if deps.Limits != nil {
		login.Use(ratelimit.Middleware(deps.Limits.Auth))
	}
	login.POST("/login", authHandler.Login)
	login.POST("/login/totp", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, deps.JWT))
	if deps.Limits != nil {
		authed.Use(ratelimit.Middleware(deps.Limits.PerUser))
	}

	authed.GET("/me", authHandler.Me)
	authed.PUT("/me/password", authHandler.ChangePassword)
	authed.POST("/mfa/totp/prepare", authHandler.TOTPSetup)
	authed.POST("/mfa/totp/confirm", authHandler.TOTPConfirm)
	authed.POST("/mfa/totp/disable", authHandler.TOTPDisable)

	// Settlement and review endpoints carry a tighter quota on top of the
	// per-admin one.
	sensitive := authed.Group("")
	if deps.Limits != nil {
		sensitive.Use(ratelimit.Middleware(deps.Limits.Sensitive))
	}

	userHandler := handlers.NewUserHandler(db, deps.Audit)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.PUT("/users/:id", requireRole(models.AdminRoleModerator), userHandler.Update)
	authed.DELETE("/users/:id", requireRole(models.AdminRoleSuper), userHandler.Delete)
	authed.POST("/users/:id/enable", requireRole(models.AdminRoleModerator), userHandler.Enable)
	authed.POST("/users/:id/disable", requireRole(models.AdminRoleModerator), userHandler.Disable)
	authed.GET("/users/:id/transactions", userHandler.Transactions)
	authed.POST("/users/bulk-actions", requireRole(models.AdminRoleSuper), userHandler.BulkAction)
	sensitive.POST("/users/:id/kyc/approve", requireRole(models.AdminRoleModerator), userHandler.KYCApprove)
	sensitive.POST("/users/:id/kyc/reject", requireRole(models.AdminRoleModerator), userHandler.KYCReject)

	transactionHandler := handlers.NewTransactionHandler(db, deps.Audit)
	authed.GET("/transactions", transactionHandler.List)
	authed.GET("/transactions/:id", transactionHandler.Get)
	sensitive.POST("/transactions", requireRole(models.AdminRoleSuper), transactionHandler.CreateAdjustment)
	sensitive.POST("/transactions/:id/approve", requireRole(models.AdminRoleModerator), transactionHandler.Approve)
	sensitive.POST("/transactions/:id/reject", requireRole(models.AdminRoleModerator), transactionHandler.Reject)

	referralHandler := handlers.NewReferralHandler(db, deps.Audit)
	authed.GET("/referrals", referralHandler.List)
	authed.GET("/referrals/summary", referralHandler.Summary)
	sensitive.POST("/referrals/:id/pay", requireRole(models.AdminRoleModerator), referralHandler.Pay)
	authed.POST("/referrals/:id/cancel", requireRole(models.AdminRoleModerator), referralHandler.Cancel)

	planHandler := handlers.NewPlanHandler(db, deps.Audit)
	authed.GET("/plans", planHandler.List)
	authed.GET("/plans/:id", planHandler.Get)
	authed.POST("/plans", requireRole(models.AdminRoleSuper), planHandler.Create)
	authed.PUT("/plans/:id", requireRole(models.AdminRoleSuper), planHandler.Update)
	authed.DELETE("/plans/:id", requireRole(models.AdminRoleSuper), planHandler.Delete)
	authed.POST("/plans/:id/enable", requireRole(models.AdminRoleSuper), planHandler.Enable)
	authed.POST("/plans/:id/disable", requireRole(models.AdminRoleSuper), planHandler.Disable)

	loanHandler := handlers.NewLoanHandler(db, deps.Audit)
	authed.GET("/loans", loanHandler.List)
	authed.GET("/loans/:id", loanHandler.Get)
	authed.GET("/loans/emi", loanHandler.CalculateEMI)
	sensitive.POST("/loans/:id/approve", requireRole(models.AdminRoleModerator), loanHandler.Approve)
	sensitive.POST("/loans/:id/reject", requireRole(models.AdminRoleModerator), loanHandler.Reject)
	sensitive.POST("/loans/:id/repayments", requireRole(models.AdminRoleModerator), loanHandler.RecordRepayment)

	taskHandler := handlers.NewTaskHandler(db, deps.Audit)
	authed.GET("/tasks", taskHandler.List)
	authed.POST("/tasks", requireRole(models.AdminRoleModerator), taskHandler.Create)
	authed.PUT("/tasks/:id", requireRole(models.AdminRoleModerator), taskHandler.Update)
	authed.DELETE("/tasks/:id", requireRole(models.AdminRoleSuper), taskHandler.Delete)
	authed.POST("/tasks/:id/enable", requireRole(models.AdminRoleModerator), taskHandler.Enable)
	authed.POST("/tasks/:id/disable", requireRole(models.AdminRoleModerator), taskHandler.Disable)
	authed.GET("/task-submissions", taskHandler.Submissions)
	sensitive.POST("/task-submissions/:id/approve", requireRole(models.AdminRoleModerator), taskHandler.ApproveSubmission)
	sensitive.POST("/task-submissions/:id/reject", requireRole(models.AdminRoleModerator), taskHandler.RejectSubmission)

	notificationHandler := handlers.NewNotificationHandler(db, deps.Dispatcher, deps.Audit)
	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications", requireRole(models.AdminRoleModerator), notificationHandler.Send)

	newsHandler := handlers.NewNewsHandler(db, deps.Audit)
	authed.GET("/news", newsHandler.List)
	authed.GET("/news/:id", newsHandler.Get)
	authed.POST("/news", requireRole(models.AdminRoleModerator), newsHandler.Create)
	authed.PUT("/news/:id", requireRole(models.AdminRoleModerator), newsHandler.Update)
	authed.DELETE("/news/:id", requireRole(models.AdminRoleSuper), newsHandler.Delete)
	authed.POST("/news/:id/publish", requireRole(models.AdminRoleModerator), newsHandler.Publish)
	authed.POST("/news/:id/unpublish", requireRole(models.AdminRoleModerator), newsHandler.Unpublish)

	supportHandler := handlers.NewSupportHandler(db, deps.Audit)
	authed.GET("/support/tickets", supportHandler.ListTickets)
	authed.GET("/support/tickets/:id", supportHandler.GetTicket)
	authed.POST("/support/tickets/:id/reply", requireRole(models.AdminRoleModerator), supportHandler.Reply)
	authed.POST("/support/tickets/:id/close", requireRole(models.AdminRoleModerator), supportHandler.CloseTicket)
	authed.GET("/support/faqs", supportHandler.ListFAQ)
	authed.POST("/support/faqs", requireRole(models.AdminRoleModerator), supportHandler.CreateFAQ)
	authed.PUT("/support/faqs/:id", requireRole(models.AdminRoleModerator), supportHandler.UpdateFAQ)
	authed.DELETE("/support/faqs/:id", requireRole(models.AdminRoleModerator), supportHandler.DeleteFAQ)

	auditHandler := handlers.NewAuditHandler(db)
	authed.GET("/audit-logs", requireRole(models.AdminRoleModerator), auditHandler.List)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/metrics", dashboardHandler.Metrics)
	authed.GET("/dashboard/charts", dashboardHandler.Charts)

	settingHandler := handlers.NewSettingHandler(db, deps.Audit)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.POST("/settings", requireRole(models.AdminRoleSuper), settingHandler.Create)
	authed.PUT("/settings/:key", requireRole(models.AdminRoleSuper), settingHandler.Update)
	authed.DELETE("/settings/:key", requireRole(models.AdminRoleSuper), settingHandler.Delete)
}

// maxDeviceIDLength bounds the X-Device-ID header so the fingerprint fits
// the audit details column.
const maxDeviceIDLength = 128

// deviceCheckMiddleware captures the caller's device fingerprint for the
// sign-in audit trail. The header is optional; a malformed one is rejected.
func deviceCheckMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := strings.TrimSpace(c.GetHeader("X-Device-ID"))
		if len(deviceID) > maxDeviceIDLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "device id too long"})
			return
		}
		if deviceID != "" {
			c.Set(handlers.ContextDeviceKey, deviceID)
		}
		c.Next()
	}
}

// adminAuthMiddleware validates admin JWTs and loads admin context. The
// authenticated admin ID also becomes the quota subject for per-admin
// rate limiting.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set(handlers.ContextAdminKey, admin)
		ctx := ratelimit.ContextWithSubject(c.Request.Context(), admin.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requireRole blocks admins whose role is weaker than the given tier.
// Lower role values carry more privilege.
func requireRole(minimum models.AdminRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := handlers.CurrentAdmin(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if admin.Role > minimum {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
