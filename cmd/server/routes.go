package main

import (
	"github.com/cortexui/dashboard/internal/handlers"
	"github.com/cortexui/dashboard/internal/m365"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	cfg := svc.cfg
	deps := svc.deps

	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.Server.PublicURL))

	// Rate limiters for credential and probe endpoints
	loginLimiter := middleware.NewRateLimiter(1, 5)
	probeLimiter := middleware.NewRateLimiter(0.5, 5)
	importLimiter := middleware.NewRateLimiter(1, 3)

	healthHandler := handlers.NewHealthHandler(deps)
	r.GET("/health", healthHandler.CheckHealth)
	r.StaticFS("/static", handlers.StaticFS())

	authHandler := handlers.NewAuthHandler(deps)
	setupHandler := handlers.NewSetupHandler(deps)
	probeHandler := handlers.NewProbeHandler(deps)
	m365Handler := handlers.NewM365Handler(deps)
	eventsHandler := handlers.NewEventsHandler(deps)
	dashboardHandler := handlers.NewDashboardHandler(deps)
	userHandler := handlers.NewUserHandler(deps)
	settingsHandler := handlers.NewSettingsHandler(deps)
	backupHandler := handlers.NewBackupHandler(deps)
	publicKeyHandler := handlers.NewPublicKeyHandler(deps)

	app := r.Group("", middleware.Session(deps.Sessions, cfg.Session))

	// The consent popup returns here from Azure AD both during setup and
	// from the settings page; the state ties it to its session.
	app.GET(m365.PopupPath, m365Handler.Popup)

	// Notifications
	app.GET("/events/notifications", eventsHandler.Stream)
	app.GET("/notifications", eventsHandler.List)
	app.DELETE("/notifications/:id", eventsHandler.Dismiss)

	// Setup wizard (closed once setup is done)
	setup := app.Group("/setup", middleware.SetupGuard())
	{
		setup.GET("", setupHandler.Page)
		setup.GET("/state", setupHandler.State)
		setup.POST("/data/:section", setupHandler.UpdateData)
		setup.POST("/next", setupHandler.Next)
		setup.POST("/back", setupHandler.Back)
		setup.POST("/skip", setupHandler.Skip)
		setup.POST("/import", importLimiter.Middleware(), setupHandler.Import)
		setup.GET("/export", setupHandler.Export)
		setup.POST("/download", setupHandler.DownloadOnFinish)
		setup.POST("/branding/logo", importLimiter.Middleware(), setupHandler.Logo)
		setup.POST("/complete", setupHandler.Complete)

		setup.POST("/test-db", probeLimiter.Middleware(), probeHandler.TestDatabase)
		setup.POST("/test-smtp", probeLimiter.Middleware(), probeHandler.TestSMTP)
		setup.POST("/test-matomo", probeLimiter.Middleware(), probeHandler.TestMatomo)

		setup.POST("/m365/start", probeLimiter.Middleware(), m365Handler.Start)
		setup.GET("/m365/result", m365Handler.Result)
	}

	// Everything else requires a finished setup
	public := app.Group("", middleware.SetupRequired())
	{
		public.GET("/login", authHandler.LoginPage)
		public.POST("/login", loginLimiter.Middleware(), authHandler.Login)
		public.POST("/logout", authHandler.Logout)
	}

	protected := public.Group("", middleware.AuthRequired(deps.Sessions))
	{
		protected.GET("/", dashboardHandler.Page)
		protected.GET("/verify", authHandler.VerifyPage)
		protected.POST("/verify", loginLimiter.Middleware(), authHandler.Verify)
		protected.GET("/ui/api/dashboard", dashboardHandler.Stats)
	}

	admin := protected.Group("", middleware.AdminRequired(), middleware.AuditLog(svc.audit))
	{
		admin.GET("/users", userHandler.Page)
		admin.GET("/settings", settingsHandler.Page)

		uiAPI := admin.Group("/ui/api")

		// Users
		uiAPI.GET("/users", userHandler.List)
		uiAPI.POST("/users", userHandler.Create)
		uiAPI.PUT("/users", userHandler.Update)
		uiAPI.DELETE("/users", userHandler.Delete)

		// Settings
		uiAPI.GET("/settings/database", settingsHandler.GetDatabase)
		uiAPI.PUT("/settings/database", settingsHandler.SaveDatabase)
		uiAPI.GET("/settings/mail", settingsHandler.GetMail)
		uiAPI.POST("/settings/mail", settingsHandler.SaveMail)
		uiAPI.GET("/settings/analytics", settingsHandler.GetAnalytics)
		uiAPI.POST("/settings/analytics", settingsHandler.SaveAnalytics)
		uiAPI.GET("/settings/white-label", settingsHandler.GetWhiteLabel)
		uiAPI.PUT("/settings/white-label", settingsHandler.SaveWhiteLabel)
		uiAPI.POST("/settings/white-label/logo", importLimiter.Middleware(), settingsHandler.UploadLogo)

		// Connection tests for the settings page
		uiAPI.POST("/probes/database", probeLimiter.Middleware(), probeHandler.TestDatabase)
		uiAPI.POST("/probes/smtp", probeLimiter.Middleware(), probeHandler.TestSMTP)
		uiAPI.POST("/probes/matomo", probeLimiter.Middleware(), probeHandler.TestMatomo)
		uiAPI.POST("/m365/start", probeLimiter.Middleware(), m365Handler.Start)
		uiAPI.GET("/m365/result", m365Handler.Result)

		// Public keys
		uiAPI.GET("/public-keys", publicKeyHandler.List)
		uiAPI.POST("/public-keys", publicKeyHandler.Create)
		uiAPI.PUT("/public-keys/:uid/toggle", publicKeyHandler.Toggle)
		uiAPI.DELETE("/public-keys/:uid", publicKeyHandler.Delete)

		// Backup
		uiAPI.GET("/backup", backupHandler.Overview)
		uiAPI.POST("/backup", backupHandler.Run)
		uiAPI.GET("/backup/status", backupHandler.Status)
		uiAPI.POST("/backup/start", backupHandler.Start)
		uiAPI.POST("/backup/stop", backupHandler.Stop)
		uiAPI.PUT("/backup/settings", backupHandler.UpdateSettings)
		uiAPI.GET("/backup/file/:file", backupHandler.Download)
		uiAPI.DELETE("/backup/file/:file", backupHandler.Delete)
	}
}
