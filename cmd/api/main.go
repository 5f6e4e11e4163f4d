package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"assesshub/internal/audit"
	"assesshub/internal/config"
	"assesshub/internal/database"
	"assesshub/internal/domain"
	"assesshub/internal/middleware"
	"assesshub/internal/modules/admin"
	"assesshub/internal/modules/auth"
	"assesshub/internal/modules/delegation"
	"assesshub/internal/modules/invitation"
	"assesshub/internal/modules/session"
	"assesshub/internal/notify"
	"assesshub/internal/pkg/password"
	"assesshub/internal/pkg/token"
	"assesshub/internal/repository"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	identityRepo := repository.NewIdentityRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	delegationRepo := repository.NewDelegationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	table := domain.NewPermissionTable()
	recorder := audit.NewStoreRecorder(db, log)
	notifier := notify.NewLogNotifier(log)
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, cfg.MFAPendingTTL)
	hasher := password.NewHasher(password.Params{
		Time:        cfg.ArgonTime,
		MemoryKB:    cfg.ArgonMemoryKB,
		Parallelism: cfg.ArgonParallelism,
	})
	policy := password.Policy{
		MinLength:        cfg.PasswordMinLength,
		RequireUppercase: cfg.PasswordRequireUppercase,
		RequireNumber:    cfg.PasswordRequireNumber,
		RequireSpecial:   cfg.PasswordRequireSpecial,
	}

	sessionService := session.NewService(sessionRepo, session.NewMemoryCache(),
		cfg.SessionTimeout, cfg.SessionTimeoutMin, cfg.SessionTimeoutMax)

	authService := auth.NewService(identityRepo, refreshRepo, resetRepo, sessionService,
		issuer, hasher, policy, table, recorder, notifier, auth.Config{
			MaxLoginAttempts:  cfg.MaxLoginAttempts,
			LockoutDuration:   cfg.LockoutDuration,
			RefreshTTL:        cfg.RefreshTTL,
			ResetTTL:          cfg.PasswordResetTTL,
			MFAMandatoryRoles: cfg.MFAMandatoryRoles,
			MFAIssuer:         cfg.MFAIssuer,
		})
	authHandler := auth.NewHandler(authService, sessionService, assignmentRepo)

	invitationService := invitation.NewService(invitationRepo, identityRepo,
		notifier, recorder, table, cfg.InvitationTTL)
	invitationHandler := invitation.NewHandler(invitationService)

	delegationService := delegation.NewService(delegationRepo, assessmentRepo,
		notifier, recorder, table)
	delegationHandler := delegation.NewHandler(delegationService)

	adminService := admin.NewService(identityRepo, sessionService, refreshRepo, table, recorder)
	adminHandler := admin.NewHandler(adminService)

	if cfg.AppEnv == "prod" || cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute)

	v1 := r.Group("/api/v1")
	{
		// public, rate limited
		public := v1.Group("/")
		public.Use(loginLimiter.Middleware())
		{
			authHandler.RegisterPublicRoutes(public)
			invitationHandler.RegisterPublicRoutes(public)
		}

		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth(issuer))
		{
			authHandler.RegisterProtectedRoutes(protected)
			delegationHandler.RegisterProtectedRoutes(protected)

			invites := protected.Group("/")
			invites.Use(middleware.RequirePermission(table, "users:invite"))
			{
				invitationHandler.RegisterProtectedRoutes(invites)
			}

			adminRoutes := protected.Group("/")
			adminRoutes.Use(middleware.RequirePermission(table, "users:write"))
			{
				adminHandler.RegisterProtectedRoutes(adminRoutes)
			}
		}
	}

	log.WithField("addr", cfg.ListenAddr).Info("listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
