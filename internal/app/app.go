// Package app wires configuration, storage, services and workers into the
// running HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/account"
	"github.com/nextgenbank/backoffice/internal/bankaccount"
	"github.com/nextgenbank/backoffice/internal/config"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/health"
	"github.com/nextgenbank/backoffice/internal/http/api/admin"
	"github.com/nextgenbank/backoffice/internal/http/api/front"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/kyc"
	"github.com/nextgenbank/backoffice/internal/logging"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/nextgenbank/backoffice/internal/ratelimit"
	"github.com/nextgenbank/backoffice/internal/session"
	internalsettings "github.com/nextgenbank/backoffice/internal/settings"
	"github.com/nextgenbank/backoffice/internal/token"
	"github.com/nextgenbank/backoffice/internal/upload"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	return db.Migrate(conn.WithContext(ctx))
}

// Services groups the domain services shared by the routers and workers.
type Services struct {
	DB           *gorm.DB
	Accounts     *account.Service
	Sessions     *session.Manager
	KYC          *kyc.Service
	BankAccounts *bankaccount.Service
	Uploads      *upload.Service
	Limiter      *ratelimit.Manager
	Health       *health.Checker
}

// NewServices builds the domain services from cfg. The outbox is the only
// notification dispatcher; delivery happens in the notify worker.
func NewServices(conn *gorm.DB, cfg config.Config, redisClient *redis.Client) (*Services, error) {
	issuer, errIssuer := token.NewIssuer(cfg.Auth.TokenSecret, cfg.Auth.SigningKey, nil)
	if errIssuer != nil {
		return nil, errIssuer
	}
	outbox := notify.NewOutbox(conn, nil)

	accounts := account.NewService(conn, issuer, outbox, account.Config{
		SiteName:            cfg.SiteName,
		APIBaseURL:          cfg.APIBaseURL,
		OTPExpiry:           cfg.Auth.OTPExpiry,
		LoginAttempts:       cfg.Auth.LoginAttempts,
		LockoutDuration:     cfg.Auth.LockoutDuration,
		ActivationExpiry:    cfg.Auth.ActivationExpiry,
		PasswordResetExpiry: cfg.Auth.PasswordResetExpiry,
	})
	sessions := session.NewManager(issuer, accounts, session.Config{
		AccessTTL:  cfg.Auth.AccessExpiry,
		RefreshTTL: cfg.Auth.RefreshExpiry,
		Path:       cfg.Cookies.Path,
		Domain:     cfg.Cookies.Domain,
		Secure:     cfg.SecureCookies(),
		SameSite:   session.ParseSameSite(cfg.Cookies.SameSite),
	})
	numbers := bankaccount.NumberGenerator{
		BankCode:      cfg.Bank.BankCode,
		BranchCode:    cfg.Bank.BranchCode,
		CurrencyCodes: cfg.Bank.CurrencyCodes,
	}
	limits := upload.Limits{
		MaxFileSize:      cfg.Uploads.MaxFileSize,
		MaxDimension:     cfg.Uploads.MaxDimension,
		AllowedMIMETypes: cfg.Uploads.AllowedMIMETypes,
	}

	checker := health.NewChecker(0, nil)
	checker.Register("database", health.DatabaseCheck(conn), health.Options{Critical: true, Retries: 2})
	if redisClient != nil {
		checker.Register("redis", health.RedisCheck(redisClient), health.Options{Retries: 1})
	}

	return &Services{
		DB:           conn,
		Accounts:     accounts,
		Sessions:     sessions,
		KYC:          kyc.NewService(conn),
		BankAccounts: bankaccount.NewService(conn, outbox, numbers, bankaccount.Config{MaxAccounts: cfg.Bank.MaxAccounts}, nil),
		Uploads:      upload.NewService(conn, limits, nil),
		Limiter:      ratelimit.NewManager(nil, nil, nil),
		Health:       checker,
	}, nil
}

// NewRouter builds the HTTP engine: middleware, customer and admin APIs,
// health, metrics and uploaded media.
func NewRouter(cfg config.Config, svc *Services) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinLogger())
	engine.Use(metrics.GinMiddleware())

	engine.GET("/healthz", svc.Health.Handler())
	engine.GET("/metrics", metrics.Handler())
	if cfg.Uploads.Dir != "" {
		engine.Static("/media", cfg.Uploads.Dir)
	}

	front.RegisterFrontRoutes(engine, front.Deps{
		Accounts:       svc.Accounts,
		Sessions:       svc.Sessions,
		KYC:            svc.KYC,
		BankAccounts:   svc.BankAccounts,
		Uploads:        svc.Uploads,
		Limiter:        svc.Limiter,
		APIBaseURL:     cfg.APIBaseURL,
		MaxUploadBytes: cfg.Uploads.MaxFileSize,
	})
	admin.RegisterAdminRoutes(engine, admin.Deps{
		DB:       svc.DB,
		Accounts: svc.Accounts,
		Sessions: svc.Sessions,
	})
	registerSetupRoutes(engine, svc.DB, cfg.SiteName)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "Not Found"}})
	})
	return engine
}

// registerSetupRoutes lets the first super admin be created on a configured
// database that has none yet.
func registerSetupRoutes(engine *gin.Engine, conn *gorm.DB, siteName string) {
	var initState atomic.Bool
	if initialized, errInit := HasAdminInitialized(conn); errInit == nil {
		initState.Store(initialized)
	}

	engine.GET("/v0/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: initState.Load()})
	})
	engine.POST("/v0/init/setup", func(c *gin.Context) {
		if ok, errInit := HasAdminInitialized(conn); errInit != nil {
			respond.Error(c, errInit)
			return
		} else if ok {
			initState.Store(true)
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "already_initialized", "message": "System already initialized"}})
			return
		}

		var req AdminRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			respond.BindError(c, errBind)
			return
		}
		if req.SiteName == "" {
			req.SiteName = siteName
		}
		if errAdmin := CreateAdminUserWithConn(conn, req); errAdmin != nil {
			if db.IsUniqueViolation(errAdmin, "email") || db.IsUniqueViolation(errAdmin, "id_no") {
				c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "duplicate_user", "message": "A user with this email or id number already exists"}})
				return
			}
			respond.Error(c, errAdmin)
			return
		}
		initState.Store(true)
		c.JSON(http.StatusOK, gin.H{"message": "Initialization successful"})
	})
}

// RunServer loads configuration and runs the API server and background
// workers until ctx is cancelled.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return errValidate
	}

	logCloser, errLog := logging.Setup(logging.Options{Debug: cfg.Debug, ToFile: cfg.LoggingToFile, Dir: cfg.LogDir})
	if errLog != nil {
		return errLog
	}
	defer func() { _ = logCloser.Close() }()
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errReload := internalsettings.Reload(ctx, conn); errReload != nil {
		log.WithError(errReload).Warn("initial settings load failed")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = redisClient.Close() }()
	}

	svc, errServices := NewServices(conn, cfg, redisClient)
	if errServices != nil {
		return errServices
	}

	renderer, errRenderer := notify.NewRenderer(cfg.SiteName, cfg.SupportEmail)
	if errRenderer != nil {
		return errRenderer
	}
	mailer, errMailer := notify.NewMailer(notify.MailerConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	})
	if errMailer != nil {
		return errMailer
	}
	notifyWorker := notify.NewWorker(conn, renderer, mailer, notify.WorkerConfig{
		Workers:      cfg.Mail.Workers,
		PollInterval: cfg.Mail.PollInterval,
	}, nil)

	storage, errStorage := upload.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.PublicBaseURL)
	if errStorage != nil {
		return errStorage
	}
	uploadWorker := upload.NewWorker(conn, storage, svc.KYC, upload.WorkerConfig{}, nil)
	settingsWatcher := internalsettings.NewWatcher(conn, 0)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           NewRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return notifyWorker.Run(groupCtx) })
	group.Go(func() error {
		uploadWorker.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		settingsWatcher.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		log.Infof("starting %s api on %s (environment=%s)", cfg.SiteName, srv.Addr, cfg.Environment)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", errListen)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
		return nil
	})

	errRun := group.Wait()
	log.Info("server stopped")
	if errors.Is(errRun, context.Canceled) {
		return nil
	}
	return errRun
}
