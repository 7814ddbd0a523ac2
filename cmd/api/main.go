// @title markbox API
// @version 1.0
// @description API сервиса закладок markbox
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"markbox/config"
	"markbox/internal/accounts"
	"markbox/internal/catalog"
	"markbox/internal/db"
	"markbox/internal/handlers"
	"markbox/internal/logging"
	"markbox/internal/mail"
	"markbox/internal/notices"
	"markbox/internal/services/storage"
	"markbox/internal/signing"

	docs "markbox/docs"
)

// purgeInterval задаёт период фоновой очистки просроченных токенов.
const purgeInterval = time.Hour

func main() {
	// 1. Загружаем конфиг из .env / окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	// 1.1 Определяем режим запуска (dev/prod)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Открываем GORM-подключение
	gormDB, err := db.NewDB(cfg.DSN, !cfg.Production())
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}

	// 3. Хранилище изображений, уведомления, почта
	store, err := storage.New(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	if s, ok := store.(*storage.Service); ok {
		if err := s.EnsureBucket(ctx); err != nil {
			logger.Fatal("bucket init failed", zap.Error(err))
		}
	} else {
		logger.Warn("MINIO_ENDPOINT is empty, images are kept in memory")
	}

	checks := map[string]handlers.Check{}
	var queue notices.Inbox
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		queue = notices.NewRedisInbox(rdb, cfg.NoticeLimit)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		queue = notices.NewMemoryInbox(cfg.NoticeLimit)
	}
	inbox := notices.NewHub(queue, logger.Named("notices"))

	var mailer mail.Sender
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTP(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	} else {
		logger.Warn("SMTP_HOST is empty, mail is written to the log")
		mailer = mail.NewOutbox(logger)
	}
	templates, err := mail.DefaultCatalog()
	if err != nil {
		logger.Fatal("mail templates failed", zap.Error(err))
	}

	accountSvc := accounts.New(gormDB, signing.New(cfg.SecretKey), mailer, templates, store, accounts.Config{
		BaseURL:              cfg.BaseURL,
		ActivationTimeout:    cfg.ActivationTimeout,
		PasswordResetTimeout: cfg.PasswordResetTimeout,
		TokenTTL:             cfg.TokenTypeTTL,
	}, logger.Named("accounts"))
	catalogSvc := catalog.New(gormDB, store, cfg.PageSize, logger.Named("catalog"))

	docs.SwaggerInfo.BasePath = "/"

	// 4. Создаём Gin-роутер и регистрируем маршруты
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), handlers.WithLogger(logger))
	if len(cfg.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AddAllowHeaders("Authorization")
		r.Use(cors.New(corsCfg))
	}
	r.GET("/health", handlers.Health(gormDB, checks))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/notices", handlers.RequireAuthenticated(accountSvc), handlers.NoticesWS(inbox, cfg.CORSOrigins))

	auth := r.Group("/auth")
	auth.POST("/register", handlers.Register(accountSvc))
	auth.GET("/register/confirm/:token", handlers.ConfirmRegistration(accountSvc))
	auth.POST("/login", handlers.Login(accountSvc))
	auth.POST("/refresh", handlers.Refresh(accountSvc))
	auth.POST("/password/reset", handlers.RequestPasswordReset(accountSvc))
	auth.GET("/password/reset/:token", handlers.CheckPasswordReset(accountSvc))
	auth.POST("/password/reset/:token", handlers.ConfirmPasswordReset(accountSvc))
	auth.Use(handlers.RequireAuthenticated(accountSvc))
	auth.GET("/profile", handlers.Profile())
	auth.POST("/logout", handlers.Logout(accountSvc))
	auth.POST("/email", handlers.RequestEmailChange(accountSvc, inbox))
	auth.GET("/email/confirm/:token", handlers.ConfirmEmailChange(accountSvc, inbox))
	auth.POST("/password", handlers.ChangePassword(accountSvc, inbox))

	api := r.Group("/")
	api.Use(handlers.RequireAuthenticated(accountSvc))
	api.GET("/users/:id", handlers.GetUser(accountSvc))
	api.DELETE("/users/:id", handlers.DeleteUser(accountSvc, inbox))
	api.GET("/notices", handlers.ListNotices(inbox))

	api.GET("/categories", handlers.ListCategories(catalogSvc))
	api.POST("/categories", handlers.CreateCategory(catalogSvc, inbox))
	api.GET("/categories/:id", handlers.GetCategory(catalogSvc))
	api.PUT("/categories/:id", handlers.UpdateCategory(catalogSvc, inbox))
	api.DELETE("/categories/:id", handlers.DeleteCategory(catalogSvc, inbox))
	api.POST("/categories/:id/up", handlers.MoveCategory(catalogSvc, catalog.Up))
	api.POST("/categories/:id/down", handlers.MoveCategory(catalogSvc, catalog.Down))

	api.GET("/items", handlers.ListItems(catalogSvc))
	api.POST("/items", handlers.CreateItem(catalogSvc, inbox))
	api.GET("/items/:id", handlers.GetItem(catalogSvc))
	api.PUT("/items/:id", handlers.UpdateItem(catalogSvc, inbox))
	api.DELETE("/items/:id", handlers.DeleteItem(catalogSvc, inbox))
	api.GET("/items/:id/image", handlers.ItemImage(catalogSvc))
	api.POST("/items/:id/up", handlers.MoveItem(catalogSvc, catalog.Up))
	api.POST("/items/:id/down", handlers.MoveItem(catalogSvc, catalog.Down))

	// 5. Запускаем сервер и фоновую очистку
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := accountSvc.PurgeExpiredTokens(gctx)
				if err != nil {
					logger.Warn("purge tokens failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Info("expired tokens purged", zap.Int64("count", n))
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
