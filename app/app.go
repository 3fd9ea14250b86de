package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"library_lending/config"
	"library_lending/db"
	"library_lending/idempotency"
	"library_lending/lending"
	"library_lending/memstore"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// IdempotencyStore 缓存带 Idempotency-Key 的首次响应
type IdempotencyStore interface {
	Load(ctx context.Context, scope, key string) (*idempotency.Record, error)
	Reserve(ctx context.Context, scope, key string) (bool, error)
	Save(ctx context.Context, scope, key string, rec idempotency.Record) error
	Release(ctx context.Context, scope, key string) error
}

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB      // nil for the memory store
	RDB     *redis.Client // nil when REDIS_ADDR is unset
	Lending *lending.Service
	Idem    IdempotencyStore
	Config  config.Config
	Log     *slog.Logger
}

// New opens the configured store and optional redis, then builds the router.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	var (
		store  lending.Store
		dbConn *gorm.DB
	)
	switch cfg.Store {
	case config.StoreMemory:
		store = memstore.New()
	default:
		conn, err := db.Open(ctx, db.Options{
			DSN:             cfg.DB.DSN(),
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
			SlowThreshold:   cfg.DB.SlowThreshold,
			Logger:          log,
		})
		if err != nil {
			return nil, err
		}
		dbConn = conn
		store = db.NewRepo(conn)
	}

	a := NewWithStore(cfg, log, store)
	a.DB = dbConn

	// --- Redis（可选）---
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.RDB = rdb
		a.Idem = idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL)
	}

	log.Info("app.ready", "store", store.Kind(), "idempotency", a.Idem != nil)
	return a, nil
}

// NewWithStore wires an App around an already constructed store.
func NewWithStore(cfg config.Config, log *slog.Logger, store lending.Store) *App {
	svc := lending.NewService(store, lending.WithLogger(log))

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(RequestID(), RequestLog(log), Recovery(log))
	useCORS(r, cfg.WebOrigin)

	return &App{Router: r, Lending: svc, Config: cfg, Log: log}
}

func (a *App) Close() {
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if a.DB != nil {
		_ = db.Close(a.DB)
	}
}

// Recovery turns a panic into the generic 500 body and logs it.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.ErrorContext(c.Request.Context(), "http.panic",
			"panic", rec, "path", c.Request.URL.Path, "request_id", RequestIDFrom(c))
		c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": MsgInternal})
	})
}
