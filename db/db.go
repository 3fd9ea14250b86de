package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"library_lending/models"
)

type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	Logger          *slog.Logger
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, opt Options) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(opt.DSN), &gorm.Config{
		Logger: NewGormLogger(opt.Logger, opt.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if opt.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return conn, nil
}

func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Migrate(ctx context.Context, conn *gorm.DB) error {
	db := conn.WithContext(ctx)
	if err := db.AutoMigrate(&models.Category{}, &models.Book{}, &models.Loan{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// 同一本书最多一条未归还的 Loan
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s
	  ON %s (book_id)
	  WHERE is_returned = FALSE;
	`, models.OneActiveLoanIndex, models.LoanTable)).Error; err != nil {
		return fmt.Errorf("create %s: %w", models.OneActiveLoanIndex, err)
	}

	// 按书查借阅历史
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_book_loan_date
	  ON %s (book_id, loan_date DESC);
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return fmt.Errorf("create loan history index: %w", err)
	}

	return nil
}
