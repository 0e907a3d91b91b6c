// Package dbtest opens isolated sqlite databases carrying the full schema so
// repository and service tests can run without Postgres.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// AllModels lists every table the service owns, parents first.
func AllModels() []any {
	return []any{
		&models.Store{},
		&models.Product{},
		&models.Address{},
		&models.CartItem{},
		&models.ShippingMethod{},
		&models.Voucher{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderVoucher{},
		&models.PaymentProof{},
		&models.PaymentTransaction{},
		&models.Inventory{},
		&models.StockJournal{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a fresh in-memory database shared by all connections of the
// returned pool and closed when the test ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
