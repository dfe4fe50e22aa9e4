package db

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/alfielabs/alfie-backend/internal/conversation"
	"github.com/alfielabs/alfie-backend/internal/library"
	"github.com/alfielabs/alfie-backend/internal/models"
	"github.com/alfielabs/alfie-backend/internal/order"
	"github.com/alfielabs/alfie-backend/internal/quota"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gdb
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Brand{},
		&conversation.Session{},
		&conversation.Message{},
		&order.Order{},
		&order.OrderItem{},
		&order.Job{},
		&quota.Counter{},
		&quota.UsageEvent{},
		&library.Asset{},
	)
}
