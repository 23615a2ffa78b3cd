package testutils

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	repo "class_forum/internal/repository/mysql"
)

// SetupTestDB 连接 TEST_DATABASE_DSN 指定的库，未设置时跳过测试。
// TEST_DATABASE_DRIVER 可选 mysql（默认）或 postgres。
// 返回的事务在测试结束时回滚。
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := OpenTestDB(t)
	tx := db.Begin()
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

// OpenTestDB 不开事务的连接，用于并发场景；测试需自行清理写入的数据
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	dialector := mysql.Open(dsn)
	if os.Getenv("TEST_DATABASE_DRIVER") == "postgres" {
		dialector = postgres.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestRedis 连接 TEST_REDIS_ADDR，未设置时跳过测试；结束时清空所用的库
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("connect test redis: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		_ = rdb.Close()
	})
	return rdb
}
