package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// ConnectDatabaseWithRetry opens the relational store named by DB_DRIVER
// (mysql, sqlite or postgres) and retries with backoff until it answers a
// ping or the attempt budget runs out. The handle is returned, not stored;
// the caller owns it.
func ConnectDatabaseWithRetry(logg *logrus.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFromEnv()
	if err != nil {
		return nil, err
	}

	maxAttempts := IntFromEnv("DB_CONNECT_ATTEMPTS", 10)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			NamingStrategy: schema.NamingStrategy{SingularTable: false},
			TranslateError: true,
		})
		if err == nil {
			sqlDB, err := db.DB()
			if err == nil && sqlDB.Ping() == nil {
				sqlDB.SetMaxIdleConns(IntFromEnv("DB_MAX_IDLE_CONNS", 10))
				sqlDB.SetMaxOpenConns(IntFromEnv("DB_MAX_OPEN_CONNS", 100))
				sqlDB.SetConnMaxLifetime(time.Hour)
				logg.WithFields(logrus.Fields{
					"driver":  os.Getenv("DB_DRIVER"),
					"attempt": attempt,
				}).Info("connected to database")
				return db, nil
			}
			if err == nil {
				err = fmt.Errorf("ping failed")
			}
		}
		lastErr = err
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logg.WithFields(logrus.Fields{
			"attempt": attempt,
			"retryIn": sleep.String(),
		}).Warnf("failed to connect database: %v", err)
		time.Sleep(sleep)
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxAttempts, lastErr)
}

func dialectorFromEnv() (gorm.Dialector, error) {
	driver := strings.ToLower(EnvOrDefault("DB_DRIVER", "sqlite"))
	switch driver {
	case "mysql":
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbHost := EnvOrDefault("DB_HOST", "localhost")
		dbPort := EnvOrDefault("DB_PORT", "3306")
		dbName := EnvOrDefault("DB_NAME", "financas")

		network := "tcp"
		address := fmt.Sprintf("%s:%s", dbHost, dbPort)
		if strings.HasPrefix(dbHost, "/") {
			network = "unix"
			address = dbHost
		}
		dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
			dbUser, dbPassword, network, address, dbName)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(EnvOrDefault("DB_PATH", "financas.db")), nil
	case "postgres":
		dsn := os.Getenv("DB_DSN")
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				EnvOrDefault("DB_HOST", "localhost"),
				EnvOrDefault("DB_PORT", "5432"),
				os.Getenv("DB_USER"),
				os.Getenv("DB_PASSWORD"),
				EnvOrDefault("DB_NAME", "financas"))
		}
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
