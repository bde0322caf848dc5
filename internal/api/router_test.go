package api

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"water-vending-backend/config"
	"water-vending-backend/internal/db"
	"water-vending-backend/internal/store"
)

const (
	testJWTSecret   = "test-jwt-secret"
	testKioskSecret = "test-kiosk-secret"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 60,
		},
		Auth: config.AuthConfig{
			JWTSecret: testJWTSecret,
			Issuer:    "test-issuer",
		},
		QR: config.QRConfig{
			KioskSecret:     testKioskSecret,
			FreshnessWindow: 10 * time.Minute,
		},
		Dispense: config.DispenseConfig{
			PricePerLiterCents:    175,
			AllowedLiters:         []float64{1, 5, 10, 20},
			DefaultFlowRateLpm:    8,
			IdempotencyTTLSeconds: 600,
		},
	}
}

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))

	router := NewRouter(store.NewGormStore(testDB), testConfig(), nil)
	return router, testDB
}

func mintToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    "test-issuer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}
