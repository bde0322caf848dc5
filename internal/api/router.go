package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"water-vending-backend/config"
	"water-vending-backend/internal/mw"
	"water-vending-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config, receipts ReceiptDispatcher) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, cfg, receipts)

	rateLimiter := mw.RateLimiter(
		rate.Limit(cfg.Server.RateLimitPerSec),
		cfg.Server.RateLimitBurst,
		cfg.Server.RequestIPHeader,
	)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Anonymous endpoints: a user scans a QR before signing in.
		api.GET("/qr/resolve", handler.ResolveQR)
		api.GET("/dispense/config", caching, handler.GetDispenseConfig)
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		// Everything touching a wallet requires a verified bearer token.
		authed := api.Group("")
		authed.Use(mw.Auth(cfg.Auth.JWTSecret, cfg.Auth.Issuer))
		{
			authed.GET("/me/wallet", handler.GetWallet)
			authed.POST("/me/wallet/topup", handler.TopUpWallet)
			authed.GET("/me/transactions", handler.GetTransactions)
			authed.POST("/dispense", handler.Dispense)

			authed.GET("/subscriptions", handler.GetSubscriptions)
			authed.PUT("/subscriptions", handler.PutSubscription)
			authed.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	return r
}
