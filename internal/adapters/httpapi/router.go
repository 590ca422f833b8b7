package httpapi

import (
	"net/http"

	"heritage-auction-service/internal/ports/inbound"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RouterParams struct {
	Handler   *Handler
	Tokens    inbound.TokenVerifier
	WebSocket http.HandlerFunc
	Logger    zerolog.Logger
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(params RouterParams) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())
	router.Use(RequestLogger(params.Logger.With().Str("component", "http").Logger()))

	router.GET("/health", handleHealth)
	if params.WebSocket != nil {
		router.GET("/ws", gin.WrapF(params.WebSocket))
	}

	h := params.Handler
	authenticated := Authenticate(params.Tokens)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)

		listings := v1.Group("/listings")
		listings.GET("", h.ListListings)
		listings.GET("/:listing_id", h.GetListing)
		listings.GET("/:listing_id/bids", h.GetBids)
		listings.POST("/:listing_id/bids", authenticated, h.PlaceBid)

		me := v1.Group("/me", authenticated)
		me.GET("", h.Me)
		me.GET("/bids", h.MyBids)

		admin := v1.Group("/admin", authenticated)
		admin.GET("/accounts/pending", h.ListPending)
		admin.POST("/accounts/:account_id/review", h.ReviewAccount)
		admin.POST("/listings", h.CreateListing)
		admin.POST("/listings/:listing_id/close", h.CloseListing)
	}

	return router
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "heritage-auction-service"})
}
