package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler serves the REST API on top of the inbound ports
type Handler struct {
	accounts inbound.AccountService
	listings inbound.ListingService
	bids     inbound.BidService
	now      func() time.Time
	logger   zerolog.Logger
}

type HandlerParams struct {
	Accounts inbound.AccountService
	Listings inbound.ListingService
	Bids     inbound.BidService
	// Now defaults to time.Now
	Now    func() time.Time
	Logger zerolog.Logger
}

func NewHandler(params HandlerParams) *Handler {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		accounts: params.Accounts,
		listings: params.Listings,
		bids:     params.Bids,
		now:      now,
		logger:   params.Logger.With().Str("component", "http_handler").Logger(),
	}
}

// Register handles POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, h.logger, "Register", err)
		return
	}

	acc, err := h.accounts.Register(c.Request.Context(), inbound.RegisterRequest{
		FullName: req.FullName,
		Username: req.Username,
		Password: req.Password,
		Mobile:   req.Mobile,
	})
	if err != nil {
		respondError(c, h.logger, "Register", err)
		return
	}

	JSONResponse(c, http.StatusCreated, acc, "registration received, awaiting admin approval")
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, h.logger, "Login", err)
		return
	}

	var role account.Role
	if req.Role != "" {
		parsed, err := account.ParseRole(req.Role)
		if err != nil {
			respondError(c, h.logger, "Login", err)
			return
		}
		role = parsed
	}

	result, err := h.accounts.Login(c.Request.Context(), inbound.LoginRequest{
		Username: req.Username,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		respondError(c, h.logger, "Login", err)
		return
	}

	JSONResponse(c, http.StatusOK, result, "login successful")
}

// Me handles GET /me
func (h *Handler) Me(c *gin.Context) {
	identity := identityFrom(c)
	acc, err := h.accounts.GetAccount(c.Request.Context(), identity.AccountID)
	if err != nil {
		respondError(c, h.logger, "Me", err)
		return
	}
	JSONResponse(c, http.StatusOK, acc, "account retrieved successfully")
}

// ListPending handles GET /admin/accounts/pending
func (h *Handler) ListPending(c *gin.Context) {
	identity := identityFrom(c)
	pending, err := h.accounts.ListPending(c.Request.Context(), identity.AccountID)
	if err != nil {
		respondError(c, h.logger, "ListPending", err)
		return
	}
	if pending == nil {
		pending = []*account.Account{}
	}
	JSONResponse(c, http.StatusOK, pending, "pending accounts retrieved successfully")
}

// ReviewAccount handles POST /admin/accounts/:account_id/review
func (h *Handler) ReviewAccount(c *gin.Context) {
	accountID, ok := h.pathID(c, "account_id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, h.logger, "ReviewAccount", err)
		return
	}

	acc, err := h.accounts.Review(c.Request.Context(), inbound.ReviewRequest{
		AdminID:   identityFrom(c).AccountID,
		AccountID: accountID,
		Decision:  account.Decision(req.Decision),
	})
	if err != nil {
		respondError(c, h.logger, "ReviewAccount", err)
		return
	}

	JSONResponse(c, http.StatusOK, acc, "account "+string(acc.Status))
}

// CreateListing handles POST /admin/listings
func (h *Handler) CreateListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, h.logger, "CreateListing", err)
		return
	}

	l, err := h.listings.CreateListing(c.Request.Context(), inbound.CreateListingRequest{
		ActorID:     identityFrom(c).AccountID,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		BasePrice:   *req.BasePrice,
		CloseTime:   req.CloseTime,
		Duration:    time.Duration(req.DurationHours) * time.Hour,
	})
	if err != nil {
		respondError(c, h.logger, "CreateListing", err)
		return
	}

	JSONResponse(c, http.StatusCreated, newListingResponse(l, h.now()), "listing created successfully")
}

// CloseListing handles POST /admin/listings/:listing_id/close
func (h *Handler) CloseListing(c *gin.Context) {
	listingID, ok := h.pathID(c, "listing_id")
	if !ok {
		return
	}

	l, err := h.listings.CloseListing(c.Request.Context(), identityFrom(c).AccountID, listingID)
	if err != nil {
		respondError(c, h.logger, "CloseListing", err)
		return
	}

	JSONResponse(c, http.StatusOK, newListingResponse(l, h.now()), "listing closed")
}

// ListListings handles GET /listings
func (h *Handler) ListListings(c *gin.Context) {
	req := inbound.ListListingsRequest{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	if raw := c.Query("status"); raw != "" {
		status := listing.Status(raw)
		if status != listing.StatusActive && status != listing.StatusClosed {
			respondError(c, h.logger, "ListListings", fmt.Errorf("%w: unknown listing status %q", shared.ErrInvalidRequest, raw))
			return
		}
		req.Status = &status
	}

	listings, err := h.listings.ListListings(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "ListListings", err)
		return
	}

	now := h.now()
	resp := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, newListingResponse(l, now))
	}
	JSONResponse(c, http.StatusOK, resp, "listings retrieved successfully")
}

// GetListing handles GET /listings/:listing_id
func (h *Handler) GetListing(c *gin.Context) {
	listingID, ok := h.pathID(c, "listing_id")
	if !ok {
		return
	}

	l, err := h.listings.GetListing(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, h.logger, "GetListing", err)
		return
	}
	JSONResponse(c, http.StatusOK, newListingResponse(l, h.now()), "listing retrieved successfully")
}

// GetBids handles GET /listings/:listing_id/bids
func (h *Handler) GetBids(c *gin.Context) {
	listingID, ok := h.pathID(c, "listing_id")
	if !ok {
		return
	}

	bids, err := h.bids.GetBids(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, h.logger, "GetBids", err)
		return
	}
	if bids == nil {
		bids = []*bid.Bid{}
	}
	JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// PlaceBid handles POST /listings/:listing_id/bids
func (h *Handler) PlaceBid(c *gin.Context) {
	listingID, ok := h.pathID(c, "listing_id")
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, h.logger, "PlaceBid", err)
		return
	}

	b, err := h.bids.PlaceBid(c.Request.Context(), inbound.PlaceBidRequest{
		AccountID: identityFrom(c).AccountID,
		ListingID: listingID,
		Amount:    *req.Amount,
	})
	if err != nil {
		respondError(c, h.logger, "PlaceBid", err)
		return
	}

	h.logger.Info().
		Str("bid_id", b.ID.String()).
		Str("listing_id", b.ListingID.String()).
		Str("amount", b.Amount.String()).
		Msg("PlaceBid: bid recorded successfully")
	JSONResponse(c, http.StatusCreated, b, "bid recorded successfully")
}

// MyBids handles GET /me/bids
func (h *Handler) MyBids(c *gin.Context) {
	bids, err := h.bids.GetBidsByBidder(c.Request.Context(), identityFrom(c).AccountID)
	if err != nil {
		respondError(c, h.logger, "MyBids", err)
		return
	}
	if bids == nil {
		bids = []*bid.Bid{}
	}
	JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

func (h *Handler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		HandleBindError(c, h.logger, "pathID", fmt.Errorf("%w: %s must be a UUID", shared.ErrInvalidRequest, name))
		return uuid.Nil, false
	}
	return id, true
}

// queryInt returns 0 for a missing or malformed value; services apply defaults
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
