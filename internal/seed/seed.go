// Package seed loads the demo marketplace through the application services,
// so every seeded bid passes the same acceptance rules as a live one.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"heritage-auction-service/internal/app"
	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/domain/shared"
	"heritage-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DemoPassword is shared by every seeded account
const DemoPassword = "password"

type demoBuyer struct {
	username string
	fullName string
	mobile   string
}

type demoListing struct {
	title       string
	description string
	imageURL    string
	basePrice   int64
	openFor     time.Duration
	bids        []demoBid
}

type demoBid struct {
	username string
	amount   int64
}

var buyers = []demoBuyer{
	{username: "rohan", fullName: "Rohan Sharma", mobile: "8888888888"},
	{username: "priya_art", fullName: "Priya Menon", mobile: "7777777777"},
}

var listings = []demoListing{
	{
		title:       "Antique Brass Diya",
		description: "A 19th-century handcrafted brass oil lamp with intricate carvings of peacocks.",
		imageURL:    "https://picsum.photos/400/300",
		basePrice:   5000,
		openFor:     24 * time.Hour,
		bids:        []demoBid{{username: "rohan", amount: 5500}},
	},
	{
		title:       "Sandalwood Mala",
		description: "Authentic Mysore sandalwood beads, hand-knotted with silver caps.",
		imageURL:    "https://picsum.photos/400/301",
		basePrice:   12000,
		openFor:     48 * time.Hour,
	},
	{
		title:       "Silk Pattachitra Painting",
		description: "Traditional Odisha Pattachitra painting depicting the Dashavatar on pure silk cloth.",
		imageURL:    "https://picsum.photos/400/302",
		basePrice:   25000,
		openFor:     12 * time.Hour,
		bids: []demoBid{
			{username: "rohan", amount: 26000},
			{username: "priya_art", amount: 28000},
		},
	},
}

type Params struct {
	Services *app.Services
	Logger   zerolog.Logger
}

// Result lists what Load created
type Result struct {
	Admin    *account.Account
	Buyers   map[string]*account.Account
	Listings []*listing.Listing
}

// Load creates the demo admin, approved buyers, listings and bids. A store
// that already holds the demo admin is left untouched and Load returns
// (nil, nil).
func Load(ctx context.Context, params Params) (*Result, error) {
	logger := params.Logger.With().Str("component", "seed").Logger()
	svc := params.Services

	admin, err := svc.Accounts.CreateAdmin(ctx, "admin", "Temple Admin", "9999999999", DemoPassword)
	if errors.Is(err, shared.ErrUsernameTaken) {
		logger.Info().Msg("Demo data already present, skipping seed")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	result := &Result{Admin: admin, Buyers: make(map[string]*account.Account)}

	for _, b := range buyers {
		acc, err := svc.Accounts.Register(ctx, inbound.RegisterRequest{
			FullName: b.fullName,
			Username: b.username,
			Password: DemoPassword,
			Mobile:   b.mobile,
		})
		if err != nil {
			return nil, fmt.Errorf("seed buyer %s: %w", b.username, err)
		}
		acc, err = svc.Accounts.Review(ctx, inbound.ReviewRequest{
			AdminID:   admin.ID,
			AccountID: acc.ID,
			Decision:  account.DecisionApprove,
		})
		if err != nil {
			return nil, fmt.Errorf("approve buyer %s: %w", b.username, err)
		}
		result.Buyers[b.username] = acc
	}

	for _, dl := range listings {
		l, err := svc.Listings.CreateListing(ctx, inbound.CreateListingRequest{
			ActorID:     admin.ID,
			Title:       dl.title,
			Description: dl.description,
			ImageURL:    dl.imageURL,
			BasePrice:   money.FromMajor(dl.basePrice),
			Duration:    dl.openFor,
		})
		if err != nil {
			return nil, fmt.Errorf("seed listing %q: %w", dl.title, err)
		}

		for _, sb := range dl.bids {
			if err := placeBid(ctx, svc, result.Buyers[sb.username].ID, l.ID, sb.amount); err != nil {
				return nil, fmt.Errorf("seed bid on %q: %w", dl.title, err)
			}
		}

		if l, err = svc.Listings.GetListing(ctx, l.ID); err != nil {
			return nil, err
		}
		result.Listings = append(result.Listings, l)
	}

	logger.Info().
		Int("buyers", len(result.Buyers)).
		Int("listings", len(result.Listings)).
		Msg("Demo data loaded")
	return result, nil
}

func placeBid(ctx context.Context, svc *app.Services, bidderID, listingID uuid.UUID, amount int64) error {
	_, err := svc.Engine.PlaceBid(ctx, inbound.PlaceBidRequest{
		AccountID: bidderID,
		ListingID: listingID,
		Amount:    money.FromMajor(amount),
	})
	return err
}
