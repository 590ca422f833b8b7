package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"heritage-auction-service/internal/domain/listing"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const listingColumns = `id, title, description, image_url, base_price, current_highest, close_time, status,
	bid_count, last_bid_at, created_by, created_at, updated_at, closed_at`

// ListingRepository implements the listing repository interface
type ListingRepository struct {
	conn *Connection
}

// NewListingRepository creates a new listing repository
func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

// Create creates a new listing
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		l.ID,
		l.Title,
		l.Description,
		l.ImageURL,
		l.BasePrice,
		l.CurrentHighest,
		l.CloseTime,
		l.Status,
		l.BidCount,
		l.LastBidAt,
		l.CreatedBy,
		l.CreatedAt,
		l.UpdatedAt,
		l.ClosedAt,
	)
	if err != nil {
		return shared.StorageError("create listing", err)
	}

	return nil
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrListingNotFound
		}
		return nil, shared.StorageError("get listing", err)
	}

	return l, nil
}

// List retrieves a page of listings, newest first
func (r *ListingRepository) List(ctx context.Context, status *listing.Status, page, pageSize int) ([]*listing.Listing, error) {
	baseQuery := `SELECT ` + listingColumns + ` FROM listings `

	var whereClause string
	var args []interface{}
	argCount := 1

	if status != nil {
		whereClause = "WHERE status = $1"
		args = append(args, *status)
		argCount++
	}

	limitClause := fmt.Sprintf("LIMIT $%d", argCount)
	offsetClause := fmt.Sprintf("OFFSET $%d", argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	query := baseQuery + whereClause + " ORDER BY created_at DESC, id " + limitClause + " " + offsetClause

	return r.query(ctx, "list listings", query, args...)
}

// ListExpired retrieves active listings past their close time, earliest first
func (r *ListingRepository) ListExpired(ctx context.Context, now time.Time) ([]*listing.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = 'active' AND close_time <= $1
		ORDER BY close_time ASC
	`

	return r.query(ctx, "list expired listings", query, now)
}

// MarkClosed flips an active listing to closed. Closed listings are left alone.
func (r *ListingRepository) MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	query := `
		UPDATE listings
		SET status = 'closed', closed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, closedAt)
	if err != nil {
		return shared.StorageError("close listing", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return shared.StorageError("close listing", err)
	}
	if rowsAffected == 0 {
		// either unknown or already closed
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func (r *ListingRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*listing.Listing, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.StorageError(op, err)
	}
	defer rows.Close()

	listings := make([]*listing.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, shared.StorageError("scan listing", err)
		}
		listings = append(listings, l)
	}

	if err = rows.Err(); err != nil {
		return nil, shared.StorageError(op, err)
	}

	return listings, nil
}

func scanListing(row rowScanner) (*listing.Listing, error) {
	var l listing.Listing
	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&l.ImageURL,
		&l.BasePrice,
		&l.CurrentHighest,
		&l.CloseTime,
		&l.Status,
		&l.BidCount,
		&l.LastBidAt,
		&l.CreatedBy,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
