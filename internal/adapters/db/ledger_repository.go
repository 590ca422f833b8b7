package db

import (
	"context"
	"database/sql"

	"heritage-auction-service/internal/domain/bid"
	"heritage-auction-service/internal/domain/money"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const bidColumns = `id, listing_id, bidder_id, bidder_username, amount, sequence, placed_at`

// LedgerRepository implements the ledger repository interface
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

/*
Append records a bid with optimistic concurrency control.
 1. Advance the listing summary only if it is still active and its current
    highest and bid count are what the caller evaluated the bid against
 2. Fail with ErrStaleListing if no row matched, so the caller re-reads
 3. Insert the bid; the (listing_id, sequence) key rejects a duplicate slot
*/
func (r *LedgerRepository) Append(ctx context.Context, newBid *bid.Bid, expectedHighest money.Amount) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		updateQuery := `
			UPDATE listings
			SET current_highest = $2, bid_count = bid_count + 1, last_bid_at = $3, updated_at = $3
			WHERE id = $1 AND status = 'active' AND current_highest = $4 AND bid_count = $5
		`

		result, err := tx.ExecContext(ctx, updateQuery,
			newBid.ListingID,
			newBid.Amount,
			newBid.PlacedAt,
			expectedHighest,
			newBid.Sequence-1,
		)
		if err != nil {
			return shared.StorageError("advance listing", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return shared.StorageError("advance listing", err)
		}
		if rowsAffected == 0 {
			return shared.ErrStaleListing
		}

		insertQuery := `
			INSERT INTO bids (` + bidColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err = tx.ExecContext(ctx, insertQuery,
			newBid.ID,
			newBid.ListingID,
			newBid.BidderID,
			newBid.BidderUsername,
			newBid.Amount,
			newBid.Sequence,
			newBid.PlacedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.ErrStaleListing
			}
			return shared.StorageError("insert bid", err)
		}

		return nil
	})
}

// History retrieves the bids of a listing in acceptance order
func (r *LedgerRepository) History(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1
		ORDER BY sequence ASC
	`

	return r.query(ctx, "bid history", query, listingID)
}

// ByBidder retrieves the bids of an account, oldest first
func (r *LedgerRepository) ByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE bidder_id = $1
		ORDER BY placed_at ASC, sequence ASC
	`

	return r.query(ctx, "bids by bidder", query, bidderID)
}

func (r *LedgerRepository) query(ctx context.Context, op, query string, arg interface{}) ([]*bid.Bid, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, shared.StorageError(op, err)
	}
	defer rows.Close()

	bids := make([]*bid.Bid, 0)
	for rows.Next() {
		var b bid.Bid
		err := rows.Scan(
			&b.ID,
			&b.ListingID,
			&b.BidderID,
			&b.BidderUsername,
			&b.Amount,
			&b.Sequence,
			&b.PlacedAt,
		)
		if err != nil {
			return nil, shared.StorageError("scan bid", err)
		}
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, shared.StorageError(op, err)
	}

	return bids, nil
}
