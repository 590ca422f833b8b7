package db

// Amounts are stored in minor units.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL,
	mobile        TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'buyer')),
	status        TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
	created_at    TIMESTAMPTZ NOT NULL,
	reviewed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS listings (
	id              UUID PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	base_price      BIGINT NOT NULL CHECK (base_price > 0),
	current_highest BIGINT NOT NULL CHECK (current_highest >= base_price),
	close_time      TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL CHECK (status IN ('active', 'closed')),
	bid_count       BIGINT NOT NULL DEFAULT 0,
	last_bid_at     TIMESTAMPTZ,
	created_by      UUID NOT NULL REFERENCES accounts(id),
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	closed_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS listings_active_close_time_idx
	ON listings (close_time) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS bids (
	id              UUID PRIMARY KEY,
	listing_id      UUID NOT NULL REFERENCES listings(id),
	bidder_id       UUID NOT NULL REFERENCES accounts(id),
	bidder_username TEXT NOT NULL,
	amount          BIGINT NOT NULL CHECK (amount > 0),
	sequence        BIGINT NOT NULL,
	placed_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (listing_id, sequence)
);

CREATE INDEX IF NOT EXISTS bids_bidder_idx ON bids (bidder_id, placed_at);
`
