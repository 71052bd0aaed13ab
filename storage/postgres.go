package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"imovel-scraper/models"
)

// Store persists links, raw extraction records and canonical listings in
// PostgreSQL. It implements LinkStore, RawStore and PropertyStore.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection to PostgreSQL, runs schema migrations, and
// returns a ready-to-use Store.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS links (
			id                SERIAL PRIMARY KEY,
			url               TEXT        UNIQUE NOT NULL,
			category          VARCHAR(50) NOT NULL DEFAULT '',
			status            VARCHAR(20) NOT NULL DEFAULT 'pending',
			use_browser       BOOLEAN     NOT NULL DEFAULT FALSE,
			last_crawled_at   TIMESTAMPTZ,
			last_error        TEXT        NOT NULL DEFAULT '',
			properties_found  INT         NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS properties_raw (
			id               UUID PRIMARY KEY,
			link_id          BIGINT      NOT NULL DEFAULT 0,
			source_url       TEXT        NOT NULL,
			title            TEXT        NOT NULL,
			description      TEXT        NOT NULL DEFAULT '',
			price            NUMERIC(12,2),
			area             NUMERIC(8,2),
			bedrooms         INT,
			suites           INT,
			bathrooms        INT,
			parking          INT,
			address          TEXT        NOT NULL DEFAULT '',
			neighborhood     TEXT        NOT NULL DEFAULT '',
			city             TEXT        NOT NULL DEFAULT '',
			state            TEXT        NOT NULL DEFAULT '',
			furnished        BOOLEAN,
			features         TEXT[]      NOT NULL DEFAULT '{}',
			images           TEXT[]      NOT NULL DEFAULT '{}',
			documents        TEXT[]      NOT NULL DEFAULT '{}',
			origin           VARCHAR(20) NOT NULL DEFAULT 'heuristic',
			status           VARCHAR(20) NOT NULL DEFAULT 'pending',
			needs_processing BOOLEAN     NOT NULL DEFAULT TRUE,
			property_code    VARCHAR(10) NOT NULL DEFAULT '',
			last_error       TEXT        NOT NULL DEFAULT '',
			scraped_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS properties (
			code         VARCHAR(10) PRIMARY KEY,
			title        TEXT        NOT NULL,
			description  TEXT        NOT NULL DEFAULT '',
			price        NUMERIC(12,2) NOT NULL DEFAULT 0,
			area         NUMERIC(8,2)  NOT NULL DEFAULT 0,
			street       TEXT        NOT NULL DEFAULT '',
			neighborhood TEXT        NOT NULL DEFAULT '',
			city         TEXT        NOT NULL DEFAULT '',
			state        TEXT        NOT NULL DEFAULT '',
			country      TEXT        NOT NULL DEFAULT 'Brasil',
			lat          DOUBLE PRECISION,
			lng          DOUBLE PRECISION,
			type         VARCHAR(20) NOT NULL DEFAULT 'apartment',
			status       VARCHAR(20) NOT NULL DEFAULT 'available',
			bedrooms     INT         NOT NULL DEFAULT 0,
			suites       INT         NOT NULL DEFAULT 0,
			bathrooms    INT         NOT NULL DEFAULT 0,
			parking      INT         NOT NULL DEFAULT 0,
			furnished    BOOLEAN     NOT NULL DEFAULT FALSE,
			features     TEXT[]      NOT NULL DEFAULT '{}',
			images       TEXT[]      NOT NULL DEFAULT '{}',
			raw_id       UUID        NOT NULL UNIQUE,
			source       TEXT        NOT NULL DEFAULT '',
			active       BOOLEAN     NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS property_codes (
			id       INT PRIMARY KEY,
			last_seq BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_links_status        ON links(status);
		CREATE INDEX IF NOT EXISTS idx_raw_status          ON properties_raw(status);
		CREATE INDEX IF NOT EXISTS idx_raw_needs           ON properties_raw(needs_processing);
		CREATE INDEX IF NOT EXISTS idx_properties_type     ON properties(type);
		CREATE INDEX IF NOT EXISTS idx_properties_neigh    ON properties(neighborhood);
	`)
	return err
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- LinkStore ---

// NextBatch returns up to limit pending links in insertion order.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]*models.SourceLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, category, status, use_browser, last_crawled_at,
		       last_error, properties_found, created_at
		FROM links
		WHERE status = 'pending'
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: next batch: %w", err)
	}
	defer rows.Close()

	var links []*models.SourceLink
	for rows.Next() {
		l := &models.SourceLink{}
		var lastCrawled sql.NullTime
		if err := rows.Scan(
			&l.ID, &l.URL, &l.Category, &l.Status, &l.UseBrowser,
			&lastCrawled, &l.LastError, &l.PropertiesFound, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan link: %w", err)
		}
		if lastCrawled.Valid {
			l.LastCrawledAt = &lastCrawled.Time
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// MarkStatus persists a single link status transition.
func (s *Store) MarkStatus(ctx context.Context, id int64, status models.LinkStatus, errMsg string, found int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE links
		SET status = $2, last_error = $3, properties_found = $4, last_crawled_at = NOW()
		WHERE id = $1
	`, id, status, errMsg, found)
	if err != nil {
		return fmt.Errorf("postgres: mark link %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts links, skipping URLs already present.
func (s *Store) Seed(ctx context.Context, links []*models.SourceLink) error {
	for _, l := range links {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO links (url, category, status, use_browser)
			VALUES ($1, $2, 'pending', $3)
			ON CONFLICT (url) DO NOTHING
		`, l.URL, l.Category, l.UseBrowser)
		if err != nil {
			return fmt.Errorf("postgres: seed link %s: %w", l.URL, err)
		}
	}
	return nil
}

// ResetAll bulk-resets every link to pending for a new crawl pass.
func (s *Store) ResetAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE links SET status = 'pending', last_error = '', properties_found = 0
	`)
	if err != nil {
		return fmt.Errorf("postgres: reset links: %w", err)
	}
	return nil
}

// CountPending reports the number of links still awaiting processing.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM links WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count pending: %w", err)
	}
	return n, nil
}

// --- RawStore ---

// InsertRaw stores a freshly extracted raw record.
func (s *Store) InsertRaw(ctx context.Context, r *models.RawProperty) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties_raw (
			id, link_id, source_url, title, description,
			price, area, bedrooms, suites, bathrooms, parking,
			address, neighborhood, city, state, furnished,
			features, images, documents,
			origin, status, needs_processing, scraped_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
	`,
		r.ID, r.LinkID, r.SourceURL, r.Title, r.Description,
		r.Price, r.Area, r.Bedrooms, r.Suites, r.Bathrooms, r.Parking,
		r.Address, r.Neighborhood, r.City, r.State, r.Furnished,
		pq.Array(r.Features), pq.Array(r.Images), pq.Array(r.Documents),
		r.Origin, r.Status, r.NeedsProcessing, r.ScrapedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert raw: %w", err)
	}
	return nil
}

// PendingBatch returns raw records awaiting promotion, oldest first.
func (s *Store) PendingBatch(ctx context.Context, limit int) ([]*models.RawProperty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, link_id, source_url, title, description,
		       price, area, bedrooms, suites, bathrooms, parking,
		       address, neighborhood, city, state, furnished,
		       features, images, documents,
		       origin, status, needs_processing, property_code, last_error,
		       scraped_at, updated_at
		FROM properties_raw
		WHERE status = 'pending' AND needs_processing
		ORDER BY scraped_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending raw batch: %w", err)
	}
	defer rows.Close()

	var out []*models.RawProperty
	for rows.Next() {
		r := &models.RawProperty{}
		var (
			price, area                        sql.NullFloat64
			bedrooms, suites, bathrooms, parking sql.NullInt64
			furnished                          sql.NullBool
		)
		if err := rows.Scan(
			&r.ID, &r.LinkID, &r.SourceURL, &r.Title, &r.Description,
			&price, &area, &bedrooms, &suites, &bathrooms, &parking,
			&r.Address, &r.Neighborhood, &r.City, &r.State, &furnished,
			pq.Array(&r.Features), pq.Array(&r.Images), pq.Array(&r.Documents),
			&r.Origin, &r.Status, &r.NeedsProcessing, &r.PropertyCode, &r.LastError,
			&r.ScrapedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan raw: %w", err)
		}
		if price.Valid {
			r.Price = &price.Float64
		}
		if area.Valid {
			r.Area = &area.Float64
		}
		r.Bedrooms = nullIntPtr(bedrooms)
		r.Suites = nullIntPtr(suites)
		r.Bathrooms = nullIntPtr(bathrooms)
		r.Parking = nullIntPtr(parking)
		if furnished.Valid {
			r.Furnished = &furnished.Bool
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkProcessing flips a raw record to processing before any work begins.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.updateRawStatus(ctx, id, models.RawProcessing, "", true, "")
}

// Complete stores the canonical code and clears needsProcessing.
func (s *Store) Complete(ctx context.Context, id, propertyCode string) error {
	return s.updateRawStatus(ctx, id, models.RawCompleted, "", false, propertyCode)
}

// Ignore marks a record as confirmed non-listing content.
func (s *Store) Ignore(ctx context.Context, id string) error {
	return s.updateRawStatus(ctx, id, models.RawIgnored, "", false, "")
}

// Fail records the error and keeps the record eligible for manual re-run.
func (s *Store) Fail(ctx context.Context, id, errMsg string) error {
	return s.updateRawStatus(ctx, id, models.RawError, errMsg, true, "")
}

func (s *Store) updateRawStatus(ctx context.Context, id string, status models.RawStatus, errMsg string, needs bool, code string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE properties_raw
		SET status = $2, last_error = $3, needs_processing = $4,
		    property_code = CASE WHEN $5 <> '' THEN $5 ELSE property_code END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status, errMsg, needs, code)
	if err != nil {
		return fmt.Errorf("postgres: update raw %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- PropertyStore ---

// InsertProperty stores a canonical listing.
func (s *Store) InsertProperty(ctx context.Context, p *models.Property) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (
			code, title, description, price, area,
			street, neighborhood, city, state, country, lat, lng,
			type, status, bedrooms, suites, bathrooms, parking, furnished,
			features, images, raw_id, source, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
	`,
		p.Code, p.Title, p.Description, p.Price, p.Area,
		p.Address.Street, p.Address.Neighborhood, p.Address.City,
		p.Address.State, p.Address.Country, p.Address.Lat, p.Address.Lng,
		p.Type, p.Status, p.Bedrooms, p.Suites, p.Bathrooms, p.Parking, p.Furnished,
		pq.Array(p.Features), pq.Array(p.Images), p.RawID, p.Source, p.Active,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert property: %w", err)
	}
	return nil
}

// CodeForRaw returns the code of the listing created from the raw record,
// or "" when the record was never promoted.
func (s *Store) CodeForRaw(ctx context.Context, rawID string) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM properties WHERE raw_id = $1`, rawID).Scan(&code)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: code for raw: %w", err)
	}
	return code, nil
}

// ActiveProperties returns every active canonical listing, newest first.
// Used by the processing CLI to build the run report.
func (s *Store) ActiveProperties(ctx context.Context) ([]*models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, title, description, price, area,
		       street, neighborhood, city, state, country, lat, lng,
		       type, status, bedrooms, suites, bathrooms, parking, furnished,
		       features, images, raw_id, source, active, created_at, updated_at
		FROM properties
		WHERE active = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch properties: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p := &models.Property{}
		var lat, lng sql.NullFloat64
		if err := rows.Scan(
			&p.Code, &p.Title, &p.Description, &p.Price, &p.Area,
			&p.Address.Street, &p.Address.Neighborhood, &p.Address.City,
			&p.Address.State, &p.Address.Country, &lat, &lng,
			&p.Type, &p.Status, &p.Bedrooms, &p.Suites, &p.Bathrooms,
			&p.Parking, &p.Furnished,
			pq.Array(&p.Features), pq.Array(&p.Images),
			&p.RawID, &p.Source, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}
		if lat.Valid {
			p.Address.Lat = &lat.Float64
		}
		if lng.Valid {
			p.Address.Lng = &lng.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NextCode allocates the next IMV code. The counter row is locked inside a
// transaction so concurrent promoters serialize instead of colliding on a
// read-then-write of the highest code.
func (s *Store) NextCode(ctx context.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("postgres: begin code tx: %w", err)
	}
	defer tx.Rollback()

	// First allocation seeds the counter from the highest existing code.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO property_codes (id, last_seq) VALUES (1, $1)
		 ON CONFLICT (id) DO NOTHING`, s.seedSeq(ctx))
	if err != nil {
		return "", fmt.Errorf("postgres: seed code counter: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		UPDATE property_codes SET last_seq = last_seq + 1
		WHERE id = 1
		RETURNING last_seq
	`).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("postgres: increment code counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("postgres: commit code tx: %w", err)
	}
	return FormatCode(seq), nil
}

// seedSeq reads the numeric suffix of the highest existing code. When the
// ordering query fails it falls back to a time-derived suffix so allocation
// still makes forward progress.
func (s *Store) seedSeq(ctx context.Context) int64 {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM properties ORDER BY code DESC LIMIT 1`).Scan(&code)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		return time.Now().Unix() % 1_000_000
	}
	seq, perr := ParseCode(code)
	if perr != nil {
		return time.Now().Unix() % 1_000_000
	}
	return seq
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// FormatCode renders a sequence number as an IMV code.
func FormatCode(seq int64) string {
	return fmt.Sprintf("IMV%06d", seq)
}

// ParseCode extracts the numeric suffix of an IMV code.
func ParseCode(code string) (int64, error) {
	if !strings.HasPrefix(code, "IMV") {
		return 0, fmt.Errorf("storage: malformed code %q", code)
	}
	return strconv.ParseInt(strings.TrimPrefix(code, "IMV"), 10, 64)
}
