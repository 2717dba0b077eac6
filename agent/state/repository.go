package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

var ErrQuoteNotFound = errors.New("quote not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects the quote repository backend. SQLite takes a file
// path or ":memory:" as DSN and is meant for single-operator local use.
type DatabaseConfig struct {
	Driver  string        `split_words:"true" default:"postgres"`
	DSN     string        `envconfig:"DSN" required:"true"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

func OpenDatabase(cfg DatabaseConfig) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverPostgres:
		return OpenPostgres(cfg)
	case DriverSQLite:
		return OpenSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenPostgres returns a bun handle; no connection is made until first use.
func OpenPostgres(cfg DatabaseConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func OpenSQLite(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	sqldb, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; an in-memory database also lives only as long as its connection.
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// QuoteRow is one saved quote. The flat payload is the document of record;
// the other columns exist for listing.
type QuoteRow struct {
	bun.BaseModel `bun:"table:quotes,alias:q"`

	ID           string    `bun:"id,pk"`
	CustomerName string    `bun:"customer_name"`
	CustomerCity string    `bun:"customer_city"`
	Total        float64   `bun:"total,notnull"`
	Payload      Payload   `bun:"payload,type:jsonb,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type QuoteSummary struct {
	ID           string
	CustomerName string
	CustomerCity string
	Total        float64
	UpdatedAt    time.Time
}

type QuoteRepository interface {
	SaveQuote(ctx context.Context, id string, p Payload) error
	LoadQuote(ctx context.Context, id string) (Payload, error)
	ListQuotes(ctx context.Context, limit int) ([]QuoteSummary, error)
}

type BunQuoteRepository struct {
	db  bun.IDB
	now func() time.Time
}

var _ QuoteRepository = (*BunQuoteRepository)(nil)

func NewBunQuoteRepository(db bun.IDB) *BunQuoteRepository {
	return &BunQuoteRepository{db: db, now: time.Now}
}

func (r *BunQuoteRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.createTableQuery().Exec(ctx); err != nil {
		return fmt.Errorf("create quotes table: %w", err)
	}
	return nil
}

func (r *BunQuoteRepository) SaveQuote(ctx context.Context, id string, p Payload) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidSession
	}
	if err := p.CheckConsistency(); err != nil {
		return err
	}
	if _, err := r.upsertQuery(id, p).Exec(ctx); err != nil {
		return fmt.Errorf("save quote %s: %w", id, err)
	}
	return nil
}

func (r *BunQuoteRepository) LoadQuote(ctx context.Context, id string) (Payload, error) {
	var row QuoteRow
	err := r.db.NewSelect().
		Model(&row).
		Where("q.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Payload{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("load quote %s: %w", id, err)
	}
	return row.Payload, nil
}

func (r *BunQuoteRepository) ListQuotes(ctx context.Context, limit int) ([]QuoteSummary, error) {
	var rows []QuoteRow
	if err := r.listQuery(limit).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	out := make([]QuoteSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, QuoteSummary{
			ID:           row.ID,
			CustomerName: row.CustomerName,
			CustomerCity: row.CustomerCity,
			Total:        row.Total,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *BunQuoteRepository) createTableQuery() *bun.CreateTableQuery {
	return r.db.NewCreateTable().Model((*QuoteRow)(nil)).IfNotExists()
}

func (r *BunQuoteRepository) upsertQuery(id string, p Payload) *bun.InsertQuery {
	now := r.now().UTC()
	row := &QuoteRow{
		ID:           strings.TrimSpace(id),
		CustomerName: p.CustomerName,
		CustomerCity: p.CustomerCity,
		Total:        p.Total,
		Payload:      p,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("customer_name = EXCLUDED.customer_name").
		Set("customer_city = EXCLUDED.customer_city").
		Set("total = EXCLUDED.total").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at")
}

func (r *BunQuoteRepository) listQuery(limit int) *bun.SelectQuery {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.db.NewSelect().
		Model((*QuoteRow)(nil)).
		Column("id", "customer_name", "customer_city", "total", "updated_at").
		OrderExpr("updated_at DESC").
		Limit(limit)
}
