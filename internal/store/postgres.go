package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All kWh and currency values are stored as NUMERIC for exact decimal
// precision. ChangeSets are applied inside one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, location, user_role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.Location, string(u.Role), u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, location, user_role, created_at
		 FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, location, user_role, created_at
		 FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Location, &role, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, name, location, user_role, created_at
		 FROM users WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Location, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Production entries ---

const entryColumns = `id, owner_id,
	produced_kwh::TEXT, consumed_kwh::TEXT, used_kwh::TEXT, sold_kwh::TEXT,
	created_at`

func (s *PostgresStore) InsertEntry(ctx context.Context, e *model.ProductionEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO production_entries (id, owner_id, produced_kwh, consumed_kwh, used_kwh, sold_kwh, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7)`,
		e.ID, e.OwnerID,
		e.ProducedKwh.String(), e.ConsumedKwh.String(),
		e.UsedKwh.String(), e.SoldKwh.String(),
		e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetEntry(ctx context.Context, id string) (*model.ProductionEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM production_entries WHERE id = $1 AND deleted_at IS NULL`, id)
	e, err := scanEntry(row)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (s *PostgresStore) EntriesFor(ctx context.Context, ownerID string) ([]model.ProductionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM production_entries
		 WHERE owner_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ProductionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) UpdateEntryReadings(ctx context.Context, id string, produced, consumed decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE production_entries
		 SET produced_kwh = $2::NUMERIC, consumed_kwh = $3::NUMERIC
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, produced.String(), consumed.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeleteEntry(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE production_entries SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*model.ProductionEntry, error) {
	var e model.ProductionEntry
	var produced, consumed, used, sold string

	if err := row.Scan(&e.ID, &e.OwnerID, &produced, &consumed, &used, &sold, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.ProducedKwh, _ = decimal.NewFromString(produced)
	e.ConsumedKwh, _ = decimal.NewFromString(consumed)
	e.UsedKwh, _ = decimal.NewFromString(used)
	e.SoldKwh, _ = decimal.NewFromString(sold)
	return &e, nil
}

// --- Offers ---

const offerColumns = `id, seller_id,
	total_kwh::TEXT, remaining_kwh::TEXT, price_kwh::TEXT,
	offer_status, created_at, updated_at`

func (s *PostgresStore) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+offerColumns+`
		 FROM offers WHERE id = $1 AND deleted_at IS NULL`, id)
	o, err := scanOffer(row)
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

func (s *PostgresStore) ListOffers(ctx context.Context, f OfferFilter) ([]model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE deleted_at IS NULL`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND offer_status = $%d", len(args))
	}
	if f.SellerID != "" {
		args = append(args, f.SellerID)
		query += fmt.Sprintf(" AND seller_id = $%d", len(args))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func (s *PostgresStore) AvailableOffers(ctx context.Context) ([]model.Offer, error) {
	return s.ListOffers(ctx, OfferFilter{Status: model.OfferAvailable})
}

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	var total, remaining, price, status string

	if err := row.Scan(&o.ID, &o.SellerID, &total, &remaining, &price,
		&status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.TotalKwh, _ = decimal.NewFromString(total)
	o.RemainingKwh, _ = decimal.NewFromString(remaining)
	o.PriceKwh, _ = decimal.NewFromString(price)
	o.Status = model.OfferStatus(status)
	return &o, nil
}

// --- Orders ---

const orderColumns = `id, buyer_id, offer_id, quantity_kwh::TEXT, total_price::TEXT, created_at`

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders WHERE id = $1 AND deleted_at IS NULL`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

func (s *PostgresStore) OrdersForBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders WHERE buyer_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at, id`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) SoftDeleteOrder(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var quantity, total string

	if err := row.Scan(&o.ID, &o.BuyerID, &o.OfferID, &quantity, &total, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.QuantityKwh, _ = decimal.NewFromString(quantity)
	o.TotalPrice, _ = decimal.NewFromString(total)
	return &o, nil
}

// --- Clearing prices ---

func (s *PostgresStore) InsertPrice(ctx context.Context, p *model.ClearingPrice) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clearing_prices (id, provider_name, price_kwh, price_time, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		p.ID, p.ProviderName, p.PriceKwh.String(), p.PriceTime, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetPrice(ctx context.Context, id string) (*model.ClearingPrice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider_name, price_kwh::TEXT, price_time, created_at
		 FROM clearing_prices WHERE id = $1 AND deleted_at IS NULL`, id)
	p, err := scanPrice(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *PostgresStore) ListPrices(ctx context.Context) ([]model.ClearingPrice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, provider_name, price_kwh::TEXT, price_time, created_at
		 FROM clearing_prices WHERE deleted_at IS NULL ORDER BY price_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []model.ClearingPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, *p)
	}
	return prices, rows.Err()
}

func (s *PostgresStore) UpdatePrice(ctx context.Context, p *model.ClearingPrice) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE clearing_prices
		 SET provider_name = $2, price_kwh = $3::NUMERIC, price_time = $4
		 WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.ProviderName, p.PriceKwh.String(), p.PriceTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeletePrice(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE clearing_prices SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LatestPrice(ctx context.Context) (*model.ClearingPrice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider_name, price_kwh::TEXT, price_time, created_at
		 FROM clearing_prices WHERE deleted_at IS NULL
		 ORDER BY price_time DESC LIMIT 1`)
	p, err := scanPrice(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func scanPrice(row pgx.Row) (*model.ClearingPrice, error) {
	var p model.ClearingPrice
	var price string

	if err := row.Scan(&p.ID, &p.ProviderName, &price, &p.PriceTime, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PriceKwh, _ = decimal.NewFromString(price)
	return &p, nil
}

// --- Atomic commit ---

// Commit applies the change set inside one transaction. Entries and offers
// are upserted by ID; orders are inserted. Any failure rolls the whole
// transaction back.
func (s *PostgresStore) Commit(ctx context.Context, cs *ChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range cs.Entries {
		e := &cs.Entries[i]
		tag, err := tx.Exec(ctx,
			`UPDATE production_entries
			 SET produced_kwh = $2::NUMERIC, consumed_kwh = $3::NUMERIC,
			     used_kwh = $4::NUMERIC, sold_kwh = $5::NUMERIC, deleted_at = $6
			 WHERE id = $1`,
			e.ID,
			e.ProducedKwh.String(), e.ConsumedKwh.String(),
			e.UsedKwh.String(), e.SoldKwh.String(),
			e.DeletedAt,
		)
		if err != nil {
			return fmt.Errorf("commit entry %s: %w", e.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	for i := range cs.Offers {
		o := &cs.Offers[i]
		_, err := tx.Exec(ctx,
			`INSERT INTO offers (id, seller_id, total_kwh, remaining_kwh, price_kwh, offer_status, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET
			     total_kwh = EXCLUDED.total_kwh,
			     remaining_kwh = EXCLUDED.remaining_kwh,
			     price_kwh = EXCLUDED.price_kwh,
			     offer_status = EXCLUDED.offer_status,
			     updated_at = EXCLUDED.updated_at,
			     deleted_at = EXCLUDED.deleted_at`,
			o.ID, o.SellerID,
			o.TotalKwh.String(), o.RemainingKwh.String(), o.PriceKwh.String(),
			string(o.Status), o.CreatedAt, o.UpdatedAt, o.DeletedAt,
		)
		if err != nil {
			return fmt.Errorf("commit offer %s: %w", o.ID, err)
		}
	}

	for i := range cs.Orders {
		o := &cs.Orders[i]
		_, err := tx.Exec(ctx,
			`INSERT INTO orders (id, buyer_id, offer_id, quantity_kwh, total_price, created_at)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)`,
			o.ID, o.BuyerID, o.OfferID,
			o.QuantityKwh.String(), o.TotalPrice.String(), o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("commit order %s: %w", o.ID, err)
		}
	}

	return tx.Commit(ctx)
}
