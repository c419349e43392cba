package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore implements Store on SQLite via database/sql. The stock ledger is
// a single guarded UPDATE so two concurrent reservations can never oversell:
// the storage layer serializes writers per row.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (or creates) the database at dbPath.
func NewSQLStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time; a second connection would see
	// "database is locked" under concurrent reservations.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// RunMigrations applies the embedded schema migrations.
func (s *SQLStore) RunMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, category, price, stock, image_url, offer_active, offer_price, offer_start, offer_end, created_at`

func (s *SQLStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return nil, ErrProductNotFound
	}

	return scanProduct(rows)
}

func (s *SQLStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO products (name, category, price, stock, image_url, offer_active, offer_price, offer_start, offer_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		p.Name, p.Category, p.Price, p.Stock, p.ImageURL,
		p.OfferActive, p.OfferPrice, p.OfferStart, p.OfferEnd, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, category = ?, price = ?, stock = ?, image_url = ?,
		    offer_active = ?, offer_price = ?, offer_start = ?, offer_end = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		p.Name, p.Category, p.Price, p.Stock, p.ImageURL,
		p.OfferActive, p.OfferPrice, p.OfferStart, p.OfferEnd, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireRow(res, ErrProductNotFound)
}

func (s *SQLStore) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireRow(res, ErrProductNotFound)
}

// Reserve performs the conditional decrement in one statement. The WHERE
// clause is the oversell guard: when stock < qty no row matches and nothing
// is written.
func (s *SQLStore) Reserve(ctx context.Context, id int64, qty int64) (int64, error) {
	var newStock int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ? RETURNING stock`,
		qty, id, qty,
	).Scan(&newStock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.shortfall(ctx, id, qty)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reserve stock: %w", err)
	}
	return newStock, nil
}

// shortfall distinguishes a missing product from insufficient stock and
// reports the quantity actually available.
func (s *SQLStore) shortfall(ctx context.Context, id int64, qty int64) error {
	var available int64
	err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, id).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read stock: %w", err)
	}
	return &InsufficientStockError{ProductID: id, Requested: qty, Available: available}
}

func (s *SQLStore) Release(ctx context.Context, id int64, qty int64) (int64, error) {
	var newStock int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE products SET stock = stock + ? WHERE id = ? RETURNING stock`,
		qty, id,
	).Scan(&newStock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to release stock: %w", err)
	}
	return newStock, nil
}

func (s *SQLStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `
		INSERT INTO orders (id, customer_id, delivery_mode, address, items, total, status, payment_method, payment_evidence_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		o.ID.String(), o.CustomerID, string(o.DeliveryMode), o.Address, string(items),
		o.Total, string(o.Status), string(o.PaymentMethod), o.PaymentEvidenceRef, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

const orderColumns = `id, customer_id, delivery_mode, address, items, total, status, payment_method, payment_evidence_ref, created_at`

func (s *SQLStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	rows, err := s.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return nil, ErrOrderNotFound
	}

	return scanOrder(rows)
}

func (s *SQLStore) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`
	return s.queryOrders(ctx, query)
}

func (s *SQLStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = ? ORDER BY created_at DESC, id`
	return s.queryOrders(ctx, query, customerID)
}

func (s *SQLStore) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus is guarded on the source status so two admins racing on
// the same order cannot both win.
func (s *SQLStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		string(to), id.String(), string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Either the order is gone or its status moved under us.
		if _, err := s.GetOrder(ctx, id); errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *SQLStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return requireRow(res, ErrOrderNotFound)
}

func requireRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func scanProduct(rows *sql.Rows) (*domain.Product, error) {
	p := &domain.Product{}
	err := rows.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Price,
		&p.Stock,
		&p.ImageURL,
		&p.OfferActive,
		&p.OfferPrice,
		&p.OfferStart,
		&p.OfferEnd,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return p, nil
}

func scanOrder(rows *sql.Rows) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		id            string
		deliveryMode  string
		itemsJSON     string
		status        string
		paymentMethod string
	)
	err := rows.Scan(
		&id,
		&o.CustomerID,
		&deliveryMode,
		&o.Address,
		&itemsJSON,
		&o.Total,
		&status,
		&paymentMethod,
		&o.PaymentEvidenceRef,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	o.DeliveryMode = domain.DeliveryMode(deliveryMode)
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	return o, nil
}
