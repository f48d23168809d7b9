// Package sqlite implements the catalog source of truth on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"trafficpulse/internal/catalog"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite catalog.
type Config struct {
	Path string // path to the database file, e.g. "data/catalog.db"
}

// Catalog is the durable product catalog. A single write connection keeps
// SQLite happy under WAL.
type Catalog struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (c *Catalog) DB() *sql.DB { return c.db }

// New opens the catalog database, creates the schema, and seeds the demo
// products when the table is empty.
func New(cfg Config) (*Catalog, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if err := seed(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite seed: %w", err)
	}

	log.Printf("[sqlite] opened catalog at %s", cfg.Path)
	return &Catalog{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id          INTEGER PRIMARY KEY,
			name        TEXT    NOT NULL,
			description TEXT,
			price_cents INTEGER NOT NULL,
			category    TEXT    NOT NULL,
			stock       INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	`)
	return err
}

// seed inserts the demo catalog once; an already-populated table is left
// untouched.
func seed(db *sql.DB) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO products (id, name, description, price_cents, category, stock)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range catalog.SeedProducts() {
		if _, err := stmt.Exec(p.ID, p.Name, p.Description, p.PriceCents, p.Category, p.Stock); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("[sqlite] seeded %d products", len(catalog.SeedProducts()))
	return nil
}

const productColumns = `id, name, description, price_cents, category, stock`

// Product returns one product by id.
func (c *Catalog) Product(ctx context.Context, id int64) (catalog.Product, error) {
	var p catalog.Product
	err := c.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("sqlite select product %d: %w", id, err)
	}
	return p, nil
}

// AllProducts returns the full catalog ordered by id.
func (c *Catalog) AllProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite select products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ProductsByCategory returns the products in one category ordered by name.
func (c *Catalog) ProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE category = ? ORDER BY name`, category)
	if err != nil {
		return nil, fmt.Errorf("sqlite select category %s: %w", category, err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// AdjustStock adds delta to one product's stock. The caller is expected to
// invalidate the cached entry afterwards.
func (c *Catalog) AdjustStock(ctx context.Context, id, delta int64) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, delta, id)
	if err != nil {
		return fmt.Errorf("sqlite adjust stock %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanProducts(rows *sql.Rows) ([]catalog.Product, error) {
	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category, &p.Stock); err != nil {
			return nil, fmt.Errorf("sqlite scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
