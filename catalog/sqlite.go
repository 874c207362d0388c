package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rushteam/catalogrec/core"
)

//go:embed schema.sql
var schema string

// SQLiteCatalog 是基于 modernc.org/sqlite 的 CatalogStore/PreferenceStore 实现。
// 偏好表带 version 列，CompareAndSwapPreference 以条件 UPDATE 实现乐观并发。
type SQLiteCatalog struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLite 打开（必要时创建）数据库并建表。path 为 ":memory:" 时使用内存库。
func OpenSQLite(ctx context.Context, path string) (*SQLiteCatalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("catalog: sqlite path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// 每个连接是独立的内存库
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func (s *SQLiteCatalog) Name() string { return "sqlite" }

// DB 返回底层连接。
func (s *SQLiteCatalog) DB() *sql.DB { return s.db }

func (s *SQLiteCatalog) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertProduct 写入商品及其类目。
func (s *SQLiteCatalog) UpsertProduct(ctx context.Context, p *core.Product) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: product id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (
		   id, name, slug, price, visible, published, featured, brand_id,
		   view_count, sales_count, review_count, avg_rating, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   slug = excluded.slug,
		   price = excluded.price,
		   visible = excluded.visible,
		   published = excluded.published,
		   featured = excluded.featured,
		   brand_id = excluded.brand_id,
		   view_count = excluded.view_count,
		   sales_count = excluded.sales_count,
		   review_count = excluded.review_count,
		   avg_rating = excluded.avg_rating,
		   created_at = excluded.created_at`,
		p.ID, p.Name, p.Slug, p.Price, p.Visible, p.Published, p.Featured, p.BrandID,
		p.ViewCount, p.SalesCount, p.ReviewCount, p.AvgRating, toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear categories %s: %w", p.ID, err)
	}
	for i, cid := range p.CategoryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO product_categories (product_id, category_id, position) VALUES (?, ?, ?)`,
			p.ID, cid, i,
		); err != nil {
			return fmt.Errorf("insert category %s/%s: %w", p.ID, cid, err)
		}
	}
	return tx.Commit()
}

const productColumns = `id, name, slug, price, visible, published, featured, brand_id,
	view_count, sales_count, review_count, avg_rating, created_at`

func (s *SQLiteCatalog) VisibleProducts(ctx context.Context) ([]*core.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE visible = 1 AND published = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query visible products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadCategories(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *SQLiteCatalog) GetProducts(ctx context.Context, ids []string) (map[string]*core.Product, error) {
	out := make(map[string]*core.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadCategories(ctx, products); err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *SQLiteCatalog) InteractionsSince(ctx context.Context, since time.Time) ([]core.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, product_id, type, rating, created_at FROM interactions
		 WHERE created_at >= ? ORDER BY created_at, id`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	return scanInteractions(rows)
}

func (s *SQLiteCatalog) UserInteractions(ctx context.Context, userID string, limit int) ([]core.Interaction, error) {
	query := `SELECT user_id, product_id, type, rating, created_at FROM interactions
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user interactions: %w", err)
	}
	return scanInteractions(rows)
}

func (s *SQLiteCatalog) ProductInteractions(ctx context.Context, productID string, types ...core.InteractionType) ([]core.Interaction, error) {
	query := `SELECT user_id, product_id, type, rating, created_at FROM interactions WHERE product_id = ?`
	args := []any{productID}
	if len(types) > 0 {
		strs := make([]string, len(types))
		for i, t := range types {
			strs[i] = string(t)
		}
		ph, typeArgs := inClause(strs)
		query += ` AND type IN (` + ph + `)`
		args = append(args, typeArgs...)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query product interactions: %w", err)
	}
	return scanInteractions(rows)
}

// RecordInteraction 实现 core.InteractionRecorder。
func (s *SQLiteCatalog) RecordInteraction(ctx context.Context, in core.Interaction) error {
	if in.ProductID == "" {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: interaction product id is required")
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, product_id, type, rating, created_at) VALUES (?, ?, ?, ?, ?)`,
		in.UserID, in.ProductID, string(in.Type), in.Rating, toMillis(in.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) GetPreferences(ctx context.Context, userID string) ([]core.PreferenceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, type, key, score, last_updated, version FROM preferences
		 WHERE user_id = ? ORDER BY type, key`, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	out := make([]core.PreferenceRecord, 0)
	for rows.Next() {
		rec, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteCatalog) GetPreference(ctx context.Context, userID string, typ core.PreferenceType, key string) (*core.PreferenceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, type, key, score, last_updated, version FROM preferences
		 WHERE user_id = ? AND type = ? AND key = ?`, userID, string(typ), key)
	rec, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrPreferenceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteCatalog) CompareAndSwapPreference(ctx context.Context, rec core.PreferenceRecord, expectedVersion int64) error {
	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO preferences (user_id, type, key, score, last_updated, version)
			 VALUES (?, ?, ?, ?, ?, 1)
			 ON CONFLICT (user_id, type, key) DO NOTHING`,
			rec.UserID, string(rec.Type), rec.Key, rec.Score, toMillis(rec.LastUpdated))
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE preferences SET score = ?, last_updated = ?, version = version + 1
			 WHERE user_id = ? AND type = ? AND key = ? AND version = ?`,
			rec.Score, toMillis(rec.LastUpdated), rec.UserID, string(rec.Type), rec.Key, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("write preference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write preference: %w", err)
	}
	if n == 0 {
		return core.ErrPreferenceConflict
	}
	return nil
}

func (s *SQLiteCatalog) loadCategories(ctx context.Context, products []*core.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[string]*core.Product, len(products))
	ids := make([]string, len(products))
	for i, p := range products {
		byID[p.ID] = p
		ids[i] = p.ID
	}
	ph, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, category_id FROM product_categories
		 WHERE product_id IN (`+ph+`) ORDER BY product_id, position`, args...)
	if err != nil {
		return fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid, cid string
		if err := rows.Scan(&pid, &cid); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		if p, ok := byID[pid]; ok {
			p.CategoryIDs = append(p.CategoryIDs, cid)
		}
	}
	return rows.Err()
}

func scanProducts(rows *sql.Rows) ([]*core.Product, error) {
	defer rows.Close()
	out := make([]*core.Product, 0)
	for rows.Next() {
		var (
			p         core.Product
			createdAt int64
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Price, &p.Visible, &p.Published, &p.Featured, &p.BrandID,
			&p.ViewCount, &p.SalesCount, &p.ReviewCount, &p.AvgRating, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func scanInteractions(rows *sql.Rows) ([]core.Interaction, error) {
	defer rows.Close()
	out := make([]core.Interaction, 0)
	for rows.Next() {
		var (
			in        core.Interaction
			typ       string
			createdAt int64
		)
		if err := rows.Scan(&in.UserID, &in.ProductID, &typ, &in.Rating, &createdAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Type = core.InteractionType(typ)
		in.CreatedAt = fromMillis(createdAt)
		out = append(out, in)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreference(row rowScanner) (core.PreferenceRecord, error) {
	var (
		rec         core.PreferenceRecord
		typ         string
		lastUpdated int64
	)
	if err := row.Scan(&rec.UserID, &typ, &rec.Key, &rec.Score, &lastUpdated, &rec.Version); err != nil {
		return core.PreferenceRecord{}, err
	}
	rec.Type = core.PreferenceType(typ)
	rec.LastUpdated = fromMillis(lastUpdated)
	return rec, nil
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}

var (
	_ core.CatalogStore        = (*SQLiteCatalog)(nil)
	_ core.InteractionRecorder = (*SQLiteCatalog)(nil)
	_ core.PreferenceStore     = (*SQLiteCatalog)(nil)
)
