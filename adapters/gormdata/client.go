package gormdata

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusmart/backend"
)

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Client 以 gorm 實作 backend.DataClient
type Client struct {
	db     *gorm.DB
	logger *zap.Logger
}

type Option func(*Client)

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New 建立新的 Client
func New(db *gorm.DB, opts ...Option) *Client {
	c := &Client{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// condition 將過濾條件轉為 gorm 的 clause，欄位名稱只接受小寫識別字
func condition(f backend.Filter) (clause.Expression, error) {
	if !columnPattern.MatchString(f.Column) {
		return nil, fmt.Errorf("invalid column name %q", f.Column)
	}
	column := clause.Column{Name: f.Column}
	switch f.Op {
	case backend.OpEq:
		return clause.Eq{Column: column, Value: f.Value}, nil
	case backend.OpILike:
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?) ESCAPE '\\'", Vars: []any{column, f.Value}}, nil
	case backend.OpNotNull:
		return clause.Expr{SQL: "? IS NOT NULL", Vars: []any{column}}, nil
	}
	return nil, fmt.Errorf("unsupported filter op %q", f.Op)
}

func applyFilters(tx *gorm.DB, filters []backend.Filter) (*gorm.DB, error) {
	for _, f := range filters {
		expr, err := condition(f)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	return tx, nil
}

func anyOf(filters []backend.Filter) (clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(filters))
	for _, f := range filters {
		expr, err := condition(f)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return clause.Or(exprs...), nil
}

// translate 將 gorm 的錯誤轉為 backend 的錯誤
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", backend.ErrNoRows, err)
	}
	return err
}

func (c *Client) Select(ctx context.Context, table string, query backend.Query, dest any) error {
	const op = "gormdata.Select"
	tx, err := applyFilters(c.db.WithContext(ctx).Table(table), query.Filters)
	if err != nil {
		return fmt.Errorf("[%s] Fail to build query, table=%s, err=%w", op, table, err)
	}
	if len(query.AnyOf) > 0 {
		expr, err := anyOf(query.AnyOf)
		if err != nil {
			return fmt.Errorf("[%s] Fail to build query, table=%s, err=%w", op, table, err)
		}
		tx = tx.Where(expr)
	}
	for _, o := range query.Order {
		if !columnPattern.MatchString(o.Column) {
			return fmt.Errorf("[%s] Fail to build query, invalid order column %q", op, o.Column)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}
	if result := tx.Find(dest); result.Error != nil {
		return fmt.Errorf("[%s] Fail to select rows, table=%s, err=%w", op, table, translate(result.Error))
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, table string, row any) error {
	const op = "gormdata.Insert"
	if result := c.db.WithContext(ctx).Table(table).Create(row); result.Error != nil {
		return fmt.Errorf("[%s] Fail to insert row, table=%s, err=%w", op, table, translate(result.Error))
	}
	return nil
}

func (c *Client) Update(ctx context.Context, table string, filters []backend.Filter, patch map[string]any) (int64, error) {
	const op = "gormdata.Update"
	if len(filters) == 0 {
		return 0, fmt.Errorf("[%s] Fail to update rows, table=%s, err=%w", op, table, gorm.ErrMissingWhereClause)
	}
	tx, err := applyFilters(c.db.WithContext(ctx).Table(table), filters)
	if err != nil {
		return 0, fmt.Errorf("[%s] Fail to build query, table=%s, err=%w", op, table, err)
	}
	result := tx.Updates(patch)
	if result.Error != nil {
		return 0, fmt.Errorf("[%s] Fail to update rows, table=%s, err=%w", op, table, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("[%s] %w, table=%s", op, backend.ErrNoRows, table)
	}
	c.logger.Debug("Rows updated", zap.String("op", op), zap.String("table", table), zap.Int64("rows", result.RowsAffected))
	return result.RowsAffected, nil
}
