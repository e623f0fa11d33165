//go:generate mockgen -package=backend -destination=mock_data.go -source=data.go

package backend

import "context"

// Op 是過濾條件的運算子
type Op string

const (
	OpEq      Op = "eq"
	OpILike   Op = "ilike"
	OpNotNull Op = "not_null"
)

// Filter 描述單一欄位的過濾條件
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq 欄位等於指定值
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// ILike 欄位不分大小寫地符合 pattern (SQL LIKE 語法，跳脫字元為 \)
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpILike, Value: pattern}
}

// NotNull 欄位不為 NULL
func NotNull(column string) Filter {
	return Filter{Column: column, Op: OpNotNull}
}

// Order 排序條件
type Order struct {
	Column string
	Desc   bool
}

// Query 描述一次查詢：Filters 之間為 AND，AnyOf 之間為 OR，
// 兩組之間再以 AND 結合。Limit 為 0 時不限制筆數。
type Query struct {
	Filters []Filter
	AnyOf   []Filter
	Order   []Order
	Limit   int
}

// DataClient 是資料列存取能力
type DataClient interface {
	// Select 依條件查詢資料列，dest 必須是指向 slice 的指標
	Select(ctx context.Context, table string, query Query, dest any) error
	// Insert 新增一筆資料列，row 必須是指標，伺服端產生的欄位會回填
	Insert(ctx context.Context, table string, row any) error
	// Update 對符合條件的資料列套用 patch，回傳受影響的筆數；
	// 沒有任何資料列被更新時回傳 ErrNoRows
	Update(ctx context.Context, table string, filters []Filter, patch map[string]any) (int64, error)
}
