package models

// All 列出所有需要 migrate 的資料表，順序即建立順序
func All() []any {
	return []any{
		&Category{},
		&Item{},
		&UserProfile{},
		&Account{},
	}
}
