package models

// All lists every persisted model in dependency order. It drives gorm
// AutoMigrate for SQLite, where the goose migrations' TIMESTAMPTZ columns would
// not be decoded as times.
func All() []any {
	return []any{
		&Business{},
		&Product{},
		&Invoice{},
		&InvoiceLineItem{},
	}
}
