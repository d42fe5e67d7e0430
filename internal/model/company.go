package model

// Company represents a row in the `companies` table.
type Company struct {
	ID   uint64 `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
