package models

// Flair is a global label users attach to accounts. The catalog is small
// and seeded from a fixed default set when empty.
type Flair struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`            // Primary key.
	FlairName  string `gorm:"column:flair_name;type:text;not null" json:"flair_name"`   // Display name.
	FlairColor string `gorm:"column:flair_color;type:text;not null" json:"flair_color"` // Display color token.
}

// AccountFlair links an account to a flair. The composite primary key
// enforces the one-assignment-per-pair invariant at the database level.
type AccountFlair struct {
	AccountID uint64 `gorm:"primaryKey;autoIncrement:false" json:"account_id"` // Tagged account.
	FlairID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"flair_id"`   // Applied flair.
}

// TableName keeps the legacy table name.
func (AccountFlair) TableName() string { return "account_flairs" }
