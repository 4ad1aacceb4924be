package models

import "time"

// Account is a stored League of Legends login owned by one user.
//
// login_password_encrypted and favorite are the optional columns: live
// databases may predate them, and the store layer negotiates inserts down
// to whatever the schema actually has.
type Account struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.
	UserID uint64 `gorm:"not null;index" json:"user_id"`      // Owning user; every read and write is scoped by it.

	LoginUsername          string `gorm:"column:login_username;type:text;not null" json:"login_username"` // Game client login name.
	LoginPasswordDigest    string `gorm:"column:login_password;type:text;not null" json:"-"`              // bcrypt digest of the account password.
	LoginPasswordEncrypted string `gorm:"column:login_password_encrypted;type:text" json:"-"`             // Reversible ciphertext; empty when the column is absent or encryption was unavailable.

	SummonerName string `gorm:"column:summoner_name;type:text;not null" json:"summoner_name"` // In-game summoner name.
	Server       string `gorm:"type:text;not null" json:"server"`                             // Riot platform routing value (kr, euw1, ...).

	Favorite     bool       `gorm:"not null;default:false" json:"favorite"`            // Pin flag; fallback-authoritative under degradation.
	Rank         string     `gorm:"type:text" json:"rank,omitempty"`                   // Last stored ranked tier.
	RankDivision string     `gorm:"column:rank_division;type:text" json:"rank_division,omitempty"` // Last stored ranked division.
	LastModified *time.Time `gorm:"column:last_modified" json:"last_modified,omitempty"`           // Set whenever mutable fields change.
}

// TableName keeps the legacy table name.
func (Account) TableName() string { return "lol_accounts" }
