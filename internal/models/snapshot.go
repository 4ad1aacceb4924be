package models

import (
	"time"

	"gorm.io/datatypes"
)

// SummonerSnapshot caches the last successful Riot lookup per summoner so
// rank data stays served when the Riot API is unreachable.
type SummonerSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Server       string `gorm:"type:text;not null;uniqueIndex:idx_summoner_snapshots_server_name"` // Riot platform routing value.
	SummonerName string `gorm:"column:summoner_name;type:text;not null;uniqueIndex:idx_summoner_snapshots_server_name"` // Looked-up summoner name.

	Payload   datatypes.JSON `gorm:"not null"` // Raw combined summoner+ranked response.
	FetchedAt time.Time      `gorm:"not null"` // When the payload was fetched.
}
