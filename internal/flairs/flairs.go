// Package flairs holds the fixed default flair catalog. The database is
// seeded from it when empty and the in-memory fallback serves it directly.
package flairs

import "github.com/oHaruki/SmurfMGT/internal/models"

// Defaults returns the built-in flair catalog.
func Defaults() []models.Flair {
	return []models.Flair{
		{ID: 1, FlairName: "Main Account", FlairColor: "blue"},
		{ID: 2, FlairName: "Smurf", FlairColor: "purple"},
		{ID: 3, FlairName: "Handleveled", FlairColor: "green"},
		{ID: 4, FlairName: "Ranked Ready", FlairColor: "orange"},
		{ID: 5, FlairName: "Fresh Account", FlairColor: "teal"},
		{ID: 6, FlairName: "Banned", FlairColor: "pink"},
		{ID: 7, FlairName: "OTP", FlairColor: "gray"},
		{ID: 8, FlairName: "High MMR", FlairColor: "blue"},
	}
}
