package models

// User is a registered owner of catalogued accounts.
//
// The struct mirrors the legacy users table exactly; no timestamp or soft
// delete columns are added because inserts must keep working against
// databases provisioned long before this codebase existed.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username       string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique display/login name.
	Email          string `gorm:"type:text;not null;uniqueIndex" json:"email"`    // Unique email address.
	PasswordDigest string `gorm:"column:password;type:text;not null" json:"-"`    // bcrypt digest of the login password.
}
