package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/db"
	"github.com/oHaruki/SmurfMGT/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "store.db"))
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	return conn
}

func execDDL(t *testing.T, conn *gorm.DB, ddl string) {
	t.Helper()
	if errExec := conn.Exec(ddl).Error; errExec != nil {
		t.Fatalf("exec ddl: %v", errExec)
	}
}

func testAccount() *models.Account {
	return &models.Account{
		UserID:                 1,
		LoginUsername:          "rgn-login",
		LoginPasswordDigest:    "$2a$10$digestdigestdigestdigestdige",
		LoginPasswordEncrypted: "gcm:abc123",
		SummonerName:           "Faker2",
		Server:                 "kr",
		Favorite:               true,
	}
}

func TestWriterInsertFullSchema(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	writer := newAdaptiveWriter(conn)
	acc := testAccount()
	if errInsert := writer.insert(context.Background(), acc); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}
	if acc.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if acc.LoginPasswordEncrypted == "" {
		t.Fatal("encrypted column should survive on a full schema")
	}
	if !acc.Favorite {
		t.Fatal("favorite should survive on a full schema")
	}
	if writer.cachedShape() != 0 {
		t.Fatalf("expected widest shape cached, got %d", writer.cachedShape())
	}
}

func TestWriterNarrowsWithoutEncryptedColumn(t *testing.T) {
	conn := openTestDB(t)
	execDDL(t, conn, `CREATE TABLE lol_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		login_username TEXT NOT NULL,
		login_password TEXT NOT NULL,
		summoner_name TEXT NOT NULL,
		server TEXT NOT NULL,
		favorite BOOLEAN DEFAULT FALSE)`)

	writer := newAdaptiveWriter(conn)
	acc := testAccount()
	if errInsert := writer.insert(context.Background(), acc); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}
	if acc.LoginPasswordEncrypted != "" {
		t.Fatal("encrypted field should be zeroed when its column was dropped")
	}
	if !acc.Favorite {
		t.Fatal("favorite column exists and should have been written")
	}
	if writer.cachedShape() != 1 {
		t.Fatalf("expected shape 1 cached, got %d", writer.cachedShape())
	}

	// Second insert starts from the cached shape and succeeds directly.
	second := testAccount()
	if errInsert := writer.insert(context.Background(), second); errInsert != nil {
		t.Fatalf("second insert: %v", errInsert)
	}
	if second.ID <= acc.ID {
		t.Fatalf("expected monotonic ids, got %d then %d", acc.ID, second.ID)
	}
}

func TestWriterNarrowsToLegacySchema(t *testing.T) {
	conn := openTestDB(t)
	execDDL(t, conn, `CREATE TABLE lol_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		login_username TEXT NOT NULL,
		login_password TEXT NOT NULL,
		summoner_name TEXT NOT NULL,
		server TEXT NOT NULL)`)

	writer := newAdaptiveWriter(conn)
	acc := testAccount()
	if errInsert := writer.insert(context.Background(), acc); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}
	if acc.LoginPasswordEncrypted != "" || acc.Favorite {
		t.Fatal("fields for both dropped columns should be zeroed")
	}
	if writer.cachedShape() != 2 {
		t.Fatalf("expected narrowest shape cached, got %d", writer.cachedShape())
	}
}

func TestWriterConnectivityFailureResetsShape(t *testing.T) {
	conn := openTestDB(t)
	execDDL(t, conn, `CREATE TABLE lol_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		login_username TEXT NOT NULL,
		login_password TEXT NOT NULL,
		summoner_name TEXT NOT NULL,
		server TEXT NOT NULL)`)

	writer := newAdaptiveWriter(conn)
	if errInsert := writer.insert(context.Background(), testAccount()); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}
	if writer.cachedShape() != 2 {
		t.Fatalf("expected narrowest shape cached, got %d", writer.cachedShape())
	}

	execDDL(t, conn, "DROP TABLE lol_accounts")
	errInsert := writer.insert(context.Background(), testAccount())
	if !isBackendFailure(errInsert) {
		t.Fatalf("expected backend failure, got %v", errInsert)
	}
	if writer.cachedShape() != 0 {
		t.Fatalf("expected shape reset after connectivity failure, got %d", writer.cachedShape())
	}
}

func TestWriterNilConnection(t *testing.T) {
	writer := newAdaptiveWriter(nil)
	errInsert := writer.insert(context.Background(), testAccount())
	if !isBackendFailure(errInsert) {
		t.Fatalf("expected backend failure, got %v", errInsert)
	}
}

func TestClassifySQLiteErrors(t *testing.T) {
	conn := openTestDB(t)
	cases := []struct {
		name string
		err  error
		want failureClass
	}{
		{"missing column", errors.New("table lol_accounts has no column named favorite"), classUnknownColumn},
		{"unknown column", errors.New("no such column: login_password_encrypted"), classUnknownColumn},
		{"unique", errors.New("UNIQUE constraint failed: account_flairs.account_id"), classConstraint},
		{"missing table", errors.New("no such table: lol_accounts"), classConnectivity},
		{"io", errors.New("disk I/O error"), classConnectivity},
	}
	for _, tc := range cases {
		if got := classifyError(conn, tc.err); got != tc.want {
			t.Fatalf("%s: classified as %d, want %d", tc.name, got, tc.want)
		}
	}
}
