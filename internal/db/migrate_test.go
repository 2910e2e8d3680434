package db

import (
	"path/filepath"
	"testing"

	"github.com/deckly-app/deckly/internal/models"
	internalsettings "github.com/deckly-app/deckly/internal/settings"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMigrateSeedsSettings(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "deckly-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if !IsSQLite(conn) {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// Second run must be a no-op.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate again: %v", errMigrate)
	}

	var count int64
	if errCount := conn.Model(&models.Setting{}).
		Where("key IN ?", []string{internalsettings.SiteNameKey, internalsettings.GenerationRateLimitKey}).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count settings: %v", errCount)
	}
	if count != 2 {
		t.Fatalf("expected 2 seeded settings, got %d", count)
	}
}

func TestIsSQLiteDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want bool
	}{
		{"file:deckly.db", true},
		{"deckly.sqlite", true},
		{"postgres://u:p@localhost:5432/deckly", false},
		{"host=localhost user=deckly dbname=deckly", false},
	}
	for _, tc := range cases {
		if got := IsSQLiteDSN(tc.dsn); got != tc.want {
			t.Fatalf("IsSQLiteDSN(%q)=%v, want %v", tc.dsn, got, tc.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "deckly-unique.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	first := models.User{Email: "dup@example.com", Password: "x"}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	second := models.User{Email: "dup@example.com", Password: "y"}
	errDup := conn.Create(&second).Error
	if !IsUniqueViolation(errDup) {
		t.Fatalf("expected unique violation, got %v", errDup)
	}
}

func TestDateTruncDayExprBucketsByUTC(t *testing.T) {
	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.New(postgres.Config{})}}
	want := "to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD')"
	if got := DateTruncDayExpr(pg, "created_at"); got != want {
		t.Fatalf("postgres expr = %q, want %q", got, want)
	}

	conn, err := Open("file:" + filepath.Join(t.TempDir(), "deckly-day.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if got := DateTruncDayExpr(conn, "created_at"); got != "substr(created_at, 1, 10)" {
		t.Fatalf("sqlite expr = %q", got)
	}
}
