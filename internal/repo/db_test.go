package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/config"
	"github.com/konsul-app/konsul-backend/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpen_SQLite_PragmasPoolAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := Open(context.Background(), config.DBConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	var journalMode string
	var fkOn, busyMS int
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil || strings.ToLower(journalMode) != "wal" {
		t.Fatalf("journal_mode = %q err=%v", journalMode, err)
	}
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil || fkOn != 1 {
		t.Fatalf("foreign_keys = %d err=%v", fkOn, err)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil || busyMS != 5000 {
		t.Fatalf("busy_timeout = %d err=%v", busyMS, err)
	}
	sqlDB, _ := db.DB()
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, tbl := range []any{&domain.Workspace{}, &domain.Agent{}, &domain.Channel{}, &domain.ChannelKey{},
		&domain.Intent{}, &domain.Conversation{}, &domain.Message{}, &domain.InboundReceipt{}, &domain.IntentRun{}} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DBConfig{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestOpenPostgres_Unreachable(t *testing.T) {
	ctx := context.Background()
	_, err := OpenPostgres(ctx, "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	if err == nil {
		t.Fatalf("expected connection error")
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
