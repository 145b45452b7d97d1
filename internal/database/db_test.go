package database

import (
	"testing"

	"partsreserve/internal/config"
	"partsreserve/internal/model"

	"github.com/google/uuid"
)

func TestSQLiteConnectionMigrates(t *testing.T) {
	db, err := NewConnection(config.Database{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	for _, table := range []interface{}{&model.Product{}, &model.Settings{}, &model.Reservation{}, &model.InventoryMovement{}, &model.AuditLog{}} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table for %T", table)
		}
	}
}
