package domain

import (
	"testing"
	"time"
)

func TestIdempotency_Migration_UniqueScopeKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected composite index ux_user_scope_key to exist")
	}

	now := time.Now().UTC()
	rec := &Idempotency{ID: "id-1", UserID: "u1", Scope: "reply:d1", Key: "k1", ResourceID: "d1",
		Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Scope != "reply:d1" || got.ResourceID != "d1" || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}

	dup := &Idempotency{ID: "id-2", UserID: "u1", Scope: "reply:d1", Key: "k1", ResourceID: "d2",
		Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (user_id, scope, key)")
	}

	// Different scope with the same key is fine.
	other := &Idempotency{ID: "id-3", UserID: "u1", Scope: "reply:d2", Key: "k1", ResourceID: "d2",
		Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other scope: %v", err)
	}
}
