package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestIdempotency_SchemaEnforcesOneRecordPerKey(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_idempotency_key") {
		t.Fatal("missing unique index ux_idempotency_key")
	}

	now := time.Now().UTC()
	first := Idempotency{ID: "r1", ActorID: "tm-1", SessionID: "s1", Key: "scan-9", ItemID: "i1", Status: 200, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	again := first
	again.ID, again.ItemID = "r2", "i2"
	if err := db.Create(&again).Error; err == nil {
		t.Fatal("same actor, session and key must be rejected")
	}

	otherActor := again
	otherActor.ActorID = "tm-2"
	if err := db.Create(&otherActor).Error; err != nil {
		t.Fatalf("a different actor may reuse the key: %v", err)
	}
}
