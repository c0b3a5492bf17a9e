package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Session{}.TableName():          "sessions",
		Item{}.TableName():             "session_items",
		Basket{}.TableName():           "baskets",
		BasketSequence{}.TableName():   "basket_sequences",
		BackOfHouseEntry{}.TableName(): "back_of_house",
		ShrinkageEntry{}.TableName():   "shrinkage_log",
		Idempotency{}.TableName():      "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestSessionStatus_MovesForwardOnly(t *testing.T) {
	all := []SessionStatus{SessionInProgress, SessionExiting, SessionComplete, SessionFlagged}
	allowed := map[[2]SessionStatus]bool{
		{SessionInProgress, SessionExiting}: true,
		{SessionExiting, SessionComplete}:   true,
		{SessionExiting, SessionFlagged}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			if got, want := from.CanTransitionTo(to), allowed[[2]SessionStatus{from, to}]; got != want {
				t.Errorf("%s -> %s = %v; want %v", from, to, got, want)
			}
		}
	}

	for _, s := range all {
		if s.IsOpen() == s.IsTerminal() {
			t.Errorf("%s: open=%v terminal=%v", s, s.IsOpen(), s.IsTerminal())
		}
	}
}

func TestSession_IsStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status SessionStatus
		entry  time.Time
		maxAge time.Duration
		want   bool
	}{
		{"fresh", SessionInProgress, now.Add(-time.Hour), 4 * time.Hour, false},
		{"exactly max age", SessionInProgress, now.Add(-4 * time.Hour), 4 * time.Hour, false},
		{"over max age", SessionInProgress, now.Add(-5 * time.Hour), 4 * time.Hour, true},
		{"exiting counts", SessionExiting, now.Add(-5 * time.Hour), 4 * time.Hour, true},
		{"closed never stale", SessionComplete, now.Add(-48 * time.Hour), 4 * time.Hour, false},
		{"disabled", SessionInProgress, now.Add(-48 * time.Hour), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Session{Status: tt.status, EntryTime: tt.entry}
			if got := s.IsStale(now, tt.maxAge); got != tt.want {
				t.Fatalf("IsStale = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestUrgencyOf_Bands(t *testing.T) {
	received := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		wait time.Duration
		want Urgency
	}{
		{0, UrgencyNormal},
		{29*time.Minute + 59*time.Second, UrgencyNormal},
		{30 * time.Minute, UrgencyWarning},
		{59*time.Minute + 59*time.Second, UrgencyWarning},
		{60 * time.Minute, UrgencyCritical},
		{5 * time.Hour, UrgencyCritical},
	}
	for _, tt := range tests {
		if got := UrgencyOf(received, received.Add(tt.wait)); got != tt.want {
			t.Errorf("UrgencyOf(+%s) = %s; want %s", tt.wait, got, tt.want)
		}
	}
	e := BackOfHouseEntry{ReceivedAt: received}
	if got := e.UrgencyAt(received.Add(45 * time.Minute)); got != UrgencyWarning {
		t.Fatalf("UrgencyAt = %s; want warning", got)
	}
}

func TestParsers(t *testing.T) {
	if got, ok := ParseItemOutcome("lost"); !ok || got != ItemLost {
		t.Fatalf("ParseItemOutcome(lost) = %q, %v", got, ok)
	}
	if _, ok := ParseItemOutcome("in_room"); ok {
		t.Fatal("in_room is not an outcome")
	}
	if got, ok := ParseBasketDisposition("transferred"); !ok || got != BasketTransferred {
		t.Fatalf("ParseBasketDisposition(transferred) = %q, %v", got, ok)
	}
	if _, ok := ParseBasketDisposition("active"); ok {
		t.Fatal("active is not a disposition")
	}
	if got, ok := ParseUrgency("critical"); !ok || got != UrgencyCritical {
		t.Fatalf("ParseUrgency(critical) = %q, %v", got, ok)
	}
	if _, ok := ParseUrgency("urgent"); ok {
		t.Fatal("urgent is not an urgency")
	}
	if ItemInRoom.IsResolved() || !ItemRestocked.IsResolved() {
		t.Fatal("IsResolved mismatch")
	}
}

func TestSessionCounts_Resolved(t *testing.T) {
	c := SessionCounts{TotalItemsOut: 3, ItemsPurchased: 2, ItemsRestocked: 1, ItemsLost: 1}
	if c.Resolved() != 4 {
		t.Fatalf("Resolved = %d; want 4", c.Resolved())
	}
}

func TestActor_Valid(t *testing.T) {
	if (Actor{ID: "tm-1", StoreID: " "}).Valid() {
		t.Fatal("blank store must be invalid")
	}
	if !(Actor{ID: "tm-1", StoreID: "s-1"}).Valid() {
		t.Fatal("actor with id and store must be valid")
	}
}

func TestMigrations_ChecksAndCascades(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Session{}, &Item{}, &Basket{}, &BasketSequence{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	bad := Session{ID: "s-bad", StoreID: "st", TeamMemberID: "tm", Tag: "101", Status: "abandoned", EntryTime: now}
	if err := db.Create(&bad).Error; err == nil {
		t.Fatal("status check constraint not enforced")
	}

	s := Session{ID: "s-1", StoreID: "st", TeamMemberID: "tm", Tag: "101", Status: SessionInProgress, EntryTime: now}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	it := Item{ID: "i-1", SessionID: s.ID, Seq: 1, Barcode: "ABC123", Status: ItemInRoom, ScannedInAt: now}
	if err := db.Create(&it).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	b := Basket{ID: "b-1", StoreID: "st", BasketNumber: 1, SessionID: s.ID, Status: BasketActive}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create basket: %v", err)
	}
	dup := Basket{ID: "b-2", StoreID: "st", BasketNumber: 2, SessionID: s.ID, Status: BasketActive}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("second basket for one session must be rejected")
	}

	if err := db.Delete(&Session{}, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("delete session: %v", err)
	}
	var items, baskets int64
	db.Model(&Item{}).Where("session_id = ?", s.ID).Count(&items)
	db.Model(&Basket{}).Where("session_id = ?", s.ID).Count(&baskets)
	if items != 0 || baskets != 0 {
		t.Fatalf("cascade left items=%d baskets=%d", items, baskets)
	}
}
