package session

import (
	"context"
	"testing"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
)

func testSession(key string) *models.CollectionSession {
	now := time.Now().UTC()
	return &models.CollectionSession{
		SessionKey:   key,
		DocumentType: models.DocumentTypePANCard,
		FieldIndex:   2,
		Fields:       map[string]string{"name": "Ramesh Kumar", "father_name": "Suresh Kumar"},
		Language:     "hindi",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if s, err := store.Load(ctx, "user-1"); err != nil || s != nil {
		t.Fatalf("expected nil, nil for missing session, got %v, %v", s, err)
	}

	if err := store.Save(ctx, testSession("user-1"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "user-1")
	if err != nil || got == nil {
		t.Fatalf("Load failed: %v, %v", got, err)
	}
	if got.DocumentType != models.DocumentTypePANCard || got.FieldIndex != 2 {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Fields["name"] != "Ramesh Kumar" {
		t.Errorf("unexpected fields: %v", got.Fields)
	}
	if got.Version != models.SessionVersion {
		t.Errorf("expected version stamped on save, got %d", got.Version)
	}

	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s, _ := store.Load(ctx, "user-1"); s != nil {
		t.Error("expected session removed after delete")
	}
	// Deleting again is not an error.
	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Errorf("repeat Delete failed: %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	ctx := context.Background()

	if err := store.Save(ctx, testSession("user-1"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	current = current.Add(59 * time.Minute)
	if s, _ := store.Load(ctx, "user-1"); s == nil {
		t.Fatal("expected session still alive before TTL")
	}

	// Each save slides the expiration window forward.
	if err := store.Save(ctx, testSession("user-1"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	current = current.Add(59 * time.Minute)
	if s, _ := store.Load(ctx, "user-1"); s == nil {
		t.Fatal("expected sliding TTL to keep the session alive")
	}

	current = current.Add(2 * time.Hour)
	if s, _ := store.Load(ctx, "user-1"); s != nil {
		t.Error("expected session expired after TTL")
	}
}

func TestMemoryStoreZeroTTLUsesDefault(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	ctx := context.Background()

	if err := store.Save(ctx, testSession("user-1"), 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	current = current.Add(models.DefaultSessionTTL - time.Minute)
	if s, _ := store.Load(ctx, "user-1"); s == nil {
		t.Fatal("expected session alive within the default TTL")
	}
	current = current.Add(2 * time.Minute)
	if s, _ := store.Load(ctx, "user-1"); s != nil {
		t.Error("expected session expired past the default TTL")
	}
}

func TestDecodeSessionRejectsCorruptRecords(t *testing.T) {
	if s := decodeSession("user-1", []byte("{not json")); s != nil {
		t.Errorf("expected nil for unparseable record, got %+v", s)
	}

	data, err := encodeSession(testSession("user-1"))
	if err != nil {
		t.Fatalf("encodeSession failed: %v", err)
	}
	if s := decodeSession("user-1", data); s == nil {
		t.Fatal("expected a valid record to decode")
	}

	// Unknown version is treated as absent.
	future := testSession("user-1")
	blob, err := encodeSession(future)
	if err != nil {
		t.Fatalf("encodeSession failed: %v", err)
	}
	tampered := []byte(string(blob))
	tampered = []byte(replaceVersion(string(tampered)))
	if s := decodeSession("user-1", tampered); s != nil {
		t.Errorf("expected nil for unknown version, got %+v", s)
	}
}

func replaceVersion(blob string) string {
	// encodeSession always writes "version":1 first.
	return "{\"version\":99," + blob[len("{\"version\":1,"):]
}

func TestStorageKeyPrefix(t *testing.T) {
	if got := storageKey("user-1"); got != "intake:user-1" {
		t.Errorf("unexpected storage key: %q", got)
	}
}
