package permission

import (
	"context"
	"path/filepath"
	"testing"

	"nuha.dev/loctrack/internal/prefs/sqlitestore"
)

func TestStaticChecker(t *testing.T) {
	if ok, _ := Static(true).Granted(context.Background()); !ok {
		t.Error("Static(true) should be granted")
	}
	if ok, _ := Static(false).Granted(context.Background()); ok {
		t.Error("Static(false) should be denied")
	}
}

func TestStoreGrantRevoke(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitestore.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := NewStore(db)
	if ok, _ := s.Granted(ctx); ok {
		t.Error("permission should default to denied")
	}
	if err := s.Grant(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Granted(ctx); !ok {
		t.Error("expected granted after Grant")
	}
	if err := s.Revoke(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Granted(ctx); ok {
		t.Error("expected denied after Revoke")
	}
}
