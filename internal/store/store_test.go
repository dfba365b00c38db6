package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/uclf/legal-aid-portal/pkg/database"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "store.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "p1", KeyUsage); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if err := SetJSON(ctx, s, "p1", KeyUsage, models.DailyUsage{Date: "2024-03-15", Queries: 2}); err != nil {
		t.Fatal(err)
	}
	// overwrite
	if err := SetJSON(ctx, s, "p1", KeyUsage, models.DailyUsage{Date: "2024-03-15", Queries: 3, Uploads: 1}); err != nil {
		t.Fatal(err)
	}

	var u models.DailyUsage
	found, err := GetJSON(ctx, s, "p1", KeyUsage, &u)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if u.Queries != 3 || u.Uploads != 1 {
		t.Fatalf("got %+v", u)
	}

	// scoped per profile
	found, _ = GetJSON(ctx, s, "p2", KeyUsage, &u)
	if found {
		t.Fatal("profile p2 must not see p1 records")
	}

	if err := s.Remove(ctx, "p1", KeyUsage); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "p1", KeyUsage); err != ErrNotFound {
		t.Fatalf("after remove want ErrNotFound, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestGormStore(t *testing.T) {
	exerciseStore(t, NewGormStore(openTestDB(t)))
}

func TestPrivacyKey(t *testing.T) {
	if got := PrivacyKey(models.RoleFullMember); got != "uclf_privacy_full_member" {
		t.Fatalf("got %s", got)
	}
}

func TestLocks_SerializeAndEvict(t *testing.T) {
	var l Locks
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("p1")
			v := counter
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("lost updates: counter = %d", counter)
	}

	for _, id := range []string{"a", "b", "c"} {
		l.Lock(id)()
	}
	if n := len(l.m); n != 0 {
		t.Fatalf("want no lock entries after release, got %d", n)
	}

	held := l.Lock("p2")
	if _, ok := l.m["p2"]; !ok {
		t.Fatal("held lock has no entry")
	}
	held()
	if _, ok := l.m["p2"]; ok {
		t.Fatal("released lock still tracked")
	}
}
