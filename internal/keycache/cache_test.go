package keycache

import (
	"sync"
	"testing"
	"time"
)

func TestPutGet(t *testing.T) {
	m := NewMemory()

	if _, ok := m.Get("u1"); ok {
		t.Fatal("empty cache should report absence")
	}

	rec := Record{Service: "Arsenal", Key: "ABCD1234", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(24 * time.Hour)}
	m.Put("u1", rec)

	got, ok := m.Get("u1")
	if !ok || got != rec {
		t.Fatalf("Get = %+v, %v; want %+v", got, ok, rec)
	}
}

func TestPut_OverwritesLatest(t *testing.T) {
	m := NewMemory()

	m.Put("u1", Record{Service: "Arsenal", Key: "ABCD1234"})
	m.Put("u1", Record{Service: "Rivals", Key: "WXYZ5678"})

	got, ok := m.Get("u1")
	if !ok || got.Service != "Rivals" || got.Key != "WXYZ5678" {
		t.Fatalf("cache should hold only the latest record, got %+v", got)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d; want 1", m.Len())
	}
}

func TestGet_NeverExpires(t *testing.T) {
	m := NewMemory()
	m.Put("u1", Record{Service: "Arsenal", Key: "ABCD1234", ExpiresAt: time.Now().Add(-time.Hour)})

	if _, ok := m.Get("u1"); !ok {
		t.Fatal("expired records are still returned; expiry is informational")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Put("u1", Record{Service: "Arsenal", Key: "ABCD1234"})
		}()
		go func() {
			defer wg.Done()
			m.Get("u1")
		}()
	}
	wg.Wait()

	if _, ok := m.Get("u1"); !ok {
		t.Fatal("record should exist after concurrent writes")
	}
}
