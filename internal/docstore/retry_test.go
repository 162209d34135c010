package docstore

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRetryOnBusyRetriesLockedErrors(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	want := errors.New("constraint failed")
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) || calls != 1 {
		t.Fatalf("got err=%v calls=%d", err, calls)
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	got := s.rebind("SELECT a FROM t WHERE x = ? AND y = ?")
	if !strings.HasSuffix(got, "x = $1 AND y = $2") {
		t.Fatalf("unexpected rebind %q", got)
	}
	s.driver = DriverSQLite
	if q := s.rebind("x = ?"); q != "x = ?" {
		t.Fatalf("sqlite query should be unchanged, got %q", q)
	}
}
