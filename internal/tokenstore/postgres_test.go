package tokenstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type mockRow struct {
	scan func(dest ...any) error
}

func (r mockRow) Scan(dest ...any) error { return r.scan(dest...) }

// mockPg simula client_storage sobre un map; reconoce las consultas por verbo.
type mockPg struct {
	items    map[string]string
	lastSQL  string
	lastArgs []any
	execErr  error
}

func newMockPg() *mockPg {
	return &mockPg{items: make(map[string]string)}
}

func (m *mockPg) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.lastSQL = sql
	m.lastArgs = args
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	switch {
	case strings.Contains(sql, "INSERT INTO client_storage"):
		m.items[args[0].(string)] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "DELETE FROM client_storage"):
		delete(m.items, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (m *mockPg) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL = sql
	key := args[0].(string)
	return mockRow{scan: func(dest ...any) error {
		v, ok := m.items[key]
		if !ok {
			return pgx.ErrNoRows
		}
		*(dest[0].(*string)) = v
		return nil
	}}
}

func TestPgStorage(t *testing.T) {
	pg := newMockPg()
	s := NewPgStorage(pg)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if !strings.Contains(pg.lastSQL, "CREATE TABLE IF NOT EXISTS client_storage") {
		t.Fatalf("unexpected schema sql %q", pg.lastSQL)
	}
	exerciseStorage(t, s)
}

func TestPgStorageExecError(t *testing.T) {
	pg := newMockPg()
	pg.execErr = errors.New("db down")
	s := NewPgStorage(pg)
	if err := s.SetItem(context.Background(), "token", "T1"); err == nil {
		t.Fatalf("expected exec error")
	}
	if err := s.RemoveItem(context.Background(), "token"); err == nil {
		t.Fatalf("expected exec error")
	}
}
