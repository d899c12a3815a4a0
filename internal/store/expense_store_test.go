package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestExpenseStoreSoftDelete(t *testing.T) {
	ctx := context.Background()
	store := NewExpenseStore(stubDB{})
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET deleted_at = NOW()") {
				t.Fatalf("expected soft delete, query: %s", query)
			}
			if !strings.Contains(query, "deleted_at IS NULL") {
				t.Fatalf("soft delete must not touch already-deleted rows, query: %s", query)
			}
			return stubResult{rows: 1}, nil
		},
	}
	rows, err := store.SoftDelete(ctx, execer, "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
}

func TestExpenseStoreUpdateDescriptionOnly(t *testing.T) {
	ctx := context.Background()
	store := NewExpenseStore(stubDB{})
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			for _, col := range []string{"amount_minor", "paid_by"} {
				if strings.Contains(query, col) {
					t.Fatalf("description edit must not touch %s, query: %s", col, query)
				}
			}
			return stubResult{rows: 1}, nil
		},
	}
	if _, err := store.UpdateDescription(ctx, execer, "e1", "groceries"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemberStoreActiveIDsOrdered(t *testing.T) {
	ctx := context.Background()
	db := stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY user_id") {
				t.Fatalf("member ids must come back in stable order, query: %s", query)
			}
			*dest.(*[]string) = []string{"a", "b", "c"}
			return nil
		},
	}
	store := NewMemberStore(db)
	ids, err := store.ActiveMemberIDs(ctx, db, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
