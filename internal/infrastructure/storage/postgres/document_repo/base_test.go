package document_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
)

func testRepo() *BaseDocumentRepo[any] {
	return NewBaseDocumentRepo[any](nil, "test_docs", []string{"id", "number", "date"}, func() any { return nil })
}

func TestBaseSelectSQL(t *testing.T) {
	repo := testRepo()

	sql, _, err := repo.baseSelect().ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	want := "SELECT id, number, date FROM test_docs"
	if sql != want {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", want, sql)
	}
}

func TestGetByIDSQL(t *testing.T) {
	repo := testRepo()

	q := repo.baseSelect().Where(squirrel.Eq{"id": "abc"})
	sql, args, err := q.ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	want := "SELECT id, number, date FROM test_docs WHERE id = $1"
	if sql != want {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", want, sql)
	}
	if len(args) != 1 || args[0] != "abc" {
		t.Errorf("Args mismatch: %v", args)
	}
}

func TestParseOrderBy(t *testing.T) {
	repo := testRepo()

	tests := []struct {
		name    string
		orderBy string
		want    string
		wantErr bool
	}{
		{"default", "", "date DESC", false},
		{"descending", "-date", "date DESC", false},
		{"ascending implicit", "number", "number ASC", false},
		{"ascending explicit", "+number", "number ASC", false},
		{"unknown column", "name; DROP TABLE orders", "", true},
		{"bare sign", "-", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.parseOrderBy(tt.orderBy)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOrderBy failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("orderBy mismatch\nwant: %s\ngot:  %s", tt.want, got)
			}
		})
	}
}
