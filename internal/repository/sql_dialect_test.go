package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm duplicated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "postgres", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "postgres other", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite", err: errors.New("constraint failed: UNIQUE constraint failed: print_jobs.order_id (2067)"), want: true},
		{name: "other", err: errors.New("database is locked"), want: false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestLikeOperatorByDialect(t *testing.T) {
	if likeOperatorByDialect("postgres") != "ILIKE" {
		t.Fatalf("postgres should use ILIKE")
	}
	if likeOperatorByDialect("sqlite") != "LIKE" {
		t.Fatalf("sqlite should use LIKE")
	}
}
