package repository

import (
	"testing"
)

func TestBuildLikeConditionSQLite(t *testing.T) {
	condition, argCount := buildLikeCondition(nil, []string{"sku", " ", "name"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	want := `sku LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'`
	if condition != want {
		t.Fatalf("condition mismatch, want %s got %s", want, condition)
	}
}

func TestBuildLikeConditionPostgres(t *testing.T) {
	condition, argCount := buildLikeConditionByDialect("postgres", []string{"name"})
	if argCount != 1 {
		t.Fatalf("arg count want 1 got %d", argCount)
	}
	want := `name ILIKE ? ESCAPE '\'`
	if condition != want {
		t.Fatalf("condition mismatch, want %s got %s", want, condition)
	}
}

func TestBuildLikeConditionMySQL(t *testing.T) {
	condition, _ := buildLikeConditionByDialect("mysql", []string{"username", "email"})
	want := `username LIKE ? ESCAPE '\\' OR email LIKE ? ESCAPE '\\'`
	if condition != want {
		t.Fatalf("condition mismatch, want %s got %s", want, condition)
	}
}

func TestContainsLikePatternEscapesWildcards(t *testing.T) {
	got := containsLikePattern(`50%_off\`)
	want := `%50\%\_off\\%`
	if got != want {
		t.Fatalf("pattern mismatch, want %s got %s", want, got)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
