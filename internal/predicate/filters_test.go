package predicate

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var reportFields = map[string]FieldDef{
	"title":      {Column: "title", Type: FieldTypeText},
	"body":       {Column: "body", Type: FieldTypeTextArea},
	"amount":     {Column: "amount", Type: FieldTypeNumber},
	"status":     {Column: "status", Type: FieldTypeDropdown},
	"owner":      {Column: "owner_id", Type: FieldTypeReference},
	"archived":   {Column: "archived", Type: FieldTypeBool},
	"created_at": {Column: "created_at", Type: FieldTypeDate},
}

func TestFieldFiltersEmpty(t *testing.T) {
	got, err := FieldFilters(reportFields, nil)
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	if !got.IsAlwaysTrue() {
		t.Error("no filters should yield the always-true predicate")
	}

	got, err = FieldFilters(reportFields, map[string]string{"title": "  "})
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	if !got.IsAlwaysTrue() {
		t.Error("blank filter values should be skipped")
	}
}

func TestFieldFiltersTextSubstring(t *testing.T) {
	p, err := FieldFilters(reportFields, map[string]string{"title": "Quarterly"})
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	query, args := render(t, p)
	if !strings.Contains(strings.ToUpper(query), "LIKE") {
		t.Errorf("text filter should be a substring match, got %q", query)
	}

	if len(args) != 1 || args[0] != "%quarterly%" {
		t.Errorf("args = %v, want case-folded pattern", args)
	}
}

func TestFieldFiltersNumberEquality(t *testing.T) {
	p, err := FieldFilters(reportFields, map[string]string{"amount": "42.5"})
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	_, args := render(t, p)
	if len(args) != 1 || args[0] != 42.5 {
		t.Errorf("args = %v, want parsed number 42.5", args)
	}

	if _, err := FieldFilters(reportFields, map[string]string{"amount": "not-a-number"}); !errors.Is(err, ErrBadFilterValue) {
		t.Errorf("unparsable number should fail, got %v", err)
	}
}

func TestFieldFiltersDropdownAndReference(t *testing.T) {
	p, err := FieldFilters(reportFields, map[string]string{"status": "open", "owner": "17"})
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	_, args := render(t, p)
	if len(args) != 2 {
		t.Errorf("args = %v, want exact string equality for both", args)
	}
}

func TestFieldFiltersBool(t *testing.T) {
	p, err := FieldFilters(reportFields, map[string]string{"archived": "true"})
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	// Bools render as inline literals, not bound arguments.
	query, _ := render(t, p)
	if !strings.Contains(query, "archived") || !strings.Contains(query, "true") {
		t.Errorf("bool filter should compare the column against the literal, got %q", query)
	}

	if _, err := FieldFilters(reportFields, map[string]string{"archived": "not-a-bool"}); !errors.Is(err, ErrBadFilterValue) {
		t.Errorf("unparsable bool should fail, got %v", err)
	}
}

func TestFieldFiltersDateRange(t *testing.T) {
	lower := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	upperExclusive := time.Date(2026, 3, 32, 0, 0, 0, 0, time.UTC) // normalized to April 1

	p, err := FieldFilters(reportFields, map[string]string{
		"created_at":    "2026-03-01",
		"created_at_to": "2026-03-31",
	})
	if err != nil {
		t.Fatalf("FieldFilters: %v", err)
	}

	query, args := render(t, p)
	if !strings.Contains(query, ">=") {
		t.Errorf("plain date key should be a lower bound, got %q", query)
	}

	if !strings.Contains(query, "<") {
		t.Errorf("_to date key should be an upper bound, got %q", query)
	}

	found := map[int64]bool{}
	for _, arg := range args {
		if v, ok := arg.(int64); ok {
			found[v] = true
		}
	}

	if !found[lower.Unix()] {
		t.Errorf("args %v should contain lower bound %d", args, lower.Unix())
	}

	if !found[upperExclusive.Unix()] {
		t.Errorf("args %v should contain exclusive upper bound %d", args, upperExclusive.Unix())
	}
}

func TestFieldFiltersUnknownField(t *testing.T) {
	if _, err := FieldFilters(reportFields, map[string]string{"no_such": "x"}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field should be a configuration error, got %v", err)
	}

	// "_to" on a non-date field is unknown too.
	if _, err := FieldFilters(reportFields, map[string]string{"title_to": "x"}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("_to suffix on text field should be unknown, got %v", err)
	}
}

func TestFieldFiltersUnknownType(t *testing.T) {
	fields := map[string]FieldDef{"broken": {Column: "broken", Type: FieldTypeUnknown}}

	if _, err := FieldFilters(fields, map[string]string{"broken": "x"}); !errors.Is(err, ErrUnknownFieldType) {
		t.Errorf("unknown field type should be a configuration error, got %v", err)
	}
}
