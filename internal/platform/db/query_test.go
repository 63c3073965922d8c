package db

import (
	"testing"
)

func TestSearchQuery_Empty(t *testing.T) {
	q := NewSearchQuery("treatments", "id, status")

	if got := q.CountSQL(); got != "SELECT COUNT(*) FROM treatments WHERE 1=1" {
		t.Errorf("unexpected count SQL: %s", got)
	}
	want := "SELECT id, status FROM treatments WHERE 1=1 LIMIT $1 OFFSET $2"
	if got := q.DataSQL(10, 0); got != want {
		t.Errorf("unexpected data SQL:\n got: %s\nwant: %s", got, want)
	}
	if args := q.DataArgs(10, 20); len(args) != 2 || args[0] != 10 || args[1] != 20 {
		t.Errorf("unexpected data args: %v", args)
	}
}

func TestSearchQuery_Filters(t *testing.T) {
	q := NewSearchQuery("treatments", "id")
	q.Eq("patient_id", "p1")
	q.Eq("status", "active")
	q.OrderBy("created_at")

	want := "SELECT id FROM treatments WHERE 1=1 AND patient_id = $1 AND status = $2 ORDER BY created_at LIMIT $3 OFFSET $4"
	if got := q.DataSQL(5, 0); got != want {
		t.Errorf("unexpected data SQL:\n got: %s\nwant: %s", got, want)
	}
	if len(q.CountArgs()) != 2 {
		t.Errorf("expected 2 count args, got %d", len(q.CountArgs()))
	}
}

func TestSearchQuery_Add(t *testing.T) {
	q := NewSearchQuery("doses", "id")
	q.Eq("treatment_id", "t1")
	q.Add("scheduled_time >= $%d AND scheduled_time < $%d", "a", "b")

	want := "SELECT COUNT(*) FROM doses WHERE 1=1 AND treatment_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3"
	if got := q.CountSQL(); got != want {
		t.Errorf("unexpected count SQL:\n got: %s\nwant: %s", got, want)
	}
}

func TestSearchQuery_Contains(t *testing.T) {
	q := NewSearchQuery("patients", "id")
	q.Contains("50%_off", "name", "email")

	want := "SELECT COUNT(*) FROM patients WHERE 1=1 AND (name ILIKE $1 OR email ILIKE $1)"
	if got := q.CountSQL(); got != want {
		t.Errorf("unexpected count SQL:\n got: %s\nwant: %s", got, want)
	}
	if args := q.CountArgs(); len(args) != 1 || args[0] != `%50\%\_off%` {
		t.Errorf("expected escaped pattern, got %v", args)
	}
}

func TestSearchQuery_NoLimit(t *testing.T) {
	q := NewSearchQuery("alarms", "id")
	q.Eq("treatment_id", "t1")

	want := "SELECT id FROM alarms WHERE 1=1 AND treatment_id = $1 OFFSET $2"
	if got := q.DataSQL(0, 0); got != want {
		t.Errorf("unexpected data SQL:\n got: %s\nwant: %s", got, want)
	}
	if args := q.DataArgs(0, 3); len(args) != 2 || args[1] != 3 {
		t.Errorf("unexpected data args: %v", args)
	}
}
