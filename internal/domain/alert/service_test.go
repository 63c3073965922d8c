package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeRepo struct {
	items    []*Alert
	owners   map[uuid.UUID]uuid.UUID // patient -> caregiver
	createAt time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{owners: make(map[uuid.UUID]uuid.UUID), createAt: time.Now()}
}

func (r *fakeRepo) owned(a *Alert, caregiver *uuid.UUID) bool {
	return caregiver == nil || r.owners[a.PatientID] == *caregiver
}

func (r *fakeRepo) Create(_ context.Context, a *Alert) error {
	a.ID = uuid.New()
	a.CreatedAt = r.createAt
	cp := *a
	r.items = append(r.items, &cp)
	return nil
}

func (r *fakeRepo) List(_ context.Context, f Filter, skip, limit int) ([]*Alert, int, error) {
	var out []*Alert
	for _, a := range r.items {
		if !r.owned(a, f.Caregiver) || (f.UnreadOnly && a.IsRead) || (f.PatientID != nil && a.PatientID != *f.PatientID) {
			continue
		}
		out = append(out, a)
	}
	total := len(out)
	if skip >= total {
		return nil, total, nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeRepo) MarkRead(_ context.Context, id uuid.UUID, caregiver *uuid.UUID) error {
	for _, a := range r.items {
		if a.ID == id && r.owned(a, caregiver) {
			a.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) MarkAllRead(_ context.Context, caregiver *uuid.UUID) (int, error) {
	n := 0
	for _, a := range r.items {
		if !a.IsRead && r.owned(a, caregiver) {
			a.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) Exists(_ context.Context, treatmentID uuid.UUID, t Type, since time.Time) (bool, error) {
	for _, a := range r.items {
		if a.TreatmentID != nil && *a.TreatmentID == treatmentID && a.Type == t && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestRaise_DefaultsSeverity(t *testing.T) {
	svc, repo := newTestService()
	a := &Alert{PatientID: uuid.New(), Type: TypeMissedDose, Message: "missed"}
	if err := svc.Raise(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if a.ID == uuid.Nil || a.Severity != SeverityMedium || repo.items[0].IsRead {
		t.Errorf("unexpected alert %+v", a)
	}
}

func TestRaiseOnce(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	tid := uuid.New()
	since := repo.createAt.Add(-time.Hour)
	newAlert := func() *Alert {
		return &Alert{PatientID: uuid.New(), TreatmentID: &tid, Type: TypeTreatmentEnd, Message: "ends tomorrow"}
	}

	if ok, err := svc.RaiseOnce(ctx, newAlert(), since); err != nil || !ok {
		t.Fatalf("expected first alert stored, got %v %v", ok, err)
	}
	if ok, _ := svc.RaiseOnce(ctx, newAlert(), since); ok {
		t.Error("expected duplicate alert to be skipped")
	}
	if ok, _ := svc.RaiseOnce(ctx, newAlert(), repo.createAt.Add(time.Minute)); !ok {
		t.Error("expected alert after the window to be stored")
	}
	if len(repo.items) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(repo.items))
	}
}

func TestMarkRead_Scoped(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mine, theirs := uuid.New(), uuid.New()
	p := uuid.New()
	repo.owners[p] = mine
	a := &Alert{PatientID: p, Type: TypeMissedDose, Message: "missed"}
	svc.Raise(ctx, a)

	if err := svc.MarkRead(ctx, a.ID, &theirs); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another caregiver, got %v", err)
	}
	if err := svc.MarkRead(ctx, a.ID, &mine); err != nil {
		t.Fatal(err)
	}
	items, _, _ := svc.List(ctx, Filter{Caregiver: &mine, UnreadOnly: true}, 0, 100)
	if len(items) != 0 {
		t.Errorf("expected no unread alerts, got %d", len(items))
	}
}
