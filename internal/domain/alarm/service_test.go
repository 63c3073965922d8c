package alarm

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/pkg/date"
)

type fakeRepo struct {
	items      map[uuid.UUID]*Alarm
	treatments map[uuid.UUID]uuid.UUID // treatment -> patient
	inactive   map[uuid.UUID]bool      // treatments not active
	ends       map[uuid.UUID]date.Date // last day of a treatment, when set
	failCreate int                     // fail the n-th Create when > 0
	creates    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:      make(map[uuid.UUID]*Alarm),
		treatments: make(map[uuid.UUID]uuid.UUID),
		inactive:   make(map[uuid.UUID]bool),
		ends:       make(map[uuid.UUID]date.Date),
	}
}

func (r *fakeRepo) addTreatment() uuid.UUID {
	id := uuid.New()
	r.treatments[id] = uuid.New()
	return id
}

func (r *fakeRepo) Create(_ context.Context, a *Alarm) error {
	r.creates++
	if r.failCreate > 0 && r.creates == r.failCreate {
		return errors.New("insert failed")
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeRepo) Get(_ context.Context, treatmentID, id uuid.UUID) (*Alarm, error) {
	a, ok := r.items[id]
	if !ok || a.TreatmentID != treatmentID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, a *Alarm) error {
	if _, ok := r.items[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, treatmentID, id uuid.UUID) error {
	if _, err := r.Get(ctx, treatmentID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) ListByTreatment(_ context.Context, treatmentID uuid.UUID) ([]*Alarm, error) {
	out := []*Alarm{}
	for _, a := range r.items {
		if a.TreatmentID == treatmentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *fakeRepo) DeleteByTreatment(_ context.Context, treatmentID uuid.UUID) error {
	for id, a := range r.items {
		if a.TreatmentID == treatmentID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *fakeRepo) ListDue(_ context.Context, day date.Date, hhmm string) ([]*Due, error) {
	var out []*Due
	for _, a := range r.items {
		if end, ok := r.ends[a.TreatmentID]; ok && day.After(end) {
			continue
		}
		if a.IsActive && a.Time == hhmm && !r.inactive[a.TreatmentID] {
			out = append(out, &Due{Alarm: *a, PatientID: r.treatments[a.TreatmentID]})
		}
	}
	return out, nil
}

func (r *fakeRepo) TreatmentExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.treatments[id]
	return ok, nil
}

// fakeTx restores the repository snapshot when fn fails.
type fakeTx struct{ repo *fakeRepo }

func (t fakeTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	saved := make(map[uuid.UUID]*Alarm, len(t.repo.items))
	for k, v := range t.repo.items {
		saved[k] = v
	}
	if err := fn(ctx); err != nil {
		t.repo.items = saved
		return err
	}
	return nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo, fakeTx{repo}, zerolog.Nop()), repo
}

func boolPtr(b bool) *bool { return &b }

func TestCreate_Defaults(t *testing.T) {
	svc, repo := newTestService()
	tid := repo.addTreatment()

	a, err := svc.Create(context.Background(), tid, &CreateRequest{Time: "08:00", SoundEnabled: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsActive || a.SoundEnabled || !a.VisualEnabled || a.Description != "" {
		t.Errorf("unexpected defaults %+v", a)
	}
	if _, err := svc.Create(context.Background(), uuid.New(), &CreateRequest{Time: "08:00"}); !errors.Is(err, ErrTreatmentNotFound) {
		t.Errorf("expected ErrTreatmentNotFound, got %v", err)
	}
}

func TestUpdateAndDelete_ScopedToTreatment(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	tid, other := repo.addTreatment(), repo.addTreatment()
	a, _ := svc.Create(ctx, tid, &CreateRequest{Time: "08:00"})

	at := "09:30"
	got, err := svc.Update(ctx, tid, a.ID, &UpdateRequest{Time: &at, IsActive: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Time != "09:30" || got.IsActive || !got.SoundEnabled {
		t.Errorf("unexpected update %+v", got)
	}
	if _, err := svc.Update(ctx, other, a.ID, &UpdateRequest{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound through another treatment, got %v", err)
	}
	if err := svc.Delete(ctx, other, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, tid, a.ID); err != nil {
		t.Fatal(err)
	}
}

func TestSync_ReplacesAll(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	tid, other := repo.addTreatment(), repo.addTreatment()
	svc.Create(ctx, tid, &CreateRequest{Time: "07:00"})
	svc.Create(ctx, other, &CreateRequest{Time: "07:00"})

	got, err := svc.Sync(ctx, tid, []CreateRequest{{Time: "08:00"}, {Time: "20:00"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 alarms, got %d", len(got))
	}
	list, _ := svc.List(ctx, tid)
	if len(list) != 2 || list[0].Time != "08:00" || list[1].Time != "20:00" {
		t.Errorf("unexpected alarms after sync %+v", list)
	}
	if list, _ := svc.List(ctx, other); len(list) != 1 {
		t.Errorf("expected other treatment untouched, got %d", len(list))
	}

	got, err = svc.Sync(ctx, tid, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty sync to clear alarms, got %v (%v)", got, err)
	}
}

func TestSync_RollsBackOnFailure(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	tid := repo.addTreatment()
	svc.Create(ctx, tid, &CreateRequest{Time: "07:00"})

	repo.creates, repo.failCreate = 0, 2
	if _, err := svc.Sync(ctx, tid, []CreateRequest{{Time: "08:00"}, {Time: "20:00"}}); err == nil {
		t.Fatal("expected sync error")
	}
	list, _ := svc.List(ctx, tid)
	if len(list) != 1 || list[0].Time != "07:00" {
		t.Errorf("expected original alarm kept, got %+v", list)
	}
}

func TestDue(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	tid, stopped, ended := repo.addTreatment(), repo.addTreatment(), repo.addTreatment()
	repo.inactive[stopped] = true
	repo.ends[ended] = date.New(2025, 3, 9)
	svc.Create(ctx, tid, &CreateRequest{Time: "08:00"})
	svc.Create(ctx, tid, &CreateRequest{Time: "08:00", IsActive: boolPtr(false)})
	svc.Create(ctx, tid, &CreateRequest{Time: "09:00"})
	svc.Create(ctx, stopped, &CreateRequest{Time: "08:00"})
	svc.Create(ctx, ended, &CreateRequest{Time: "08:00"})

	due, err := svc.Due(ctx, date.New(2025, 3, 10), "08:00")
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].TreatmentID != tid || due[0].PatientID != repo.treatments[tid] {
		t.Errorf("unexpected due alarms %+v", due)
	}
}
