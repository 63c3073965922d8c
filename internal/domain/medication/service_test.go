package medication

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeRepo struct {
	items  map[uuid.UUID]*Medication
	order  []uuid.UUID
	active map[uuid.UUID]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[uuid.UUID]*Medication), active: make(map[uuid.UUID]int)}
}

func (r *fakeRepo) Create(_ context.Context, m *Medication) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	r.items[m.ID] = &cp
	r.order = append(r.order, m.ID)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	m, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, m *Medication) error {
	if _, ok := r.items[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) List(_ context.Context, f ListFilter, skip, limit int) ([]*Medication, int, error) {
	var out []*Medication
	for _, id := range r.order {
		m, ok := r.items[id]
		if !ok {
			continue
		}
		if f.Unit != "" && m.Unit != f.Unit {
			continue
		}
		if s := strings.ToLower(f.Search); s != "" && !strings.Contains(strings.ToLower(m.Name), s) &&
			(m.BrandName == nil || !strings.Contains(strings.ToLower(*m.BrandName), s)) {
			continue
		}
		out = append(out, m)
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

func (r *fakeRepo) FindSimilar(_ context.Context, name, dosage string, unit Unit) (*Medication, error) {
	for _, m := range r.items {
		if strings.EqualFold(m.Name, name) && m.Dosage == dosage && m.Unit == unit {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ActiveTreatments(_ context.Context, id uuid.UUID) (int, error) {
	return r.active[id], nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func strPtr(s string) *string { return &s }

func validRequest() *CreateRequest {
	return &CreateRequest{
		Name:        "  ibuprofeno forte ",
		Dosage:      " 400 ",
		Unit:        UnitMg,
		SideEffects: []string{"nausea", " nausea", "", "headache"},
		BrandName:   strPtr("Advil"),
		GenericName: strPtr("ibuprofen"),
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()
	m, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if m.Name != "Ibuprofeno Forte" || m.Dosage != "400" {
		t.Errorf("expected normalised name and dosage, got %q %q", m.Name, m.Dosage)
	}
	if len(m.SideEffects) != 2 || m.Contraindications == nil {
		t.Errorf("expected cleaned lists, got %v %v", m.SideEffects, m.Contraindications)
	}
	if m.FullName() != "Ibuprofeno Forte 400 mg" {
		t.Errorf("unexpected full name %q", m.FullName())
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Create(ctx, validRequest()); err != nil {
		t.Fatal(err)
	}

	dup := validRequest()
	dup.Name = "IBUPROFENO FORTE"
	if _, err := svc.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	other := validRequest()
	other.Unit = UnitTablets
	if _, err := svc.Create(ctx, other); err != nil {
		t.Errorf("different unit should not be a duplicate: %v", err)
	}
}

func TestUpdate_Partial(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m, _ := svc.Create(ctx, validRequest())

	got, err := svc.Update(ctx, m.ID, &UpdateRequest{Name: strPtr("paracetamol"), Contraindications: []string{"liver disease"}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Paracetamol" || len(got.Contraindications) != 1 {
		t.Errorf("unexpected update result %+v", got)
	}
	if stored := repo.items[m.ID]; stored.Dosage != "400" || stored.Unit != UnitMg {
		t.Errorf("expected untouched fields kept, got %+v", stored)
	}
	if _, err := svc.Update(ctx, uuid.New(), &UpdateRequest{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, validRequest())
	svc.Create(ctx, &CreateRequest{Name: "metformina", Dosage: "850", Unit: UnitTablets})

	items, total, err := svc.List(ctx, ListFilter{Unit: UnitTablets}, 0, 100)
	if err != nil || total != 1 || items[0].Name != "Metformina" {
		t.Fatalf("expected only Metformina, got %v (%v)", items, err)
	}
	items, _, _ = svc.List(ctx, ListFilter{Search: "advil"}, 0, 100)
	if len(items) != 1 {
		t.Errorf("expected brand search to match one medication, got %d", len(items))
	}
	if _, _, err := svc.List(ctx, ListFilter{Unit: "grams"}, 0, 100); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m, _ := svc.Create(ctx, validRequest())

	repo.active[m.ID] = 2
	if err := svc.Delete(ctx, m.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("expected ErrInUse, got %v", err)
	}
	repo.active[m.ID] = 0
	if err := svc.Delete(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInteractions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.Create(ctx, validRequest())
	b, _ := svc.Create(ctx, &CreateRequest{Name: "motrin", Dosage: "200", Unit: UnitMg, GenericName: strPtr("Ibuprofen")})
	c, _ := svc.Create(ctx, &CreateRequest{Name: "metformina", Dosage: "850", Unit: UnitTablets, GenericName: strPtr("metformin")})

	got, err := svc.Interactions(ctx, a.ID, []uuid.UUID{b.ID, c.ID, uuid.New(), a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].OtherID != b.ID || got[0].Type != "duplicate_therapy" {
		t.Errorf("expected one duplicate therapy with motrin, got %+v", got)
	}
	if _, err := svc.Interactions(ctx, uuid.New(), nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"aspirina", "Aspirina"},
		{" ácido FÓLICO ", "Ácido Fólico"},
		{"co-trimoxazol", "Co-Trimoxazol"},
		{"vitamina b12", "Vitamina B12"},
	}
	for _, tt := range tests {
		if got := titleCase(tt.in); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
