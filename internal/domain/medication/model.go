package medication

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type Unit string

const (
	UnitMg       Unit = "mg"
	UnitMl       Unit = "ml"
	UnitTablets  Unit = "tablets"
	UnitCapsules Unit = "capsules"
	UnitDrops    Unit = "drops"
	UnitPatches  Unit = "patches"
)

// Units lists every accepted dosage unit in display order.
var Units = []Unit{UnitMg, UnitMl, UnitTablets, UnitCapsules, UnitDrops, UnitPatches}

func (u Unit) Valid() bool {
	for _, v := range Units {
		if u == v {
			return true
		}
	}
	return false
}

type Medication struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	Dosage            string    `json:"dosage"`
	Unit              Unit      `json:"unit"`
	Instructions      *string   `json:"instructions"`
	SideEffects       []string  `json:"side_effects"`
	Contraindications []string  `json:"contraindications"`
	BrandName         *string   `json:"brand_name"`
	GenericName       *string   `json:"generic_name"`
	Manufacturer      *string   `json:"manufacturer"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FullName is the name followed by dosage and unit, e.g. "Ibuprofeno 400 mg".
func (m *Medication) FullName() string {
	return m.Name + " " + m.Dosage + " " + string(m.Unit)
}

type CreateRequest struct {
	Name              string   `json:"name" validate:"required,max=255"`
	Description       *string  `json:"description" validate:"omitempty,max=1000"`
	Dosage            string   `json:"dosage" validate:"required,max=100"`
	Unit              Unit     `json:"unit" validate:"required,oneof=mg ml tablets capsules drops patches"`
	Instructions      *string  `json:"instructions" validate:"omitempty,max=1000"`
	SideEffects       []string `json:"side_effects"`
	Contraindications []string `json:"contraindications"`
	BrandName         *string  `json:"brand_name" validate:"omitempty,max=255"`
	GenericName       *string  `json:"generic_name" validate:"omitempty,max=255"`
	Manufacturer      *string  `json:"manufacturer" validate:"omitempty,max=255"`
}

func (r *CreateRequest) toMedication() *Medication {
	return &Medication{
		Name:              titleCase(r.Name),
		Description:       r.Description,
		Dosage:            strings.TrimSpace(r.Dosage),
		Unit:              r.Unit,
		Instructions:      r.Instructions,
		SideEffects:       cleanList(r.SideEffects),
		Contraindications: cleanList(r.Contraindications),
		BrandName:         r.BrandName,
		GenericName:       r.GenericName,
		Manufacturer:      r.Manufacturer,
	}
}

// UpdateRequest carries the mutable medication fields; nil means untouched.
type UpdateRequest struct {
	Name              *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description       *string  `json:"description" validate:"omitempty,max=1000"`
	Dosage            *string  `json:"dosage" validate:"omitempty,min=1,max=100"`
	Unit              *Unit    `json:"unit" validate:"omitempty,oneof=mg ml tablets capsules drops patches"`
	Instructions      *string  `json:"instructions" validate:"omitempty,max=1000"`
	SideEffects       []string `json:"side_effects"`
	Contraindications []string `json:"contraindications"`
	BrandName         *string  `json:"brand_name" validate:"omitempty,max=255"`
	GenericName       *string  `json:"generic_name" validate:"omitempty,max=255"`
	Manufacturer      *string  `json:"manufacturer" validate:"omitempty,max=255"`
}

func (u *UpdateRequest) apply(m *Medication) {
	if u.Name != nil {
		m.Name = titleCase(*u.Name)
	}
	if u.Description != nil {
		m.Description = u.Description
	}
	if u.Dosage != nil {
		m.Dosage = strings.TrimSpace(*u.Dosage)
	}
	if u.Unit != nil {
		m.Unit = *u.Unit
	}
	if u.Instructions != nil {
		m.Instructions = u.Instructions
	}
	if u.SideEffects != nil {
		m.SideEffects = cleanList(u.SideEffects)
	}
	if u.Contraindications != nil {
		m.Contraindications = cleanList(u.Contraindications)
	}
	if u.BrandName != nil {
		m.BrandName = u.BrandName
	}
	if u.GenericName != nil {
		m.GenericName = u.GenericName
	}
	if u.Manufacturer != nil {
		m.Manufacturer = u.Manufacturer
	}
}

type ListFilter struct {
	Search string
	Unit   Unit
}

// Interaction describes a known problem with taking two medications
// together.
type Interaction struct {
	MedicationID   uuid.UUID `json:"medication1_id"`
	MedicationName string    `json:"medication1_name"`
	OtherID        uuid.UUID `json:"medication2_id"`
	OtherName      string    `json:"medication2_name"`
	Type           string    `json:"interaction_type"`
	Severity       string    `json:"severity"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
}

// interactionBetween reports duplicate therapy: two products sharing an
// active ingredient.
func interactionBetween(a, b *Medication) *Interaction {
	if a.GenericName == nil || b.GenericName == nil {
		return nil
	}
	ga, gb := strings.TrimSpace(*a.GenericName), strings.TrimSpace(*b.GenericName)
	if ga == "" || !strings.EqualFold(ga, gb) {
		return nil
	}
	return &Interaction{
		MedicationID:   a.ID,
		MedicationName: a.Name,
		OtherID:        b.ID,
		OtherName:      b.Name,
		Type:           "duplicate_therapy",
		Severity:       "high",
		Description:    "both medications share the active ingredient " + ga,
		Recommendation: "avoid simultaneous use and consult the prescriber",
	}
}

// titleCase trims s and upper-cases the first letter of every word,
// lower-casing the rest.
func titleCase(s string) string {
	var b strings.Builder
	start := true
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) {
			if start {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			start = false
			continue
		}
		b.WriteRune(r)
		start = true
	}
	return b.String()
}

// cleanList drops blank entries and duplicates, keeping first-seen order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
