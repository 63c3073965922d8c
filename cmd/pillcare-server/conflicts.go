package main

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/internal/domain/medication"
	"github.com/pillcare/pillcare/internal/domain/treatment"
)

type activeRegimen interface {
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*treatment.Treatment, error)
}

type interactionFinder interface {
	Interactions(ctx context.Context, id uuid.UUID, others []uuid.UUID) ([]*medication.Interaction, error)
}

// interactionConflicts reports a conflict when the new medication interacts
// with one the patient is already actively taking. It lives here so the
// treatment and medication packages stay independent.
type interactionConflicts struct {
	regimen activeRegimen
	meds    interactionFinder
}

func (c interactionConflicts) Check(ctx context.Context, patientID, medicationID uuid.UUID) (*treatment.Conflict, error) {
	active, err := c.regimen.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	others := make([]uuid.UUID, 0, len(active))
	for _, t := range active {
		others = append(others, t.MedicationID)
	}
	found, err := c.meds.Interactions(ctx, medicationID, others)
	if errors.Is(err, medication.ErrNotFound) {
		return nil, nil
	}
	if err != nil || len(found) == 0 {
		return nil, err
	}
	msgs := make([]string, 0, len(found))
	for _, in := range found {
		msgs = append(msgs, in.OtherName+": "+in.Description)
	}
	return &treatment.Conflict{Message: strings.Join(msgs, "; ")}, nil
}
