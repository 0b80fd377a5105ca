package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// OccurrencePersisted is a concrete row in storage, standalone or a
	// materialized recurring occurrence.
	OccurrencePersisted OccurrenceKind = "persisted"
	// OccurrenceGenerated is a synthetic occurrence computed on demand from
	// a recurring template, never individually persisted.
	OccurrenceGenerated OccurrenceKind = "generated"
	// OccurrenceOverridden is a generated occurrence whose amount comes from
	// an explicit per-date override rather than the template.
	OccurrenceOverridden OccurrenceKind = "overridden"
)

type (
	OccurrenceKind string

	// Occurrence is one dated instance of either a standalone or recurring
	// expense. TemplateID is a weak back-reference for lookup only: the
	// template may have been deleted while the occurrence lives on.
	Occurrence struct {
		ID         int64 // storage row id, 0 for synthetic occurrences
		Kind       OccurrenceKind
		AccountID  int64
		Title      string
		Amount     Money // signed: negative = revenue, positive = expense
		Date       Date
		Category   string
		TemplateID int64 // 0 when not generated from a template
	}

	// RecurringTemplate generates occurrences on a schedule starting at
	// AnchorDate. Modified marks that the amount was edited after creation:
	// edits apply to future occurrences only, already-materialized rows
	// keep the amount they were persisted with.
	RecurringTemplate struct {
		ID             int64
		AccountID      int64
		Title          string
		OriginalAmount Money
		AnchorDate     Date
		Modified       bool
		Granularity    Granularity
	}

	// Account scopes expenses and carries the base balance all running
	// balances are folded from.
	Account struct {
		ID             int64
		Name           string
		Currency       string
		InitialBalance Money
	}
)

var (
	ErrInvalidRange    = errors.New("invalid date range")
	ErrInvalidTemplate = errors.New("template is not recurring")
	ErrNotFound        = errors.New("not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	// ErrInvalidInput marks the remaining validation and parse failures so
	// callers can classify them with errors.Is instead of message matching.
	ErrInvalidInput = errors.New("invalid input")
)

func (o Occurrence) Validate() error {
	if err := o.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(o.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(o.Title) > 200 {
		return fmt.Errorf("title too long (max 200 characters): %w", ErrInvalidInput)
	}
	if o.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if o.AccountID <= 0 {
		return fmt.Errorf("missing account id: %w", ErrInvalidInput)
	}
	return nil
}

func (t RecurringTemplate) Validate() error {
	if err := t.AnchorDate.Validate(); err != nil {
		return fmt.Errorf("invalid anchor date: %w", err)
	}
	if err := t.Granularity.Validate(); err != nil {
		return err
	}
	// A non-recurring granularity must be handled as an ordinary single
	// expense by the caller, never stored as a template.
	if !t.Granularity.IsRecurring() {
		return ErrInvalidTemplate
	}
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return fmt.Errorf("title too long (max 200 characters): %w", ErrInvalidInput)
	}
	if t.OriginalAmount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.AccountID <= 0 {
		return fmt.Errorf("missing account id: %w", ErrInvalidInput)
	}
	return nil
}
