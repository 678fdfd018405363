package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound     = errors.New("models: no resource could be found")
	ErrInvalidEntry = errors.New("models: invalid entry")
)

// NewEntryID is the id used by an entry that has not been saved yet.
const NewEntryID = "new"

// TimePeriod is the daily measurement slot an entry belongs to.
type TimePeriod string

const (
	Morning TimePeriod = "morning"
	Midday  TimePeriod = "midday"
	Evening TimePeriod = "evening"
)

// TimePeriods lists every period in chronological order.
var TimePeriods = []TimePeriod{Morning, Midday, Evening}

// Ordinal is the position of the period within a day, or -1 if the
// period is not one of the known values.
func (p TimePeriod) Ordinal() int {
	switch p {
	case Morning:
		return 0
	case Midday:
		return 1
	case Evening:
		return 2
	}
	return -1
}

func (p TimePeriod) Valid() bool {
	return p.Ordinal() >= 0
}

func ParseTimePeriod(s string) (TimePeriod, error) {
	p := TimePeriod(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown time period %q", ErrInvalidEntry, s)
	}
	return p, nil
}

type Entry struct {
	CreatedTime   time.Time
	UpdatedTime   time.Time
	Date          time.Time // midnight, only the day is significant
	InsulinDosage *float64
	Weight        *float64
	ID            string
	UserID        string
	TimePeriod    TimePeriod
	GlucoseAmount float64
}

// EntryInput is the full set of mutable fields sent on create and update.
type EntryInput struct {
	Date          time.Time
	InsulinDosage *float64
	Weight        *float64
	ID            string
	TimePeriod    TimePeriod
	GlucoseAmount float64
}

func (in EntryInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}
	if !in.TimePeriod.Valid() {
		return fmt.Errorf("%w: unknown time period %q", ErrInvalidEntry, in.TimePeriod)
	}
	if !isFinite(in.GlucoseAmount) || in.GlucoseAmount <= 0 {
		return fmt.Errorf("%w: glucose amount must be a positive number", ErrInvalidEntry)
	}
	if in.InsulinDosage != nil && (!isFinite(*in.InsulinDosage) || *in.InsulinDosage < 0) {
		return fmt.Errorf("%w: insulin dosage must be a non-negative number", ErrInvalidEntry)
	}
	if in.Weight != nil && (!isFinite(*in.Weight) || *in.Weight < 0) {
		return fmt.Errorf("%w: weight must be a non-negative number", ErrInvalidEntry)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

type EntryRepository interface {
	FetchEntry(ctx context.Context, userID, id string) (*Entry, error)
	FetchEntries(ctx context.Context, userID string) ([]Entry, error)
	CreateEntry(ctx context.Context, entry Entry) (*Entry, error)
	UpdateEntry(ctx context.Context, entry Entry) (*Entry, error)
	DeleteEntry(ctx context.Context, userID, id string) error
}

// Notifier is told when a user's entries have changed.
type Notifier interface {
	EntriesChanged(ctx context.Context, userID string)
}
