package models

import (
	"context"
	"errors"
	"fmt"
	slogctx "github.com/veqryn/slog-context"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"log/slog"
	"time"
)

type EntryService struct {
	EntryRepository
	Notifier Notifier
	Now      func() time.Time
}

// ForUser scopes the service to one subject's entries.
func (s *EntryService) ForUser(userID string) *UserEntries {
	return &UserEntries{service: s, userID: userID}
}

func (s *EntryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *EntryService) notify(ctx context.Context, userID string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.EntriesChanged(ctx, userID)
}

// UserEntries is the data service seen by a signed-in user.
type UserEntries struct {
	service *EntryService
	userID  string
}

// GetByID returns nil, nil when the entry does not exist.
func (u *UserEntries) GetByID(ctx context.Context, id string) (*Entry, error) {
	entry, err := u.service.FetchEntry(ctx, u.userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot fetch entry: %w", err)
	}
	return entry, nil
}

func (u *UserEntries) GetAll(ctx context.Context) ([]Entry, error) {
	entries, err := u.service.FetchEntries(ctx, u.userID)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch entries: %w", err)
	}
	return entries, nil
}

func (u *UserEntries) Add(ctx context.Context, in EntryInput) (*Entry, error) {
	log := slogctx.FromCtx(ctx)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := u.service.now()
	entry := entryFromInput(in)
	entry.ID = primitive.NewObjectIDFromTimestamp(now).Hex()
	entry.UserID = u.userID
	entry.CreatedTime = now
	entry.UpdatedTime = now

	created, err := u.service.CreateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("cannot create entry: %w", err)
	}
	log.Info("entry created", slog.String("id", created.ID), slog.String("userID", u.userID))
	u.service.notify(ctx, u.userID)
	return created, nil
}

// Edit replaces every mutable field of an existing entry.
func (u *UserEntries) Edit(ctx context.Context, in EntryInput) (*Entry, error) {
	log := slogctx.FromCtx(ctx)
	if in.ID == "" || in.ID == NewEntryID {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	entry := entryFromInput(in)
	entry.UserID = u.userID
	entry.UpdatedTime = u.service.now()

	updated, err := u.service.UpdateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("cannot update entry: %w", err)
	}
	log.Info("entry updated", slog.String("id", updated.ID), slog.String("userID", u.userID))
	u.service.notify(ctx, u.userID)
	return updated, nil
}

func (u *UserEntries) Remove(ctx context.Context, id string) error {
	log := slogctx.FromCtx(ctx)
	err := u.service.DeleteEntry(ctx, u.userID, id)
	if err != nil {
		return fmt.Errorf("cannot delete entry: %w", err)
	}
	log.Info("entry deleted", slog.String("id", id), slog.String("userID", u.userID))
	u.service.notify(ctx, u.userID)
	return nil
}

func entryFromInput(in EntryInput) Entry {
	return Entry{
		ID:            in.ID,
		Date:          StartOfDay(in.Date),
		TimePeriod:    in.TimePeriod,
		GlucoseAmount: in.GlucoseAmount,
		InsulinDosage: in.InsulinDosage,
		Weight:        in.Weight,
	}
}
