package models

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func contextWithSilentLogger() context.Context {
	return slogctx.NewCtx(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ptr(f float64) *float64 { return &f }

type mockEntryRepository struct {
	mock.Mock
}

func (m *mockEntryRepository) FetchEntry(ctx context.Context, userID, id string) (*Entry, error) {
	args := m.Called(ctx, userID, id)
	entry, _ := args.Get(0).(*Entry)
	return entry, args.Error(1)
}

func (m *mockEntryRepository) FetchEntries(ctx context.Context, userID string) ([]Entry, error) {
	args := m.Called(ctx, userID)
	entries, _ := args.Get(0).([]Entry)
	return entries, args.Error(1)
}

func (m *mockEntryRepository) CreateEntry(ctx context.Context, entry Entry) (*Entry, error) {
	args := m.Called(ctx, entry)
	created, _ := args.Get(0).(*Entry)
	return created, args.Error(1)
}

func (m *mockEntryRepository) UpdateEntry(ctx context.Context, entry Entry) (*Entry, error) {
	args := m.Called(ctx, entry)
	updated, _ := args.Get(0).(*Entry)
	return updated, args.Error(1)
}

func (m *mockEntryRepository) DeleteEntry(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type recordingNotifier struct {
	userIDs []string
}

func (n *recordingNotifier) EntriesChanged(ctx context.Context, userID string) {
	n.userIDs = append(n.userIDs, userID)
}

func TestTimePeriodOrdinal(t *testing.T) {
	assert.Equal(t, 0, Morning.Ordinal())
	assert.Equal(t, 1, Midday.Ordinal())
	assert.Equal(t, 2, Evening.Ordinal())
	assert.Equal(t, -1, TimePeriod("night").Ordinal())

	p, err := ParseTimePeriod("midday")
	assert.NoError(t, err)
	assert.Equal(t, Midday, p)

	_, err = ParseTimePeriod("Midday")
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestEntryInputValidate(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		input   EntryInput
		wantErr bool
	}{
		{name: "minimal", input: EntryInput{Date: day, TimePeriod: Morning, GlucoseAmount: 5.5}},
		{name: "all fields", input: EntryInput{Date: day, TimePeriod: Evening, GlucoseAmount: 16.5, InsulinDosage: ptr(2.5), Weight: ptr(0)}},
		{name: "missing date", input: EntryInput{TimePeriod: Morning, GlucoseAmount: 5.5}, wantErr: true},
		{name: "unknown period", input: EntryInput{Date: day, TimePeriod: "night", GlucoseAmount: 5.5}, wantErr: true},
		{name: "zero glucose", input: EntryInput{Date: day, TimePeriod: Morning}, wantErr: true},
		{name: "negative insulin", input: EntryInput{Date: day, TimePeriod: Morning, GlucoseAmount: 5, InsulinDosage: ptr(-1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEntry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUserEntriesGetByIDNotFoundIsNil(t *testing.T) {
	repo := &mockEntryRepository{}
	repo.On("FetchEntry", mock.Anything, "user1", "missing").Return(nil, ErrNotFound)
	repo.On("FetchEntry", mock.Anything, "user1", "broken").Return(nil, errors.New("bucket unavailable"))

	svc := &EntryService{EntryRepository: repo}
	entries := svc.ForUser("user1")

	entry, err := entries.GetByID(contextWithSilentLogger(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = entries.GetByID(contextWithSilentLogger(), "broken")
	assert.Error(t, err)
	assert.Nil(t, entry)
	repo.AssertExpectations(t)
}

func TestUserEntriesAdd(t *testing.T) {
	now := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	repo := &mockEntryRepository{}
	var stored Entry
	repo.On("CreateEntry", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(Entry)
	}).Return(&Entry{ID: "created"}, nil)

	notifier := &recordingNotifier{}
	svc := &EntryService{EntryRepository: repo, Notifier: notifier, Now: func() time.Time { return now }}

	created, err := svc.ForUser("user1").Add(contextWithSilentLogger(), EntryInput{
		ID:            NewEntryID,
		Date:          time.Date(2024, 1, 5, 13, 0, 0, 0, time.UTC),
		TimePeriod:    Midday,
		GlucoseAmount: 16.5,
		Weight:        ptr(3.5),
	})
	require.NoError(t, err)
	assert.Equal(t, "created", created.ID)
	assert.Len(t, stored.ID, 24, "entry is assigned an object id")
	assert.NotEqual(t, NewEntryID, stored.ID)
	assert.Equal(t, "user1", stored.UserID)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), stored.Date, "date is truncated to the day")
	assert.Nil(t, stored.InsulinDosage)
	assert.Equal(t, 3.5, *stored.Weight)
	assert.Equal(t, now, stored.CreatedTime)
	assert.Equal(t, []string{"user1"}, notifier.userIDs)
}

func TestUserEntriesAddInvalid(t *testing.T) {
	repo := &mockEntryRepository{}
	notifier := &recordingNotifier{}
	svc := &EntryService{EntryRepository: repo, Notifier: notifier}

	_, err := svc.ForUser("user1").Add(contextWithSilentLogger(), EntryInput{ID: NewEntryID, TimePeriod: Morning, GlucoseAmount: 4})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	repo.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
	assert.Empty(t, notifier.userIDs)
}

func TestUserEntriesEdit(t *testing.T) {
	repo := &mockEntryRepository{}
	var stored Entry
	repo.On("UpdateEntry", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(Entry)
	}).Return(&Entry{ID: "abc"}, nil)
	svc := &EntryService{EntryRepository: repo}

	_, err := svc.ForUser("user1").Edit(contextWithSilentLogger(), EntryInput{
		ID:            "abc",
		Date:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TimePeriod:    Evening,
		GlucoseAmount: 7.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", stored.ID)
	assert.Equal(t, "user1", stored.UserID)
	assert.Equal(t, Evening, stored.TimePeriod)

	_, err = svc.ForUser("user1").Edit(contextWithSilentLogger(), EntryInput{
		ID:            NewEntryID,
		Date:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TimePeriod:    Evening,
		GlucoseAmount: 7.1,
	})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestUserEntriesEditNotFound(t *testing.T) {
	repo := &mockEntryRepository{}
	repo.On("UpdateEntry", mock.Anything, mock.Anything).Return(nil, ErrNotFound)
	notifier := &recordingNotifier{}
	svc := &EntryService{EntryRepository: repo, Notifier: notifier}

	_, err := svc.ForUser("user1").Edit(contextWithSilentLogger(), EntryInput{
		ID:            "abc",
		Date:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TimePeriod:    Evening,
		GlucoseAmount: 7.1,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, notifier.userIDs)
}

func TestUserEntriesRemove(t *testing.T) {
	repo := &mockEntryRepository{}
	repo.On("DeleteEntry", mock.Anything, "user1", "abc").Return(nil)
	repo.On("DeleteEntry", mock.Anything, "user1", "gone").Return(ErrNotFound)
	notifier := &recordingNotifier{}
	svc := &EntryService{EntryRepository: repo, Notifier: notifier}

	assert.NoError(t, svc.ForUser("user1").Remove(contextWithSilentLogger(), "abc"))
	assert.ErrorIs(t, svc.ForUser("user1").Remove(contextWithSilentLogger(), "gone"), ErrNotFound)
	assert.Equal(t, []string{"user1"}, notifier.userIDs)
}
