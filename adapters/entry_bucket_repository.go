package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/DmitriyVTitov/size"
	"github.com/adamlounds/diacates-go/models"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

const (
	entriesDir = "entries/"
	dateLayout = "2006-01-02"
)

type memEntry struct {
	Date          time.Time
	CreatedTime   time.Time
	UpdatedTime   time.Time
	InsulinDosage *float64
	Weight        *float64
	ID            string
	UserID        string
	TimePeriod    models.TimePeriod
	GlucoseAmount float64
}

// memStore entries are kept sorted by date, then creation time.
type memStore struct {
	entries     []memEntry
	entriesLock sync.Mutex
}

type BucketStoreInterface interface {
	Get(ctx context.Context, file string) (io.ReadCloser, error)
	Upload(ctx context.Context, name string, r io.Reader) error
	Iter(ctx context.Context, dir string, f func(name string) error) error
	IsObjNotFoundErr(err error) bool
	IsAccessDeniedErr(err error) bool
}

// BucketEntryRepository serves entries from memory and persists them as
// one object per calendar year, eg entries/2024.json.
type BucketEntryRepository struct {
	BucketStore BucketStoreInterface
	Location    *time.Location
	memStore    *memStore
}

func NewBucketEntryRepository(bs BucketStoreInterface, loc *time.Location) *BucketEntryRepository {
	if loc == nil {
		loc = time.Local
	}
	return &BucketEntryRepository{BucketStore: bs, Location: loc, memStore: &memStore{}}
}

// Boot fetches all year files into memory, typically at server startup
func (p BucketEntryRepository) Boot(ctx context.Context) error {
	log := slogctx.FromCtx(ctx)

	err := p.BucketStore.Iter(ctx, entriesDir, func(file string) error {
		err := p.fetchEntries(ctx, file)
		if err == nil {
			return nil
		}
		if p.BucketStore.IsObjNotFoundErr(err) {
			log.Debug("boot: cannot find file (deleted?)", slog.String("file", file))
			return nil
		}
		if p.BucketStore.IsAccessDeniedErr(err) {
			log.Warn("boot: cannot fetch file - ACCESS DENIED",
				slog.String("file", file),
				slog.Any("err", err),
			)
			return nil
		}
		return fmt.Errorf("cannot fetch %s: %w", file, err)
	})
	if err != nil {
		return err
	}

	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()
	slices.SortStableFunc(p.memStore.entries, compareMemEntries)

	log.Info("boot: all entries loaded", slog.Int("numEntries", len(p.memStore.entries)))
	return nil
}

func (p BucketEntryRepository) fetchEntries(ctx context.Context, file string) error {
	log := slogctx.FromCtx(ctx)
	t1 := time.Now()
	r, err := p.BucketStore.Get(ctx, file)
	log.Debug("fetched from bucket",
		slog.String("file", file),
		slog.Int64("duration_ms", time.Since(t1).Milliseconds()),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	var result []storedEntry
	err = json.NewDecoder(r).Decode(&result)
	if err != nil {
		return err
	}

	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()
	for _, e := range result {
		m, err := e.toMemEntry(p.Location)
		if err != nil {
			log.Warn("skipping unreadable entry", slog.String("file", file), slog.String("id", e.ID), slog.Any("err", err))
			continue
		}
		p.memStore.entries = append(p.memStore.entries, m)
	}
	return nil
}

// Footprint is the approximate number of bytes held in memory.
func (p BucketEntryRepository) Footprint() int {
	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()
	return size.Of(p.memStore.entries)
}

func (p BucketEntryRepository) FetchEntry(ctx context.Context, userID, id string) (*models.Entry, error) {
	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()

	i := indexOfEntry(p.memStore.entries, userID, id)
	if i < 0 {
		return nil, models.ErrNotFound
	}
	return p.memStore.entries[i].toModel(), nil
}

// FetchEntries returns the user's entries newest day first. Entries on the
// same day stay in creation order.
func (p BucketEntryRepository) FetchEntries(ctx context.Context, userID string) ([]models.Entry, error) {
	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()

	entries := []models.Entry{}
	for _, e := range p.memStore.entries {
		if e.UserID != userID {
			continue
		}
		entries = append(entries, *e.toModel())
	}
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return b.Date.Compare(a.Date)
	})
	return entries, nil
}

func (p BucketEntryRepository) CreateEntry(ctx context.Context, entry models.Entry) (*models.Entry, error) {
	log := slogctx.FromCtx(ctx)
	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()

	m := memEntryFromModel(entry, p.Location)
	next := slices.Clone(p.memStore.entries)
	next = append(next, m)
	slices.SortStableFunc(next, compareMemEntries)

	err := p.writeYears(ctx, next, m.Date.Year())
	if err != nil {
		return nil, err
	}
	p.memStore.entries = next
	log.Info("inserted entry", slog.Int("totalEntries", len(next)), slog.String("id", m.ID))
	return m.toModel(), nil
}

func (p BucketEntryRepository) UpdateEntry(ctx context.Context, entry models.Entry) (*models.Entry, error) {
	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()

	i := indexOfEntry(p.memStore.entries, entry.UserID, entry.ID)
	if i < 0 {
		return nil, models.ErrNotFound
	}
	previous := p.memStore.entries[i]
	m := memEntryFromModel(entry, p.Location)
	m.CreatedTime = previous.CreatedTime

	next := slices.Clone(p.memStore.entries)
	next[i] = m
	slices.SortStableFunc(next, compareMemEntries)

	// an edit may move the entry into another year's file
	err := p.writeYears(ctx, next, previous.Date.Year(), m.Date.Year())
	if err != nil {
		return nil, err
	}
	p.memStore.entries = next
	return m.toModel(), nil
}

func (p BucketEntryRepository) DeleteEntry(ctx context.Context, userID, id string) error {
	p.memStore.entriesLock.Lock()
	defer p.memStore.entriesLock.Unlock()

	i := indexOfEntry(p.memStore.entries, userID, id)
	if i < 0 {
		return models.ErrNotFound
	}
	year := p.memStore.entries[i].Date.Year()
	next := slices.Delete(slices.Clone(p.memStore.entries), i, i+1)

	err := p.writeYears(ctx, next, year)
	if err != nil {
		return err
	}
	p.memStore.entries = next
	return nil
}

// writeYears uploads the year files for the given years from entries. The
// caller only swaps entries into memory once every upload succeeded.
func (p BucketEntryRepository) writeYears(ctx context.Context, entries []memEntry, years ...int) error {
	sort.Ints(years)
	years = slices.Compact(years)
	for _, year := range years {
		var yearEntries []storedEntry
		for _, e := range entries {
			if e.Date.Year() != year {
				continue
			}
			yearEntries = append(yearEntries, storedEntryFromMem(e))
		}
		if yearEntries == nil {
			yearEntries = []storedEntry{}
		}
		name := fmt.Sprintf("%s%d.json", entriesDir, year)
		err := p.writeEntriesToBucket(ctx, name, yearEntries)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p BucketEntryRepository) writeEntriesToBucket(ctx context.Context, name string, storedEntries []storedEntry) error {
	log := slogctx.FromCtx(ctx)
	b, err := json.Marshal(storedEntries)
	if err != nil {
		return fmt.Errorf("cannot marshal entries: %w", err)
	}

	err = p.BucketStore.Upload(ctx, name, bytes.NewReader(b))
	if err != nil {
		log.Warn("cannot upload entries", slog.String("name", name), slog.Any("err", err))
		return fmt.Errorf("cannot upload %s: %w", name, err)
	}
	log.Debug("uploaded entries",
		slog.String("name", name),
		slog.Int("byteSize", len(b)),
		slog.Int("numEntries", len(storedEntries)),
	)
	return nil
}

func indexOfEntry(entries []memEntry, userID, id string) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID == id && entries[i].UserID == userID {
			return i
		}
	}
	return -1
}

func compareMemEntries(a, b memEntry) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return a.CreatedTime.Compare(b.CreatedTime)
}

type storedEntry struct {
	CreatedTime   time.Time `json:"createdAt"`
	UpdatedTime   time.Time `json:"updatedAt"`
	InsulinDosage *float64  `json:"insulinDosage"`
	Weight        *float64  `json:"weight"`
	ID            string    `json:"_id"`
	UserID        string    `json:"userId"`
	Date          string    `json:"date"` // 2006-01-02
	TimePeriod    string    `json:"timePeriod"`
	GlucoseAmount float64   `json:"glucoseAmount"`
}

func storedEntryFromMem(e memEntry) storedEntry {
	return storedEntry{
		ID:            e.ID,
		UserID:        e.UserID,
		Date:          e.Date.Format(dateLayout),
		TimePeriod:    string(e.TimePeriod),
		GlucoseAmount: e.GlucoseAmount,
		InsulinDosage: e.InsulinDosage,
		Weight:        e.Weight,
		CreatedTime:   e.CreatedTime,
		UpdatedTime:   e.UpdatedTime,
	}
}

func (s storedEntry) toMemEntry(loc *time.Location) (memEntry, error) {
	date, err := time.ParseInLocation(dateLayout, s.Date, loc)
	if err != nil {
		return memEntry{}, err
	}
	period, err := models.ParseTimePeriod(s.TimePeriod)
	if err != nil {
		return memEntry{}, err
	}
	return memEntry{
		ID:            s.ID,
		UserID:        s.UserID,
		Date:          date,
		TimePeriod:    period,
		GlucoseAmount: s.GlucoseAmount,
		InsulinDosage: s.InsulinDosage,
		Weight:        s.Weight,
		CreatedTime:   s.CreatedTime,
		UpdatedTime:   s.UpdatedTime,
	}, nil
}

// memEntryFromModel pins the entry's calendar day to the repository's
// location, whatever location the caller used.
func memEntryFromModel(e models.Entry, loc *time.Location) memEntry {
	return memEntry{
		ID:            e.ID,
		UserID:        e.UserID,
		Date:          time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, loc),
		TimePeriod:    e.TimePeriod,
		GlucoseAmount: e.GlucoseAmount,
		InsulinDosage: copyAmount(e.InsulinDosage),
		Weight:        copyAmount(e.Weight),
		CreatedTime:   e.CreatedTime,
		UpdatedTime:   e.UpdatedTime,
	}
}

// copyAmount keeps optional amounts held in memory apart from the caller's.
func copyAmount(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func (e memEntry) toModel() *models.Entry {
	return &models.Entry{
		ID:            e.ID,
		UserID:        e.UserID,
		Date:          e.Date,
		TimePeriod:    e.TimePeriod,
		GlucoseAmount: e.GlucoseAmount,
		InsulinDosage: copyAmount(e.InsulinDosage),
		Weight:        copyAmount(e.Weight),
		CreatedTime:   e.CreatedTime,
		UpdatedTime:   e.UpdatedTime,
	}
}
