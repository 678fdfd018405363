package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/models"
	sqlitestore "github.com/adamlounds/diacates-go/stores/sqlite"
	"time"
)

// timestampLayout is fixed width so that stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = `id, user_id, date, time_period, glucose_amount, insulin_dosage, weight, created_time, updated_time`

type SQLiteEntryRepository struct {
	*sqlitestore.SQLiteStore
	Location *time.Location
}

func NewSQLiteEntryRepository(s *sqlitestore.SQLiteStore, loc *time.Location) *SQLiteEntryRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SQLiteEntryRepository{s, loc}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p SQLiteEntryRepository) scanEntry(row rowScanner) (*models.Entry, error) {
	var entry models.Entry
	var date, period, created, updated string
	var insulin, weight sql.NullFloat64
	err := row.Scan(&entry.ID, &entry.UserID, &date, &period, &entry.GlucoseAmount, &insulin, &weight, &created, &updated)
	if err != nil {
		return nil, err
	}
	entry.Date, err = time.ParseInLocation(dateLayout, date, p.Location)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	entry.TimePeriod, err = models.ParseTimePeriod(period)
	if err != nil {
		return nil, err
	}
	if insulin.Valid {
		entry.InsulinDosage = &insulin.Float64
	}
	if weight.Valid {
		entry.Weight = &weight.Float64
	}
	entry.CreatedTime, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("bad created_time %q: %w", created, err)
	}
	entry.UpdatedTime, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("bad updated_time %q: %w", updated, err)
	}
	return &entry, nil
}

func (p SQLiteEntryRepository) FetchEntry(ctx context.Context, userID, id string) (*models.Entry, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND id = ?`, userID, id)
	entry, err := p.scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite FetchEntry: %w", err)
	}
	return entry, nil
}

func (p SQLiteEntryRepository) FetchEntries(ctx context.Context, userID string) ([]models.Entry, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries
	WHERE user_id = ?
	ORDER BY date DESC, created_time ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite FetchEntries: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		entry, err := p.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite FetchEntries scan: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite FetchEntries rows: %w", err)
	}
	return entries, nil
}

func (p SQLiteEntryRepository) CreateEntry(ctx context.Context, entry models.Entry) (*models.Entry, error) {
	entry.Date = p.dayOf(entry.Date)
	_, err := p.DB.ExecContext(ctx, `INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Date.Format(dateLayout),
		string(entry.TimePeriod),
		entry.GlucoseAmount,
		nullFloat(entry.InsulinDosage),
		nullFloat(entry.Weight),
		entry.CreatedTime.UTC().Format(timestampLayout),
		entry.UpdatedTime.UTC().Format(timestampLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite CreateEntry: %w", err)
	}
	return p.FetchEntry(ctx, entry.UserID, entry.ID)
}

func (p SQLiteEntryRepository) UpdateEntry(ctx context.Context, entry models.Entry) (*models.Entry, error) {
	entry.Date = p.dayOf(entry.Date)
	res, err := p.DB.ExecContext(ctx, `UPDATE entries SET
	date = ?, time_period = ?, glucose_amount = ?, insulin_dosage = ?, weight = ?, updated_time = ?
	WHERE user_id = ? AND id = ?`,
		entry.Date.Format(dateLayout),
		string(entry.TimePeriod),
		entry.GlucoseAmount,
		nullFloat(entry.InsulinDosage),
		nullFloat(entry.Weight),
		entry.UpdatedTime.UTC().Format(timestampLayout),
		entry.UserID,
		entry.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite UpdateEntry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite UpdateEntry: %w", err)
	}
	if n == 0 {
		return nil, models.ErrNotFound
	}
	return p.FetchEntry(ctx, entry.UserID, entry.ID)
}

func (p SQLiteEntryRepository) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM entries WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlite DeleteEntry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite DeleteEntry: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p SQLiteEntryRepository) dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.Location)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
