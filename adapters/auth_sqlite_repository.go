package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/models"
	sqlitestore "github.com/adamlounds/diacates-go/stores/sqlite"
	"strings"
	"time"
)

const subjectColumns = `id, name, password_hash, role_names, created_time, updated_time`

type SQLiteAuthRepository struct {
	*sqlitestore.SQLiteStore
}

func NewSQLiteAuthRepository(s *sqlitestore.SQLiteStore) *SQLiteAuthRepository {
	return &SQLiteAuthRepository{s}
}

func scanAuthSubject(row rowScanner) (*models.AuthSubject, error) {
	var as models.AuthSubject
	var roleNames, created, updated string
	err := row.Scan(&as.ID, &as.Name, &as.PasswordHash, &roleNames, &created, &updated)
	if err != nil {
		return nil, err
	}
	as.RoleNames = []string{}
	if roleNames != "" {
		as.RoleNames = strings.Split(roleNames, ",")
	}
	as.CreatedTime, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("bad created_time %q: %w", created, err)
	}
	as.UpdatedTime, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("bad updated_time %q: %w", updated, err)
	}
	return &as, nil
}

func (p SQLiteAuthRepository) fetchOne(ctx context.Context, where string, arg string) (*models.AuthSubject, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM users WHERE `+where+` = ?`, arg)
	as, err := scanAuthSubject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite fetch auth subject: %w", err)
	}
	return as, nil
}

func (p SQLiteAuthRepository) FetchAuthSubjectByID(ctx context.Context, id string) (*models.AuthSubject, error) {
	return p.fetchOne(ctx, "id", id)
}

func (p SQLiteAuthRepository) FetchAuthSubjectByName(ctx context.Context, name string) (*models.AuthSubject, error) {
	return p.fetchOne(ctx, "name", name)
}

func (p SQLiteAuthRepository) FetchAuthSubjects(ctx context.Context) ([]models.AuthSubject, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+subjectColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite FetchAuthSubjects: %w", err)
	}
	defer rows.Close()

	subjects := []models.AuthSubject{}
	for rows.Next() {
		as, err := scanAuthSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite FetchAuthSubjects scan: %w", err)
		}
		subjects = append(subjects, *as)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite FetchAuthSubjects rows: %w", err)
	}
	return subjects, nil
}

func (p SQLiteAuthRepository) CreateAuthSubject(ctx context.Context, subject models.AuthSubject) (*models.AuthSubject, error) {
	// the unique index on name backs up the service's own check
	_, err := p.FetchAuthSubjectByName(ctx, subject.Name)
	if err == nil {
		return nil, models.ErrSubjectExists
	}

	_, err = p.DB.ExecContext(ctx, `INSERT INTO users (`+subjectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		subject.ID,
		subject.Name,
		subject.PasswordHash,
		strings.Join(subject.RoleNames, ","),
		subject.CreatedTime.UTC().Format(timestampLayout),
		subject.UpdatedTime.UTC().Format(timestampLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite CreateAuthSubject: %w", err)
	}
	return p.FetchAuthSubjectByID(ctx, subject.ID)
}
