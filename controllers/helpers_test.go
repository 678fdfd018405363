package controllers

import (
	"context"
	"github.com/adamlounds/diacates-go/middleware"
	"github.com/adamlounds/diacates-go/models"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

func contextWithSilentLogger() context.Context {
	return slogctx.NewCtx(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ptr(f float64) *float64 {
	return &f
}

// mockDataService records every call so tests can assert on fetch counts.
type mockDataService struct {
	getByIDFn func(ctx context.Context, id string) (*models.Entry, error)
	getAllFn  func(ctx context.Context) ([]models.Entry, error)
	addFn     func(ctx context.Context, in models.EntryInput) (*models.Entry, error)
	editFn    func(ctx context.Context, in models.EntryInput) (*models.Entry, error)
	removeFn  func(ctx context.Context, id string) error

	calls []string
}

func (m *mockDataService) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	m.calls = append(m.calls, "GetByID")
	return m.getByIDFn(ctx, id)
}

func (m *mockDataService) GetAll(ctx context.Context) ([]models.Entry, error) {
	m.calls = append(m.calls, "GetAll")
	return m.getAllFn(ctx)
}

func (m *mockDataService) Add(ctx context.Context, in models.EntryInput) (*models.Entry, error) {
	m.calls = append(m.calls, "Add")
	return m.addFn(ctx, in)
}

func (m *mockDataService) Edit(ctx context.Context, in models.EntryInput) (*models.Entry, error) {
	m.calls = append(m.calls, "Edit")
	return m.editFn(ctx, in)
}

func (m *mockDataService) Remove(ctx context.Context, id string) error {
	m.calls = append(m.calls, "Remove")
	return m.removeFn(ctx, id)
}

// forUser hands out svc whatever the user, remembering who asked.
func (m *mockDataService) forUser(userIDs *[]string) DataServiceFunc {
	return func(userID string) EntryDataService {
		*userIDs = append(*userIDs, userID)
		return m
	}
}

var anna = &models.AuthSubject{ID: "65979c68aa00000000000001", Name: "anna", RoleNames: []string{"diarist"}}
var rob = &models.AuthSubject{ID: "65979c68aa00000000000002", Name: "rob", RoleNames: []string{"readable"}}

func withAuthSubject(as *models.AuthSubject) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authn := models.AnonymousAuthn()
			if as != nil {
				authn = &models.Authn{AuthSubject: as}
			}
			next.ServeHTTP(w, r.WithContext(middleware.WithAuthn(r.Context(), authn)))
		})
	}
}

func withSilentLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := slogctx.NewCtx(r.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var jan5 = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
var jan4 = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

type memAuthRepository struct {
	subjects []models.AuthSubject
}

func (m *memAuthRepository) FetchAuthSubjectByID(ctx context.Context, id string) (*models.AuthSubject, error) {
	for _, as := range m.subjects {
		if as.ID == id {
			return &as, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memAuthRepository) FetchAuthSubjectByName(ctx context.Context, name string) (*models.AuthSubject, error) {
	for _, as := range m.subjects {
		if as.Name == name {
			return &as, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memAuthRepository) FetchAuthSubjects(ctx context.Context) ([]models.AuthSubject, error) {
	return m.subjects, nil
}

func (m *memAuthRepository) CreateAuthSubject(ctx context.Context, subject models.AuthSubject) (*models.AuthSubject, error) {
	m.subjects = append(m.subjects, subject)
	return &subject, nil
}
