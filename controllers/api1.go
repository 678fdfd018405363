package controllers

import (
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/middleware"
	"github.com/adamlounds/diacates-go/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"net/http"
	"time"
)

type ApiV1 struct {
	DataService     DataServiceFunc
	AuthService     *models.AuthService
	Sessions        *middleware.SessionManager
	Location        *time.Location
	EntryRepository models.EntryRepository
}

// ErrResponse is the JSON body of every API error.
type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorText      string `json:"message,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

var (
	ErrUnauthorized = &ErrResponse{HTTPStatusCode: http.StatusUnauthorized, StatusText: "unauthorized"}
	ErrForbidden    = &ErrResponse{HTTPStatusCode: http.StatusForbidden, StatusText: "forbidden"}
	ErrNotFound     = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "not found"}
)

func errBadRequest(err error) render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusBadRequest, StatusText: "bad request", ErrorText: err.Error()}
}

func errInternal() render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusInternalServerError, StatusText: "internal server error"}
}

// errFromDataService maps data service errors onto API responses.
func errFromDataService(r *http.Request, err error) render.Renderer {
	log := slogctx.FromCtx(r.Context())
	switch {
	case errors.Is(err, models.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, models.ErrInvalidEntry):
		return errBadRequest(err)
	}
	log.Error("data service failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	return errInternal()
}

// APIV1Entry is the wire form of an entry.
type APIV1Entry struct {
	InsulinDosage *float64 `json:"insulinDosage"`
	Weight        *float64 `json:"weight"`
	ID            string   `json:"_id"`
	Date          string   `json:"date"` // 2006-01-02
	TimePeriod    string   `json:"timePeriod"`
	GlucoseAmount float64  `json:"glucoseAmount"`
}

func (e *APIV1Entry) Bind(r *http.Request) error {
	if e.Date == "" {
		return fmt.Errorf("%w: date is required", models.ErrInvalidEntry)
	}
	return nil
}

func newAPIV1Entry(e *models.Entry) APIV1Entry {
	return APIV1Entry{
		ID:            e.ID,
		Date:          e.Date.Format(formDateLayout),
		TimePeriod:    string(e.TimePeriod),
		GlucoseAmount: e.GlucoseAmount,
		InsulinDosage: e.InsulinDosage,
		Weight:        e.Weight,
	}
}

func (e APIV1Entry) input(loc *time.Location) (models.EntryInput, error) {
	date, err := time.ParseInLocation(formDateLayout, e.Date, loc)
	if err != nil {
		return models.EntryInput{}, fmt.Errorf("%w: bad date %q", models.ErrInvalidEntry, e.Date)
	}
	return models.EntryInput{
		ID:            e.ID,
		Date:          date,
		TimePeriod:    models.TimePeriod(e.TimePeriod),
		GlucoseAmount: e.GlucoseAmount,
		InsulinDosage: e.InsulinDosage,
		Weight:        e.Weight,
	}, nil
}

func (a ApiV1) dataService(r *http.Request) EntryDataService {
	return a.DataService(middleware.GetAuthn(r.Context()).AuthSubject.ID)
}

type sessionRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *sessionRequest) Bind(r *http.Request) error {
	if s.Name == "" || s.Password == "" {
		return errors.New("name and password are required")
	}
	return nil
}

type sessionResponse struct {
	Expires time.Time `json:"expires"`
	Token   string    `json:"token"`
}

// CreateSession exchanges a name and password for a bearer token.
// POST /api/v1/session
func (a ApiV1) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogctx.FromCtx(ctx)

	var req sessionRequest
	err := render.Bind(r, &req)
	if err != nil {
		_ = render.Render(w, r, errBadRequest(err))
		return
	}

	as, err := a.AuthService.SignIn(ctx, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			_ = render.Render(w, r, ErrUnauthorized)
			return
		}
		log.Error("cannot sign in", slog.Any("error", err))
		_ = render.Render(w, r, errInternal())
		return
	}
	token, claims, err := a.Sessions.Issue(as)
	if err != nil {
		log.Error("cannot issue session", slog.Any("error", err))
		_ = render.Render(w, r, errInternal())
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sessionResponse{Token: token, Expires: claims.ExpiresAt.Time})
}

// ListEntries returns the caller's entries, newest day first.
// GET /api/v1/entries
func (a ApiV1) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := a.dataService(r).GetAll(r.Context())
	if err != nil {
		_ = render.Render(w, r, errFromDataService(r, err))
		return
	}
	response := make([]APIV1Entry, 0, len(entries))
	for i := range entries {
		response = append(response, newAPIV1Entry(&entries[i]))
	}
	render.JSON(w, r, response)
}

// GET /api/v1/entries/{id}
func (a ApiV1) EntryByID(w http.ResponseWriter, r *http.Request) {
	entry, err := a.dataService(r).GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		_ = render.Render(w, r, errFromDataService(r, err))
		return
	}
	if entry == nil {
		_ = render.Render(w, r, ErrNotFound)
		return
	}
	render.JSON(w, r, newAPIV1Entry(entry))
}

// POST /api/v1/entries
func (a ApiV1) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var body APIV1Entry
	err := render.Bind(r, &body)
	if err != nil {
		_ = render.Render(w, r, errBadRequest(err))
		return
	}
	in, err := body.input(a.Location)
	if err != nil {
		_ = render.Render(w, r, errBadRequest(err))
		return
	}
	in.ID = ""
	created, err := a.dataService(r).Add(r.Context(), in)
	if err != nil {
		_ = render.Render(w, r, errFromDataService(r, err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newAPIV1Entry(created))
}

// PUT /api/v1/entries/{id} replaces every field of the entry.
func (a ApiV1) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var body APIV1Entry
	err := render.Bind(r, &body)
	if err != nil {
		_ = render.Render(w, r, errBadRequest(err))
		return
	}
	in, err := body.input(a.Location)
	if err != nil {
		_ = render.Render(w, r, errBadRequest(err))
		return
	}
	in.ID = chi.URLParam(r, "id")
	updated, err := a.dataService(r).Edit(r.Context(), in)
	if err != nil {
		_ = render.Render(w, r, errFromDataService(r, err))
		return
	}
	render.JSON(w, r, newAPIV1Entry(updated))
}

// DELETE /api/v1/entries/{id}
func (a ApiV1) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	err := a.dataService(r).Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		_ = render.Render(w, r, errFromDataService(r, err))
		return
	}
	render.NoContent(w, r)
}

// Footprinter is implemented by repositories that hold entries in memory.
type Footprinter interface {
	Footprint() int
}

type statusResponse struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	NumEntries int    `json:"numEntries"`
	StoreBytes int    `json:"storeBytes"`
}

// Status reports the caller's entry count and the in-memory size of the
// entry repository, 0 when entries are not held in memory.
// GET /api/v1/status
func (a ApiV1) Status(w http.ResponseWriter, r *http.Request) {
	authn := middleware.GetAuthn(r.Context())
	entries, err := a.dataService(r).GetAll(r.Context())
	if err != nil {
		_ = render.Render(w, r, errFromDataService(r, err))
		return
	}
	response := statusResponse{
		Status:     "ok",
		Name:       authn.AuthSubject.Name,
		NumEntries: len(entries),
	}
	if f, ok := a.EntryRepository.(Footprinter); ok {
		response.StoreBytes = f.Footprint()
	}
	render.JSON(w, r, response)
}
