package controllers

import (
	"bytes"
	"errors"
	"github.com/adamlounds/diacates-go/locale"
	"github.com/adamlounds/diacates-go/middleware"
	"github.com/adamlounds/diacates-go/models"
	"github.com/adamlounds/diacates-go/views"
	"github.com/go-chi/chi/v5"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type PageRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// Pages serves the server-rendered site: the entry list, the editor and
// the sign-in form.
type Pages struct {
	DataService DataServiceFunc
	AuthService *models.AuthService
	Sessions    *middleware.SessionManager
	Views       PageRenderer
	Locale      *locale.Locale
	Location    *time.Location
	SortOrder   SortOrder
}

func (p Pages) layout(r *http.Request, notice string) views.Layout {
	authn := middleware.GetAuthn(r.Context())
	l := views.Layout{
		Lang:     p.Locale.Tag.String(),
		Labels:   p.Locale.Labels,
		Notice:   notice,
		SignedIn: authn.Status() == models.SessionAuthenticated,
	}
	if l.SignedIn {
		l.UserName = authn.AuthSubject.Name
	}
	return l
}

func (p Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	log := slogctx.FromCtx(r.Context())
	var buf bytes.Buffer
	err := p.Views.Render(&buf, name, data)
	if err != nil {
		log.Error("cannot render page", slog.String("page", name), slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p Pages) listOptions(r *http.Request) ListOptions {
	return ListOptions{
		SortOrder: p.SortOrder,
		TableMode: middleware.ReadPreferences(r).TableMode,
	}
}

// Home renders the entry list. Signed-out visitors only get the sign-in
// link and nothing is fetched for them.
func (p Pages) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authn := middleware.GetAuthn(ctx)
	opts := p.listOptions(r)

	if authn.Status() != models.SessionAuthenticated {
		p.render(w, r, http.StatusOK, "list", views.ListPage{Layout: p.layout(r, ""), TableMode: opts.TableMode})
		return
	}

	list := loadEntryList(ctx, p.DataService(authn.AuthSubject.ID), p.Locale, p.Location, opts)
	page := views.ListPage{
		Layout:    p.layout(r, list.Notice),
		TableMode: opts.TableMode,
		Days:      make([]views.DayView, 0, len(list.Days)),
	}
	for _, day := range list.Days {
		header := DateHeader(p.Locale, day.Day)
		page.Days = append(page.Days, views.DayView{
			Weekday: header[0],
			Date:    header[1],
			Entries: day.Entries,
		})
	}
	p.render(w, r, http.StatusOK, "list", page)
}

func (p Pages) ToggleTableMode(w http.ResponseWriter, r *http.Request) {
	prefs := middleware.ReadPreferences(r)
	prefs.TableMode = !prefs.TableMode
	middleware.WritePreferences(w, prefs)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p Pages) editorPage(r *http.Request, outcome EditorOutcome) views.EditorPage {
	form := outcome.Form
	page := views.EditorPage{
		Layout:        p.layout(r, outcome.Notice),
		ID:            form.ID,
		Date:          form.Date,
		GlucoseAmount: form.GlucoseAmount,
		InsulinDosage: form.InsulinDosage,
		Weight:        form.Weight,
		IsNew:         form.ID == models.NewEntryID,
		CanSubmit:     form.CanSubmit(),
	}
	for _, period := range models.TimePeriods {
		page.Periods = append(page.Periods, views.PeriodOption{
			Value:    string(period),
			Label:    p.Locale.PeriodLabel(string(period)),
			Selected: string(period) == form.TimePeriod,
		})
	}
	return page
}

func (p Pages) dataService(r *http.Request) EntryDataService {
	return p.DataService(middleware.GetAuthn(r.Context()).AuthSubject.ID)
}

func (p Pages) finishEditor(w http.ResponseWriter, r *http.Request, outcome EditorOutcome) {
	if outcome.Redirect != "" {
		http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
		return
	}
	p.render(w, r, http.StatusOK, "editor", p.editorPage(r, outcome))
}

// EditEntry shows the editor for /entries/{id}; "new" gives a blank form.
func (p Pages) EditEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome := LoadEntryForm(r.Context(), p.dataService(r), id)
	if outcome.Redirect != "" {
		http.Redirect(w, r, outcome.Redirect, http.StatusFound)
		return
	}
	p.render(w, r, http.StatusOK, "editor", p.editorPage(r, outcome))
}

func (p Pages) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	form := entryFormFromRequest(r, chi.URLParam(r, "id"))
	p.finishEditor(w, r, SubmitEntryForm(r.Context(), p.dataService(r), form, p.Location))
}

func (p Pages) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	form := entryFormFromRequest(r, chi.URLParam(r, "id"))
	p.finishEditor(w, r, DeleteEntry(r.Context(), p.dataService(r), form))
}

func (p Pages) SignInForm(w http.ResponseWriter, r *http.Request) {
	if middleware.GetAuthn(r.Context()).Status() == models.SessionAuthenticated {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	p.render(w, r, http.StatusOK, "signin", views.SignInPage{Layout: p.layout(r, "")})
}

func (p Pages) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogctx.FromCtx(ctx)
	name := strings.TrimSpace(r.PostFormValue("name"))

	as, err := p.AuthService.SignIn(ctx, name, r.PostFormValue("password"))
	if err == nil {
		var token string
		var claims *middleware.SessionClaims
		token, claims, err = p.Sessions.Issue(as)
		if err == nil {
			middleware.SetSessionCookie(w, token, claims.ExpiresAt.Time)
			log.Info("signed in", slog.String("name", as.Name))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	if !errors.Is(err, models.ErrInvalidCredentials) {
		log.Error("cannot sign in", slog.Any("error", err))
	}
	p.render(w, r, http.StatusUnauthorized, "signin", views.SignInPage{Layout: p.layout(r, err.Error()), Name: name})
}

func (p Pages) SignOut(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
