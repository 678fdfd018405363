package controllers

import (
	"context"
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/models"
	"github.com/shopspring/decimal"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// EntryDataService is what the pages and the API need from a user's entries.
type EntryDataService interface {
	GetByID(ctx context.Context, id string) (*models.Entry, error)
	GetAll(ctx context.Context) ([]models.Entry, error)
	Add(ctx context.Context, in models.EntryInput) (*models.Entry, error)
	Edit(ctx context.Context, in models.EntryInput) (*models.Entry, error)
	Remove(ctx context.Context, id string) error
}

// DataServiceFunc scopes the data service to a signed-in subject.
type DataServiceFunc func(userID string) EntryDataService

const formDateLayout = "2006-01-02"

var errIncompleteForm = errors.New("controllers: entry form is incomplete")

// EntryForm is the editor's draft. Every field holds the text as typed.
type EntryForm struct {
	ID            string
	Date          string
	TimePeriod    string
	GlucoseAmount string
	InsulinDosage string
	Weight        string
}

func NewEntryForm() EntryForm {
	return EntryForm{ID: models.NewEntryID, TimePeriod: string(models.Morning)}
}

func entryFormFromEntry(e *models.Entry) EntryForm {
	return EntryForm{
		ID:            e.ID,
		Date:          e.Date.Format(formDateLayout),
		TimePeriod:    string(e.TimePeriod),
		GlucoseAmount: decimal.NewFromFloat(e.GlucoseAmount).String(),
		InsulinDosage: formatOptionalDecimal(e.InsulinDosage),
		Weight:        formatOptionalDecimal(e.Weight),
	}
}

func formatOptionalDecimal(f *float64) string {
	if f == nil {
		return ""
	}
	return decimal.NewFromFloat(*f).String()
}

// entryFormFromRequest reads a posted draft. Numeric fields are normalized
// as they are read.
func entryFormFromRequest(r *http.Request, id string) EntryForm {
	return EntryForm{
		ID:            id,
		Date:          strings.TrimSpace(r.PostFormValue("date")),
		TimePeriod:    r.PostFormValue("timePeriod"),
		GlucoseAmount: NormalizeDecimalInput(r.PostFormValue("glucoseAmount")),
		InsulinDosage: NormalizeDecimalInput(r.PostFormValue("insulinDosage")),
		Weight:        NormalizeDecimalInput(r.PostFormValue("weight")),
	}
}

// NormalizeDecimalInput turns commas into periods then drops everything
// that is not an ASCII digit or a period. "1,5abc" becomes "1.5". Repeated
// periods are kept.
func NormalizeDecimalInput(s string) string {
	s = strings.ReplaceAll(s, ",", ".")
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
}

func (f EntryForm) CanSubmit() bool {
	return f.Date != "" && f.GlucoseAmount != ""
}

// Payload converts the draft into a data service input. An incomplete
// draft returns errIncompleteForm; the caller drops it without a notice.
func (f EntryForm) Payload(loc *time.Location) (models.EntryInput, error) {
	if f.Date == "" || f.TimePeriod == "" || f.GlucoseAmount == "" {
		return models.EntryInput{}, errIncompleteForm
	}
	date, err := time.ParseInLocation(formDateLayout, f.Date, loc)
	if err != nil {
		return models.EntryInput{}, fmt.Errorf("%w: bad date %q", models.ErrInvalidEntry, f.Date)
	}
	glucose, err := parseDecimalInput(f.GlucoseAmount)
	if err != nil {
		return models.EntryInput{}, err
	}
	in := models.EntryInput{
		ID:            f.ID,
		Date:          date,
		TimePeriod:    models.TimePeriod(f.TimePeriod),
		GlucoseAmount: glucose,
	}
	if f.InsulinDosage != "" {
		insulin, err := parseDecimalInput(f.InsulinDosage)
		if err != nil {
			return models.EntryInput{}, err
		}
		in.InsulinDosage = &insulin
	}
	if f.Weight != "" {
		weight, err := parseDecimalInput(f.Weight)
		if err != nil {
			return models.EntryInput{}, err
		}
		in.Weight = &weight
	}
	return in, nil
}

// parseDecimalInput parses a normalized input. Normalization keeps every
// period, so "1.5.2" is rejected here rather than saved as 1.5.
func parseDecimalInput(s string) (float64, error) {
	if strings.Count(s, ".") > 1 {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrInvalidEntry, s)
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrInvalidEntry, s)
	}
	return d.InexactFloat64(), nil
}

// EditorOutcome tells the handler what to do after an editor action: follow
// Redirect if set, otherwise re-render the draft with Notice.
type EditorOutcome struct {
	Form     EntryForm
	Redirect string
	Notice   string
}

// LoadEntryForm builds the initial draft for id. An unknown id redirects to
// the new entry form; "new" itself never fetches, so this cannot loop.
func LoadEntryForm(ctx context.Context, svc EntryDataService, id string) EditorOutcome {
	log := slogctx.FromCtx(ctx)
	if id == models.NewEntryID {
		return EditorOutcome{Form: NewEntryForm()}
	}

	entry, err := svc.GetByID(ctx, id)
	if err != nil {
		log.Warn("cannot load entry", slog.String("id", id), slog.Any("error", err))
		form := NewEntryForm()
		form.ID = id
		return EditorOutcome{Form: form, Notice: err.Error()}
	}
	if entry == nil {
		log.Debug("entry not found, redirecting to new", slog.String("id", id))
		return EditorOutcome{Form: NewEntryForm(), Redirect: "/entries/" + models.NewEntryID}
	}
	return EditorOutcome{Form: entryFormFromEntry(entry)}
}

func SubmitEntryForm(ctx context.Context, svc EntryDataService, form EntryForm, loc *time.Location) EditorOutcome {
	log := slogctx.FromCtx(ctx)
	in, err := form.Payload(loc)
	if errors.Is(err, errIncompleteForm) {
		return EditorOutcome{Form: form}
	}
	if err != nil {
		return EditorOutcome{Form: form, Notice: err.Error()}
	}

	if form.ID == models.NewEntryID {
		in.ID = ""
		_, err = svc.Add(ctx, in)
	} else {
		_, err = svc.Edit(ctx, in)
	}
	if err != nil {
		log.Warn("cannot save entry", slog.String("id", form.ID), slog.Any("error", err))
		return EditorOutcome{Form: form, Notice: err.Error()}
	}
	return EditorOutcome{Form: form, Redirect: "/"}
}

// DeleteEntry removes the entry behind form. On failure the draft is handed
// back untouched.
func DeleteEntry(ctx context.Context, svc EntryDataService, form EntryForm) EditorOutcome {
	log := slogctx.FromCtx(ctx)
	if form.ID == models.NewEntryID {
		return EditorOutcome{Form: form}
	}
	err := svc.Remove(ctx, form.ID)
	if err != nil {
		log.Warn("cannot delete entry", slog.String("id", form.ID), slog.Any("error", err))
		return EditorOutcome{Form: form, Notice: err.Error()}
	}
	return EditorOutcome{Form: form, Redirect: "/"}
}
