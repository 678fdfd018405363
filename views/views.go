// Package views renders the server-side HTML pages.
package views

import (
	"embed"
	"fmt"
	"github.com/adamlounds/diacates-go/locale"
	"github.com/adamlounds/diacates-go/models"
	"github.com/shopspring/decimal"
	"html/template"
	"io"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var pageNames = []string{"list", "editor", "signin"}

type Views struct {
	pages map[string]*template.Template
}

// New parses every page against the shared layout. Template funcs close
// over lc so period names and units come out in its language.
func New(lc *locale.Locale) (*Views, error) {
	funcs := template.FuncMap{
		"period":   func(p models.TimePeriod) string { return lc.PeriodLabel(string(p)) },
		"amount":   FormatAmount,
		"optional": FormatOptionalAmount,
	}
	v := &Views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.gohtml").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.gohtml",
			"templates/"+name+".gohtml",
		)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %s template: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

func (v *Views) Render(w io.Writer, name string, data any) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	err := t.Execute(w, data)
	if err != nil {
		return fmt.Errorf("cannot render %s: %w", name, err)
	}
	return nil
}

// FormatAmount prints a measurement without float noise, eg 16.5 not 16.500000.
func FormatAmount(f float64) string {
	return decimal.NewFromFloat(f).String()
}

// FormatOptionalAmount prints "" for an absent value.
func FormatOptionalAmount(f *float64) string {
	if f == nil {
		return ""
	}
	return FormatAmount(*f)
}
