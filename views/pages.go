package views

import (
	"github.com/adamlounds/diacates-go/locale"
	"github.com/adamlounds/diacates-go/models"
)

// Layout is shared by every page.
type Layout struct {
	Lang     string
	Labels   locale.Labels
	UserName string
	Notice   string
	SignedIn bool
}

type DayView struct {
	Weekday string
	Date    string
	Entries []models.Entry
}

type ListPage struct {
	Layout
	Days      []DayView
	TableMode bool
}

type PeriodOption struct {
	Value    string
	Label    string
	Selected bool
}

type EditorPage struct {
	Layout
	ID            string
	Date          string
	GlucoseAmount string
	InsulinDosage string
	Weight        string
	Periods       []PeriodOption
	IsNew         bool
	CanSubmit     bool
}

type SignInPage struct {
	Layout
	Name string
}
