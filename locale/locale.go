// Package locale holds the date formats and UI strings for the languages
// the diary is rendered in.
package locale

import (
	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"time"
)

type Labels struct {
	Title       string
	Description string
	NewEntry    string
	EditEntry   string
	Date        string
	Period      string
	Glucose     string
	Insulin     string
	Weight      string
	Save        string
	Delete      string
	SignIn      string
	SignOut     string
	Name        string
	Password    string
	TableMode   string
	CardMode    string
	Periods     map[string]string

	GlucoseUnit string
	InsulinUnit string
	WeightUnit  string
}

type Locale struct {
	Tag        language.Tag
	Labels     Labels
	calendar   monday.Locale
	dateLayout string
}

var Russian = &Locale{
	Tag:        language.Russian,
	calendar:   monday.LocaleRuRU,
	dateLayout: "02.01.2006",
	Labels: Labels{
		Title:       "Diacates",
		Description: "Отслеживание глюкозы",
		NewEntry:    "Добавить запись",
		EditEntry:   "Редактировать запись",
		Date:        "Дата",
		Period:      "Период",
		Glucose:     "Глюкоза",
		Insulin:     "Инсулин",
		Weight:      "Вес",
		Save:        "Сохранить",
		Delete:      "Удалить",
		SignIn:      "Войти",
		SignOut:     "Выйти",
		Name:        "Имя",
		Password:    "Пароль",
		TableMode:   "Таблица",
		CardMode:    "Карточки",
		Periods: map[string]string{
			"morning": "Утро",
			"midday":  "День",
			"evening": "Вечер",
		},
		GlucoseUnit: "ммоль/л",
		InsulinUnit: "ед",
		WeightUnit:  "кг",
	},
}

var English = &Locale{
	Tag:        language.AmericanEnglish,
	calendar:   monday.LocaleEnUS,
	dateLayout: "1/2/2006",
	Labels: Labels{
		Title:       "Diacates",
		Description: "Glucose tracking",
		NewEntry:    "New entry",
		EditEntry:   "Edit entry",
		Date:        "Date",
		Period:      "Period",
		Glucose:     "Glucose",
		Insulin:     "Insulin",
		Weight:      "Weight",
		Save:        "Save",
		Delete:      "Delete",
		SignIn:      "Sign in",
		SignOut:     "Sign out",
		Name:        "Name",
		Password:    "Password",
		TableMode:   "Table",
		CardMode:    "Cards",
		Periods: map[string]string{
			"morning": "Morning",
			"midday":  "Midday",
			"evening": "Evening",
		},
		GlucoseUnit: "mmol/L",
		InsulinUnit: "U",
		WeightUnit:  "kg",
	},
}

var supported = []*Locale{Russian, English}

var matcher = language.NewMatcher([]language.Tag{Russian.Tag, English.Tag})

// Match picks the supported locale closest to the given BCP 47 string(s),
// eg a LOCALE setting or an Accept-Language header. Russian is the fallback.
func Match(s string) *Locale {
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return Russian
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Russian
	}
	return supported[index]
}

// DayKey is the short date string used to group entries by calendar day.
func (l *Locale) DayKey(t time.Time) string {
	return t.Format(l.dateLayout)
}

// LongDate renders the weekday and the numeric date, eg "Пятница, 05.01.2024".
func (l *Locale) LongDate(t time.Time) string {
	return monday.Format(t, "Monday, "+l.dateLayout, l.calendar)
}

// Capitalize upper-cases the first letter of a single word. Casers are
// stateful, so one is made per call.
func (l *Locale) Capitalize(word string) string {
	return cases.Title(l.Tag).String(word)
}

func (l *Locale) PeriodLabel(period string) string {
	label, ok := l.Labels.Periods[period]
	if !ok {
		return period
	}
	return label
}
