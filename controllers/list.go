package controllers

import (
	"cmp"
	"context"
	"github.com/adamlounds/diacates-go/locale"
	"github.com/adamlounds/diacates-go/models"
	"slices"
	"strings"
	"time"
)

type SortOrder string

const (
	// SortChronological orders a day morning, midday, evening.
	SortChronological SortOrder = "chronological"
	// SortLexical compares period names as strings: evening, midday, morning.
	SortLexical SortOrder = "lexical"
)

// ListOptions carries the per-request rendering choices for the entry list.
type ListOptions struct {
	SortOrder SortOrder
	TableMode bool
}

// DayGroup holds the entries sharing one calendar day.
type DayGroup struct {
	Day     time.Time
	Key     string
	Entries []models.Entry
}

// GroupEntriesByDay partitions entries by the locale's day string of their
// date in tz. Groups come out in order of first appearance and keep their
// entries in input order.
func GroupEntriesByDay(entries []models.Entry, lc *locale.Locale, tz *time.Location) []DayGroup {
	groups := []DayGroup{}
	index := map[string]int{}
	for _, e := range entries {
		day := e.Date.In(tz)
		key := lc.DayKey(day)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Day: day, Key: key})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

// SortDayEntries sorts one day's entries in place by period. The sort is
// stable so entries sharing a period keep their order.
func SortDayEntries(entries []models.Entry, order SortOrder) {
	if order == SortLexical {
		slices.SortStableFunc(entries, func(a, b models.Entry) int {
			return strings.Compare(string(a.TimePeriod), string(b.TimePeriod))
		})
		return
	}
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return cmp.Compare(a.TimePeriod.Ordinal(), b.TimePeriod.Ordinal())
	})
}

// DateHeader splits the locale's long date into a capitalized weekday and
// the date. Anything but exactly two non-empty parts gives two blanks.
func DateHeader(lc *locale.Locale, day time.Time) [2]string {
	return splitDateHeader(lc.LongDate(day), lc.Capitalize)
}

func splitDateHeader(long string, capitalize func(string) string) [2]string {
	parts := strings.Split(long, ", ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return [2]string{"", ""}
	}
	return [2]string{capitalize(parts[0]), parts[1]}
}

// EntryList is the loaded home page content.
type EntryList struct {
	Days   []DayGroup
	Notice string
}

// loadEntryList fetches and arranges a signed-in user's entries. A fetch
// failure is reported as a notice with an empty list.
func loadEntryList(ctx context.Context, svc EntryDataService, lc *locale.Locale, tz *time.Location, opts ListOptions) EntryList {
	entries, err := svc.GetAll(ctx)
	if err != nil {
		return EntryList{Days: []DayGroup{}, Notice: err.Error()}
	}
	days := GroupEntriesByDay(entries, lc, tz)
	for _, day := range days {
		SortDayEntries(day.Entries, opts.SortOrder)
	}
	return EntryList{Days: days}
}
