package controllers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adamlounds/diacates-go/locale"
	"github.com/adamlounds/diacates-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryOn(id string, date time.Time, period models.TimePeriod) models.Entry {
	return models.Entry{ID: id, Date: date, TimePeriod: period, GlucoseAmount: 5}
}

func ids(entries []models.Entry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestGroupEntriesByDay(t *testing.T) {
	entries := []models.Entry{
		entryOn("a", jan5, models.Evening),
		entryOn("b", jan4, models.Morning),
		entryOn("c", jan5, models.Morning),
		entryOn("d", jan4, models.Midday),
		entryOn("e", jan5.Add(12*time.Hour), models.Midday),
	}

	groups := GroupEntriesByDay(entries, locale.Russian, time.UTC)

	require.Len(t, groups, 2)
	assert.Equal(t, "05.01.2024", groups[0].Key, "groups keep order of first appearance")
	assert.Equal(t, []string{"a", "c", "e"}, ids(groups[0].Entries))
	assert.Equal(t, "04.01.2024", groups[1].Key)
	assert.Equal(t, []string{"b", "d"}, ids(groups[1].Entries))

	// every input entry is in exactly one group
	seen := map[string]int{}
	for _, g := range groups {
		for _, e := range g.Entries {
			seen[e.ID]++
		}
	}
	assert.Len(t, seen, len(entries))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}

	assert.Empty(t, GroupEntriesByDay(nil, locale.Russian, time.UTC))
}

func TestGroupEntriesByDayUsesZone(t *testing.T) {
	// 23:00 UTC on the 4th is already the 5th in Moscow
	late := time.Date(2024, 1, 4, 23, 0, 0, 0, time.UTC)
	moscow := time.FixedZone("MSK", 3*60*60)
	entries := []models.Entry{entryOn("a", late, models.Morning), entryOn("b", jan5.In(moscow).Add(-3*time.Hour), models.Evening)}

	groups := GroupEntriesByDay(entries, locale.English, moscow)
	require.Len(t, groups, 1)
	assert.Equal(t, "1/5/2024", groups[0].Key)
}

func TestSortDayEntries(t *testing.T) {
	day := func() []models.Entry {
		return []models.Entry{
			entryOn("morning", jan5, models.Morning),
			entryOn("evening", jan5, models.Evening),
			entryOn("midday", jan5, models.Midday),
			entryOn("morning-2", jan5, models.Morning),
		}
	}

	chronological := day()
	SortDayEntries(chronological, SortChronological)
	assert.Equal(t, []string{"morning", "morning-2", "midday", "evening"}, ids(chronological))

	lexical := day()
	SortDayEntries(lexical, SortLexical)
	assert.Equal(t, []string{"evening", "midday", "morning", "morning-2"}, ids(lexical))

	unset := day()
	SortDayEntries(unset, "")
	assert.Equal(t, ids(chronological), ids(unset), "chronological is the default")
}

func TestDateHeader(t *testing.T) {
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, [2]string{"Пятница", "05.01.2024"}, DateHeader(locale.Russian, friday))
	assert.Equal(t, [2]string{"Friday", "1/5/2024"}, DateHeader(locale.English, friday))

	tests := []struct {
		long string
		want [2]string
	}{
		{"пятница, 05.01.2024", [2]string{"PATNICA", "05.01.2024"}},
		{"пятница 05.01.2024", [2]string{"", ""}},
		{", 05.01.2024", [2]string{"", ""}},
		{"пятница, ", [2]string{"", ""}},
		{"a, b, c", [2]string{"", ""}},
		{"", [2]string{"", ""}},
	}
	upper := func(string) string { return "PATNICA" }
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitDateHeader(tt.long, upper), tt.long)
	}
}

func TestLoadEntryList(t *testing.T) {
	ctx := contextWithSilentLogger()
	svc := &mockDataService{getAllFn: func(ctx context.Context) ([]models.Entry, error) {
		return []models.Entry{
			entryOn("a", jan5, models.Evening),
			entryOn("b", jan5, models.Morning),
			entryOn("c", jan4, models.Midday),
		}, nil
	}}

	list := loadEntryList(ctx, svc, locale.Russian, time.UTC, ListOptions{SortOrder: SortChronological})
	require.Len(t, list.Days, 2)
	assert.Equal(t, []string{"b", "a"}, ids(list.Days[0].Entries))
	assert.Empty(t, list.Notice)

	list = loadEntryList(ctx, svc, locale.Russian, time.UTC, ListOptions{SortOrder: SortLexical})
	assert.Equal(t, []string{"a", "b"}, ids(list.Days[0].Entries))

	failing := &mockDataService{getAllFn: func(ctx context.Context) ([]models.Entry, error) {
		return nil, errors.New("cannot fetch entries: boom")
	}}
	list = loadEntryList(ctx, failing, locale.Russian, time.UTC, ListOptions{})
	assert.Empty(t, list.Days)
	assert.True(t, strings.HasSuffix(list.Notice, "boom"))
}
