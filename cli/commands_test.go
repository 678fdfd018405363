package cli

import (
	"bytes"
	"context"
	repository "github.com/adamlounds/diacates-go/adapters"
	"github.com/adamlounds/diacates-go/controllers"
	"github.com/adamlounds/diacates-go/locale"
	"github.com/adamlounds/diacates-go/models"
	bucketstore "github.com/adamlounds/diacates-go/stores/bucket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func contextWithSilentLogger() context.Context {
	return slogctx.NewCtx(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestOptions(lc *locale.Locale) *Options {
	bs := bucketstore.NewInMem()
	return &Options{
		Repos: &repository.Repositories{
			Entries: repository.NewBucketEntryRepository(bs, time.UTC),
			Auth:    repository.NewBucketAuthRepository(bs),
		},
		Locale:      lc,
		Location:    time.UTC,
		SortOrder:   controllers.SortChronological,
		DefaultRole: "diarist",
	}
}

func execute(t *testing.T, o *Options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRoot(o)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(contextWithSilentLogger())
	return out.String(), err
}

func TestUserAddAndList(t *testing.T) {
	o := newTestOptions(locale.English)

	out, err := execute(t, o, "user", "add", "anna", "--password", "correct-horse")
	require.NoError(t, err)
	assert.Contains(t, out, "created anna")
	assert.Contains(t, out, "with role diarist")

	_, err = execute(t, o, "user", "add", "rob", "--password", "battery-staple", "--role", "readable")
	require.NoError(t, err)

	_, err = execute(t, o, "user", "add", "anna", "--password", "correct-horse")
	assert.ErrorContains(t, err, `user "anna" already exists`)

	_, err = execute(t, o, "user", "add", "eve", "--password", "short")
	assert.ErrorIs(t, err, models.ErrWeakPassword)

	_, err = execute(t, o, "user", "add", "eve")
	assert.Error(t, err, "password is required")

	out, err = execute(t, o, "user", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "anna")
	assert.Contains(t, lines[1], "diarist")
	assert.Contains(t, lines[2], "rob")
	assert.Contains(t, lines[2], "readable")
}

func TestEntriesList(t *testing.T) {
	o := newTestOptions(locale.Russian)
	ctx := contextWithSilentLogger()

	authService := &models.AuthService{AuthRepository: o.Repos.Auth}
	anna, err := authService.Register(ctx, "anna", "correct-horse", []string{"diarist"})
	require.NoError(t, err)

	weight := 3.5
	entries := (&models.EntryService{EntryRepository: o.Repos.Entries}).ForUser(anna.ID)
	for _, in := range []models.EntryInput{
		{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), TimePeriod: models.Evening, GlucoseAmount: 7},
		{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), TimePeriod: models.Morning, GlucoseAmount: 16.5, Weight: &weight},
		{Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), TimePeriod: models.Midday, GlucoseAmount: 5.2},
	} {
		_, err := entries.Add(ctx, in)
		require.NoError(t, err)
	}

	out, err := execute(t, o, "entries", "list", "--user", "anna")
	require.NoError(t, err)

	assert.Contains(t, out, "Пятница 05.01.2024")
	assert.Contains(t, out, "Четверг 04.01.2024")
	assert.Less(t, strings.Index(out, "05.01.2024"), strings.Index(out, "04.01.2024"), "newest day first")
	assert.Contains(t, out, "ммоль/л")
	assert.Contains(t, out, "16.5")
	assert.Contains(t, out, "3.5")
	morning := strings.Index(out, o.Locale.PeriodLabel("morning"))
	evening := strings.Index(out, o.Locale.PeriodLabel("evening"))
	assert.Less(t, morning, evening, "morning is printed before evening")

	_, err = execute(t, o, "entries", "list", "--user", "nobody")
	assert.ErrorContains(t, err, `no user "nobody"`)
}
