package cli

import (
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/controllers"
	"github.com/adamlounds/diacates-go/models"
	"github.com/adamlounds/diacates-go/views"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func addEntries(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Read a diary.",
	}
	cmd.AddCommand(newEntriesList(o))
	topLevel.AddCommand(cmd)
}

func newEntriesList(o *Options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "Print a user's entries grouped by day, newest day first.",
		Example: "diactl entries list --user anna",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			as, err := o.Repos.Auth.FetchAuthSubjectByName(ctx, name)
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("no user %q", name)
			}
			if err != nil {
				return err
			}

			entryService := &models.EntryService{EntryRepository: o.Repos.Entries}
			entries, err := entryService.ForUser(as.ID).GetAll(ctx)
			if err != nil {
				return err
			}
			printDays(cmd, o, controllers.GroupEntriesByDay(entries, o.Locale, o.Location))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "user", "", "name of the diary's owner")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printDays(cmd *cobra.Command, o *Options, days []controllers.DayGroup) {
	out := cmd.OutOrStdout()
	labels := o.Locale.Labels
	bold := color.New(color.Bold)

	for _, day := range days {
		controllers.SortDayEntries(day.Entries, o.SortOrder)
		header := controllers.DateHeader(o.Locale, day.Day)
		_, _ = fmt.Fprintln(out, bold.Sprint(header[0]), header[1])

		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.AddRow("", labels.GlucoseUnit, labels.InsulinUnit, labels.WeightUnit)
		for _, e := range day.Entries {
			tbl.AddRow(
				o.Locale.PeriodLabel(string(e.TimePeriod)),
				views.FormatAmount(e.GlucoseAmount),
				views.FormatOptionalAmount(e.InsulinDosage),
				views.FormatOptionalAmount(e.Weight),
			)
		}
		tbl.RightAlign(1)
		_, _ = fmt.Fprintln(out, tbl)
		_, _ = fmt.Fprintln(out)
	}
}
