package cli

import (
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/models"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"strings"
)

func addUser(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the subjects that can sign in.",
	}
	cmd.AddCommand(newUserAdd(o), newUserList(o))
	topLevel.AddCommand(cmd)
}

func newUserAdd(o *Options) *cobra.Command {
	var password, role string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a subject.",
		Example: `
diactl user add anna --password correct-horse
diactl user add rob --password battery-staple --role readable
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" {
				role = o.DefaultRole
			}
			authService := &models.AuthService{AuthRepository: o.Repos.Auth}
			as, err := authService.Register(cmd.Context(), args[0], password, []string{role})
			if errors.Is(err, models.ErrSubjectExists) {
				return fmt.Errorf("user %q already exists", args[0])
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with role %s\n", as.Name, as.ID, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&role, "role", "", "role name (default from DEFAULT_ROLE)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserList(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subjects.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subjects, err := o.Repos.Auth.FetchAuthSubjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("cannot list users: %w", err)
			}
			bold := color.New(color.Bold)

			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(bold.Sprint("NAME"), bold.Sprint("ROLES"), bold.Sprint("CREATED"))
			for _, as := range subjects {
				tbl.AddRow(as.Name, strings.Join(as.RoleNames, ","), as.CreatedTime.In(o.Location).Format("2006-01-02 15:04"))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
}
