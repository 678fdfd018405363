// Package cli holds the diactl commands for managing users and reading a
// diary from the shell.
package cli

import (
	"fmt"
	repository "github.com/adamlounds/diacates-go/adapters"
	"github.com/adamlounds/diacates-go/config"
	"github.com/adamlounds/diacates-go/controllers"
	"github.com/adamlounds/diacates-go/locale"
	"github.com/spf13/cobra"
	"time"
)

// Options is shared by every command. Repos is opened from Config before
// a command runs unless it is already set.
type Options struct {
	Config      config.CLIConfig
	Repos       *repository.Repositories
	Locale      *locale.Locale
	Location    *time.Location
	SortOrder   controllers.SortOrder
	DefaultRole string
}

func New(cfg config.CLIConfig) *cobra.Command {
	o := &Options{
		Config:      cfg,
		Locale:      cfg.Locale,
		Location:    cfg.Location,
		SortOrder:   controllers.SortOrder(cfg.SortOrder),
		DefaultRole: cfg.DefaultRole,
	}
	return newRoot(o)
}

func newRoot(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "diactl",
		Short:         "Manage diacates users and read diaries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.Repos != nil {
				return nil
			}
			repos, err := repository.Open(cmd.Context(), o.Config.Storage, o.Location)
			if err != nil {
				return fmt.Errorf("cannot open storage: %w", err)
			}
			o.Repos = repos
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if o.Repos == nil {
				return nil
			}
			return o.Repos.Close()
		},
	}

	addUser(cmd, o)
	addEntries(cmd, o)
	return cmd
}
