// Package cli implements grindctl, the maintenance command line of the
// tracker. It talks to the record store directly.
package cli

import (
	"fmt"
	"io"
	"log"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gta-grind-tracker/internal/cache"
	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/config"
	"gta-grind-tracker/internal/repository"
	"gta-grind-tracker/internal/service"
)

// StoreOpener opens the record store for one command.
type StoreOpener func() (repository.RecordStore, error)

// Env carries the dependencies of every command.
type Env struct {
	Open  StoreOpener
	Clock clock.Clock
}

// Execute runs grindctl against the store named by the environment.
func Execute() error {
	return NewRoot(Env{Open: openFromConfig, Clock: clock.NewReal()}).Execute()
}

// NewRoot builds the command tree.
func NewRoot(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "grindctl",
		Short:         "Maintenance commands for the GTA grind tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		seedCmd(env),
		boardCmd(env),
		pruneCmd(env),
		resetCmd(env),
	)
	return root
}

func openFromConfig() (repository.RecordStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return repository.Open(repository.StoreOptions{
		Type:        cfg.Store.Type,
		Path:        cfg.Store.Path,
		PostgresDSN: cfg.Store.PostgresDSN(),
		MySQL: repository.MySQLConfig{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Name,
		},
	})
}

// services wires the tracker without a scheduler; nothing is notified
// from the command line.
type services struct {
	store     repository.RecordStore
	catalog   *service.CatalogService
	refresher *service.Refresher
	tracker   *service.TrackerService
}

func (env Env) services() (*services, error) {
	store, err := env.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	catalog := service.NewCatalogService(store, cache.NewMemoryCache(), time.Minute)
	refresher := service.NewRefresher(store, nil, env.Clock, nil, service.DefaultRefreshConfig())
	return &services{
		store:     store,
		catalog:   catalog,
		refresher: refresher,
		tracker:   service.NewTrackerService(store, catalog, refresher, env.Clock),
	}, nil
}

func seedCmd(env Env) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the default activity catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.services()
			if err != nil {
				return err
			}
			defer svc.store.Close()

			n, err := svc.catalog.Seed(cmd.Context(), replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d activities\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Overwrite activities that already exist")
	return cmd
}

func boardCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the resolved state of every activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.services()
			if err != nil {
				return err
			}
			defer svc.store.Close()

			board, err := svc.tracker.Board(cmd.Context())
			if err != nil {
				return err
			}
			return printBoard(cmd.OutOrStdout(), board)
		},
	}
}

func printBoard(out io.Writer, board []service.BoardEntry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tACTION\tTIME\tSTOCK")
	for _, e := range board {
		stock := "-"
		if e.Stock != nil {
			stock = fmt.Sprintf("%d/%d", *e.Stock, e.Capacity)
		}
		display := e.Display
		if display == "" {
			display = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Activity.ID, e.State, e.Action, display, stock)
	}
	return tw.Flush()
}

func pruneCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Complete finished resupplies and delete expired cooldowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.services()
			if err != nil {
				return err
			}
			defer svc.store.Close()

			snap, err := svc.refresher.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned at %s: %d cooldowns, %d resupplies remain\n",
				snap.TakenAt.Format(time.RFC3339), len(snap.Cooldowns), len(snap.Resupplies))
			return nil
		},
	}
}

func resetCmd(env Env) *cobra.Command {
	var confirm string
	cmd := &cobra.Command{
		Use:   "reset [activity-id]",
		Short: "Delete the records of one activity, or of all activities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm != service.ResetToken {
				return fmt.Errorf("refusing to reset without --confirm %s", service.ResetToken)
			}

			svc, err := env.services()
			if err != nil {
				return err
			}
			defer svc.store.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				if err := svc.tracker.ResetActivity(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
				return nil
			}

			if err := svc.tracker.ResetAll(ctx, confirm); err != nil {
				return err
			}
			log.Printf("[grindctl] All records reset")
			fmt.Fprintln(cmd.OutOrStdout(), "reset all records")
			return nil
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "Must be "+service.ResetToken)
	return cmd
}
