package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/yegors/whse-session/internal/backend"
	"github.com/yegors/whse-session/internal/config"
	"github.com/yegors/whse-session/internal/storage/sqlite"
	"github.com/yegors/whse-session/internal/uiconfig"
	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

// app holds what every subcommand needs once the config is loaded
type app struct {
	configPath string
	debug      bool

	cfg        *config.Config
	log        *logger.Logger
	db         *sql.DB
	sessions   *sqlite.SessionStorage
	warehouses *sqlite.WarehouseStorage
	registry   *uiconfig.Registry
	service    *whse.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "whsectl",
		Short:        "Inspect warehouse sessions and drive the execution backend",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsStore(cmd) {
				return nil
			}
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Print the query a command would run instead of running it")

	rootCmd.AddCommand(
		a.showCmd(),
		a.existsCmd(),
		a.startCmd(),
		a.actionCmd("pick", "Start picking for the session's order", whse.ActionStartPick, func(s *whse.Service) sessionAction { return s.StartPicking }),
		a.actionCmd("pick-pack", "Start pick pack for the session's order", whse.ActionStartPickPack, func(s *whse.Service) sessionAction { return s.StartPickPack }),
		a.actionCmd("logout", "Log the session out of the backend", whse.ActionLogout, func(s *whse.Service) sessionAction { return s.EndSession }),
		a.pickedCmd(),
		a.pickedTotalCmd(),
		a.clearPickedCmd(),
		a.uiConfigCmd(),
		a.importSessionsCmd(),
		a.importWarehousesCmd(),
	)

	return rootCmd
}

// needsStore reports whether cmd touches storage or the backend
func needsStore(cmd *cobra.Command) bool {
	if !cmd.HasParent() {
		return false
	}
	for c := cmd; c.HasParent(); c = c.Parent() {
		switch c.Name() {
		case "help", "completion":
			return false
		}
	}
	return true
}

func (a *app) open() error {
	cfg, err := config.LoadWithFallback(a.configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}

	db, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		return err
	}

	sessions, err := sqlite.NewSessionStorage(db, log)
	if err != nil {
		db.Close()
		return err
	}
	warehouses, err := sqlite.NewWarehouseStorage(db, log)
	if err != nil {
		db.Close()
		return err
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.RequestTimeout(), log)
	if err != nil {
		db.Close()
		return err
	}

	vocabulary, err := cfg.Vocabulary()
	if err != nil {
		db.Close()
		return err
	}

	a.cfg = cfg
	a.log = log
	a.db = db
	a.sessions = sessions
	a.warehouses = warehouses
	a.registry = uiconfig.NewRegistry(nil, log)
	a.service = whse.NewService(sessions, warehouses, client, a.registry, cfg.PagesFor(), whse.NewPhraseClassifier(vocabulary), log)
	return nil
}

func (a *app) close() error {
	if a.log != nil {
		a.log.Sync()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printQuery(cmd *cobra.Command, query string, err error) error {
	if err != nil {
		return fmt.Errorf("error rendering query: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), query)
	return err
}

func (a *app) load(cmd *cobra.Command, sessionID string) (*whse.Session, error) {
	session, err := a.service.Load(cmd.Context(), sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading session %s: %w", sessionID, err)
	}
	return session, nil
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Show a session record and its interpreted status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.debug {
				query, err := a.service.ExplainLoad(args[0])
				return a.printQuery(cmd, query, err)
			}

			session, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"session":    session,
				"message":    session.StatusMessage(),
				"conditions": session.Conditions().Map(),
				"has_order":  session.HasOrder(),
				"has_bin":    session.HasBin(),
				"has_pallet": session.HasPallet(),
				"has_carton": session.HasCarton(),
			})
		},
	}
}

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists SESSION_ID",
		Short: "Report whether a session record exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.debug {
				query, err := a.service.ExplainExists(args[0])
				return a.printQuery(cmd, query, err)
			}

			exists, err := a.service.Exists(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error checking session %s: %w", args[0], err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), exists)
			return err
		},
	}
}

func (a *app) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start SESSION_ID",
		Short: "Ask the backend to initiate a warehouse session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.StartSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sent %s for session %s\n", whse.ActionInitiateWhse, args[0])
			return err
		},
	}
}

// sessionAction sends one backend action for a loaded session
type sessionAction func(context.Context, *whse.Session) error

func (a *app) actionCmd(use, short, action string, pick func(*whse.Service) sessionAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SESSION_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			if err := pick(a.service)(cmd.Context(), session); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s for session %s\n", action, session.SessionID())
			return err
		},
	}
}

func (a *app) pickedCmd() *cobra.Command {
	var itemID string

	cmd := &cobra.Command{
		Use:   "picked SESSION_ID",
		Short: "List items picked for the session's order line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			if a.debug {
				query, err := a.service.ExplainPickedItems(session, itemID)
				return a.printQuery(cmd, query, err)
			}

			items, err := a.service.PickedItems(cmd.Context(), session, itemID)
			if err != nil {
				return fmt.Errorf("error listing picked items: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "Item ID of the order line")
	cmd.MarkFlagRequired("item")
	return cmd
}

func (a *app) pickedTotalCmd() *cobra.Command {
	var itemID string

	cmd := &cobra.Command{
		Use:   "picked-total SESSION_ID",
		Short: "Print the quantity picked for the session's order line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			if a.debug {
				query, err := a.service.ExplainPickedQtyTotal(session, itemID)
				return a.printQuery(cmd, query, err)
			}

			total, err := a.service.PickedQtyTotal(cmd.Context(), session, itemID)
			if err != nil {
				return fmt.Errorf("error totalling picked items: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), total)
			return err
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "Item ID of the order line")
	cmd.MarkFlagRequired("item")
	return cmd
}

func (a *app) clearPickedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-picked SESSION_ID",
		Short: "Delete every picked item recorded for the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			if a.debug {
				query, err := a.service.ExplainDeletePickedItems(session)
				return a.printQuery(cmd, query, err)
			}

			n, err := a.service.DeletePickedItems(cmd.Context(), session)
			if err != nil {
				return fmt.Errorf("error deleting picked items: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d picked items\n", n)
			return err
		},
	}
}

func (a *app) uiConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui-config SESSION_ID",
		Short: "Print the bin configuration payload for the session's warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			payload, err := a.service.PublishUIConfig(cmd.Context(), session)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}
}

func (a *app) importSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-sessions FILE",
		Short: "Load session records from a JSON array into storage",
		Long: `The import-sessions command reads a JSON array of session records and upserts each one.
Field names may use any of the accepted aliases (for example "whseID" or "ordn").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading %s: %w", args[0], err)
			}

			var sessions []*whse.Session
			if err := json.Unmarshal(data, &sessions); err != nil {
				return fmt.Errorf("error parsing %s: %w", args[0], err)
			}

			for _, s := range sessions {
				if s == nil || s.SessionID() == "" {
					return fmt.Errorf("session record without sessionid in %s", args[0])
				}
				if err := a.sessions.UpsertSession(cmd.Context(), s); err != nil {
					return err
				}
			}

			a.log.Info("Imported sessions", logger.Int("count", len(sessions)), logger.String("file", args[0]))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d sessions\n", len(sessions))
			return err
		},
	}
}

func (a *app) importWarehousesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-warehouses FILE",
		Short: "Load warehouse bin configuration from a YAML file into storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warehouses, err := config.LoadWarehouses(args[0])
			if err != nil {
				return err
			}

			for i := range warehouses {
				if err := a.warehouses.SaveWarehouse(cmd.Context(), &warehouses[i]); err != nil {
					return err
				}
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d warehouses\n", len(warehouses))
			return err
		},
	}
}
