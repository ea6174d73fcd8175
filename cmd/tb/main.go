package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"townbox/internal/app"
	"townbox/internal/config"
	"townbox/internal/db"
	"townbox/internal/engine"
	"townbox/internal/metrics"
	"townbox/internal/migrate"
	"townbox/internal/repo"
	"townbox/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Townbox CLI",
	Long: `Townbox keeps a town's public meetings within the law.
- Tenant: one town or governing unit; its config holds the jurisdiction, notice lead time, newspaper and rule overrides.
- Meetings move DRAFT -> SCHEDULED -> NOTICED -> IN_PROGRESS -> ADJOURNED; notice timing and executive sessions are checked on the way.
- Hearings carry newspaper publication deadlines and a risk level that rises as the deadline nears.
- Findings of fact record the statutory criteria a zoning board must decide before it approves or denies a variance.
- Event log: every change is audited, view with 'tb log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TOWNBOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-clerk", "actor identifier")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id (defaults to the only tenant)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "json", "actor-id", "tenant", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(bodyCmd())
	rootCmd.AddCommand(meetingCmd())
	rootCmd.AddCommand(deadlineCmd())
	rootCmd.AddCommand(hearingCmd())
	rootCmd.AddCommand(findingsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func newLogger(level string) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	cmd.AddCommand(tenantInitCmd())
	cmd.AddCommand(tenantListCmd())
	cmd.AddCommand(tenantConfigCmd())
	return cmd
}

func tenantInitCmd() *cobra.Command {
	var id, name, filePath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a tenant, optionally from a YAML config",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			if filePath != "" {
				loaded, err := config.FromFile(filePath)
				if err != nil {
					return err
				}
				if loaded.Tenant.ID != "" && loaded.Tenant.ID != id {
					return fmt.Errorf("config tenant.id %q does not match --id %q", loaded.Tenant.ID, id)
				}
				loaded.Tenant.ID = id
				cfg = loaded
			}
			return withRawEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.InitTenant(ctx, id, name, cfg)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func tenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTenants(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Created")
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func tenantConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage tenant config"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the tenant config stored in the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config)
				}
				raw, err := e.Config.ToYAML()
				if err != nil {
					return err
				}
				fmt.Print(string(raw))
				return nil
			})
		},
	})

	var filePath string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Replace the tenant config from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if cfg.Tenant.ID == "" {
					cfg.Tenant.ID = e.Config.Tenant.ID
				}
				if cfg.Tenant.ID != e.Config.Tenant.ID {
					return fmt.Errorf("config tenant.id %q does not match tenant %q", cfg.Tenant.ID, e.Config.Tenant.ID)
				}
				if err := e.UpdateTenantConfig(ctx, cfg); err != nil {
					return err
				}
				fmt.Printf("Imported config for %s (%d rule overrides, %d webhooks)\n",
					cfg.Tenant.ID, len(cfg.OverriddenReasons()), len(cfg.Webhooks))
				return nil
			})
		},
	}
	imp.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = imp.MarkFlagRequired("file")
	cmd.AddCommand(imp)
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Audit event log",
		Long:  "Every governed change: meetings, votes, sessions, minutes, hearings and findings.",
	}
	var f repo.EventFilter
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "When", "Type", "Entity", "Actor")
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	log.AddCommand(tail)
	return log
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var actor, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, secret, err := e.CreateAPIKey(ctx, actor, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "secret": secret})
				}
				fmt.Printf("API key %s for %s\nSecret (shown once): %s\n", key.ID, key.ActorID, secret)
				return nil
			})
		},
	}
	create.Flags().StringVar(&actor, "actor", "", "actor the key acts as (defaults to --actor-id)")
	create.Flags().StringVar(&name, "name", "", "key label")
	cmd.AddCommand(create)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Settings come from TOWNBOX_* environment variables; flags override them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadServer()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || settings.Addr == "" {
				settings.Addr = addr
			}
			if cmd.Flags().Changed("base-path") || settings.BasePath == "" {
				settings.BasePath = basePath
			}
			if rootCmd.PersistentFlags().Changed("workspace") {
				settings.Workspace = viper.GetString("workspace")
			}
			if rootCmd.PersistentFlags().Changed("log-level") {
				settings.LogLevel = viper.GetString("log-level")
			}
			if settings.JWTSecret == "" && !settings.AllowLegacyHeaders {
				return fmt.Errorf("TOWNBOX_JWT_SECRET is required for bearer auth")
			}
			logger, err := newLogger(settings.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			if _, err := db.EnsureWorkspace(settings.Workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: settings.Workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			logger.Info("database ready", slog.String("path", db.Path(settings.Workspace)), slog.Int("migrations_applied", applied))

			e, err := engine.New(conn, nil)
			if err != nil {
				return err
			}
			e.Logger = logger
			e.Metrics = metrics.New()

			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: settings.BasePath,
				Logger:   logger,
				Auth: server.AuthConfig{
					JWTSecret:          settings.JWTSecret,
					JWTIssuer:          settings.JWTIssuer,
					JWTAudience:        settings.JWTAudience,
					AllowLegacyHeaders: settings.AllowLegacyHeaders,
					DevLogin:           settings.DevAuth,
				},
			})
			if err != nil {
				return err
			}
			server.StartWebhooks(cmd.Context(), e, logger, 0)

			srv := &http.Server{Addr: settings.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
			logger.Info("serving townbox API",
				slog.String("addr", "http://"+settings.Addr+settings.BasePath),
				slog.String("docs", "/docs"),
				slog.String("metrics", "/metrics"))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

// withRawEngine opens the workspace DB without resolving a tenant.
func withRawEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	e, err := engine.New(conn, nil)
	if err != nil {
		return err
	}
	logger, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	e.Logger = logger
	return fn(ctx, e)
}

// withEngine resolves the active tenant and pins its config on the engine.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRawEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		tctx, cfg, err := app.ResolveTenantAndConfig(ctx, viper.GetString("workspace"), viper.GetString("tenant"), viper.GetString("actor-id"), e)
		if err != nil {
			return err
		}
		e.Config = cfg
		return fn(tctx, e)
	})
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
