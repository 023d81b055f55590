// Package app provides the entry point for the hostsim command-line
// application: a standalone process that embeds the bridge the same way
// a real content-editing host would, for manual exercise and demos.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcphost/bridge/pkg/activity"
	"github.com/mcphost/bridge/pkg/apikey"
	"github.com/mcphost/bridge/pkg/bridge"
	"github.com/mcphost/bridge/pkg/certs"
	"github.com/mcphost/bridge/pkg/config"
	"github.com/mcphost/bridge/pkg/instance"
	"github.com/mcphost/bridge/pkg/logger"
	"github.com/mcphost/bridge/pkg/metrics"
	"github.com/mcphost/bridge/pkg/registry"
	"github.com/mcphost/bridge/pkg/router"
	"github.com/mcphost/bridge/pkg/secrets"
	"github.com/mcphost/bridge/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:               "hostsim",
	DisableAutoGenTag: true,
	Short:             "Run a standalone demo of the embedded MCP bridge",
	Long: `hostsim runs the bridge the way a content-editing host would embed it:
a JSON-RPC front-end, a single-slot dispatcher, and a handful of example
tools, resources, and prompts standing in for the host's own scene and
asset APIs.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
}

// NewRootCmd creates the hostsim root command.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAPIKeyCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge's HTTP front-end",
		Long: `Start the bridge's HTTP(S) front-end, dispatcher, and demo registries.

The listening port follows the project-path clone heuristic: a project
path containing "_clone_N" offsets the configured base port by N+1, the
same convention the host uses to keep simultaneously open project clones
from colliding on a single port.`,
		RunE: runServe,
	}
	cmd.Flags().String("project-path", "", "Project path used to resolve the clone instance port")
	cmd.Flags().Bool("remote-access", false, "Bind the wildcard address instead of loopback only")
	cmd.Flags().Bool("tls", false, "Terminate TLS using a generated self-signed certificate")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := config.NewConfigStore()
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	cfg, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.VerboseLogging {
		logger.Initialize(true)
	}

	projectPath, _ := cmd.Flags().GetString("project-path")
	remoteAccess, _ := cmd.Flags().GetBool("remote-access")
	useTLS, _ := cmd.Flags().GetBool("tls")
	if remoteAccess {
		cfg.RemoteAccess = true
	}

	inst := instance.Resolve(projectPath, cfg.Port)
	logger.Infof("hostsim: resolved instance %s on port %d", inst.Label, inst.Port)

	secretStore := secrets.New(store)
	key, err := secretStore.GetAPIKey(ctx)
	if err != nil {
		key, err = apikey.Generate()
		if err != nil {
			return fmt.Errorf("generating api key: %w", err)
		}
		if err := secretStore.SetAPIKey(ctx, key); err != nil {
			logger.Warnf("hostsim: could not persist generated api key: %v", err)
		}
		logger.Infof("hostsim: generated new api key")
	}

	bindAddress := "127.0.0.1"
	if cfg.RemoteAccess {
		bindAddress = "0.0.0.0"
	}

	metricsReg := prometheus.NewRegistry()
	srvCfg := server.Config{
		BindAddress:    bindAddress,
		Port:           inst.Port,
		APIKey:         key,
		MetricsHandler: metrics.Handler(metricsReg),
	}
	if useTLS {
		dir, derr := os.UserConfigDir()
		if derr != nil {
			dir = "."
		}
		mgr := certs.NewManager(dir)
		certPEM, keyPEM, cerr := mgr.LoadOrGenerate()
		if cerr != nil {
			if cfg.RemoteAccess {
				return fmt.Errorf("remote access needs TLS, but certificate setup failed: %w", cerr)
			}
			logger.Warnf("hostsim: TLS requested but certificate setup failed, continuing over plain HTTP: %v", cerr)
		} else {
			srvCfg.CertPEM, srvCfg.KeyPEM = certPEM, keyPEM
		}
	}

	regs := registry.New()
	scene := newSceneState()
	registerSceneTools(regs, scene)
	registerSceneResources(regs, scene)
	registerScenePrompts(regs, scene)
	regs.MarkInitialized()

	rt := router.New(regs, router.ServerInfo{Name: "hostsim", Version: "0.1.0"})
	rt.SetVerboseLogging = func(verbose bool) { logger.Initialize(verbose) }

	activityLog := activity.New()
	d := bridge.New(rt, activityLog)
	d.SetMetrics(metrics.New(metricsReg))
	srv := server.New(srvCfg, d)

	go watchReloadSignal(ctx, d, regs, scene)

	logger.Infof("hostsim: serving on %s:%d (api key required: %t, tls: %t)",
		bindAddress, inst.Port, key != "", srvCfg.CertPEM != "")
	return srv.Run(ctx)
}

// watchReloadSignal is the admin-triggered registry rescan: SIGHUP
// interrupts any in-flight request, rebuilds the demo registries from
// scratch, and resumes intake. A real embedding host would trigger the
// same NotifyReload/Reset/MarkInitialized sequence from its own
// script-reload or tool-install event instead of a signal.
func watchReloadSignal(ctx context.Context, d *bridge.Dispatcher, regs *registry.Registries, scene *sceneState) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			logger.Infof("hostsim: SIGHUP received, rescanning registries")
			d.NotifyReload()
			regs.Reset()
			registerSceneTools(regs, scene)
			registerSceneResources(regs, scene)
			registerScenePrompts(regs, scene)
			regs.MarkInitialized()
			d.SetActive(true)
			logger.Infof("hostsim: registry rescan complete")
		}
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the demo registries as a table",
		Long:  "Builds the same demo registries serve would and renders their contents, without opening a listener.",
		RunE: func(_ *cobra.Command, _ []string) error {
			regs := registry.New()
			scene := newSceneState()
			registerSceneTools(regs, scene)
			registerSceneResources(regs, scene)
			registerScenePrompts(regs, scene)
			regs.MarkInitialized()
			return renderRegistryTable(regs)
		},
	}
}

func renderRegistryTable(regs *registry.Registries) error {
	tools := regs.Tools.List()
	if len(tools) == 0 {
		fmt.Println("No tools registered.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(tablewriter.WithHeader([]string{"Category", "Tool", "Description"}))
	for _, t := range tools {
		if err := table.Append([]string{t.Category, t.Name, t.Description}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	fmt.Printf("\n%d static resources, %d resource templates, %d prompts registered.\n",
		len(regs.Resources.ListStatic()), len(regs.Resources.ListTemplates()), len(regs.Prompts.List()))
	return nil
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Inspect or rotate the stored bearer API key",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print whether an API key is currently set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSecrets(cmd.Context(), func(ctx context.Context, s *secrets.Store) error {
				key, err := s.GetAPIKey(ctx)
				if err != nil {
					fmt.Println("no api key set")
					return nil
				}
				fmt.Printf("api key set (prefix %s...)\n", key[:minInt(len(key), 9)])
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rotate",
		Short: "Generate and store a new API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSecrets(cmd.Context(), func(ctx context.Context, s *secrets.Store) error {
				key, err := apikey.Generate()
				if err != nil {
					return fmt.Errorf("generating api key: %w", err)
				}
				if err := s.SetAPIKey(ctx, key); err != nil {
					return fmt.Errorf("storing api key: %w", err)
				}
				fmt.Println("rotated api key")
				return nil
			})
		},
	})
	return cmd
}

func withSecrets(ctx context.Context, fn func(context.Context, *secrets.Store) error) error {
	store, err := config.NewConfigStore()
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	return fn(ctx, secrets.New(store))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
