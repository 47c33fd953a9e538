// Command gatewayd is the edge gateway daemon: it loads a fleet of robot
// and PLC device configurations, connects them to MQTT through the
// gateway's egress/ingress/roster machinery, and runs until terminated.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twinsync/gateway/pkg/audit"
	"github.com/twinsync/gateway/pkg/config"
	"github.com/twinsync/gateway/pkg/gateway"
	"github.com/twinsync/gateway/pkg/util"
	"github.com/twinsync/gateway/pkg/version"
)

// App holds CLI state shared across gatewayd's commands.
type App struct {
	configPath string
	verbose    bool

	cfg *config.GatewayConfig
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "gatewayd",
	Short:         "TwinSync edge gateway daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadFrom(app.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		app.cfg = cfg

		if app.verbose {
			_ = util.SetLogLevel("debug")
		} else {
			_ = util.SetLogLevel(cfg.LogLevel)
		}

		auditLogger, err := audit.NewFileLogger(cfg.GetAuditLogPath(), audit.RotationConfig{
			MaxSize:    int64(cfg.AuditMaxSizeMB) * 1024 * 1024,
			MaxBackups: cfg.AuditMaxBackups,
		})
		if err != nil {
			util.Warnf("could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", config.DefaultConfigPath, "Path to gateway.yaml")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose (debug) logging")

	rootCmd.AddCommand(runCmd, versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the broker and run every configured device session",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw := gateway.New(app.cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		util.Infof("gatewayd: starting gatewayId=%s tenantId=%s robots=%d plcs=%d",
			app.cfg.GatewayID, app.cfg.TenantID, len(app.cfg.Robots), len(app.cfg.Plcs))

		return gw.Run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("gatewayd dev build")
		} else {
			fmt.Printf("gatewayd %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}
