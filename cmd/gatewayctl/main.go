// Command gatewayctl inspects a running gatewayd: it reads the retained
// device roster off the broker and queries the local audit log, both
// without holding any gateway state of its own.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/twinsync/gateway/pkg/audit"
	"github.com/twinsync/gateway/pkg/cli"
	"github.com/twinsync/gateway/pkg/config"
	"github.com/twinsync/gateway/pkg/mqttfacade"
	"github.com/twinsync/gateway/pkg/version"
)

// App holds CLI state shared across gatewayctl's commands.
type App struct {
	configPath string
	jsonOutput bool

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
	Use:           "gatewayctl",
	Short:         "Inspect a TwinSync edge gateway",
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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", config.DefaultConfigPath, "Path to gateway.yaml")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "Output JSON instead of a table")

	rootCmd.AddCommand(rosterCmd, auditCmd, versionCmd)
}

// rosterDocument mirrors the retained wire shape roster.Roster publishes,
// decoded here independently since gatewayctl never imports gateway state.
type rosterDocument struct {
	Ts        int64               `json:"ts"`
	TenantID  string              `json:"tenantId"`
	GatewayID string              `json:"gatewayId"`
	Devices   []rosterDeviceEntry `json:"devices"`
}

type rosterDeviceEntry struct {
	DeviceID       string `json:"deviceId"`
	DeviceType     string `json:"deviceType"`
	DisplayName    string `json:"displayName"`
	Status         string `json:"status"`
	ConnectionType string `json:"connectionType"`
	LastDataMs     *int64 `json:"lastDataMs,omitempty"`
}

var rosterTimeout time.Duration

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Show the gateway's retained device roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		b := app.cfg.Broker
		facade := mqttfacade.New()
		if err := facade.Connect(b.Host, b.Port, "", b.ClientCertPath, b.ClientKeyPath, b.CACertPath); err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer facade.Disconnect()

		topic := "twinsync/" + app.cfg.TenantID + "/" + app.cfg.GatewayID + "/devices"

		received := make(chan []byte, 1)
		facade.AddHandler(func(t string, payload []byte) {
			if t == topic {
				select {
				case received <- payload:
				default:
				}
			}
		})
		if err := facade.Subscribe(topic, 1); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}

		select {
		case payload := <-received:
			return printRoster(payload)
		case <-time.After(rosterTimeout):
			return fmt.Errorf("timed out waiting for a retained roster message on %s", topic)
		}
	},
}

func printRoster(payload []byte) error {
	var doc rosterDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decoding roster message: %w", err)
	}

	if app.jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(doc)
	}

	fmt.Printf("Roster for %s/%s as of %s\n\n", doc.TenantID, doc.GatewayID,
		time.UnixMilli(doc.Ts).Format("2006-01-02 15:04:05"))

	t := cli.NewTable("DEVICE", "TYPE", "STATUS", "CONNECTION", "LAST DATA")
	for _, d := range doc.Devices {
		t.Row(d.DisplayName, d.DeviceType, formatStatus(d.Status), d.ConnectionType, formatLastData(d.LastDataMs))
	}
	t.Flush()
	return nil
}

func formatStatus(status string) string {
	switch status {
	case "streaming", "connected":
		return cli.Green(status)
	case "connecting":
		return cli.Yellow(status)
	case "faulted":
		return cli.Red(status)
	default:
		return status
	}
}

func formatLastData(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).Format("15:04:05.000")
}

var auditFilter audit.Filter

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the gateway's local audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := audit.NewFileLogger(app.cfg.GetAuditLogPath(), audit.RotationConfig{})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer logger.Close()

		events, err := logger.Query(auditFilter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		t := cli.NewTable("TIME", "DEVICE", "USER", "TYPE", "OK", "ERROR")
		for _, e := range events {
			ok := cli.Green("yes")
			if !e.Success {
				ok = cli.Red("no")
			}
			t.Row(e.Timestamp.Format("2006-01-02 15:04:05"), e.Device, e.User, string(e.Type), ok, e.Error)
		}
		t.Flush()
		return nil
	},
}

func init() {
	rosterCmd.Flags().DurationVar(&rosterTimeout, "timeout", 5*time.Second, "How long to wait for a retained roster message")

	auditCmd.Flags().StringVar(&auditFilter.Device, "device", "", "Filter by device key")
	auditCmd.Flags().StringVar(&auditFilter.User, "user", "", "Filter by user ID")
	auditCmd.Flags().StringVar((*string)(&auditFilter.Type), "type", "", "Filter by event type")
	auditCmd.Flags().IntVar(&auditFilter.Limit, "limit", 100, "Maximum events to return")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("gatewayctl dev build")
		} else {
			fmt.Printf("gatewayctl %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}
