// Command relay-controller drives an 8-channel relay board from LoRa downlinks
// bridged over MQTT and reports relay state back upstream.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sweeney/relay-controller/internal/config"
	"github.com/sweeney/relay-controller/internal/controller"
	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/link"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/status"
	"github.com/sweeney/relay-controller/internal/web"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitReset tells the supervisor the operator asked for a restart.
const exitReset = 3

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, controller.ErrReset) {
			log.Printf("exiting for restart")
			os.Exit(exitReset)
		}
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "relay-controller",
		Short: "LoRa relay controller daemon",
		Long: `relay-controller switches relays on downlink commands received through an
MQTT bridge, expires timed relays locally and reports relay state upstream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, os.Getenv, cmd.Flags())
			if err != nil {
				return err
			}
			closeLog := setupLogging(cfg.Log)
			defer closeLog()
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	config.AddFlags(cmd.Flags())

	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay-controller %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// setupLogging adds a rotated log file next to stderr when configured.
func setupLogging(cfg config.LogConfig) func() {
	if cfg.File == "" {
		return func() {}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return func() {
		log.SetOutput(os.Stderr)
		lj.Close()
	}
}

func run(cfg *config.Config) error {
	// Request lines at the de-energized level before the bank takes over
	out, err := gpio.NewRealOutput(cfg.Relays.Chip, cfg.Relays.Pins, relay.OffLevel(cfg.Relays.ActiveLow))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer out.Close()
	bank := relay.NewBank(out, cfg.Relays.ActiveLow)

	transport := link.NewMQTT(link.MQTTConfig{
		Broker:         cfg.Link.Broker,
		ClientID:       cfg.Link.ClientID,
		Username:       cfg.Link.Username,
		Password:       cfg.Link.Password,
		TopicPrefix:    cfg.Link.TopicPrefix,
		ConnectTimeout: cfg.Link.ConnectTimeout,
		SendTimeout:    cfg.Link.SendTimeout,
		EventBuffer:    cfg.Link.EventBuffer,
	})

	ws := resolveWSBroker(cfg.HTTP.WSBroker, cfg.Link.Broker)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:           cfg.Loop.Tick.Milliseconds(),
		StatusIntervalMs: cfg.Status.Interval.Milliseconds(),
		JoinRetryMs:      cfg.Loop.JoinRetry.Milliseconds(),
		Broker:           cfg.Link.Broker,
		TopicPrefix:      cfg.Link.TopicPrefix,
		StatusPort:       cfg.Status.Port,
		ActiveLow:        cfg.Relays.ActiveLow,
		HTTPPort:         cfg.HTTP.Addr,
		WSBroker:         ws,
	})
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	ctrl := controller.New(controller.Config{
		StatusInterval: cfg.Status.Interval,
		StatusRetry:    cfg.Status.Retry,
		StatusPort:     cfg.Status.Port,
		Confirmed:      cfg.Status.Confirmed,
		JoinRetry:      cfg.Loop.JoinRetry,
		SendTimeout:    cfg.Link.SendTimeout,
	}, bank, transport, tracker, os.Stdout)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: tick=%v broker=%s status=%v active_low=%v", cfg.Loop.Tick, cfg.Link.Broker, cfg.Status.Interval, cfg.Relays.ActiveLow)

	ticker := time.NewTicker(cfg.Loop.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctrl.Start(time.Now())
	return runLoop(ctrl, time.Now, ticker.C, readLines(os.Stdin), sigCh)
}

// runLoop is the single control loop. Each tick handles at most one console
// line and then steps the controller.
func runLoop(ctrl *controller.Controller, now func() time.Time, tick <-chan time.Time, lines <-chan string, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			ctrl.Shutdown(now())
			return nil

		case <-tick:
			t := now()

			select {
			case line, ok := <-lines:
				if !ok {
					// Console closed; stop polling it
					lines = nil
					break
				}
				if err := ctrl.HandleLine(line, t); err != nil {
					log.Printf("console: %v", err)
					ctrl.Shutdown(t)
					return err
				}
			default:
			}

			ctrl.Step(t)
		}
	}
}

// readLines forwards lines from r until EOF, then closes the channel.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			log.Printf("console: read error: %v", err)
		}
	}()
	return lines
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
