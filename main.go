package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/vbinode/cmd"
	"github.com/smazurov/vbinode/internal/api"
	"github.com/smazurov/vbinode/internal/config"
	"github.com/smazurov/vbinode/internal/events"
	"github.com/smazurov/vbinode/internal/led"
	"github.com/smazurov/vbinode/internal/logging"
	"github.com/smazurov/vbinode/internal/mdns"
	"github.com/smazurov/vbinode/internal/metrics/collectors"
	"github.com/smazurov/vbinode/internal/metrics/exporters"
	"github.com/smazurov/vbinode/internal/peer"
	"github.com/smazurov/vbinode/internal/store"
	"github.com/smazurov/vbinode/internal/supervisor"
	"github.com/smazurov/vbinode/internal/systemd"
	"github.com/smazurov/vbinode/internal/updater"
	"github.com/smazurov/vbinode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigins string `help:"Comma separated browser origins allowed to call the API, empty for any" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Hardware settings
	HardwareFile     string `help:"Hardware configuration file" default:"hardware.toml" toml:"hardware.config_file" env:"HARDWARE_CONFIG_FILE"`
	HardwareIO       string `help:"PCI I/O layer (sysfs, sim)" default:"sysfs" toml:"hardware.io" env:"HARDWARE_IO"`
	HardwareSimCards string `help:"Simulated cards file for --hardware-io sim" toml:"hardware.sim_cards" env:"HARDWARE_SIM_CARDS"`
	HardwareLockDir  string `help:"Directory for card lock files" default:"/run/vbinode" toml:"hardware.lock_dir" env:"HARDWARE_LOCK_DIR"`
	HardwareWatch    bool   `help:"Apply changes to the hardware file while running" default:"true" toml:"hardware.watch" env:"HARDWARE_WATCH"`

	// Peer coordination settings
	PeerEnabled      bool   `help:"Coordinate hardware ownership over NATS" default:"false" toml:"peer.enabled" env:"PEER_ENABLED"`
	PeerNATSURL      string `help:"NATS server URL" default:"nats://127.0.0.1:4222" toml:"peer.nats_url" env:"PEER_NATS_URL"`
	PeerNATSEmbedded bool   `help:"Run an embedded NATS server" default:"true" toml:"peer.nats_embedded" env:"PEER_NATS_EMBEDDED"`
	PeerNATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"peer.nats_port" env:"PEER_NATS_PORT"`
	PeerNodeName     string `help:"Node name in status messages" toml:"peer.node_name" env:"PEER_NODE_NAME"`

	// Discovery settings
	MDNSEnabled  bool   `help:"Advertise the node over mDNS" default:"true" toml:"mdns.enabled" env:"MDNS_ENABLED"`
	MDNSInstance string `help:"mDNS instance name" toml:"mdns.instance" env:"MDNS_INSTANCE"`

	// Observability settings
	ObsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`
	ObsSSEEnabled        bool `help:"Enable SSE" default:"true" toml:"obs.sse_enabled" env:"OBS_SSE_ENABLED"`

	// Update settings
	UpdateEnabled    bool   `help:"Allow self-update from GitHub releases" default:"true" toml:"update.enabled" env:"UPDATE_ENABLED"`
	UpdateRepository string `help:"GitHub repository for releases" default:"smazurov/vbinode" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool   `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDSysfs   string `help:"sysfs name of the status LED" toml:"features.led_sysfs_name" env:"FEATURES_LED_SYSFS_NAME"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAcq    string `help:"Acquisition logging level" default:"info" toml:"logging.acq" env:"LOGGING_ACQ"`
	LoggingHwdrv  string `help:"PCI I/O layer logging level" default:"info" toml:"logging.hwdrv" env:"LOGGING_HWDRV"`
	LoggingChips  string `help:"Chip driver logging level" default:"info" toml:"logging.chips" env:"LOGGING_CHIPS"`
	LoggingAPI    string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingPeer   string `help:"Peer coordination logging level" default:"info" toml:"logging.peer" env:"LOGGING_PEER"`
	LoggingObs    string `help:"Observability logging level" default:"info" toml:"logging.obs" env:"LOGGING_OBS"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"acq":        opts.LoggingAcq,
				"supervisor": opts.LoggingAcq,
				"hwdrv":      opts.LoggingHwdrv,
				"chips":      opts.LoggingChips,
				"api":        opts.LoggingAPI,
				"peer":       opts.LoggingPeer,
				"obs":        opts.LoggingObs,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		hw, err := cmd.NewHardware(cmd.HardwareOptions{
			IO:       opts.HardwareIO,
			SimCards: opts.HardwareSimCards,
			LockDir:  opts.HardwareLockDir,
		})
		if err != nil {
			logger.Error("Failed to set up hardware", "error", err)
			os.Exit(1)
		}

		hardwareStore := store.NewTOML(opts.HardwareFile)
		if loadErr := hardwareStore.Load(); loadErr != nil {
			logger.Warn("Failed to load hardware config, starting disabled", "path", opts.HardwareFile, "error", loadErr)
		}

		sup := supervisor.New(supervisor.Options{
			Controller: hw.Controller,
			Store:      hardwareStore,
			Bus:        eventBus,
			Logger:     logging.GetLogger("supervisor"),
		})

		var hardwareWatcher *config.Watcher[store.Hardware]
		if opts.HardwareWatch {
			hardwareWatcher = config.NewConfigWatcher(
				opts.HardwareFile,
				store.Decode,
				logging.GetLogger("config"),
				config.WithDebounce[store.Hardware](1500*time.Millisecond),
			)
			hardwareWatcher.OnReload(func(h store.Hardware) {
				logger.Info("Hardware file changed, applying", "path", opts.HardwareFile)
				sup.ApplyFile(h)
			})
		}

		// Initialize LED control if enabled
		var ledManager *led.Manager
		if opts.FeaturesLEDControl {
			logger.Info("LED control enabled, initializing")
			ledManager = led.NewManager(led.New(logger, opts.FeaturesLEDSysfs), eventBus, logger)
		}

		obsLogger := logging.GetLogger("obs")
		vbiCollector := collectors.NewVBICollector(hw.Buffer, obsLogger)
		var sseExporter *exporters.SSEExporter
		if opts.ObsSSEEnabled {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		nodeName := opts.PeerNodeName
		if nodeName == "" {
			nodeName = hostname()
		}

		var natsServer *peer.Server
		var peerBridge *peer.Bridge
		if opts.PeerEnabled && opts.PeerNATSEmbedded {
			natsServer = peer.NewServer(peer.ServerOptions{
				Port:   opts.PeerNATSPort,
				Name:   nodeName,
				Logger: logging.GetLogger("peer"),
			})
		}

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			CORSOrigins:  splitList(opts.CORSOrigins),
			Hardware:     sup,
			EventBus:     eventBus,
			LEDManager:   ledManager,
		}
		if opts.ObsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler(logging.GetLogger("obs"))
		}
		if opts.UpdateEnabled {
			updaterOpts := updater.Options{
				CurrentVersion:  version.String(),
				ReleaseHardware: sup.Stop,
				Logger:          logging.GetLogger("updater"),
			}
			if version.IsDev() {
				logger.Warn("Development build, every published release counts as newer")
			}
			source, srcErr := updater.NewGitHubSource(opts.UpdateRepository, version.String(), opts.UpdatePrerelease)
			if srcErr != nil {
				logger.Warn("Self-update unavailable", "error", srcErr)
			} else {
				updaterOpts.Source = source
			}
			apiOpts.Updater = updater.New(updaterOpts)
		}
		server := api.NewServer(apiOpts)

		notifier := systemd.NewNotifier(logger)
		var advertiser *mdns.Advertiser
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if ledManager != nil {
				ledManager.Start()
			}
			vbiCollector.Start(ctx)
			if sseExporter != nil {
				sseExporter.Start(ctx)
			}

			if opts.PeerEnabled {
				natsURL := opts.PeerNATSURL
				if natsServer != nil {
					if startErr := natsServer.Start(); startErr != nil {
						logger.Error("Failed to start embedded NATS server", "error", startErr)
						os.Exit(1)
					}
					natsURL = natsServer.ClientURL()
				}
				peerBridge = peer.NewBridge(natsURL, nodeName, sup, eventBus, logging.GetLogger("peer"))
				if startErr := peerBridge.Start(); startErr != nil {
					// the node works stand-alone without NATS
					logger.Warn("Peer coordination unavailable", "error", startErr)
				}
			}

			if initErr := sup.Init(); initErr != nil {
				logger.Warn("Acquisition not started", "error", initErr)
			}
			if hardwareWatcher != nil {
				if startErr := hardwareWatcher.Start(); startErr != nil {
					logger.Warn("Failed to watch hardware file", "path", opts.HardwareFile, "error", startErr)
				}
			}

			ln, listenErr := net.Listen("tcp", opts.Port)
			if listenErr != nil {
				logger.Error("Failed to start HTTP server", "error", listenErr)
				os.Exit(1)
			}

			if opts.MDNSEnabled {
				instance := opts.MDNSInstance
				if instance == "" {
					instance = nodeName
				}
				port := ln.Addr().(*net.TCPAddr).Port
				txt := map[string]string{"version": version.String(), "node": nodeName}
				a, advErr := mdns.Advertise(instance, port, txt, logging.GetLogger("mdns"))
				if advErr != nil {
					logger.Warn("mDNS advertisement failed", "error", advErr)
				} else {
					advertiser = a
					advertiser.SetState(string(sup.Status().State))
					advertiser.Watch(eventBus)
				}
			}

			notifier.Ready()
			go notifier.Watchdog(ctx)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if serveErr := server.Serve(ln); serveErr != nil {
				logger.Error("Failed to start HTTP server", "error", serveErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if stopErr := server.Stop(stopCtx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if advertiser != nil {
				advertiser.Shutdown()
			}
			if hardwareWatcher != nil {
				if stopErr := hardwareWatcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping hardware watcher", "error", stopErr)
				}
			}
			if peerBridge != nil {
				peerBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}

			// release the card before anything else goes away
			sup.Close()

			if sseExporter != nil {
				sseExporter.Stop()
			}
			vbiCollector.Stop()
			if ledManager != nil {
				ledManager.Stop()
			}
			cancel()
		})
	})

	cli.Root().Use = "vbinode"
	cli.Root().Version = version.Get().String()
	cli.Root().AddCommand(
		cmd.CreateScanCmd(),
		cmd.CreateCheckCmd(),
		cmd.CreateDiscoverCmd(),
		cmd.CreatePeerCmd(),
	)

	// Run the CLI
	cli.Run()
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "vbinode"
	}
	return name
}
