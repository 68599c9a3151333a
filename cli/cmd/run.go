package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/snapfeed/camera"
	"github.com/justapithecus/snapfeed/cli/config"
	"github.com/justapithecus/snapfeed/log"
	"github.com/justapithecus/snapfeed/metrics"
	"github.com/justapithecus/snapfeed/policy"
	"github.com/justapithecus/snapfeed/runtime"
	"github.com/justapithecus/snapfeed/status"
)

// Exit codes. A clean shutdown on SIGINT/SIGTERM exits 0.
const (
	exitSetupFailure = 1 // camera, adapter or archive could not be opened
	exitConfigError  = 2 // invalid config or mode; the loop never started
)

// RunCommand returns the run command, the agent's only long-running entrypoint.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Capture frames and deliver them until interrupted",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:    "mode",
				Usage:   "Transport mode: HTTP or MQTT (prompted for when unset)",
				EnvVars: []string{"SNAPFEED_MODE"},
			},
			&cli.StringFlag{
				Name:    "device-id",
				Usage:   "Device identifier (default: random UUID)",
				EnvVars: []string{"SNAPFEED_DEVICE_ID"},
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Pause between iterations (default 3s)",
			},
			&cli.Int64Flag{
				Name:  "memory-limit",
				Usage: "Heap budget in bytes; 0 disables the memory guard",
			},
			// Account flags
			&cli.StringFlag{
				Name:    "username",
				Usage:   "Telemetry account username",
				EnvVars: []string{"AIO_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "Telemetry account key",
				EnvVars: []string{"AIO_KEY"},
			},
			// Camera flags
			&cli.StringFlag{
				Name:  "camera-driver",
				Usage: "Frame source: command or dir",
			},
			&cli.StringFlag{
				Name:  "camera-dir",
				Usage: "Frame directory for the dir driver",
			},
			&cli.DurationFlag{
				Name:  "camera-timeout",
				Usage: "Per-capture timeout for the command driver",
			},
			// HTTP flags
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Upload service base URL",
			},
			&cli.StringFlag{
				Name:  "feed",
				Usage: "Upload feed key (default img)",
			},
			// Publish flags
			&cli.StringFlag{
				Name:  "broker",
				Usage: "Publish broker: mqtt or redis",
			},
			&cli.StringFlag{
				Name:  "publish-url",
				Usage: "Broker URL (mqtt: tcp://host:port, redis: redis://host:port/db)",
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "Publish topic/channel (default <username>/feeds/img)",
			},
			&cli.IntFlag{
				Name:  "qos",
				Usage: "MQTT publish QoS (0, 1 or 2)",
			},
			// Archive flags
			&cli.StringFlag{
				Name:  "archive-backend",
				Usage: "Frame archive backend: fs or s3 (default disabled)",
			},
			&cli.StringFlag{
				Name:  "archive-path",
				Usage: "Archive path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "archive-region",
				Usage: "AWS region for the s3 archive (optional, uses default chain)",
			},
			// Status and reporting
			&cli.StringFlag{
				Name:  "status-listen",
				Usage: "Serve /healthz and /stats on this address (e.g. :8080)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON session report at shutdown (path, or - for stderr)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	mode, err := resolveMode(c.String("mode"), cfg.Mode, func() (string, error) {
		return promptMode(c.App.Reader, c.App.Writer)
	})
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	eff := cfg.Effective()
	if err := requireTransport(mode, eff); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	sizer, err := policy.NewManager(eff.Sizing.Policy())
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	deviceID := eff.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	logger := log.NewLogger(log.Identity{DeviceID: deviceID, Mode: mode.String()})
	defer func() { _ = logger.Sync() }()

	// Set up context with signal handling
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutdown requested", map[string]any{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	source, err := camera.New(camera.Config{
		Driver:  camera.Driver(eff.Camera.Driver),
		Command: eff.Camera.Command,
		Dir:     eff.Camera.Dir,
		Timeout: eff.Camera.Timeout.Duration,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("camera: %v", err), exitSetupFailure)
	}
	defer func() { _ = source.Close() }()

	ad, adapterName, err := buildAdapter(ctx, mode, eff, deviceID, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), exitSetupFailure)
	}
	defer func() { _ = ad.Close() }()

	archive, err := buildArchive(ctx, eff.Archive, deviceID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("archive: %v", err), exitSetupFailure)
	}

	collector := metrics.NewCollector(deviceID, mode.String(), adapterName)

	loop, err := runtime.New(runtime.Config{
		Sizer:       sizer,
		Source:      source,
		Adapter:     ad,
		Archive:     archive,
		Mode:        mode,
		Interval:    eff.Interval.Duration,
		MemoryLimit: uint64(eff.MemoryLimit),
		Logger:      logger,
		Collector:   collector,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	statusDone := make(chan struct{})
	if eff.Status.Listen != "" {
		srv, err := status.NewServer(status.Config{
			Listen:    eff.Status.Listen,
			Mode:      mode,
			Sizer:     sizer,
			Collector: collector,
		})
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		go func() {
			defer close(statusDone)
			if err := srv.Serve(ctx); err != nil {
				logger.Error("status server failed", map[string]any{"error": err.Error()})
			}
		}()
	} else {
		close(statusDone)
	}

	logger.Info("snapfeed started", map[string]any{
		"version":  c.App.Version,
		"adapter":  adapterName,
		"camera":   eff.Camera.Driver,
		"archive":  eff.Archive.Backend,
		"interval": eff.Interval.Duration.String(),
	})

	startedAt := time.Now()
	_ = loop.Run(ctx)
	duration := time.Since(startedAt)

	cancel()
	<-statusDone

	snap := collector.Snapshot()
	logger.Info("snapfeed stopped", map[string]any{
		"iterations":         snap.Iterations,
		"frames_captured":    snap.FramesCaptured,
		"delivered":          snap.Delivered,
		"transport_failures": snap.TransportFailures,
		"captures_oom":       snap.CapturesOOM,
		"buffer_size":        sizer.Size(),
		"duration":           duration.Round(time.Millisecond).String(),
	})

	if path := c.String("report"); path != "" {
		report := runtime.BuildSessionReport(snap, sizer, startedAt, duration)
		if err := runtime.WriteSessionReport(report, path); err != nil {
			logger.Warn("failed to write session report", map[string]any{"error": err.Error()})
		}
	}

	return nil
}

// applyFlags overlays explicitly set flags (or their env vars) onto cfg.
func applyFlags(c *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setDuration := func(name string, dst *config.Duration) {
		if c.IsSet(name) {
			dst.Duration = c.Duration(name)
		}
	}

	setString("device-id", &cfg.DeviceID)
	setDuration("interval", &cfg.Interval)
	if c.IsSet("memory-limit") {
		cfg.MemoryLimit = c.Int64("memory-limit")
	}

	setString("username", &cfg.Account.Username)
	setString("key", &cfg.Account.Key)

	setString("camera-driver", &cfg.Camera.Driver)
	setString("camera-dir", &cfg.Camera.Dir)
	setDuration("camera-timeout", &cfg.Camera.Timeout)

	setString("base-url", &cfg.HTTP.BaseURL)
	setString("feed", &cfg.HTTP.Feed)

	setString("broker", &cfg.Publish.Broker)
	setString("publish-url", &cfg.Publish.URL)
	setString("topic", &cfg.Publish.Topic)
	if c.IsSet("qos") {
		cfg.Publish.QoS = c.Int("qos")
	}

	setString("archive-backend", &cfg.Archive.Backend)
	setString("archive-path", &cfg.Archive.Path)
	setString("archive-region", &cfg.Archive.Region)

	setString("status-listen", &cfg.Status.Listen)
}
