package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/snapfeed/adapter"
	"github.com/justapithecus/snapfeed/adapter/aio"
	"github.com/justapithecus/snapfeed/adapter/mqtt"
	"github.com/justapithecus/snapfeed/adapter/redis"
	"github.com/justapithecus/snapfeed/cli/config"
	"github.com/justapithecus/snapfeed/lode"
	"github.com/justapithecus/snapfeed/log"
	"github.com/justapithecus/snapfeed/types"
)

// requireTransport checks that the effective config carries what the
// chosen mode needs, so a missing credential is reported as a
// configuration error rather than a dial failure.
func requireTransport(mode types.TransportMode, cfg config.Config) error {
	switch mode {
	case types.ModeRequestUpload:
		if cfg.Account.Username == "" || cfg.Account.Key == "" {
			return errors.New("HTTP mode requires account.username and account.key")
		}
	case types.ModePublishMessage:
		if cfg.Publish.Topic == "" {
			return errors.New("MQTT mode requires account.username or publish.topic")
		}
		if cfg.Publish.Broker == config.BrokerRedis && cfg.Publish.URL == "" {
			return errors.New("redis broker requires publish.url")
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrInvalidMode, mode)
	}
	return nil
}

// buildAdapter creates the delivery adapter for mode. Sessions are
// established here, before the loop starts. Returns the adapter name for
// logs and metrics.
func buildAdapter(ctx context.Context, mode types.TransportMode, cfg config.Config, deviceID string, logger *log.Logger) (adapter.Adapter, string, error) {
	switch mode {
	case types.ModeRequestUpload:
		a, err := aio.New(aio.Config{
			Username: cfg.Account.Username,
			Key:      cfg.Account.Key,
			BaseURL:  cfg.HTTP.BaseURL,
			Feed:     cfg.HTTP.Feed,
			Timeout:  cfg.HTTP.Timeout.Duration,
			Retries:  cfg.HTTP.Retries,
		})
		if err != nil {
			return nil, "", err
		}
		logger.Info("upload adapter ready", map[string]any{"endpoint": a.Endpoint()})
		return a, "aio", nil

	case types.ModePublishMessage:
		if cfg.Publish.Broker == config.BrokerRedis {
			a, err := redis.New(redis.Config{
				URL:     cfg.Publish.URL,
				Channel: cfg.Publish.Topic,
				Timeout: cfg.Publish.Timeout.Duration,
				Retries: cfg.Publish.Retries,
			})
			if err != nil {
				return nil, "", err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := a.Ping(pingCtx); err != nil {
				_ = a.Close()
				return nil, "", err
			}
			logger.Info("redis adapter ready", map[string]any{"channel": cfg.Publish.Topic})
			return a, "redis", nil
		}

		clientID := cfg.Publish.ClientID
		if clientID == "" {
			clientID = "snapfeed-" + deviceID
		}
		a, err := mqtt.Dial(ctx, mqtt.Config{
			Broker:         cfg.Publish.URL,
			Username:       cfg.Account.Username,
			Password:       cfg.Account.Key,
			ClientID:       clientID,
			Topic:          cfg.Publish.Topic,
			QoS:            byte(cfg.Publish.QoS),
			PublishTimeout: cfg.Publish.Timeout.Duration,
			Logger:         logger,
		})
		if err != nil {
			return nil, "", err
		}
		logger.Info("mqtt adapter ready", map[string]any{"broker": cfg.Publish.URL, "topic": cfg.Publish.Topic})
		return a, "mqtt", nil

	default:
		return nil, "", fmt.Errorf("%w: %q", types.ErrInvalidMode, mode)
	}
}

// buildArchive creates the optional frame archive. Returns nil when the
// archive is disabled.
func buildArchive(ctx context.Context, cfg config.ArchiveConfig, deviceID string) (lode.Archive, error) {
	archiveCfg := lode.Config{DeviceID: deviceID}

	switch cfg.Backend {
	case "":
		return nil, nil
	case config.ArchiveFS:
		return lode.NewFSArchive(archiveCfg, cfg.Path)
	case config.ArchiveS3:
		bucket, prefix := lode.ParseS3Path(cfg.Path)
		return lode.NewS3Archive(ctx, archiveCfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
