// Command krakenws subscribes to the configured Kraken WebSocket v2 channels
// and logs every decoded message until interrupted. Configured sinks receive
// a copy of each feed message.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachpo/krakenws/internal/config"
	"github.com/coachpo/krakenws/internal/observability"
	"github.com/coachpo/krakenws/internal/router"
	"github.com/coachpo/krakenws/internal/session"
	"github.com/coachpo/krakenws/internal/sink"
	"github.com/coachpo/krakenws/internal/telemetry"
	"github.com/coachpo/krakenws/internal/wire"
)

const (
	defaultConfigPath        = "config/krakenws.yaml"
	defaultEnvPath           = ".env"
	shutdownTimeout          = 15 * time.Second
	unsubscribeTimeout       = 5 * time.Second
	sessionShutdownTimeout   = 5 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	sinkShutdownTimeout      = 5 * time.Second
)

func main() {
	cfgPath, envPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	if err := config.LoadEnvFile(envPath); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg, err := config.LoadOrDefault(ctx, cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	stdLogger := log.New(os.Stdout, cfg.Logging.Prefix, log.LstdFlags|log.Lmicroseconds)
	logger, syncLogger, err := newLogger(cfg.Logging, stdLogger)
	if err != nil {
		stdLogger.Fatalf("initialise logger: %v", err)
	}
	defer syncLogger()
	observability.SetLogger(logger)
	logger.Info("configuration initialised",
		observability.Field{Key: "env", Value: cfg.Environment},
		observability.Field{Key: "endpoint", Value: cfg.Connection.Endpoint},
		observability.Field{Key: "subscriptions", Value: len(cfg.Subscriptions)})

	provider, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		stdLogger.Fatalf("initialise telemetry: %v", err)
	}

	fanout, err := newFanout(ctx, cfg.Sinks, logger)
	if err != nil {
		stdLogger.Fatalf("initialise sinks: %v", err)
	}

	r := router.New(router.WithMeter(provider.Meter("krakenws.router")))
	registerFeedHandlers(r, logger, fanout)

	sess := session.New(cfg.Connection, r,
		session.WithMeter(provider.Meter("krakenws.session")),
		session.OnConnect(subscribeAll(cfg.Subscriptions, logger)))
	// The connection outlives the signal so shutdown can still unsubscribe.
	if err := sess.Start(context.WithoutCancel(ctx)); err != nil {
		stdLogger.Fatalf("start session: %v", err)
	}

	logger.Info("watching feeds; awaiting shutdown signal")
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-sess.Done():
		logger.Error("session stopped", observability.Field{Key: "error", Value: sess.Err()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	start := time.Now()
	if err := shutdown(shutdownCtx, logger, cfg.Subscriptions, sess, r, fanout, provider); err != nil {
		logger.Error("shutdown", observability.Field{Key: "error", Value: err})
	}
	logger.Info("shutdown completed", observability.Field{Key: "elapsed", Value: time.Since(start)})
}

func parseFlags() (string, string) {
	cfgPath := flag.String("config", defaultConfigPath, "Path to krakenws configuration file")
	envPath := flag.String("env", defaultEnvPath, "Optional dotenv file holding session tokens")
	flag.Parse()
	return *cfgPath, *envPath
}

// newLogger picks the backend for cfg.Format. The returned func flushes it.
func newLogger(cfg config.LoggingConfig, std *log.Logger) (observability.Logger, func(), error) {
	if cfg.Format != config.LogFormatJSON {
		return observability.NewStdLogger(std, cfg.Debug), func() {}, nil
	}
	zl, err := observability.NewJSONLogger(cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	return zl, func() { _ = zl.Sync() }, nil
}

// newFanout connects every configured sink. It returns nil when none is set.
func newFanout(ctx context.Context, cfg config.SinkConfig, logger observability.Logger) (*sink.Fanout, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	var pubs []sink.Publisher
	if cfg.Redis != nil {
		rp, err := sink.NewRedisPublisher(ctx, *cfg.Redis)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, rp)
		logger.Info("redis sink ready", observability.Field{Key: "addr", Value: cfg.Redis.Addr})
	}
	if cfg.Kafka != nil {
		pubs = append(pubs, sink.NewKafkaPublisher(*cfg.Kafka))
		logger.Info("kafka sink ready",
			observability.Field{Key: "brokers", Value: cfg.Kafka.Brokers},
			observability.Field{Key: "topic", Value: cfg.Kafka.Topic})
	}
	return sink.NewFanout(cfg.QueueSize, logger, pubs...), nil
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func initTelemetry(ctx context.Context, logger observability.Logger, cfg config.AppConfig) (*telemetry.Provider, error) {
	telemetryCfg := cfg.TelemetrySettings(telemetry.DefaultConfig())
	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if telemetryCfg.Enabled {
		logger.Info("telemetry initialised",
			observability.Field{Key: "endpoint", Value: telemetryCfg.OTLPEndpoint},
			observability.Field{Key: "service", Value: telemetryCfg.ServiceName})
	} else {
		logger.Info("telemetry disabled")
	}
	return provider, nil
}

// subscribeAll sends every configured subscription on each (re)connect.
func subscribeAll(subs []config.SubscriptionConfig, logger observability.Logger) session.ConnectHook {
	return func(ctx context.Context, s *session.Session) error {
		var failures []error
		for _, sub := range subs {
			params, err := sub.Params()
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", sub.Channel, err))
				continue
			}
			reply, err := s.Subscribe(ctx, params)
			if err != nil {
				failures = append(failures, fmt.Errorf("subscribe %s: %w", sub.Channel, err))
				continue
			}
			logger.Info("subscribed",
				observability.Field{Key: "channel", Value: sub.Channel},
				observability.Field{Key: "symbols", Value: sub.Symbols},
				observability.Field{Key: "req_id", Value: reply.ReqID})
		}
		return observability.Aggregate("subscribe", failures)
	}
}

// registerFeedHandlers logs every feed message and forwards it to fanout
// when sinks are configured.
func registerFeedHandlers(r *router.Router, logger observability.Logger, fanout *sink.Fanout) {
	r.OnChannel(wire.ChannelHeartbeat, func(context.Context, wire.ChannelMessage) {
		logger.Debug("heartbeat")
	})
	r.OnUnhandled(func(ctx context.Context, msg wire.ChannelMessage) {
		logger.Info("feed",
			observability.Field{Key: "channel", Value: msg.Channel()},
			observability.Field{Key: "message", Value: fmt.Sprintf("%+v", msg)})
		if fanout != nil {
			fanout.Handle(ctx, msg)
		}
	})
}

func shutdown(ctx context.Context, logger observability.Logger, subs []config.SubscriptionConfig, sess *session.Session, r *router.Router, fanout *sink.Fanout, provider *telemetry.Provider) error {
	var failures []error
	step := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Info("shutdown: " + name)
		if err := fn(stepCtx); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("unsubscribing", unsubscribeTimeout, func(stepCtx context.Context) error {
		var errs []error
		for _, sub := range subs {
			params, err := sub.UnsubscribeParams()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if _, err := sess.Unsubscribe(stepCtx, params); err != nil && !errors.Is(err, session.ErrNotConnected) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	step("closing session", sessionShutdownTimeout, sess.Close)
	r.Close()
	if fanout != nil {
		step("closing sinks", sinkShutdownTimeout, fanout.Close)
	}
	step("flushing telemetry", telemetryShutdownTimeout, provider.Shutdown)

	return observability.Aggregate("shutdown", failures)
}
