package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"autohedger-go/alert"
	"autohedger-go/config"
	"autohedger-go/engine"
	"autohedger-go/gateway"
	"autohedger-go/logger"
	"autohedger-go/market"
	"autohedger-go/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	dryRun := flag.Bool("dryRun", false, "log outbound commands instead of sending them")
	journalPath := flag.String("journal", "", "append inbound frames to this JSONL file for later replay")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	metrics.Serve(cfg.Metrics.Addr)

	alerts := alert.NewManager(cfg.Alerts.Throttle(), alert.NewLogChannel(zlog))
	if cfg.Alerts.WebhookURL != "" {
		alerts.AddChannel(alert.NewWebhookChannel(cfg.Alerts.WebhookURL))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchConfig(ctx, *cfgPath, zlog, alerts)
	go watchdogLoop(ctx)

	ecfg := engine.Config{
		QuotedInstrument: market.Instrument(cfg.Trader.QuotedInstrument),
		HedgeInstrument:  market.Instrument(cfg.Trader.HedgeInstrument),
		PositionLimit:    cfg.Trader.PositionLimit,
		TickSize:         cfg.Trader.TickSize,
		MaxUnhedgedLots:  cfg.Trader.MaxUnhedgedLots,
		UnhedgedGrace:    cfg.Trader.Grace(),
		MinimumBid:       cfg.Trader.MinimumBid,
		MaximumAsk:       cfg.Trader.MaximumAsk,
	}

	// One client for the life of the process: position survives reconnects.
	// The gateway indirection lets dry runs swap the transport out while
	// the engine state machine runs unchanged.
	client := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, zlog)
	client.Limiter = gateway.NewTokenBucketLimiter(cfg.Gateway.OutboundRate, cfg.Gateway.OutboundBurst)
	if *journalPath != "" {
		f, err := os.OpenFile(*journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			zlog.Fatal("open journal", zap.Error(err))
		}
		defer f.Close()
		client.Journal = f
	}
	var gw engine.Gateway = client
	if *dryRun {
		gw = dryRunGateway{log: zlog}
	}
	trader, err := engine.New(ecfg, gw, zlog)
	if err != nil {
		zlog.Fatal("invalid trading config", zap.Error(err))
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		zlog.Warn("sd_notify ready failed", zap.Error(err))
	}
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	backoff := time.Second
	for ctx.Err() == nil {
		if err := client.Connect(); err != nil {
			zlog.Error("connect failed", zap.Error(err), zap.Duration("retryIn", backoff))
			alerts.Error("gateway connect failed", map[string]any{"url": cfg.Gateway.URL, "error": err.Error()})
			if !sleepCtx(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
		zlog.Info("connected",
			zap.String("url", cfg.Gateway.URL),
			zap.String("quoted", cfg.Trader.QuotedInstrument),
			zap.String("hedge", cfg.Trader.HedgeInstrument),
			zap.Bool("dryRun", *dryRun))

		// The watcher goroutine only closes the connection to unblock the
		// read loop. All Trader calls stay on this goroutine.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				client.Close()
			case <-done:
			}
		}()

		err = client.Run(trader)
		close(done)
		client.Close()
		if ctx.Err() != nil {
			trader.CancelAll()
			break
		}
		zlog.Warn("session ended, reconnecting", zap.Error(err), zap.Duration("retryIn", backoff))
		alerts.Warning("execution session ended", map[string]any{
			"error":    err.Error(),
			"position": trader.Position(),
		})
		if !sleepCtx(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff)
	}
	zlog.Info("trader stopped")
}

// dryRunGateway logs every command instead of transmitting it. The engine
// still runs its full state machine, it just never trades.
type dryRunGateway struct {
	log *zap.Logger
}

func (g dryRunGateway) SubmitOrder(orderID uint64, side engine.Side, price, volume int64, lifespan engine.Lifespan) error {
	g.log.Info("dry-run insert",
		zap.Uint64("orderId", orderID),
		zap.String("side", side.String()),
		zap.Int64("price", price),
		zap.Int64("volume", volume),
		zap.String("lifespan", lifespan.String()))
	return nil
}

func (g dryRunGateway) CancelOrder(orderID uint64) error {
	g.log.Info("dry-run cancel", zap.Uint64("orderId", orderID))
	return nil
}

func (g dryRunGateway) SubmitHedgeOrder(orderID uint64, side engine.Side, price, volume int64) error {
	g.log.Info("dry-run hedge",
		zap.Uint64("orderId", orderID),
		zap.String("side", side.String()),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
	return nil
}

// watchConfig reloads the file on change. Trading parameters are fixed for
// the life of the session; a changed file is surfaced so the operator knows
// a restart is needed to apply it.
func watchConfig(ctx context.Context, path string, zlog *zap.Logger, alerts *alert.Manager) {
	w := config.Watcher{Path: path, Cooldown: 2 * time.Second, Log: zlog}
	err := w.Start(ctx, func(cfg config.AppConfig) {
		zlog.Warn("config file changed, restart to apply",
			zap.String("path", path),
			zap.String("quoted", cfg.Trader.QuotedInstrument))
		alerts.Info("config file changed, restart to apply", map[string]any{"path": path})
	})
	if err != nil && ctx.Err() == nil {
		zlog.Error("config watcher stopped", zap.Error(err))
	}
}

// watchdogLoop pings systemd at half the configured watchdog interval.
// No-op outside a systemd unit with WatchdogSec set.
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	const max = 30 * time.Second
	if d *= 2; d > max {
		return max
	}
	return d
}
