package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"autohedger-go/config"
	"autohedger-go/engine"
	"autohedger-go/logger"
	"autohedger-go/market"
	"autohedger-go/sim"
)

// replay runs a recorded JSONL feed through the trading engine against the
// in-process exchange and prints a session summary. Useful for vetting
// parameter changes against captured market data before deploying them.
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	eventsPath := flag.String("events", "", "JSONL event capture to replay (default stdin)")
	feePerLot := flag.Int64("feePerLot", 0, "simulated fee per filled lot in cents, negative for a rebate")
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

	in := os.Stdin
	if *eventsPath != "" {
		f, err := os.Open(*eventsPath)
		if err != nil {
			zlog.Fatal("open events", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	ex := sim.NewExchange(market.Instrument(cfg.Trader.QuotedInstrument), zlog)
	ex.FeePerLot = *feePerLot
	trader, err := engine.New(engine.Config{
		QuotedInstrument: market.Instrument(cfg.Trader.QuotedInstrument),
		HedgeInstrument:  market.Instrument(cfg.Trader.HedgeInstrument),
		PositionLimit:    cfg.Trader.PositionLimit,
		TickSize:         cfg.Trader.TickSize,
		MaxUnhedgedLots:  cfg.Trader.MaxUnhedgedLots,
		UnhedgedGrace:    cfg.Trader.Grace(),
		MinimumBid:       cfg.Trader.MinimumBid,
		MaximumAsk:       cfg.Trader.MaximumAsk,
	}, ex, zlog)
	if err != nil {
		zlog.Fatal("invalid trading config", zap.Error(err))
	}

	runner := &sim.Runner{Exchange: ex, Trader: trader, Log: zlog}
	summary, err := runner.Replay(in)
	if err != nil {
		zlog.Fatal("replay failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		zlog.Fatal("encode summary", zap.Error(err))
	}
	os.Stdout.Write(append(out, '\n'))
}
