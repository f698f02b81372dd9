package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aidin1998/pincex_sim/api"
	"github.com/Aidin1998/pincex_sim/internal/config"
	"github.com/Aidin1998/pincex_sim/internal/marketdata"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/bots"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/factory"
	redisclient "github.com/Aidin1998/pincex_sim/internal/redis"
	"github.com/Aidin1998/pincex_sim/internal/scenario"
	"github.com/Aidin1998/pincex_sim/internal/simulation"
	"github.com/Aidin1998/pincex_sim/internal/simulation/latency"
	"github.com/Aidin1998/pincex_sim/internal/trading/engine"
	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/messaging"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/Aidin1998/pincex_sim/internal/ws"
	"github.com/Aidin1998/pincex_sim/pkg/logger"
	"github.com/Aidin1998/pincex_sim/pkg/telemetry"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/matchsim.yaml", "path to the configuration file")
	scenarioPath := flag.String("scenario", "", "optional YAML file listing bots to deploy at start")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfgManager := config.NewManager(nil)
	cfg, err := cfgManager.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, level, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfgManager, cfg, *scenarioPath, zapLogger, level); err != nil {
		zapLogger.Error("Simulator exited with error", zap.Error(err))
		zapLogger.Sync()
		os.Exit(1)
	}
	zapLogger.Info("Simulator exited properly")
}

func run(ctx context.Context, cfgManager *config.Manager, cfg *config.Config, scenarioPath string, zapLogger *zap.Logger, level zap.AtomicLevel) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Tracing:     cfg.Tracing.Enabled,
		Metrics:     cfg.Tracing.Metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			zapLogger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	instrument := model.NewInstrument(cfg.Instrument.Symbol, decimal.NewFromFloat(cfg.Instrument.TickSize))
	referencePrice, err := instrument.RoundToTicks(decimal.NewFromFloat(cfg.Simulation.ReferencePrice))
	if err != nil {
		return err
	}
	book, err := orderbook.New(orderbook.Options{
		Index:            cfg.OrderBook.Index,
		Degree:           cfg.OrderBook.Degree,
		MaxSnapshotDepth: cfg.OrderBook.MaxSnapshotDepth,
	})
	if err != nil {
		return err
	}

	bus := events.NewInMemoryEventBus(zapLogger.Named("events"))
	eng := engine.New(zapLogger.Named("engine"), book, bus, engine.WithHistorySize(cfg.OrderBook.HistorySize))
	lat := latency.New(latency.Config{
		Min:  cfg.Latency.Min,
		Max:  cfg.Latency.Max,
		Seed: cfg.Latency.Seed,
	}, zapLogger.Named("latency"))

	strategies := factory.NewStrategyFactory()
	mgr := bots.NewManager(zapLogger.Named("bots"), bots.Config{
		Capacity:       cfg.Bots.Capacity,
		CancelOnRemove: cfg.Bots.CancelOnRemove,
		Seed:           cfg.Bots.Seed,
	}, strategies, eng, lat, bus)

	sim := simulation.New(zapLogger.Named("simulation"), simulation.Config{
		TickInterval:   cfg.Simulation.TickInterval,
		Speed:          cfg.Simulation.Speed,
		MaxSteps:       cfg.Simulation.MaxSteps,
		ReferencePrice: referencePrice,
		Volatility:     cfg.Simulation.Volatility,
		Seed:           cfg.Simulation.Seed,
		SnapshotDepth:  cfg.Simulation.SnapshotDepth,
	}, eng, lat, mgr)

	if scenarioPath != "" {
		entries, err := scenario.Load(scenarioPath)
		if err != nil {
			return err
		}
		var deployed int
		err = sim.Exec(ctx, func() error {
			ids, err := scenario.Apply(ctx, mgr, entries)
			deployed = len(ids)
			return err
		})
		if err != nil {
			return err
		}
		zapLogger.Info("Scenario deployed", zap.String("path", scenarioPath), zap.Int("bots", deployed))
	}

	cfgManager.OnReload(func(_, next *config.Config) {
		level.SetLevel(logger.ParseLevel(next.Log.Level))
		zapLogger.Info("Log level updated", zap.String("level", next.Log.Level))
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return cfgManager.Watch(ctx) })

	var hub *ws.Hub
	if cfg.Server.Enabled {
		hub = ws.NewHub(zapLogger.Named("ws"), cfg.Server.WSBuffer, 0)
		hub.Attach(bus)
		g.Go(func() error { return hub.Run(ctx) })
	}

	if cfg.Kafka.Enabled {
		kcfg := messaging.DefaultKafkaConfig()
		kcfg.Brokers = cfg.Kafka.Brokers
		kcfg.Topic = cfg.Kafka.Topic
		kcfg.Compression = cfg.Kafka.Compression
		kcfg.BatchSize = cfg.Kafka.BatchSize
		kcfg.BatchTimeout = cfg.Kafka.BatchTimeout
		kcfg.Buffer = cfg.Kafka.Buffer
		sink := messaging.NewKafkaSink(messaging.NewWriter(kcfg), kcfg, zapLogger.Named("kafka"))
		sink.Attach(bus)
		g.Go(func() error { return sink.Run(ctx) })
	}

	if cfg.Redis.Enabled {
		rcfg := redisclient.DefaultConfig()
		rcfg.Addr = cfg.Redis.Addr
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		client, err := redisclient.NewClient(ctx, rcfg, zapLogger.Named("redis"))
		if err != nil {
			return err
		}
		defer client.Close()
		publisher := marketdata.NewPublisher(marketdata.NewRedisBackend(client), instrument.Symbol,
			cfg.Redis.Prefix, cfg.Redis.TTL, cfg.Redis.Buffer, zapLogger.Named("marketdata"))
		publisher.Attach(bus)
		sim.OnStep(publisher.OnFrame)
		g.Go(func() error { return publisher.Run(ctx) })
	}

	if cfg.Server.Enabled {
		server := api.NewServer(zapLogger.Named("api"), sim, strategies, instrument, hub, api.Options{
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			ServiceName:     cfg.Tracing.ServiceName,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			RateLimit:       cfg.Server.RateLimit,
			RateBurst:       cfg.Server.RateBurst,
		})
		g.Go(func() error { return server.Run(ctx, cfg.Server.Address) })
	}

	g.Go(func() error {
		if err := sim.Run(ctx); err != nil {
			return err
		}
		var botCount int
		_ = sim.Exec(context.Background(), func() error {
			botCount = mgr.Len()
			return nil
		})
		stats := eng.Stats()
		zapLogger.Info("Simulation finished",
			zap.Uint64("steps", sim.Steps()),
			zap.Int64("trades", stats.TradesExecuted),
			zap.Int("bots", botCount))
		// The API keeps serving the final book; without it there is nothing left to do.
		if !cfg.Server.Enabled {
			cancel()
		}
		return nil
	})

	return g.Wait()
}
