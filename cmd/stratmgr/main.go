package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"stratmgr/internal/bus"
	"stratmgr/internal/journal"
	"stratmgr/internal/lock"
	"stratmgr/internal/md"
	"stratmgr/internal/obs"
	"stratmgr/internal/ops"
	"stratmgr/internal/pricing"
	"stratmgr/internal/recon"
	"stratmgr/internal/recovery"
	"stratmgr/internal/schema"
	"stratmgr/internal/store"
	"stratmgr/internal/strat"
	"stratmgr/pkg/exception"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	configReload := flag.Duration("config-reload-interval", 30*time.Second, "Config reload interval (0=disable)")
	recoverFlag := flag.Bool("recover", false, "Force journal recovery on start")
	demoFlag := flag.Bool("demo", false, "Run the demo order flow and exit")
	flag.Parse()

	if err := run(*configPath, *configReload, *recoverFlag, *demoFlag); err != nil {
		logs.Errorf("stratmgr exited with error: %+v", err)
		os.Exit(1)
	}
}

func run(configPath string, configReload time.Duration, recoverForced, demo bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded, err := ops.Load(configPath)
	if err != nil {
		return err
	}
	cfg := loaded.File

	if cfg.Service.Pyroscope.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Service.Pyroscope.ApplicationName,
			ServerAddress:   cfg.Service.Pyroscope.ServerAddress,
			Tags:            map[string]string{"env": cfg.Service.Env},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	metrics := obs.NewMetrics()
	s, closeStore, err := store.New(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logs.Errorf("close store: %+v", err)
		}
	}()

	guard, err := lock.New(cfg.Lock)
	if err != nil {
		return err
	}

	books := md.NewCache()
	pricer := pricing.NewStatic(loaded.Registry)
	engine := recon.New(s, books, books, pricer, pricer, guard, recon.WithMetrics(metrics))
	manager := strat.NewManager(s, guard, strat.NewMemoryActivations(), metrics)
	engine.SetReady(true)

	replayCfg := journal.ReplayConfig{Dir: loaded.Journal.Dir, FilePrefix: loaded.Journal.FilePrefix}
	if recoverForced || cfg.Recover {
		result, err := recovery.Run(ctx, replayCfg, engine)
		switch {
		case errors.Is(err, exception.ErrStoreNotEmpty):
			logs.Info("journal recovery skipped: store already holds reconciled state")
		case err != nil:
			return err
		default:
			logs.Infof("recovered %d order events and %d fill events",
				result.OrderEvents, result.FillEvents)
		}
	}

	writer, err := journal.NewWriter(loaded.Journal)
	if err != nil {
		return err
	}
	if err := writer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logs.Errorf("close journal writer: %+v", err)
		}
	}()

	queue := bus.NewQueue(cfg.QueueSize)
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		queue.Run(ctx, &journalingHandler{engine: engine, writer: writer})
	}()

	if cfg.Service.MetricsAddr != "" {
		go serveMetrics(cfg.Service.MetricsAddr, metrics)
	}
	if configReload > 0 {
		go ops.Watch(ctx.Done(), configPath, configReload, func(l ops.Loaded) {
			// Only the security master is hot-reloadable; backends keep
			// their connections.
			pricer.SetRegistry(l.Registry)
		})
	}

	if demo {
		if err := runDemo(ctx, loaded, manager, books, queue, s); err != nil {
			return err
		}
		queue.Close()
		<-queueDone
		return nil
	}

	logs.Infof("stratmgr started (env=%s store=%s lock=%s)",
		cfg.Service.Env, cfg.Store.Backend, cfg.Lock.Type)
	<-sys.Shutdown()
	logs.Info("shutdown signal received")

	queue.Close()
	<-queueDone
	return nil
}

// journalingHandler persists every event to the journal before handing it
// to the engine, so a crash mid-cascade can replay it.
type journalingHandler struct {
	engine *recon.Engine
	writer *journal.Writer
}

func (h *journalingHandler) HandleOrderJournal(ctx context.Context, oj schema.OrderJournal) error {
	if err := h.writer.AppendOrder(oj); err != nil {
		return err
	}
	return h.engine.HandleOrderJournal(ctx, oj)
}

func (h *journalingHandler) HandleFillJournal(ctx context.Context, fj schema.FillJournal) error {
	if err := h.writer.AppendFill(fj); err != nil {
		return err
	}
	return h.engine.HandleFillJournal(ctx, fj)
}

func serveMetrics(addr string, metrics *obs.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logs.Errorf("metrics server: %+v", err)
	}
}

// runDemo activates a pair strat over the first two configured securities
// and pushes one order's NEW/ACK/fill sequence through the full pipeline.
func runDemo(ctx context.Context, loaded ops.Loaded, manager *strat.Manager, books *md.Cache, queue *bus.Queue, s *store.Store) error {
	leg1, ok := loaded.Registry.SecurityAt(0)
	if !ok {
		return errDemoNeedsSecurities
	}
	leg2, ok := loaded.Registry.SecurityAt(1)
	if !ok {
		return errDemoNeedsSecurities
	}

	now := time.Now().UTC()
	books.ApplyTrade(leg1.SecID, 100, 10, now)
	books.ApplyTrade(leg2.SecID, 50, 10, now)

	ps, err := s.PairStrats.Create(ctx, schema.PairStrat{
		Params: schema.PairStratParams{
			Leg1: schema.StratLeg{Sec: schema.Security{SecID: leg1.SecID}, Side: schema.SideBuy},
			Leg2: schema.StratLeg{Sec: schema.Security{SecID: leg2.SecID}, Side: schema.SideSell},
		},
		StratLimits: schema.StratLimits{
			MaxOpenOrdersPerSide: 10,
			MaxCbNotional:        1_000_000,
			MaxOpenCbNotional:    1_000_000,
			MaxConcentration:     10,
			CancelRate:           schema.CancelRate{MaxCancelRate: 50, ApplicablePeriodSeconds: 60, WaivedMinOrders: 5},
			MarketParticipation:  schema.MarketTradeVolumeParticipation{MaxParticipationRate: 40, ApplicablePeriodSeconds: 60},
			ResidualRestriction:  schema.ResidualRestriction{MaxResidual: 100_000, ResidualMarkSeconds: 60},
		},
		StratStatus: schema.StratStatus{StratState: schema.StratStateReady},
	})
	if err != nil {
		return err
	}
	if _, err := manager.Activate(ctx, ps.ID); err != nil {
		return err
	}

	order := schema.OrderBrief{
		OrderID:  "DEMO-1",
		Security: schema.Security{SecID: leg1.SecID},
		Side:     schema.SideBuy,
		Px:       100,
		Qty:      90,
	}
	events := []schema.OrderJournal{
		{Order: order, OrderEventType: schema.OrderEventNew, EventTime: now},
		{Order: order, OrderEventType: schema.OrderEventAck, EventTime: now.Add(time.Millisecond)},
	}
	for _, oj := range events {
		if err := queue.TryPublishOrder(oj); err != nil {
			return err
		}
	}
	err = queue.TryPublishFill(schema.FillJournal{
		OrderID:    order.OrderID,
		FillPx:     100,
		FillQty:    30,
		FillSymbol: leg1.SecID,
		FillSide:   schema.SideBuy,
		FillID:     "DEMO-F-1",
		FillTime:   now.Add(2 * time.Millisecond),
	})
	if err != nil {
		return err
	}

	// Give the consumer a moment, then report what the cascade produced.
	time.Sleep(200 * time.Millisecond)
	status, err := s.PairStrats.GetByID(ctx, ps.ID)
	if err != nil {
		return err
	}
	logs.Infof("demo strat %d: state=%s open_buy_qty=%d fill_buy_qty=%d",
		status.ID, status.StratStatus.StratState,
		status.StratStatus.TotalOpenBuyQty, status.StratStatus.TotalFillBuyQty)
	return nil
}

var errDemoNeedsSecurities = errors.New("demo mode needs at least two configured securities")
