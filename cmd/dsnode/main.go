package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"shardchain/config"
	"shardchain/crt"
	"shardchain/db"
	"shardchain/logs"
	"shardchain/middleware"
	"shardchain/node"
	"shardchain/sender"
	"shardchain/stats"
	"shardchain/utils"
)

func main() {
	var (
		configFile = flag.String("config", "", "config file path (JSON)")
		dataPath   = flag.String("data", "./data", "database directory")
		seed       = flag.String("seed", "", "seed for this node's BLS key")
		listen     = flag.String("listen", "", "listen address, overrides config")
		advertise  = flag.String("advertise", "127.0.0.1:4001", "address other nodes use to reach this node")
		committee  = flag.String("committee", "", "genesis DS committee: seed@host:port,...")
		logLevel   = flag.String("log-level", "info", "trace|debug|verbose|info|warn|error")
		statsEvery = flag.Duration("stats-interval", time.Minute, "interval of dispatch stats output, 0 disables")
	)
	flag.Parse()

	level, err := logs.ParseLevel(*logLevel)
	if err != nil {
		logs.Error("%v", err)
		os.Exit(1)
	}
	logs.SetLevel(level)

	cfg, err := config.LoadFromFile(*configFile)
	if err != nil {
		logs.Error("load config: %v", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}
	if *seed == "" {
		logs.Error("-seed is required")
		os.Exit(1)
	}

	if err := run(cfg, *dataPath, *seed, *advertise, *committee, *statsEvery); err != nil {
		logs.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, dataPath, seed, advertise, committeeSpec string, statsEvery time.Duration) error {
	self, err := utils.KeyPairFromSeed([]byte(seed))
	if err != nil {
		return err
	}
	selfPeer, err := parsePeer(advertise)
	if err != nil {
		return err
	}
	logger := logs.NewNodeLogger(selfPeer.String())

	members, err := parseCommittee(committeeSpec)
	if err != nil {
		return err
	}
	committee, err := newCommittee(cfg.Committee.DSCommitteeSize, members, self.Pub)
	if err != nil {
		return err
	}

	store, err := db.NewManager(dataPath, logger, cfg)
	if err != nil {
		return err
	}
	store.InitWriteQueue(cfg.Database.MaxBatchSize, cfg.Database.FlushInterval)
	defer store.Close()

	ctx, err := node.NewContext(cfg, self, selfPeer, committee, store)
	if err != nil {
		return err
	}
	if err := loadGenesis(ctx, store, members, logger); err != nil {
		return err
	}

	queue := sender.NewSendQueue(sender.NewHttp3Transport(cfg), logger, cfg)
	defer queue.Stop()

	n, err := node.New(ctx, cfg, node.Deps{Storage: store, Transport: queue}, logger)
	if err != nil {
		return err
	}

	cert, err := crt.LoadOrCreate(
		filepath.Join(dataPath, "node.crt"), filepath.Join(dataPath, "node.key"),
		self.Pub, []string{selfPeer.IP().String()})
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	limiter := middleware.NewRateLimiter(cfg.Server.RequestLimit, cfg.Server.RateWindow)
	limiter.StartCleanup(runCtx, cfg.Server.CleanupInterval)

	h := &messageHandler{
		node:    n,
		maxSize: cfg.Server.MaxMessageSize,
		counts:  stats.NewStats(),
		latency: stats.NewLatencyRecorder(0),
		logger:  logger,
	}
	server := &http3.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: limiter.Wrap(newMux(h)),
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
			NextProtos:   []string{"h3"},
		},
		QUICConfig: &quic.Config{
			KeepAlivePeriod: 10 * time.Second,
			MaxIdleTimeout:  5 * time.Minute,
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] HTTP/3 listening on %s as %s", cfg.Server.ListenAddr, crt.NodeID(self.Pub))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if statsEvery > 0 {
		go reportStats(runCtx, logger, h, queue, store, statsEvery)
	}

	select {
	case <-runCtx.Done():
		logger.Info("[Server] shutting down")
	case err := <-errCh:
		return err
	}
	if err := server.Close(); err != nil {
		logger.Warn("[Server] close: %v", err)
	}
	return nil
}

func reportStats(ctx context.Context, logger logs.Logger, h *messageHandler, queue *sender.SendQueue, store *db.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, c := range h.counts.Snapshot() {
				logger.Info("[Stats] %s %d", name, c)
			}
			for name, s := range h.latency.Snapshot(true) {
				logger.Info("[Stats] %s latency n=%d p50=%v p95=%v p99=%v max=%v", name, s.Count, s.P50, s.P95, s.P99, s.Max)
			}
			qs := queue.GetRuntimeStats()
			logger.Info("[Stats] sender ok=%d err=%d retryExhausted=%d dropStale=%d queued=%d",
				qs.SendSuccess, qs.SendError, qs.RetryExhausted, qs.DropStale, queue.QueueLen())
			ds := store.Stats()
			logger.Info("[Stats] db flushes=%d flushErrors=%d maxDepth=%d", ds.FlushBatches, ds.FlushErrors, ds.MaxDepth)
		}
	}
}
