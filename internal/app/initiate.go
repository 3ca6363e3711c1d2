package app

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shandysiswandi/txmq/internal/inbox"
	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/config"
	"github.com/shandysiswandi/txmq/internal/pkg/goroutine"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/pkg/validator"
	"github.com/shandysiswandi/txmq/internal/topic"
	"github.com/shandysiswandi/txmq/internal/trace"
	"github.com/shandysiswandi/txmq/internal/worker"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins

	// No pendingFn: outbox.Store only exposes Claim (which locks rows) and
	// Delete, not a read-only count, so the outbox_pending gauge is left
	// unregistered rather than repurposing Claim for a metrics scrape.
	diag, err := trace.New(ins, nil)
	if err != nil {
		slog.Error("failed to init diagnostics", "error", err)
		os.Exit(1)
	}
	a.diag = diag
}

func (a *App) initLibraries() {
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.max_goroutine"))

	v, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validator", "error", err)
		os.Exit(1)
	}
	a.validator = v

	a.registry = topic.NewRegistry()
}

func (a *App) initDatabase() {
	cfg, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string", "error", err)
		os.Exit(1)
	}

	cfg.MaxConns = a.config.GetInt32("database.pool.max_conns")
	cfg.MinConns = a.config.GetInt32("database.pool.min_conns")
	cfg.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	cfg.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	cfg.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, cfg)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
}

func (a *App) initMessaging() {
	driver := strings.TrimSpace(a.config.GetString("messaging.driver"))

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
		},
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
		},
	})
	if err != nil {
		slog.Error("failed to init messaging client", "driver", driver, "error", err)
		os.Exit(1)
	}

	a.messaging = client
}

func (a *App) initStores() {
	a.outboxStore = outbox.NewPgxStore(a.dbConn, a.ins)
	a.inboxStore = inbox.NewPgxStore(a.ins)
	a.inboxCache = inbox.NewRedisCache(a.cacheConn)
}

func (a *App) initWorker() {
	a.poller = worker.New(
		a.outboxStore,
		worker.DispatchTable{},
		worker.Settings{
			Interval:  a.config.GetSecond("worker.poll_interval_seconds"),
			BatchSize: a.config.GetInt("worker.batch_size"),
		},
		a.ins,
		a.diag,
		slog.Default(),
	)
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{name: "Instrument", fn: func(ctx context.Context) error { return a.ins.Shutdown(ctx) }},
		{name: "Messaging", fn: func(context.Context) error { return a.messaging.Close() }},
		{name: "Redis", fn: func(context.Context) error { return a.cacheConn.Close() }},
		{name: "Database", fn: func(context.Context) error { a.dbConn.Close(); return nil }},
		{name: "Config", fn: func(context.Context) error { return a.config.Close() }},
	}
}
