// Package app wires the library's dependencies (config, instrumentation,
// database, cache, messaging, and the outbox/inbox/worker components) into
// one process lifecycle, in the same initConfig/initX/Start/Stop shape the
// teacher repo uses for its own App.
package app

import (
	"context"

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

// App wires every dependency and manages the process lifecycle: the
// database pool, the cache, the broker client, and the outbox poller.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config    config.Config
	ins       instrument.Instrumentation
	diag      *trace.Diagnostics
	validator validator.Validator
	goroutine *goroutine.Manager

	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	messaging messaging.Messaging

	outboxStore outbox.Store
	inboxStore  inbox.Store
	inboxCache  inbox.Cache

	registry *topic.Registry
	poller   *worker.Poller

	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the App with default wiring and returns it. Unlike the
// teacher's App (which also wires HTTP routing for its own API surface),
// this App has no inbound HTTP API of its own — it is a library host
// process whose externally visible behavior is entirely produce/consume
// traffic plus the background outbox poller.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	a.initConfig()
	a.initInstrument()
	a.initLibraries()
	a.initDatabase()
	a.initCache()
	a.initMessaging()
	a.initStores()
	a.initWorker()
	a.initClosers()

	return a
}

// Registry exposes the process-wide topic.Registry so main (or an
// embedding application) can Register its topics before Start.
func (a *App) Registry() *topic.Registry { return a.registry }

// DBConn exposes the pool so topic wiring code can build
// scope.RequestContext values per request.
func (a *App) DBConn() *pgxpool.Pool { return a.dbConn }

// Messaging exposes the broker client so topic wiring code can build
// producer.Dispatcher/consumer.Runtime values.
func (a *App) Messaging() messaging.Messaging { return a.messaging }

// Instrument exposes the instrumentation provider.
func (a *App) Instrument() instrument.Instrumentation { return a.ins }

// Diagnostics exposes the shared counters/histogram/gauge.
func (a *App) Diagnostics() *trace.Diagnostics { return a.diag }

// OutboxStore exposes the outbox store for topic wiring and the worker.
func (a *App) OutboxStore() outbox.Store { return a.outboxStore }

// InboxStore exposes the inbox store for topic wiring.
func (a *App) InboxStore() inbox.Store { return a.inboxStore }

// InboxCache exposes the inbox dedup fast-path cache for topic wiring.
func (a *App) InboxCache() inbox.Cache { return a.inboxCache }

// Validator exposes the shared struct validator for topic wiring.
func (a *App) Validator() validator.Validator { return a.validator }

// Config exposes the loaded configuration.
func (a *App) Config() config.Config { return a.config }

// Goroutine exposes the shared goroutine.Manager.
func (a *App) Goroutine() *goroutine.Manager { return a.goroutine }

// Poller exposes the outbox poller so main can register republishers into
// its DispatchTable before calling Start.
func (a *App) Poller() *worker.Poller { return a.poller }
