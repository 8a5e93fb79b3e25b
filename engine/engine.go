// Package engine ties the job/txn packages together into the two public
// entry points an embedding service manager calls: AddJobAndDependencies
// to build up a transaction, and Activate to reconcile and install it.
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/rvolosatovs/systemgo/job"
	"github.com/rvolosatovs/systemgo/txn"
	"github.com/rvolosatovs/systemgo/unit"
)

// Engine is not safe for concurrent use; the embedding manager is
// responsible for serializing calls.
type Engine struct {
	Registry unit.Registry

	runQueue RunQueue
	timer    Timer
	bus      BusQueue
	finisher LiveJobFinisher

	live   map[string]*job.Job
	nextID uint64

	metrics *metrics
	log     *log.Entry
}

// Option configures optional collaborators; the zero value of each wires a
// no-op so the engine works standalone in tests.
type Option func(*Engine)

func WithRunQueue(rq RunQueue) Option { return func(e *Engine) { e.runQueue = rq } }

func WithTimer(t Timer) Option { return func(e *Engine) { e.timer = t } }

func WithBusQueue(b BusQueue) Option { return func(e *Engine) { e.bus = b } }

func WithFinisher(f LiveJobFinisher) Option {
	return func(e *Engine) { e.finisher = f }
}
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = newMetrics(reg) }
}

func New(reg unit.Registry, opts ...Option) *Engine {
	e := &Engine{
		Registry: reg,
		runQueue: nopRunQueue{},
		timer:    nopTimer{},
		bus:      nopBusQueue{},
		finisher: nopFinisher{},
		live:     make(map[string]*job.Job),
		log:      log.WithField("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newMetrics(nil)
	}
	return e
}

// liveJobs adapts Engine's private map to txn.LiveJobs.
type liveJobs struct{ e *Engine }

func (l liveJobs) Get(unitName string) (*job.Job, bool) {
	j, ok := l.e.live[unitName]
	return j, ok
}

// NewTransaction starts a fresh transaction against this engine's registry
// and live job table. The caller still has to add the anchor job with
// AddJobAndDependencies.
func (e *Engine) NewTransaction() *txn.Transaction {
	return txn.New(e.Registry, liveJobs{e})
}

// AddJobAndDependencies queues a job for unitName and everything it
// transitively pulls in.
func (e *Engine) AddJobAndDependencies(tr *txn.Transaction, t job.Type, unitName string, puller *job.Job, opts txn.LinkOptions) (*job.Job, error) {
	return txn.AddJobAndDependencies(tr, t, unitName, puller, opts)
}

// AddIsolateJobs queues a Stop for every other loaded unit that is active
// or has a live job; units marked ignore-on-isolate are skipped.
func (e *Engine) AddIsolateJobs(tr *txn.Transaction) error {
	return txn.AddIsolateJobs(tr)
}

// Abort drops every job in tr without touching the live set.
func (e *Engine) Abort(tr *txn.Transaction) {
	txn.Abort(tr)
}

// LiveJob returns the job currently installed for unitName, if any.
func (e *Engine) LiveJob(unitName string) (*job.Job, bool) {
	j, ok := e.live[unitName]
	return j, ok
}
