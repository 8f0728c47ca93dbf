package flow

import (
	"time"

	"github.com/dshills/duraflow-go/flow/emit"
)

// Option is a functional option for configuring an Engine.
//
// Functional options provide a clean, extensible API for engine
// configuration:
//   - Chainable: flow.NewEngine(flow.WithStore(st), flow.WithCache(c))
//   - Self-documenting: option names describe their purpose
//   - Optional: only specify the configuration you need
//
// Example:
//
//	engine := flow.NewEngine(
//	    flow.WithStore(sqliteStore),
//	    flow.WithEmitter(emit.NewLogEmitter(nil, true)),
//	    flow.WithMaxWorkers(16),
//	)
type Option func(*Engine)

// WithStore sets the durable context store. Default: an in-memory
// store, which does not survive process restarts.
func WithStore(store ContextStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithEmitter sets the observability emitter. Default: discard.
func WithEmitter(emitter emit.Emitter) Option {
	return func(e *Engine) { e.emitter = emitter }
}

// WithCache sets the task-result cache consulted by tasks that opt in
// via their cache option. Default: no caching.
func WithCache(cache Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithSecretManager sets the secret backend used to resolve task
// secret requests. Default: an empty static map, so any secret lookup
// fails.
func WithSecretManager(sm SecretManager) Option {
	return func(e *Engine) { e.secrets = sm }
}

// WithOutputStorage sets the default output storage for task and
// workflow results. Individual tasks and workflows may override.
// Default: inline (values live in the event log).
func WithOutputStorage(s OutputStorage) Option {
	return func(e *Engine) { e.storage = s }
}

// WithCatalog sets the workflow catalog used to resolve sub-workflow
// calls and name-based execution. Default: none; name-based calls fail
// with ErrWorkflowNotFound.
func WithCatalog(catalog WorkflowCatalog) Option {
	return func(e *Engine) { e.catalog = catalog }
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	engine := flow.NewEngine(flow.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithMaxWorkers caps concurrent task execution inside parallel groups
// and task maps. Default: 8.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// WithDefaultTimeout sets the workflow timeout applied when a workflow
// declares none. Default: 0 (no timeout).
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) { e.defaultTimeout = d }
}

// WithRetryDefaults sets the delay and backoff applied to task retry
// policies that leave them unset. Default: 1s delay, 2.0 backoff.
func WithRetryDefaults(delay time.Duration, backoff float64) Option {
	return func(e *Engine) {
		if delay > 0 {
			e.retryDelay = delay
		}
		if backoff > 0 {
			e.retryBackoff = backoff
		}
	}
}

// WithRetryAttempts sets the retry budget for tasks that declare no
// retry policy of their own. Default: 0, such tasks fail on the first
// error.
func WithRetryAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.retryAttempts = n
		}
	}
}

// WithResources declares the resource capacity available to this
// engine. Tasks that declare resource requirements queue on the
// admission gate until capacity frees up. Default: admission disabled.
func WithResources(r Resources) Option {
	return func(e *Engine) { e.admission = newAdmissionGate(r) }
}
