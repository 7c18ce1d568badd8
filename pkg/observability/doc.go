/*
Package observability turns engine lifecycle events into logs and metrics.

Everything here is expressed as domain.LifecycleHooks, so the engine stays
unaware of the backends. Hooks from several sources are merged with Combine:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
	eng, err := quill.New(g, quill.WithLifecycleHooks(hooks))
*/
package observability
