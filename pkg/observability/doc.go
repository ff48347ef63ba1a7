/*
Package observability binds the runtime hooks of a muster engine to Prometheus
collectors and structured logs.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	engine, err := muster.New(graph, muster.WithHooks(observability.Combine(
		metrics.Hooks(),
		observability.LogHooks(logger),
	)))
*/
package observability
