/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured logs.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	eng, err := ddt.New(dir, ddt.WithLifecycleHooks(
		metrics.Hooks().Merge(observability.LoggingHooks(logger)),
	))
*/
package observability
