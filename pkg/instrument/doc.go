// Package instrument adds observability to a liveq.Client without
// touching the core: a Prometheus implementation of liveq.Observer and
// an OpenTelemetry tracing decorator over the client's remote
// operations.
//
//	metrics := instrument.NewMetrics(instrument.WithNamespace("myapp"))
//	client := liveq.New(backend, liveq.WithObserver(metrics))
//	traced := instrument.Tracing(client)
//
//	v, err := traced.Query(ctx, "messages:list", args)
package instrument
