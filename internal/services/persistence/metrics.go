package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persistence_point_write_count",
		Help: "The number of Influx points (per result).",
	}, []string{"result"})

	qc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persistence_latest_query_count",
		Help: "The number of latest-reading queries (per data source).",
	}, []string{"source"})
)

func writeCounter(result string) prometheus.Counter {
	return wc.With(prometheus.Labels{"result": result})
}

func queryCounter(source string) prometheus.Counter {
	return qc.With(prometheus.Labels{"source": source})
}
