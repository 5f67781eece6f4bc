package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var StoreOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: objgraphNamespace,
		Subsystem: "store",
		Name:      "ops_total",
		Help:      "资产存储读写次数",
	}, []string{backendLabelName, opLabelName, statusLabelName})

func registerStoreMetrics(r prometheus.Registerer) {
	r.MustRegister(StoreOpsTotal)
}
