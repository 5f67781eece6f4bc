package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const graphSubsystem = "graph"

var (
	GraphSerializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: objgraphNamespace,
			Subsystem: graphSubsystem,
			Name:      "serialize_total",
			Help:      "序列化调用次数",
		}, []string{statusLabelName})

	GraphDeserializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: objgraphNamespace,
			Subsystem: graphSubsystem,
			Name:      "deserialize_total",
			Help:      "反序列化调用次数",
		}, []string{statusLabelName})

	GraphBlobBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: objgraphNamespace,
			Subsystem: graphSubsystem,
			Name:      "blob_bytes",
			Help:      "序列化产物的字节数",
			Buckets:   sizeBuckets,
		}, []string{opLabelName})

	GraphSharedObjects = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: objgraphNamespace,
			Subsystem: graphSubsystem,
			Name:      "shared_objects",
			Help:      "单次序列化产生的共享对象个数",
			Buckets:   countBuckets,
		})

	GraphWildObjectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: objgraphNamespace,
			Subsystem: graphSubsystem,
			Name:      "wild_objects_total",
			Help:      "没有 schema 而被降级为 wild object 的对象个数",
		})

	GraphLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: objgraphNamespace,
			Subsystem: graphSubsystem,
			Name:      "latency_ms",
			Help:      "序列化/反序列化耗时，单位毫秒",
			Buckets:   buckets,
		}, []string{opLabelName})
)

func registerGraphMetrics(r prometheus.Registerer) {
	r.MustRegister(GraphSerializeTotal)
	r.MustRegister(GraphDeserializeTotal)
	r.MustRegister(GraphBlobBytes)
	r.MustRegister(GraphSharedObjects)
	r.MustRegister(GraphWildObjectsTotal)
	r.MustRegister(GraphLatency)
}

// StatusLabel 将 error 映射为 status 标签值。
func StatusLabel(err error) string {
	if err != nil {
		return FailLabel
	}
	return SuccessLabel
}
