package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for njkv metrics.
const (
	Fail     = "fail"
	Ok       = "ok"
	NotFound = "not_found"

	Append    = "append"
	Overwrite = "overwrite"

	ModeRead  = "read"
	ModeWrite = "write"
)

// Collectors for kvstore.Store and shard.Manager activity.
var (
	SetTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "njkv_set_total",
		Help: "Cumulative number of completed sets, by write path (append or in-place overwrite).",
	}, []string{"path"})
	GetTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "njkv_get_total",
		Help: "Cumulative number of gets, by status.",
	}, []string{"status"})
	AppendedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "njkv_appended_bytes_total",
		Help: "Cumulative number of bytes appended to shard files.",
	})
	OverwrittenBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "njkv_overwritten_bytes_total",
		Help: "Cumulative number of bytes overwritten in place through mapped views.",
	})
	ShardRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "njkv_shard_rotations_total",
		Help: "Cumulative number of times the write target advanced to a new shard.",
	})
	ShardOpensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "njkv_shard_opens_total",
		Help: "Cumulative number of shard handles opened, by mode.",
	}, []string{"mode"})
	IndexSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "njkv_index_saves_total",
		Help: "Cumulative number of store saves, by status.",
	}, []string{"status"})
)

// Collectors returns all njkv collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SetTotal,
		GetTotal,
		AppendedBytesTotal,
		OverwrittenBytesTotal,
		ShardRotationsTotal,
		ShardOpensTotal,
		IndexSavesTotal,
	}
}

// Register registers all njkv collectors with |registerer|.
func Register(registerer prometheus.Registerer) error {
	for _, collector := range Collectors() {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
