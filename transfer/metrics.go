package transfer

import (
	"github.com/docker/go-metrics"
)

// transferNamespace mirrors the teacher's prometheus.ProxyNamespace pattern
// (registry/proxy/proxymetrics.go): one docker/go-metrics Namespace per
// subsystem, registered once with the process-wide prometheus registry so a
// host application's /metrics endpoint picks it up without this package
// needing to know anything about HTTP.
var transferNamespace = metrics.NewNamespace("dcxsync", "transfer", nil)

var (
	transferDuration = transferNamespace.NewLabeledTimer("duration_seconds", "Time to complete a push or pull", "operation")
	transferBytes    = transferNamespace.NewLabeledCounter("bytes_total", "Bytes uploaded or downloaded", "operation", "direction")
)

func init() {
	metrics.Register(transferNamespace)
}
