package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders Manager metrics in Prometheus text exposition
// format, one counter family per credential area.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from m.
func NewPrometheusExporter(m *goIdentity.Manager) *PrometheusExporter {
	return &PrometheusExporter{source: m}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when metrics are disabled and no
// audit events were dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w expositionWriter
	for _, area := range internaldefs.Areas {
		family := area.Area.PromFamily()
		w.header(family, area.Help, "counter")
		for _, def := range internaldefs.CountersIn(area.Area) {
			w.sample(family, internaldefs.EventLabel, def.Event, snapshot.Counters[def.ID])
		}
	}

	lat := internaldefs.HashLatency
	buckets := internaldefs.CumulativeBuckets(snapshot.Histograms[lat.ID])
	w.header(lat.PromName, lat.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(lat.PromName+"_bucket", "le", le, buckets[i])
	}
	w.sample(lat.PromName+"_count", "", "", buckets[internaldefs.BucketCount-1])
	// Snapshots keep bucket counts only.
	w.sample(lat.PromName+"_sum", "", "", 0)

	w.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", "", dropped)

	return w.String()
}

type expositionWriter struct {
	strings.Builder
}

func (w *expositionWriter) header(name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

// sample writes one line; an empty label writes it unlabelled.
func (w *expositionWriter) sample(name, label, value string, v uint64) {
	w.WriteString(name)
	if label != "" {
		w.WriteString("{" + label + "=" + strconv.Quote(value) + "}")
	}
	w.WriteByte(' ')
	w.WriteString(strconv.FormatUint(v, 10))
	w.WriteByte('\n')
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
