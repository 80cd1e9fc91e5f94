// Package metrics expone contadores Prometheus del ledger, los traslados y la reconciliación.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/transfer"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

var (
	_ inventory.Metrics = (*Recorder)(nil)
	_ transfer.Metrics  = (*Recorder)(nil)
)

const namespace = "farmacia"

// Recorder implementa los puertos de métricas de la aplicación sobre un registro propio.
type Recorder struct {
	registry           *prometheus.Registry
	ledgerWrites       *prometheus.CounterVec
	ledgerRejections   *prometheus.CounterVec
	quarantines        prometheus.Counter
	reconciliations    *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	transitionRejected *prometheus.CounterVec
}

// New registra los contadores en un registro nuevo (más los collectors de proceso y runtime de Go).
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "writes_total",
			Help:      "Movimientos de stock confirmados por tipo.",
		}, []string{"type"}),
		ledgerRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rejections_total",
			Help:      "Movimientos rechazados por clase de error.",
		}, []string{"kind"}),
		quarantines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "quarantines_total",
			Help:      "Filas de stock puestas en cuarentena por inconsistencia con el ledger.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "checks_total",
			Help:      "Verificaciones de stock contra ledger por resultado.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "transitions_total",
			Help:      "Transiciones de traslado confirmadas por estado destino.",
		}, []string{"status"}),
		transitionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "rejections_total",
			Help:      "Operaciones de traslado rechazadas por clase de error.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		r.ledgerWrites,
		r.ledgerRejections,
		r.quarantines,
		r.reconciliations,
		r.transitions,
		r.transitionRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) LedgerWrite(t entity.TransactionType) {
	r.ledgerWrites.WithLabelValues(string(t)).Inc()
}

func (r *Recorder) LedgerRejected(kind string) {
	r.ledgerRejections.WithLabelValues(kind).Inc()
}

func (r *Recorder) StockQuarantined() { r.quarantines.Inc() }

func (r *Recorder) Reconciled(consistent bool) {
	result := "consistent"
	if !consistent {
		result = "inconsistent"
	}
	r.reconciliations.WithLabelValues(result).Inc()
}

func (r *Recorder) Transition(to entity.TransferStatus) {
	r.transitions.WithLabelValues(string(to)).Inc()
}

func (r *Recorder) TransitionRejected(kind string) {
	r.transitionRejected.WithLabelValues(kind).Inc()
}

// Registry registro subyacente (tests y exposición).
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler handler HTTP de /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
