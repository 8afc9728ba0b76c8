package monitoring

import (
	"seryvo/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the realtime metrics hooks and the booking
// transition counters on the default Prometheus registry.
type PrometheusCollector struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter

	messagesReceived   *prometheus.CounterVec
	deliveriesTotal    prometheus.Counter
	deliveriesFailed   prometheus.Counter
	bookingTransitions *prometheus.CounterVec
	offersDispatched   prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "seryvo_ws_connections_active",
			Help: "Number of currently open WebSocket connections",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seryvo_ws_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),

		messagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seryvo_ws_messages_received_total",
			Help: "Inbound WebSocket messages by type",
		}, []string{"type"}),

		deliveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seryvo_ws_deliveries_total",
			Help: "Outbound envelope delivery attempts",
		}),

		deliveriesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seryvo_ws_deliveries_failed_total",
			Help: "Outbound envelope deliveries that failed and reaped the connection",
		}),

		bookingTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seryvo_booking_transitions_total",
			Help: "Accepted booking status transitions",
		}, []string{"from", "to"}),

		offersDispatched: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seryvo_dispatch_offer_driver_count",
			Help:    "Number of drivers targeted per booking offer",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsActive.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) MessageReceived(msgType string) {
	p.messagesReceived.WithLabelValues(msgType).Inc()
}

func (p *PrometheusCollector) DeliveryAttempted() {
	p.deliveriesTotal.Inc()
}

func (p *PrometheusCollector) DeliveryFailed() {
	p.deliveriesFailed.Inc()
}

func (p *PrometheusCollector) RecordBookingTransition(from, to domain.BookingStatus) {
	p.bookingTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (p *PrometheusCollector) RecordOfferDispatched(driverCount int) {
	p.offersDispatched.Observe(float64(driverCount))
}
