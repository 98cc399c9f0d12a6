package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ClientsConnected tracks live WebSocket connections.
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raceroom_clients_connected",
		Help: "Number of live WebSocket connections.",
	})

	// MessagesTotal counts inbound client messages by type.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raceroom_messages_total",
		Help: "Inbound client messages by message type.",
	}, []string{"type"})

	// EventsPublished counts room fan-out events.
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raceroom_events_published_total",
		Help: "Events fanned out to room observers.",
	})

	// ResultsWritten counts race results flushed to the database.
	ResultsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raceroom_results_written_total",
		Help: "Race results written to the database.",
	})
)

// RegisterRoomCount exposes the live room count as a gauge. Call once at
// startup.
func RegisterRoomCount(count func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "raceroom_rooms_active",
		Help: "Number of rooms currently held in memory.",
	}, func() float64 { return float64(count()) })
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
