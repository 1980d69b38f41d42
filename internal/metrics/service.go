package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

type Service struct {
	RoomsCreated     prometheus.Counter
	Joins            *prometheus.CounterVec
	Removals         prometheus.Counter
	Promotions       prometheus.Counter
	Demotions        prometheus.Counter
	Allocations      *prometheus.CounterVec
	Fixtures         prometheus.Counter
	Results          prometheus.Counter
	MutationDuration *prometheus.HistogramVec
}

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_rooms_created_total",
			Help: "The total number of rooms created.",
		}),
		Joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_joins_total",
			Help: "Players joining a room, by the status they were given.",
		}, []string{"status"}),
		Removals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_removals_total",
			Help: "The total number of players removed from rooms.",
		}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_promotions_total",
			Help: "Waiting players moved to an active slot.",
		}),
		Demotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_demotions_total",
			Help: "Active players moved to the waiting list.",
		}),
		Allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_allocations_total",
			Help: "Team allocations run, by mode.",
		}, []string{"mode"}),
		Fixtures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_fixtures_generated_total",
			Help: "The total number of league fixtures generated.",
		}),
		Results: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_results_recorded_total",
			Help: "The total number of match results recorded.",
		}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booking_mutation_duration_seconds",
			Help:    "Time spent holding the room lock per mutation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
	}

	reg.MustRegister(
		s.RoomsCreated,
		s.Joins,
		s.Removals,
		s.Promotions,
		s.Demotions,
		s.Allocations,
		s.Fixtures,
		s.Results,
		s.MutationDuration,
	)

	return s
}

func (s *Service) IncRoomsCreated() {
	s.RoomsCreated.Inc()
}

func (s *Service) IncJoins(status string) {
	s.Joins.WithLabelValues(status).Inc()
}

func (s *Service) IncRemovals() {
	s.Removals.Inc()
}

func (s *Service) AddPromotions(n int) {
	s.Promotions.Add(float64(n))
}

func (s *Service) AddDemotions(n int) {
	s.Demotions.Add(float64(n))
}

func (s *Service) IncAllocations(mode string) {
	s.Allocations.WithLabelValues(mode).Inc()
}

func (s *Service) AddFixtures(n int) {
	s.Fixtures.Add(float64(n))
}

func (s *Service) IncResults() {
	s.Results.Inc()
}

func (s *Service) ObserveMutation(op string, seconds float64) {
	s.MutationDuration.WithLabelValues(op).Observe(seconds)
}
