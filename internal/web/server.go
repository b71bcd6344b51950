package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conorfennell/knolsrs/internal/content"
	"github.com/conorfennell/knolsrs/internal/domain"
	"github.com/conorfennell/knolsrs/internal/srs"
	"github.com/conorfennell/knolsrs/internal/stats"
)

// HistorySource returns a card's review log.
type HistorySource interface {
	History(ctx context.Context, cardID string) ([]domain.ReviewLog, error)
}

// Config holds the server's tunables.
type Config struct {
	ForecastDays   int
	LapseThreshold int
	Mastery        stats.MasteryPolicy
	History        HistorySource // optional
	Logger         *slog.Logger
}

// Server holds the dependencies for the HTTP API.
type Server struct {
	sched   *srs.Scheduler
	agg     *stats.Aggregator
	deck    atomic.Pointer[content.Deck]
	cfg     Config
	logger  *slog.Logger
	router  chi.Router
	reviews *prometheus.CounterVec
}

// NewServer creates and configures a new server.
func NewServer(sched *srs.Scheduler, deck *content.Deck, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = stats.DefaultForecastDays
	}
	if cfg.LapseThreshold <= 0 {
		cfg.LapseThreshold = stats.DefaultLapseThreshold
	}
	if cfg.Mastery == (stats.MasteryPolicy{}) {
		cfg.Mastery = stats.DefaultMasteryPolicy()
	}

	s := &Server{
		sched:  sched,
		agg:    stats.New(sched, stats.WithMasteryPolicy(cfg.Mastery), stats.WithLogger(cfg.Logger)),
		cfg:    cfg,
		logger: cfg.Logger,
		router: chi.NewRouter(),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knolsrs_reviews_total",
			Help: "Reviews recorded, by rating.",
		}, []string{"rating"}),
	}
	s.deck.Store(deck)
	s.routes()
	return s
}

// SetDeck swaps the deck after content is reloaded.
func (s *Server) SetDeck(deck *content.Deck) {
	s.deck.Store(deck)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(s.reviews)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "knolsrs_cards_due",
		Help: "Cards due for review now.",
	}, func() float64 {
		return float64(s.agg.DueCount(s.deck.Load().Cards()))
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "knolsrs_cards_total",
		Help: "Cards in the loaded deck.",
	}, func() float64 {
		return float64(s.deck.Load().Len())
	}))
	return reg
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry(), promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/due", s.handleGetDue)
		r.Get("/stats", s.handleGetStats)
		r.Get("/topics", s.handleGetTopics)
		r.Get("/topics/{topic}/mastery", s.handleGetMastery)
		r.Get("/cards/{id}", s.handleGetCard)
		r.Get("/cards/{id}/preview", s.handleGetPreview)
		r.Post("/cards/{id}/review", s.handlePostReview)
		if s.cfg.History != nil {
			r.Get("/cards/{id}/history", s.handleGetHistory)
		}
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cards returns the deck, narrowed to one topic when ?topic= is set.
func (s *Server) cards(r *http.Request) []domain.Card {
	deck := s.deck.Load()
	if topic := r.URL.Query().Get("topic"); topic != "" {
		return deck.Topic(topic)
	}
	return deck.Cards()
}

type dueResponse struct {
	Count int           `json:"count"`
	Cards []domain.Card `json:"cards"`
}

// handleGetDue lists due cards. ?limit= caps the list but not the count.
func (s *Server) handleGetDue(w http.ResponseWriter, r *http.Request) {
	due := s.sched.DueCards(s.cards(r))
	resp := dueResponse{Count: len(due), Cards: due}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		resp.Cards = due[:min(limit, len(due))]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.Summarize(s.cards(r), s.cfg.ForecastDays, s.cfg.LapseThreshold))
}

func (s *Server) handleGetTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deck.Load().Topics())
}

type masteryResponse struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// handleGetMastery blends the topic's card maturity with the optional
// read, quiz and time fractions passed as query parameters.
func (s *Server) handleGetMastery(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	cards := s.deck.Load().Topic(topic)
	if len(cards) == 0 {
		writeError(w, http.StatusNotFound, "unknown topic")
		return
	}

	var in stats.MasteryInputs
	for name, dst := range map[string]**float64{
		"read": &in.ReadFraction,
		"quiz": &in.QuizAccuracy,
		"time": &in.TimeFraction,
	} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			writeError(w, http.StatusBadRequest, "invalid "+name+": want a fraction in [0, 1]")
			return
		}
		*dst = stats.Signal(f)
	}

	writeJSON(w, http.StatusOK, masteryResponse{Topic: topic, Score: s.agg.Mastery(cards, in)})
}

type cardResponse struct {
	Card     domain.Card       `json:"card"`
	Maturity srs.Maturity      `json:"maturity"`
	Record   *srs.ReviewRecord `json:"record,omitempty"`
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.Card, bool) {
	card, ok := s.deck.Load().Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown card")
	}
	return card, ok
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := cardResponse{Card: card, Maturity: s.sched.Classify(card.ID)}
	if rec, ok := s.sched.Record(card.ID); ok {
		resp.Record = &rec
	}
	writeJSON(w, http.StatusOK, resp)
}

type previewResponse struct {
	srs.Preview
	Labels map[string]string `json:"labels"`
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookup(w, r)
	if !ok {
		return
	}
	p := s.sched.PreviewIntervals(card.ID)
	writeJSON(w, http.StatusOK, previewResponse{
		Preview: p,
		Labels: map[string]string{
			"again": srs.FormatDays(1),
			"hard":  srs.FormatDays(p.Hard),
			"good":  srs.FormatDays(p.Good),
			"easy":  srs.FormatDays(p.Easy),
		},
	})
}

type reviewRequest struct {
	Rating srs.Rating `json:"rating"`
}

type reviewResponse struct {
	CardID   string           `json:"card_id"`
	Record   srs.ReviewRecord `json:"record"`
	Maturity srs.Maturity     `json:"maturity"`
}

// handlePostReview applies a rating, given by name or legacy quality number.
func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var ire *srs.InvalidRatingError
		if errors.As(err, &ire) {
			writeError(w, http.StatusBadRequest, ire.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.sched.RecordReview(r.Context(), card.ID, req.Rating)
	if err != nil {
		var ire *srs.InvalidRatingError
		if errors.As(err, &ire) {
			writeError(w, http.StatusBadRequest, ire.Error())
			return
		}
		s.logger.Error("Error recording review", "card_id", card.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.reviews.WithLabelValues(req.Rating.String()).Inc()

	writeJSON(w, http.StatusOK, reviewResponse{
		CardID:   card.ID,
		Record:   rec,
		Maturity: s.sched.Classify(card.ID),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookup(w, r)
	if !ok {
		return
	}
	logs, err := s.cfg.History.History(r.Context(), card.ID)
	if err != nil {
		s.logger.Error("Error getting review history", "card_id", card.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if logs == nil {
		logs = []domain.ReviewLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
