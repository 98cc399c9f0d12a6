package server

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"raceroom/internal/config"
	"raceroom/internal/db"
	"raceroom/internal/metrics"
	"raceroom/internal/sim"
	"raceroom/internal/wshub"
)

const resultBatchSize = 50

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	hub := wshub.NewHub()
	simCfg := sim.DefaultConfig()
	simCfg.DisconnectGrace = cfg.DisconnectGrace
	simCfg.RoomIdleGrace = cfg.RoomIdleGrace
	registry := sim.NewRegistry(hub, simCfg)
	metrics.RegisterRoomCount(registry.RoomCount)

	srv := &Server{
		Registry: registry,
		Hub:      hub,
	}

	// Optional database connection for result snapshots.
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, running without snapshots")
		} else {
			if err := database.Migrate(); err != nil {
				log.Warn().Err(err).Msg("migration failed")
			}
			srv.DB = database
			srv.Results = make(chan db.RaceResult, 1000)
			go resultBatchWriter(database, srv.Results)
			hub.OnFinish = srv.queueResult
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, running without snapshots")
	}

	r := chi.NewRouter()
	r.Get("/ws", srv.handleWS)
	r.Get("/health", srv.handleHealth)
	r.Get("/results", srv.handleResults)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	addr := "0.0.0.0:" + cfg.Port
	log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, r)
}

// resultBatchWriter flushes queued race results on size or on a ticker,
// whichever comes first.
func resultBatchWriter(database *db.DB, buffer chan db.RaceResult) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	batch := make([]db.RaceResult, 0, resultBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := database.BatchRecordResults(batch); err != nil {
			log.Error().Err(err).Int("count", len(batch)).Msg("writing result batch")
		} else {
			metrics.ResultsWritten.Add(float64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case res := <-buffer:
			batch = append(batch, res)
			if len(batch) >= resultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
