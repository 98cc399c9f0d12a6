package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"raceroom/internal/db"
	"raceroom/internal/metrics"
	"raceroom/internal/sim"
	"raceroom/internal/wshub"
)

type Server struct {
	Registry *sim.Registry
	Hub      *wshub.Hub
	DB       *db.DB             // nil if no database configured
	Results  chan db.RaceResult // nil if no database configured
}

// queueResult forwards a finish to the batch writer without ever blocking
// the simulation.
func (s *Server) queueResult(roomID string, difficulty sim.Difficulty, p *sim.Player) {
	res := db.RaceResult{
		RoomID:     roomID,
		PlayerID:   p.ID,
		Color:      p.Color,
		Difficulty: string(difficulty),
		RecordedAt: time.Now(),
	}
	if p.FinishTime != nil {
		res.FinishTimeMs = *p.FinishTime
	}
	select {
	case s.Results <- res:
	default:
		log.Warn().Str("room", roomID).Msg("result buffer full, dropping")
	}
}

// handleWS upgrades the connection and runs its read loop. Each connection
// carries one session; JOIN_ROOM binds it to a room and player.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	client := &wshub.Client{
		ConnID: uuid.New().String(),
		Conn:   conn,
		Send:   make(chan []byte, 64),
	}
	hooks := s.Hub.ConnHooks(client)
	sess := &sim.Session{}

	metrics.ClientsConnected.Inc()
	defer metrics.ClientsConnected.Dec()

	ctx := r.Context()
	go client.WritePump(ctx)

	defer func() {
		s.Hub.Detach(client)
		s.Registry.Disconnect(hooks, sess)
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug().Err(err).Str("conn", client.ConnID).Msg("websocket read ended")
			return
		}
		var msg sim.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed payloads are rejected here, never forwarded.
			log.Debug().Err(err).Str("conn", client.ConnID).Msg("bad client message")
			continue
		}
		metrics.MessagesTotal.WithLabelValues(msg.Type).Inc()
		s.Registry.Dispatch(hooks, sess, msg)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"db_error","error":%q}`, err.Error())
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":%q,"rooms":%d}`, status, s.Registry.RoomCount())
}

// handleResults serves the fastest recorded finishes for a difficulty.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "results unavailable", http.StatusNotFound)
		return
	}
	difficulty := r.URL.Query().Get("difficulty")
	if difficulty == "" {
		difficulty = string(sim.DifficultyNormal)
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	results, err := s.DB.TopResults(difficulty, limit)
	if err != nil {
		log.Error().Err(err).Msg("querying results")
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		log.Error().Err(err).Msg("encoding results")
	}
}
