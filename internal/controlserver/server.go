// Package controlserver exposes the bot's playback state and control
// gateway over HTTP for the dashboard process. It is the only way into the
// bot from outside the Discord gateway.
package controlserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"melodash/internal/audio"
	"melodash/internal/gateway"
	"melodash/internal/settings"
)

// NodeStatus describes one backend node for the status endpoint.
type NodeStatus struct {
	Identifier string         `json:"identifier"`
	Connected  bool           `json:"connected"`
	Stats      map[string]any `json:"stats"`
}

// StatusProvider reports process-level figures the bot knows about.
type StatusProvider interface {
	Online() bool
	GuildCount() int
	UserCount() int
	Nodes() []NodeStatus
}

// Server serves /control, /players and /status.
type Server struct {
	gw       *gateway.Gateway
	registry *audio.Registry
	status   StatusProvider
	limiter  *rate.Limiter
}

func New(gw *gateway.Gateway, registry *audio.Registry, status StatusProvider) *Server {
	return &Server{
		gw:       gw,
		registry: registry,
		status:   status,
		// Control actions are human-initiated; 10 rps with a small burst
		// absorbs UI fumbling while stopping runaway clients.
		limiter: rate.NewLimiter(10, 20),
	}
}

// Run starts the HTTP server and blocks until it exits or ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		log.Println("[INFO] Shutting down control server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	log.Printf("[INFO] Control server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the route table; split out so tests can drive it with
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /control", s.handleControl)
	mux.HandleFunc("GET /players", s.handlePlayers)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

type controlRequest struct {
	Action  string `json:"action"`
	GuildID string `json:"guildId"`
	Query   string `json:"query"`
	Index   *int   `json:"index"`
	Enabled *bool  `json:"enabled"`
	Mode    string `json:"mode"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.GuildID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing guildId"})
		return
	}

	action, cerr := actionFrom(req)
	if cerr != nil {
		writeJSON(w, cerr.HTTPStatus(), map[string]string{"error": cerr.Message})
		return
	}

	res, err := s.gw.Apply(r.Context(), req.GuildID, action)
	if err != nil {
		var ce *gateway.ControlError
		if errors.As(err, &ce) {
			writeJSON(w, ce.HTTPStatus(), map[string]string{"error": ce.Message})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to control player"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message})
}

// actionFrom maps the wire payload to a gateway action. The dashboard
// reuses the query field for numeric payloads (volume level, seek
// position), which is the original wire contract.
func actionFrom(req controlRequest) (gateway.Action, *gateway.ControlError) {
	switch req.Action {
	case "play":
		return gateway.Play{Query: req.Query}, nil
	case "pause":
		return gateway.Pause{}, nil
	case "skip":
		return gateway.Skip{}, nil
	case "previous":
		return gateway.Previous{}, nil
	case "stop":
		return gateway.Stop{}, nil
	case "volume":
		level, err := strconv.Atoi(req.Query)
		if err != nil {
			return nil, &gateway.ControlError{Kind: gateway.KindValidation, Message: "Volume must be between 0 and 100"}
		}
		return gateway.Volume{Level: level}, nil
	case "seek":
		pos, err := strconv.ParseInt(req.Query, 10, 64)
		if err != nil {
			return nil, &gateway.ControlError{Kind: gateway.KindValidation, Message: "Invalid seek position"}
		}
		return gateway.Seek{Position: pos}, nil
	case "playNext":
		if req.Index == nil {
			return nil, &gateway.ControlError{Kind: gateway.KindValidation, Message: "Invalid track index"}
		}
		return gateway.PlayNext{Index: *req.Index}, nil
	case "remove":
		if req.Index == nil {
			return nil, &gateway.ControlError{Kind: gateway.KindValidation, Message: "Invalid track index"}
		}
		return gateway.Remove{Index: *req.Index}, nil
	case "shuffle":
		if req.Enabled == nil {
			return nil, &gateway.ControlError{Kind: gateway.KindValidation, Message: "Missing or invalid 'enabled' flag for shuffle"}
		}
		return gateway.Shuffle{Enabled: *req.Enabled}, nil
	case "repeat":
		return gateway.Repeat{Mode: settings.RepeatMode(req.Mode)}, nil
	}
	return nil, &gateway.ControlError{Kind: gateway.KindValidation, Message: "Invalid action"}
}

// Wire DTOs for the players endpoint.

type trackDTO struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Duration  int64  `json:"duration"`
	URI       string `json:"uri,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type playerDTO struct {
	GuildID      string            `json:"guildId"`
	VoiceChannel string            `json:"voiceChannel"`
	TextChannel  string            `json:"textChannel"`
	Connected    bool              `json:"connected"`
	Playing      bool              `json:"playing"`
	Paused       bool              `json:"paused"`
	Position     int64             `json:"position"`
	Volume       int               `json:"volume"`
	Current      *trackDTO         `json:"current"`
	Queue        []trackDTO        `json:"queue"`
	Settings     settings.Settings `json:"settings"`
}

func trackDTOFrom(t audio.Track) trackDTO {
	return trackDTO{
		Title:     t.Title,
		Author:    t.Author,
		Duration:  t.Duration,
		URI:       t.URI,
		Thumbnail: t.Thumbnail,
	}
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.Snapshots()
	out := make([]playerDTO, 0, len(snaps))
	for _, snap := range snaps {
		dto := playerDTO{
			GuildID:      snap.GuildID,
			VoiceChannel: snap.VoiceChannel,
			TextChannel:  snap.TextChannel,
			Connected:    snap.Connected,
			Playing:      snap.Playing,
			Paused:       snap.Paused,
			Position:     snap.Position,
			Volume:       snap.Volume,
			Queue:        make([]trackDTO, 0, len(snap.Queue)),
			Settings:     s.gw.Settings(snap.GuildID),
		}
		if snap.Current != nil {
			cur := trackDTOFrom(*snap.Current)
			dto.Current = &cur
		}
		for _, t := range snap.Queue {
			dto.Queue = append(dto.Queue, trackDTOFrom(t))
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

type statusDTO struct {
	Online  bool         `json:"online"`
	Guilds  int          `json:"guilds"`
	Users   int          `json:"users"`
	Players int          `json:"players"`
	Nodes   []NodeStatus `json:"nodes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := statusDTO{Nodes: []NodeStatus{}}
	if s.status != nil && s.status.Online() {
		st.Online = true
		st.Guilds = s.status.GuildCount()
		st.Users = s.status.UserCount()
		st.Players = s.registry.Count()
		st.Nodes = s.status.Nodes()
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] Failed to encode response: %v", err)
	}
}
