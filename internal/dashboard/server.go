// Package dashboard is the web dashboard process. It owns no playback
// state: every mutation is proxied to the bot's control server, and the
// read side is a 2-second poll feeding the playersync engine. The two
// processes only ever agree through that HTTP surface.
package dashboard

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"melodash/internal/botclient"
	"melodash/internal/playersync"
)

//go:embed static
var staticFS embed.FS

const sessionCookie = "melodash_session"

// BotClient is the slice of the bot control server the dashboard talks to.
type BotClient interface {
	Players(ctx context.Context) ([]botclient.PlayerSnapshot, error)
	Status(ctx context.Context) (botclient.Status, error)
	Control(ctx context.Context, req botclient.ControlRequest) (botclient.ControlResponse, int, error)
}

type Server struct {
	password string
	bot      BotClient
	engine   *playersync.Engine

	pollInterval time.Duration

	mu       sync.Mutex
	sessions map[string]struct{}
}

func New(password string, bot BotClient) *Server {
	return &Server{
		password:     password,
		bot:          bot,
		engine:       playersync.NewEngine(playersync.DefaultConfig(), time.Now),
		pollInterval: 2 * time.Second,
		sessions:     make(map[string]struct{}),
	}
}

// Run serves the dashboard until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("[WARN] [Dashboard] Shutdown error:", err)
		}
	}()

	log.Println("[INFO] [Dashboard] Listening on", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /", http.FileServerFS(static))

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.Handle("GET /api/view", s.auth(s.handleView))
	mux.Handle("POST /api/select", s.auth(s.handleSelect))
	mux.Handle("POST /api/scrubbing", s.auth(s.handleScrubbing))
	mux.Handle("GET /api/bot/players", s.auth(s.handlePlayers))
	mux.Handle("GET /api/bot/status", s.auth(s.handleStatus))
	mux.Handle("POST /api/bot/control", s.auth(s.handleControl))

	return mux
}

// RunPollLoop polls the bot on a fixed cadence and feeds snapshots into the
// sync engine. Polls are skipped while a seek gesture is in progress so the
// timeline does not fight the user's drag.
func (s *Server) RunPollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.engine.ShouldPoll() {
				continue
			}
			s.pollOnce(ctx)
		}
	}
}

func (s *Server) pollOnce(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollInterval)
	defer cancel()

	snapshots, err := s.bot.Players(pollCtx)
	if err != nil {
		// An unreachable bot reads as no sessions; the engine falls back
		// to an empty view until the bot comes back.
		s.engine.ApplySnapshot(nil)
		return
	}
	s.engine.ApplySnapshot(toSyncPlayers(snapshots))
}

func toSyncPlayers(snapshots []botclient.PlayerSnapshot) []playersync.Player {
	players := make([]playersync.Player, 0, len(snapshots))
	for _, snap := range snapshots {
		p := playersync.Player{
			GuildID:  snap.GuildID,
			Playing:  snap.Playing,
			Paused:   snap.Paused,
			Position: snap.Position,
			Volume:   snap.Volume,
			Shuffle:  snap.Settings.ShuffleEnabled,
			Repeat:   snap.Settings.RepeatMode,
		}
		for _, track := range snap.Queue {
			p.Queue = append(p.Queue, track.Title)
		}
		if snap.Current != nil {
			p.Title = snap.Current.Title
			p.Duration = snap.Current.Duration
		}
		players = append(players, p)
	}
	return players
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != s.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid password"})
		return
	}

	token := newToken()
	s.mu.Lock()
	s.sessions[token] = struct{}{}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || !s.validSession(cookie.Value) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	})
}

func (s *Server) validSession(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	return ok
}

type viewDTO struct {
	Players  []playerViewDTO `json:"players"`
	Selected string          `json:"selected"`
	State    string          `json:"state"`
	Position int64           `json:"position"`
}

type playerViewDTO struct {
	GuildID  string   `json:"guildId"`
	Playing  bool     `json:"playing"`
	Paused   bool     `json:"paused"`
	Volume   int      `json:"volume"`
	Title    string   `json:"title"`
	Duration int64    `json:"duration"`
	Queue    []string `json:"queue"`
	Shuffle  bool     `json:"shuffle"`
	Repeat   string   `json:"repeat"`
}

// handleView reports the engine's interpolated view. The position here is
// the locally-advanced one, not the last polled value.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	players := s.engine.Players()
	view := viewDTO{
		Players:  make([]playerViewDTO, 0, len(players)),
		Selected: s.engine.Selected(),
		State:    stateName(s.engine.State()),
		Position: s.engine.Position(),
	}
	for _, p := range players {
		view.Players = append(view.Players, playerViewDTO{
			GuildID:  p.GuildID,
			Playing:  p.Playing,
			Paused:   p.Paused,
			Volume:   p.Volume,
			Title:    p.Title,
			Duration: p.Duration,
			Queue:    append([]string{}, p.Queue...),
			Shuffle:  p.Shuffle,
			Repeat:   p.Repeat,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func stateName(st playersync.State) string {
	switch st {
	case playersync.StateInterpolating:
		return "interpolating"
	case playersync.StateSeeking:
		return "seeking"
	default:
		return "idle"
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GuildID string `json:"guildId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}
	s.engine.Select(body.GuildID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleScrubbing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}
	s.engine.SetScrubbing(body.Active)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.bot.Players(r.Context())
	if err != nil {
		// Read surface degrades; an offline bot is an empty list.
		writeJSON(w, http.StatusOK, []botclient.PlayerSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.bot.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, botclient.Status{Online: false})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleControl proxies a mutation to the bot. Unlike the read routes this
// must never mask an unreachable bot as success.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var creq botclient.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&creq); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	resp, status, err := s.bot.Control(r.Context(), creq)
	if err != nil {
		log.Println("[WARN] [Dashboard] Control proxy failed:", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "bot offline"})
		return
	}

	// A successful seek starts the optimistic window so the timeline jumps
	// immediately instead of waiting out the next poll.
	if creq.Action == "seek" && status == http.StatusOK && creq.GuildID == s.engine.Selected() {
		if target, perr := strconv.ParseInt(creq.Query, 10, 64); perr == nil {
			s.engine.BeginSeek(target)
		}
	}

	writeJSON(w, status, resp)
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("[WARN] [Dashboard] Failed to encode response:", err)
	}
}
