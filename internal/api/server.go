// Package api exposes the launcher operations over local HTTP for web
// front ends, with bus events streamed over a websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/emcomm-tools/et-launcher/internal/app"
	"github.com/emcomm-tools/et-launcher/internal/auth"
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
	"github.com/emcomm-tools/et-launcher/internal/grid"
	"github.com/emcomm-tools/et-launcher/internal/process"
	"github.com/emcomm-tools/et-launcher/pkg/events"
	"github.com/emcomm-tools/et-launcher/pkg/filters"
)

const (
	eventBufferSize = 64
	writeTimeout    = 5 * time.Second
)

type Server struct {
	app        *app.App
	router     *mux.Router
	api        *mux.Router
	server     *http.Server
	wsUpgrader websocket.Upgrader
	log        zerolog.Logger
	mu         sync.Mutex
}

func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		router: mux.NewRouter(),
		log:    a.Log.With().Str("component", "api").Logger(),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(originGuard)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(requireJSON)
	s.api = api

	api.HandleFunc("/launch", s.handleLaunch).Methods("POST")
	api.HandleFunc("/run", s.handleRun).Methods("POST")
	api.HandleFunc("/sessions", s.handleSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}/output", s.handleOutput).Methods("GET")
	api.HandleFunc("/output", s.handleOutput).Methods("GET")
	api.HandleFunc("/user", s.handleGetUser).Methods("GET")
	api.HandleFunc("/user", s.handlePutUser).Methods("PUT")
	api.HandleFunc("/mode", s.handleGetMode).Methods("GET")
	api.HandleFunc("/mode", s.handlePutMode).Methods("PUT")
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handlePutSettings).Methods("PUT")
	api.HandleFunc("/radio", s.handleRadio).Methods("GET")
	api.HandleFunc("/grid", s.handleGrid).Methods("GET")
	api.HandleFunc("/catalog", s.handleCatalog).Methods("GET")
	api.HandleFunc("/console", s.handleConsole).Methods("GET")
	api.HandleFunc("/console/toggle", s.handleConsoleToggle).Methods("POST")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// RequireAuth protects every /api route with v. /health stays open.
func (s *Server) RequireAuth(v *auth.Verifier) {
	s.api.Use(v.Middleware)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l and blocks until Stop. The listener is
// closed on return.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()
	s.log.Info().Str("addr", l.Addr().String()).Msg("api listening")

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the listener down. In-flight launches are unaffected.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

type launchRequest struct {
	Target string `json:"target"`
	App    string `json:"app"`
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		session *process.Session
		err     error
	)
	switch {
	case req.App != "":
		cat, cerr := s.app.Catalog()
		if cerr != nil {
			s.writeError(w, cerr)
			return
		}
		entry, ok := cat.Find(req.App)
		if !ok {
			writeMessage(w, http.StatusNotFound, "unknown app "+strconv.Quote(req.App))
			return
		}
		session, err = s.app.LaunchApp(entry)
	case req.Target != "":
		session, err = s.app.Launch(req.Target)
	default:
		writeMessage(w, http.StatusBadRequest, "target or app is required")
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"session": session.Info()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}

	out, err := s.app.RunApp(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.app.Launcher.Sessions()})
}

// handleOutput returns recent launch activity, optionally for one session,
// matching ?q= and limited with ?limit=.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	var filter *filters.Filter
	if q := r.URL.Query().Get("q"); q != "" {
		f, err := filters.Parse(q)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = f
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	sessionID := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": s.app.Output.Search(sessionID, filter, limit)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.app.ReadUser()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handlePutUser(w http.ResponseWriter, r *http.Request) {
	var u config.UserProfile
	if !decodeBody(w, r, &u) {
		return
	}
	if err := s.app.WriteUser(u); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	mode, err := s.app.ReadMode()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode})
}

func (s *Server) handlePutMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.WriteMode(req.Mode); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.app.LoadSettings()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings config.Settings
	if !decodeBody(w, r, &settings) {
		return
	}
	if err := s.app.SaveSettings(settings); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRadio(w http.ResponseWriter, r *http.Request) {
	radio, err := s.app.ActiveRadio()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"radio": radio})
}

// handleGrid converts ?lat=&lon= when given, otherwise asks the system-info
// helper for the current position.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("lat") || q.Has("lon") {
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
		if err1 != nil || err2 != nil {
			writeMessage(w, http.StatusBadRequest, "lat and lon must be decimal degrees")
			return
		}
		locator, err := grid.ToLocator(lat, lon)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"grid": locator})
		return
	}

	reply, err := s.app.GridFromSystemInfo(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"grid": reply})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.app.Catalog()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"visible": s.app.Console.Visible()})
}

func (s *Server) handleConsoleToggle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"visible": s.app.ToggleConsole()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"sessions": len(s.app.Launcher.Sessions()),
	})
}

// handleEvents streams every bus event to the client as JSON. Slow clients
// lose events rather than stall the bus.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	queue := make(chan events.Event, eventBufferSize)
	unsubscribe := s.app.Bus.SubscribeAll(func(e events.Event) {
		select {
		case queue <- e:
		default:
			s.log.Warn().Str("event", string(e.Type)).Msg("event client too slow, dropping")
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug().Err(err).Msg("event client gone")
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  fault.KindOf(err).String(),
	})
}

func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Decode:
		return http.StatusUnprocessableEntity
	case fault.Spawn:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
