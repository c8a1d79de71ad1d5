package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"imagewatch/internal/alerts"
	"imagewatch/internal/logging"
)

// apiServer exposes the review workflow over HTTP: state reads, the four
// manual match actions, and the on-demand recheck trigger.
type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" || d == nil {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/state", srv.handleState)
	mux.HandleFunc("/api/sites", srv.handleSites)
	mux.HandleFunc("/api/sites/", srv.handleSite)
	mux.HandleFunc("/api/recheck", srv.handleRecheck)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Store().Snapshot())
}

type siteSummary struct {
	Site       string   `json:"site"`
	MatchCount int      `json:"match_count"`
	NewCount   int      `json:"new_count"`
	GoneCount  int      `json:"gone_count"`
	Terms      []string `json:"terms"`
}

func (s *apiServer) handleSites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	state := s.daemon.Store().Snapshot()
	summaries := make([]siteSummary, 0, len(state.Sites))
	for siteKey, site := range state.Sites {
		summary := siteSummary{Site: siteKey, Terms: []string{}}
		terms := make(map[string]struct{})
		for _, record := range site.Matches {
			summary.MatchCount++
			switch record.Status {
			case alerts.StatusNew:
				summary.NewCount++
			case alerts.StatusGone:
				summary.GoneCount++
			}
			if record.Term != "" {
				terms[record.Term] = struct{}{}
			}
		}
		for term := range terms {
			summary.Terms = append(summary.Terms, term)
		}
		sort.Strings(summary.Terms)
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].MatchCount != summaries[j].MatchCount {
			return summaries[i].MatchCount > summaries[j].MatchCount
		}
		return summaries[i].Site < summaries[j].Site
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"sites": summaries})
}

// handleSite serves GET /api/sites/{site} and the manual match actions
// POST /api/sites/{site}/matches/{ack|close|mute|note}.
func (s *apiServer) handleSite(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sites/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "site not found")
		return
	}

	siteKey, action, isAction := strings.Cut(rest, "/matches/")
	siteKey = strings.ToLower(strings.TrimSuffix(siteKey, "/"))
	if siteKey == "" {
		s.writeError(w, http.StatusNotFound, "site not found")
		return
	}

	if !isAction {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		state := s.daemon.Store().Snapshot()
		site, ok := state.Sites[siteKey]
		if !ok {
			s.writeError(w, http.StatusNotFound, "site not found")
			return
		}
		s.writeJSON(w, http.StatusOK, site)
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleMatchAction(w, r, siteKey, action)
}

type matchActionRequest struct {
	ImageURL string `json:"image_url"`
	Muted    *bool  `json:"muted,omitempty"`
	Note     string `json:"note,omitempty"`
}

func (s *apiServer) handleMatchAction(w http.ResponseWriter, r *http.Request, siteKey, action string) {
	var req matchActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		s.writeError(w, http.StatusBadRequest, "image_url required")
		return
	}

	store := s.daemon.Store()
	var err error
	switch action {
	case "ack":
		err = store.Acknowledge(siteKey, req.ImageURL)
	case "close":
		err = store.Close(siteKey, req.ImageURL)
	case "mute":
		muted := true
		if req.Muted != nil {
			muted = *req.Muted
		}
		err = store.SetMuted(siteKey, req.ImageURL, muted)
	case "note":
		if strings.TrimSpace(req.Note) == "" {
			s.writeError(w, http.StatusBadRequest, "note required")
			return
		}
		err = store.AddNote(siteKey, req.ImageURL, strings.TrimSpace(req.Note), time.Now().UTC())
	default:
		s.writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	if errors.Is(err, alerts.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	record, _ := store.Get(siteKey, req.ImageURL)
	s.writeJSON(w, http.StatusOK, record)
}

func (s *apiServer) handleRecheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	processed := s.daemon.RecheckNow(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
