package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"rostercal/internal/calc"
	"rostercal/internal/config"
	"rostercal/internal/job"
	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/sync"
)

// RunSync executes one full sync run (scrape, normalize, export,
// reconcile). The server owns job bookkeeping around it; main wires the
// production implementation, tests inject a stub.
type RunSync func(ctx context.Context, period model.Period, sink sync.Sink) (model.SyncResult, error)

// Weather is the METAR/TAF lookup collaborator.
type Weather interface {
	METAR(ctx context.Context, station string) (string, error)
	TAF(ctx context.Context, station string) (string, error)
}

// Server provides the HTTP API and the embedded single-page UI.
type Server struct {
	cfg     *config.Config
	jobs    job.Store
	wx      Weather
	runSync RunSync
	loc     *time.Location
	mux     *http.ServeMux
}

//go:embed all:static
var embeddedStatic embed.FS

// flightPlanningLinks are the third-party tools surfaced on the UI.
var flightPlanningLinks = []link{
	{Name: "SimBrief", URL: "https://dispatch.simbrief.com/"},
	{Name: "SkyVector", URL: "https://skyvector.com/"},
	{Name: "Windy", URL: "https://www.windy.com/"},
}

type link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, jobs job.Store, weather Weather, runSync RunSync) *Server {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
		loc = time.Local
	}

	s := &Server{
		cfg:     cfg,
		jobs:    jobs,
		wx:      weather,
		runSync: runSync,
		loc:     loc,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/sync", s.handleSyncStart)
	s.mux.HandleFunc("GET /api/sync/{id}", s.handleSyncStatus)
	s.mux.HandleFunc("GET /api/roster.ics", s.handleRosterICS)

	s.mux.HandleFunc("GET /api/wx", s.handleWeather)
	s.mux.HandleFunc("POST /api/coldtemp", s.handleColdTemp)
	s.mux.HandleFunc("POST /api/fdp", s.handleFDP)
	s.mux.HandleFunc("GET /api/links", s.handleLinks)

	// Embedded single-page UI; every non-API path falls back to it.
	s.mux.Handle("/", s.staticFileServer())
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Treat an empty username or hash as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.PasswordHash != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth. The password is verified against the stored argon2id hash.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	passwordHash := s.cfg.BasicAuth.PasswordHash

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if ok && secureCompare(u, username) {
			match, err := VerifyPassword(p, passwordHash)
			if err != nil {
				appLog.Error("password hash verification failed", err)
			}
			if match {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="rostercal", charset="UTF-8"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSyncStart kicks off one sync run in the background and returns
// the job ID for status polling.
func (s *Server) handleSyncStart(w http.ResponseWriter, r *http.Request) {
	var period model.Period
	// An empty body means "current month".
	if err := json.NewDecoder(r.Body).Decode(&period); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid period payload")
		return
	}
	period = period.Normalize(time.Now(), s.loc)

	id := s.jobs.Create()
	appLog.Info("sync job created", "job_id", id, "period", period.String())

	go s.executeSync(id, period)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// executeSync owns all writes to its job; status polling only reads.
func (s *Server) executeSync(id string, period model.Period) {
	s.jobs.SetStatus(id, job.StatusRunning)

	sink := sync.Sink(func(line string) {
		s.jobs.AppendLog(id, line)
	})

	result, err := s.runSync(context.Background(), period, sink)
	if err != nil {
		appLog.Error("sync job failed", err, "job_id", id)
		s.jobs.Fail(id, err.Error())
		return
	}

	appLog.Info("sync job done", "job_id", id, "result", result.String())
	s.jobs.SetResult(id, result)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	j, ok := s.jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleRosterICS serves the last built calendar export from disk.
func (s *Server) handleRosterICS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.cfg.DataDir, "roster.ics"))
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	station := q.Get("station")
	kind := strings.ToLower(q.Get("kind"))

	var (
		text string
		err  error
	)
	switch kind {
	case "", "metar":
		kind = "metar"
		text, err = s.wx.METAR(r.Context(), station)
	case "taf":
		text, err = s.wx.TAF(r.Context(), station)
	default:
		writeError(w, http.StatusBadRequest, "kind must be metar or taf")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"station": strings.ToUpper(strings.TrimSpace(station)),
		"kind":    kind,
		"raw":     text,
	})
}

type coldTempResponse struct {
	Required    bool              `json:"required"`
	Corrections []calc.Correction `json:"corrections"`
}

func (s *Server) handleColdTemp(w http.ResponseWriter, r *http.Request) {
	var in calc.ColdTempInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	corrections, err := calc.ColdTempCorrections(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, coldTempResponse{
		Required:    calc.Required(in.AerodromeTempC),
		Corrections: corrections,
	})
}

// fdpRequest carries "2006-01-02T15:04" local times from the UI's
// datetime inputs; they are interpreted in the configured timezone.
type fdpRequest struct {
	Report   string `json:"report"`
	OffDuty  string `json:"off_duty"`
	Sectors  int    `json:"sectors"`
	HomeBase bool   `json:"home_base"`
}

type fdpResponse struct {
	FDP     string `json:"fdp"`
	MaxFDP  string `json:"max_fdp"`
	Legal   bool   `json:"legal"`
	Margin  string `json:"margin"`
	MinRest string `json:"min_rest"`
}

const fdpTimeLayout = "2006-01-02T15:04"

func (s *Server) handleFDP(w http.ResponseWriter, r *http.Request) {
	var req fdpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	report, err := time.ParseInLocation(fdpTimeLayout, req.Report, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report time")
		return
	}
	offDuty, err := time.ParseInLocation(fdpTimeLayout, req.OffDuty, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid off-duty time")
		return
	}

	res, err := calc.CheckFDP(calc.FDPInput{
		Report:   report,
		OffDuty:  offDuty,
		Sectors:  req.Sectors,
		HomeBase: req.HomeBase,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, fdpResponse{
		FDP:     res.FDP.String(),
		MaxFDP:  res.MaxFDP.String(),
		Legal:   res.Legal,
		Margin:  res.Margin.String(),
		MinRest: res.MinRest.String(),
	})
}

func (s *Server) handleLinks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, flightPlanningLinks)
}

// staticFileServer serves the embedded UI from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Never serve HTML for missing API routes.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
