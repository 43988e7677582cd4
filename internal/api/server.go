package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cdrlens/adapters/store"
	"cdrlens/adapters/tabular"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
	"cdrlens/internal/logx"
	"cdrlens/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxUploadBytes = 64 << 20

// Server exposes the analysis pipeline over HTTP: file upload, run progress
// via SSE, run history and artifact download.
type Server struct {
	orch   *pipeline.Orchestrator
	reader *tabular.Reader
	store  *store.Store
	hub    *Hub
	outDir string
	log    *logx.Logger
	router chi.Router
}

func NewServer(orch *pipeline.Orchestrator, reader *tabular.Reader, st *store.Store, outDir string, log *logx.Logger) *Server {
	if log == nil {
		log = logx.NewDefaultLogger()
	}
	s := &Server{
		orch:   orch,
		reader: reader,
		store:  st,
		hub:    NewHub(),
		outDir: outDir,
		log:    log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Get("/carriers", s.handleCarriers)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/events", s.handleEvents)
		r.Get("/runs/{id}/report", s.handleReport)
	})
	r.Handle("/artifacts/*", http.StripPrefix("/artifacts/",
		http.FileServer(http.Dir(s.outDir))))

	s.router = r
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleCarriers(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Key  carrier.Key `json:"key"`
		Name string      `json:"name"`
	}
	var out []entry
	for _, key := range carrier.Keys() {
		p, err := carrier.Lookup(key)
		if err != nil {
			continue
		}
		out = append(out, entry{Key: key, Name: p.Name})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleAnalyze accepts a multipart upload (fields: file, carrier) and starts
// a run. Any in-flight run is displaced.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	key := carrier.Key(r.FormValue("carrier"))
	if _, err := carrier.Lookup(key); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file: %w", err))
		return
	}
	defer file.Close()

	dataset, err := s.reader.ReadFrom(file, header.Filename)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	run, err := s.orch.Start(r.Context(), key, header.Filename, dataset)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	s.hub.Track(run.ID)
	go s.pump(run)

	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID.String()})
}

// pump forwards a run's event stream into the hub until the worker closes it.
func (s *Server) pump(run *pipeline.Run) {
	for ev := range run.Events() {
		s.hub.Publish(ev)
	}
	s.hub.Finish(run.ID)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "id"))
	events, ok := s.hub.Subscribe(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, core.ErrRunNotFound)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.hub.Unsubscribe(id, events)
			return
		case ev, open := <-events:
			if !open {
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// handleReport serves the run's rendered HTML report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "id"))
	rec, err := s.store.GetRun(r.Context(), id)
	if core.IsNotFoundError(err) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	path, ok := rec.Artifacts["report_html"]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("run %s has no report", id))
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "id"))
	rec, err := s.store.GetRun(r.Context(), id)
	if core.IsNotFoundError(err) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Warn("request failed (%d): %v", status, err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
