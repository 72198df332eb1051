package api

import (
	"io"
	"net/http"
	"time"

	"github.com/cpg-predict/cpgd/internal/apierr"
	"github.com/cpg-predict/cpgd/internal/audit"
	"github.com/cpg-predict/cpgd/internal/auth"
	"github.com/cpg-predict/cpgd/internal/codec"
	"github.com/cpg-predict/cpgd/internal/payload"
	"github.com/cpg-predict/cpgd/internal/predict"
	"github.com/cpg-predict/cpgd/internal/seq"
)

// RegisterRoutes registers all predictor endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health endpoint (no auth required)
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	// Discovery endpoints
	mux.HandleFunc(apiV1+"/formats", s.handleFormats)
	mux.HandleFunc(apiV1+"/help", s.handleHelp)

	// Prediction endpoint, token-protected when auth is configured
	predictHandler := s.withRecovery(s.handlePredict)
	if s.authMiddleware != nil {
		predictHandler = s.authMiddleware.RequireAuth(
			s.authMiddleware.RequireScope(auth.ScopePredict)(predictHandler))
	}
	mux.HandleFunc(apiV1+"/predict", predictHandler)
}

// withRecovery catches panics escaping a handler and reports them as
// server_error instead of letting the connection die with a stack trace.
func (s *Server) withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.writeError(w, apierr.Internalf("An unexpected internal error occurred: %v.", p))
			}
		}()
		next(w, r)
	}
}

// handlePredict handles POST /predict: decode, validate, preprocess, compute,
// encode. Every failure is translated at this boundary and audited.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, apierr.MethodNotAllowed("Only POST method is allowed"))
		return
	}
	started := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.failPredict(w, r, nil, started, apierr.BadRequestf("Could not read request body: %v", err))
		return
	}

	request, err := codec.DecodeRequest(body, r.Header.Get("Content-Type"), s.cfg.Formats.Request)
	if err != nil {
		s.failPredict(w, r, nil, started, err)
		return
	}

	if err := payload.Validate(request); err != nil {
		s.failPredict(w, r, request, started, err)
		return
	}

	sequences, err := seq.Preprocess(request)
	if err != nil {
		s.failPredict(w, r, request, started, err)
		return
	}

	readout, _ := payload.String(request["readout"])

	response := &PredictResponse{
		PredictorName:   s.cfg.Predictor.Name,
		PredictionTasks: []TaskResult{},
	}
	if readout == predict.ReadoutTrack {
		binSize := predict.TrackBinSize
		response.BinSize = &binSize
	}

	for _, task := range payload.Tasks(request) {
		scaleRequested := ""
		var scaleRequestedPtr *string
		if v, ok := task["scale"]; ok {
			sc, _ := payload.String(v)
			scaleRequested = sc
			scaleRequestedPtr = &sc
		}

		predictions, scaleActual := predict.Predict(sequences, readout, scaleRequested)

		name, _ := payload.String(task["name"])
		typeRequested, _ := payload.String(task["type"])
		cellType, _ := payload.String(task["cell_type"])
		species, _ := payload.String(task["species"])

		response.PredictionTasks = append(response.PredictionTasks, TaskResult{
			Name:              name,
			TypeRequested:     typeRequested,
			TypeActual:        []string{"NA"},
			CellTypeRequested: cellType,
			CellTypeActual:    "NA",
			SpeciesRequested:  species,
			SpeciesActual:     "NA",
			ScaleRequested:    scaleRequestedPtr,
			ScaleActual:       scaleActual,
			Predictions:       predictions,
		})
	}

	s.auditPredict(r, request, http.StatusOK, "ok", started)
	s.writeSuccess(w, r, response)
}

// failPredict audits a failed prediction request and writes the error.
func (s *Server) failPredict(w http.ResponseWriter, r *http.Request, request map[string]interface{}, started time.Time, err error) {
	apiErr := apierr.From(err)
	s.auditPredict(r, request, apiErr.StatusCode, apiErr.Key, started)
	s.writeError(w, apiErr)
}

// auditPredict records one prediction request outcome. request may be nil when
// the body never decoded.
func (s *Server) auditPredict(r *http.Request, request map[string]interface{}, status int, outcome string, started time.Time) {
	if s.auditLogger == nil {
		return
	}
	entry := audit.Entry{
		RemoteAddr: r.RemoteAddr,
		Status:     status,
		Outcome:    outcome,
		LatencyMs:  time.Since(started).Milliseconds(),
	}
	if request != nil {
		entry.Readout, _ = payload.String(request["readout"])
		if tasks, ok := payload.List(request["prediction_tasks"]); ok {
			entry.Tasks = len(tasks)
		}
		if sequences, ok := payload.Map(request["sequences"]); ok {
			entry.Sequences = len(sequences)
		}
	}
	s.auditLogger.LogPrediction(entry)
}

// handleFormats handles GET /formats.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, apierr.MethodNotAllowed("Only GET method is allowed"))
		return
	}

	formats := map[string]interface{}{
		"predictor_supported_request_formats":  s.cfg.Formats.Request,
		"predictor_supported_response_formats": s.cfg.Formats.Response,
	}
	s.writeSuccess(w, r, formats)
}

// handleHelp handles GET /help.
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, apierr.MethodNotAllowed("Only GET method is allowed"))
		return
	}

	if s.helpLoader == nil {
		s.writeError(w, apierr.Internalf("Help document not available"))
		return
	}
	doc, err := s.helpLoader.Load()
	if err != nil {
		s.writeError(w, apierr.Internalf("Error reading help file: %v", err))
		return
	}
	s.writeSuccess(w, r, doc)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, apierr.MethodNotAllowed("Only GET method is allowed"))
		return
	}

	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	health := map[string]interface{}{
		"status":    "ok",
		"uptimeSec": uptime,
		"version":   "1.0.0",
		"subsystems": map[string]bool{
			"audit": s.auditLogger != nil,
			"help":  s.helpLoader != nil,
		},
	}
	s.writeSuccess(w, r, health)
}
