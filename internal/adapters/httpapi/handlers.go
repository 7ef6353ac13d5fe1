package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
	"tickerSignal/internal/strategy/optimization"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req tickerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Ingest(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTickerResponse(rec))
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []tickerRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		s.writeError(w, r, err)
		return
	}
	recs := make([]*domain.TickerRecord, 0, len(reqs))
	for i, req := range reqs {
		rec, err := req.toRecord()
		if err != nil {
			s.writeError(w, r, fmt.Errorf("record %d: %w", i, err))
			return
		}
		recs = append(recs, rec)
	}
	if _, err := s.svc.IngestBatch(r.Context(), recs); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTickerResponses(recs))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.svc.History(r.Context(), r.PathValue("symbol"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTickerResponses(recs))
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.svc.Symbols(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"symbols": symbols})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	override, err := windowsParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	symbol := domain.NormalizeSymbol(r.PathValue("symbol"))

	result, err := s.svc.Signal(r.Context(), symbol, override)
	if errors.Is(err, domain.ErrInsufficientData) {
		// Not enough history yet is a normal answer, not a failure.
		windows := s.svc.DefaultWindows().Override(override)
		writeJSON(w, http.StatusOK, signalResponse{
			Symbol:      symbol,
			ShortWindow: windows.Short,
			LongWindow:  windows.Long,
			Reason:      err.Error(),
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSignalResponse(result))
}

func (s *Server) handleSignalTrace(w http.ResponseWriter, r *http.Request) {
	override, err := windowsParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	symbol := domain.NormalizeSymbol(r.PathValue("symbol"))
	windows := s.svc.DefaultWindows().Override(override)

	points, err := s.svc.SignalTrace(r.Context(), symbol, override)
	resp := traceResponse{Symbol: symbol, ShortWindow: windows.Short, LongWindow: windows.Long}
	switch {
	case errors.Is(err, domain.ErrInsufficientData):
		resp.Points = []tracePoint{}
		resp.Reason = err.Error()
	case err != nil:
		s.writeError(w, r, err)
		return
	default:
		resp.Points = newTracePoints(points)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	override, err := windowsParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.svc.Performance(r.Context(), r.PathValue("symbol"), override)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPerformanceResponse(report))
}

// Default search space for /strategy/optimize.
var (
	defaultShortRange = optimization.ParameterRange{Min: 2, Max: 10, Step: 1}
	defaultLongRange  = optimization.ParameterRange{Min: 10, Max: 50, Step: 5}
)

const defaultOptimizeTop = 10

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	short, err := rangeParam(r, "short", defaultShortRange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	long, err := rangeParam(r, "long", defaultLongRange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	top, err := positiveParam(r, "top")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if top == 0 {
		top = defaultOptimizeTop
	}

	results, err := s.svc.OptimizeWindows(r.Context(), r.PathValue("symbol"), short, long)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOptimizeResponse(domain.NormalizeSymbol(r.PathValue("symbol")), results, top))
}

// handleImportCSV accepts either a multipart upload in the "file" field or a
// raw CSV body. The symbol query parameter names the instrument when the CSV
// has no symbol column.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: multipart upload needs a \"file\" field: %v", ports.ErrInvalidRequest, err))
			return
		}
		defer file.Close()
		body = file
	}

	n, err := s.svc.ImportCSV(r.Context(), body, r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  fmt.Sprintf("Successfully imported %d records", n),
		"imported": n,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "detail": "ticker store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
