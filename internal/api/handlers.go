package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/internal/report"
)

const maxBodyBytes = 1 << 20

// collectRequest is the request body of /search and /collect. NumResults
// is a pointer so an explicit 0 can be told apart from an omitted field.
type collectRequest struct {
	Query       string   `json:"query"`
	NumResults  *int     `json:"num_results"`
	Competitors []string `json:"competitors"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// search handles POST /search: a collection plus its report. The format
// query parameter selects json (default), text, html or csv.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "text", "html", "csv":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	res, ok := s.run(w, r)
	if !ok {
		return
	}
	rep := s.assembler.Assemble(r.Context(), res)

	var err error
	switch format {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = report.WriteText(w, rep)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = report.WriteHTML(w, rep)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = report.WriteCSV(w, res)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
	if err != nil {
		s.logger.Error("failed to write report", "format", format, "err", err)
	}
}

// collect handles POST /collect: the collection alone.
func (s *Server) collect(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// run decodes and validates the request and collects it. On failure it
// writes the error response and reports false.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*model.CollectionResult, bool) {
	req, err := decodeRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	res, err := s.collector.Collect(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("collection failed", "query", req.Query, "err", err)
		}
		writeError(w, status, err.Error())
		return nil, false
	}
	return res, true
}

func decodeRequest(body io.Reader) (model.CollectionRequest, error) {
	var in collectRequest
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		return model.CollectionRequest{}, fmt.Errorf("invalid request body: %w", err)
	}

	req := model.CollectionRequest{Query: in.Query, Competitors: in.Competitors}
	if in.NumResults != nil {
		if *in.NumResults <= 0 {
			return req, fmt.Errorf("num_results must be between 1 and %d, got %d", model.MaxNumResults, *in.NumResults)
		}
		req.NumResults = *in.NumResults
	}
	if err := req.Normalize(); err != nil {
		return req, err
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
