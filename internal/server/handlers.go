package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matzehuels/projector/pkg/buildinfo"
	perrors "github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/pipeline"
	"github.com/matzehuels/projector/pkg/problem"
)

// SolveRequest is the body of POST /v1/solve and POST /v1/nudge.
type SolveRequest struct {
	Problem  json.RawMessage `json:"problem"`
	Formats  []string        `json:"formats,omitempty"`
	Detailed bool            `json:"detailed,omitempty"`
	Blocks   bool            `json:"blocks,omitempty"`
	Refresh  bool            `json:"refresh,omitempty"`
}

// SolveResponse is returned on success. Text artifacts are returned
// verbatim, PNG as base64.
type SolveResponse struct {
	RequestID string            `json:"request_id"`
	Result    *problem.Result   `json:"result"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	SolveMS   float64           `json:"solve_ms"`
	RenderMS  float64           `json:"render_ms"`
}

// ErrorResponse is returned on failure.
type ErrorResponse struct {
	RequestID string    `json:"request_id"`
	Error     ErrorBody `json:"error"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	s.solve(w, r, problem.KindSolve)
}

func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	s.solve(w, r, problem.KindNudge)
}

func (s *Server) solve(w http.ResponseWriter, r *http.Request, kind string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, string(perrors.ErrCodeInvalidInput), "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, string(perrors.ErrCodeInvalidFormat), "decode request: "+err.Error())
		return
	}
	if len(req.Problem) == 0 {
		writeError(w, r, http.StatusBadRequest, string(perrors.ErrCodeInvalidInput), "problem is required")
		return
	}

	p, err := problem.Read(bytes.NewReader(req.Problem), problem.FormatJSON)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if p.Kind() != kind {
		writeError(w, r, http.StatusBadRequest, string(perrors.ErrCodeInvalidInput),
			"endpoint expects a "+kind+" problem, got "+p.Kind())
		return
	}
	if n := itemCount(p); n > s.cfg.MaxItems {
		writeError(w, r, http.StatusRequestEntityTooLarge, string(perrors.ErrCodeInvalidInput), "problem has too many items")
		return
	}
	if tl := p.Parameters.TimeLimit; tl <= 0 || tl > s.cfg.SolveTimeout {
		p.Parameters.TimeLimit = s.cfg.SolveTimeout
	}

	out, err := s.runner.Execute(r.Context(), pipeline.Options{
		Problem:  p,
		Formats:  req.Formats,
		Detailed: req.Detailed,
		Blocks:   req.Blocks,
		Refresh:  req.Refresh,
		RunID:    RequestIDFrom(r.Context()),
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	resp := SolveResponse{
		RequestID: RequestIDFrom(r.Context()),
		Result:    out.Result,
		SolveMS:   float64(out.Stats.SolveTime.Microseconds()) / 1000,
		RenderMS:  float64(out.Stats.RenderTime.Microseconds()) / 1000,
	}
	for format, data := range out.Artifacts {
		if format == pipeline.FormatJSON {
			continue
		}
		if resp.Artifacts == nil {
			resp.Artifacts = make(map[string]string)
		}
		if format == pipeline.FormatPNG {
			resp.Artifacts[format] = base64.StdEncoding.EncodeToString(data)
		} else {
			resp.Artifacts[format] = string(data)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// itemCount is the size a problem is limited by: every variable or item
// plus every constraint, neighbor pair and gap update.
func itemCount(p *problem.Problem) int {
	if p.Nudge != nil {
		return len(p.Nudge.Items) + len(p.Nudge.Constraints)
	}
	return len(p.Variables) + len(p.Constraints) + len(p.Neighbors) + len(p.Updates)
}

// writeErr maps a structured error to an HTTP status.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := perrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case perrors.ErrCodeInvalidArgument, perrors.ErrCodeInvalidInput, perrors.ErrCodeInvalidFormat,
		perrors.ErrCodeInvalidPath, perrors.ErrCodeInvalidState, perrors.ErrCodeUnsupported:
		status = http.StatusBadRequest
	case perrors.ErrCodeNotFound, perrors.ErrCodeFileNotFound:
		status = http.StatusNotFound
	case perrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case "":
		code = perrors.ErrCodeInternal
	}
	writeError(w, r, status, string(code), perrors.UserMessage(err))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		RequestID: RequestIDFrom(r.Context()),
		Error:     ErrorBody{Code: code, Message: msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
