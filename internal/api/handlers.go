package api

import (
	"net/http"
	"strconv"

	"metabias/adapters/report"
	"metabias/app"
	"metabias/domain/core"
	"metabias/internal/errors"

	"github.com/go-chi/chi/v5"
)

// valuesResponse wraps a vector result.
type valuesResponse struct {
	Values []float64 `json:"values"`
}

func (s *Server) handleWeight(w http.ResponseWriter, r *http.Request) {
	var in app.Inputs
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.densities.Weight(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valuesResponse{Values: out})
}

func (s *Server) handleNormalizer(w http.ResponseWriter, r *http.Request) {
	var in app.Inputs
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.densities.Normalizer(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valuesResponse{Values: out})
}

// handleDensity evaluates a family's density; ?log=true returns log-density.
func (s *Server) handleDensity(w http.ResponseWriter, r *http.Request) {
	logScale := false
	if v := r.URL.Query().Get("log"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, core.NewInvalidArgumentf("log", "%q is not a boolean", v))
			return
		}
		logScale = parsed
	}
	var in app.Inputs
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.densities.Density(r.Context(), chi.URLParam(r, "family"), in, logScale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valuesResponse{Values: out})
}

func (s *Server) handleExpectation(w http.ResponseWriter, r *http.Request) {
	var in app.Inputs
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.densities.Expectation(r.Context(), chi.URLParam(r, "family"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valuesResponse{Values: out})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	var in app.SampleInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	family := chi.URLParam(r, "family")
	out, err := s.densities.Sample(r.Context(), family, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	drawsTotal.WithLabelValues(family).Add(float64(len(out)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"draws": out, "seed": in.Seed})
}

func (s *Server) handleLogLik(w http.ResponseWriter, r *http.Request) {
	var in app.LogLikInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.densities.LogLik(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateFit(w http.ResponseWriter, r *http.Request) {
	var in app.FitInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	fit, err := s.fits.Fit(r.Context(), in)
	if err != nil {
		fitsTotal.WithLabelValues(in.Regime.Short(), "error").Inc()
		s.writeError(w, r, err)
		return
	}
	fitsTotal.WithLabelValues(in.Regime.Short(), "ok").Inc()
	w.Header().Set("Location", "/v1/fits/"+fit.ID.String())
	writeJSON(w, http.StatusCreated, fit)
}

func (s *Server) handleListFits(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, core.NewInvalidArgumentf("limit", "must be a positive integer, got %q", v))
			return
		}
		limit = n
	}
	list, err := s.fits.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fits": list})
}

func (s *Server) handleGetFit(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseFitID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, errors.New(errors.CodeInvalidArgument, err.Error()))
		return
	}
	fit, err := s.fits.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fit)
}

// handleFitReport renders a stored fit as HTML, or Markdown with ?format=md.
func (s *Server) handleFitReport(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseFitID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, errors.New(errors.CodeInvalidArgument, err.Error()))
		return
	}
	fit, err := s.fits.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.Markdown(fit)))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(report.HTML(fit))
}
