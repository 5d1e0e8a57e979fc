package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/report"
)

// handleReport runs a report (POST, filter body) or returns the published
// report (GET).
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		rep, ok := s.app.Session.Report()
		if !ok {
			WriteErrorWithCode(w, http.StatusNotFound, "No report has been run", "no_report")
			return
		}
		WriteJSON(w, http.StatusOK, rep)
		return
	}

	var filter report.Filter
	if !DecodeOptionalJSON(w, r, &filter) {
		return
	}

	ctx := r.Context()
	if err := s.app.CompleteFilter(ctx, &filter); err != nil {
		s.logger.Error().Err(err).Msg("Failed to complete report filter")
		WriteError(w, http.StatusInternalServerError, "Failed to load filter defaults")
		return
	}

	rep, err := s.app.Session.Run(ctx, filter)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, rep)
	case errors.Is(err, report.ErrSuperseded):
		// A newer request owns the screen now.
		WriteJSON(w, http.StatusOK, map[string]bool{"superseded": true})
	case errors.Is(err, report.ErrInvalidFilter):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_filter")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.logger.Debug().Msg("Report request cancelled by client")
	default:
		s.logger.Error().Err(err).Msg("Report failed")
		WriteError(w, http.StatusInternalServerError, "Report failed: "+err.Error())
	}
}

type collapseRequest struct {
	Date models.Date `json:"date"`
}

// handleReportCollapse toggles a history date and returns the history.
func (s *Server) handleReportCollapse(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req collapseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date == (models.Date{}) {
		WriteError(w, http.StatusBadRequest, "date is required")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history":   s.app.Session.ToggleDateCollapse(req.Date),
		"collapsed": s.app.Session.CollapsedDates(),
	})
}

type categoryRequest struct {
	CategoryID *uuid.UUID `json:"category_id"`
}

// handleReportExpand toggles a parent category and returns the breakdown.
func (s *Server) handleReportExpand(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req categoryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.CategoryID == nil {
		WriteError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"breakdown": s.app.Session.ToggleCategoryExpand(*req.CategoryID),
	})
}

// handleReportSelect selects a category, or clears the selection when
// category_id is null.
func (s *Server) handleReportSelect(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req categoryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	var category *models.Category
	if req.CategoryID != nil {
		found, err := s.app.Storage.LedgerStore().FindCategory(r.Context(), *req.CategoryID)
		if err != nil {
			s.logger.Error().Err(err).Str("category", req.CategoryID.String()).Msg("Category lookup failed")
			WriteError(w, http.StatusInternalServerError, "Category lookup failed")
			return
		}
		if found == nil {
			WriteErrorWithCode(w, http.StatusNotFound, "Category not found", "unknown_category")
			return
		}
		category = found
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"breakdown": s.app.Session.SelectCategory(category),
	})
}

// handleReportChart renders the visible breakdown as a PNG pie chart.
func (s *Server) handleReportChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	png, err := s.app.Session.Chart()
	if err != nil {
		if errors.Is(err, report.ErrNoReport) {
			WriteErrorWithCode(w, http.StatusNotFound, "No report has been run", "no_report")
			return
		}
		s.logger.Warn().Err(err).Msg("Chart render failed")
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, "Nothing to chart: "+err.Error(), "empty_chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
