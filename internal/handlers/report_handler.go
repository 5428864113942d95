package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"potwatch/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *services.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// GetReport computes the payments-due report for the current moment.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportService.BuildReport(time.Now())
	if err != nil {
		h.logger.Error("failed to build report", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
