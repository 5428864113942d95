package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"potwatch/internal/provider"
)

type OAuthHandler struct {
	client *provider.Client
	logger *zap.Logger
}

func NewOAuthHandler(client *provider.Client, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		client: client,
		logger: logger,
	}
}

// Callback completes the authorization code exchange and persists the token.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if _, err := h.client.ExchangeCode(code); err != nil {
		h.logger.Error("failed to exchange authorization code", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to exchange authorization code")
		return
	}

	h.logger.Info("authorization complete")
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}
