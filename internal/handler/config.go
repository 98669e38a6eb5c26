package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"doseclock/internal/httputil"
	"doseclock/internal/model"
	"doseclock/internal/service"
	"doseclock/internal/transport/http/middleware"
)

type ConfigHandler struct {
	configService *service.UserConfigService
}

func NewConfigHandler(configService *service.UserConfigService) *ConfigHandler {
	return &ConfigHandler{configService: configService}
}

// Get handles GET /config
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	cfg, err := h.configService.GetOrCreate(r.Context(), userID)
	if err != nil {
		log.Printf("[ERROR] Get config handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to load settings")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// Update handles PUT /config
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	cfg, err := h.configService.Update(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, model.ErrValidationFailed) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		log.Printf("[ERROR] Update config handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to update settings")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// LinkTelegram handles POST /config/telegram/link
func (h *ConfigHandler) LinkTelegram(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.LinkTelegramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	cfg, err := h.configService.LinkTelegram(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, model.ErrValidationFailed) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		log.Printf("[ERROR] LinkTelegram handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to link Telegram chat")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// UnlinkTelegram handles POST /config/telegram/unlink
func (h *ConfigHandler) UnlinkTelegram(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	cfg, err := h.configService.UnlinkTelegram(r.Context(), userID)
	if err != nil {
		log.Printf("[ERROR] UnlinkTelegram handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to unlink Telegram chat")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// SendTest handles POST /config/telegram/test
func (h *ConfigHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.configService.SendTest(r.Context(), userID); err != nil {
		if errors.Is(err, model.ErrTelegramNotLinked) {
			httputil.WriteConflict(w, "Telegram chat is not linked")
			return
		}
		log.Printf("[ERROR] SendTest handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to send test message")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
