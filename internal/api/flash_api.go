package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

type FlashAPI struct {
	Store  dispatch.FlashStore
	Logger *slog.Logger
}

func NewFlashAPI(store dispatch.FlashStore, logger *slog.Logger) *FlashAPI {
	return &FlashAPI{
		Store:  store,
		Logger: logger,
	}
}

type PushFlashRequest struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// PushFlash parks a flash for the caller's own next page load.
func (api *FlashAPI) PushFlash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, err := flash.ParseRecipient(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid user")
		return
	}

	var req PushFlashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Message == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing message")
		return
	}

	item := flash.Item{Category: req.Category, Message: req.Message}
	if err := api.Store.Push(ctx, userURN, item); err != nil {
		api.Logger.Error("failed to push flash", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("PushFlash: Flash stored", "user", userURN, "category", item.ResolvedCategory())

	w.WriteHeader(http.StatusNoContent)
}
