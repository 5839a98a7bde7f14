package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/warekiosk/kioskgo/internal/checkout"
	"github.com/warekiosk/kioskgo/internal/middleware"
	"github.com/warekiosk/kioskgo/internal/session"
)

// BindScannerRequest attaches the caller's session to a kiosk scanner
type BindScannerRequest struct {
	Scanner string `json:"scanner"`
}

// CommitRequest finalizes the caller's pending cart
type CommitRequest struct {
	DeviceID string `json:"deviceId"`
	Notes    string `json:"notes"`
}

// getSession returns the caller's pending cart. A user with no pending
// scans gets an empty cart, not a 404.
func (r *Router) getSession(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	cart := r.carts.GetCart(userID)
	if cart == nil {
		cart = &session.Cart{
			UserID:    userID,
			StartedAt: time.Now().UTC(),
			Entries:   []session.CartEntry{},
		}
	}
	respondJSON(w, http.StatusOK, cart)
}

// bindScanner attaches the caller to a scanner by name or device id.
// Used by UI-driven logins; RFID card logins bind during scan resolution.
func (r *Router) bindScanner(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var bindReq BindScannerRequest
	if err := json.NewDecoder(req.Body).Decode(&bindReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if bindReq.Scanner == "" {
		respondError(w, http.StatusBadRequest, "Scanner name is required")
		return
	}

	deviceID, displayName, err := r.bindings.Bind(req.Context(), userID, bindReq.Scanner)
	if err != nil {
		if errors.Is(err, session.ErrScannerNotFound) {
			respondError(w, http.StatusNotFound, "No scanner with that name")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to bind scanner")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"deviceId": deviceID,
		"name":     displayName,
	})
}

// logout drops the caller's session state: the pending cart is discarded
// and the scanner binding (if named) is released so the kiosk frees up.
// Token invalidation is client-side, as with all stateless JWT flows here.
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var body struct {
		DeviceID string `json:"deviceId"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	r.carts.Clear(userID)
	if body.DeviceID != "" {
		r.bindings.Unbind(body.DeviceID, userID)
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// clearSession discards the caller's entire pending cart
func (r *Router) clearSession(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())
	r.carts.Clear(userID)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Session cleared"})
}

// removeSessionItem drops a single pending entry from the caller's cart
func (r *Router) removeSessionItem(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	itemID, err := strconv.ParseUint(mux.Vars(req)["itemId"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	if !r.carts.RemoveEntry(userID, uint(itemID)) {
		respondError(w, http.StatusNotFound, "Item is not in your pending session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Item removed"})
}

// commitSession atomically applies the caller's pending cart
func (r *Router) commitSession(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var commitReq CommitRequest
	if err := json.NewDecoder(req.Body).Decode(&commitReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	receipt, err := r.coordinator.Commit(req.Context(), userID, commitReq.DeviceID, commitReq.Notes)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "No pending items to commit")
			return
		}
		var unknownDevice *checkout.UnknownDeviceError
		if errors.As(err, &unknownDevice) {
			respondError(w, http.StatusBadRequest, "Unknown scanner device")
			return
		}
		if conflict, ok := checkout.AsConflict(err); ok {
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  conflict.Error(),
				"itemId": conflict.ItemID,
				"reason": conflict.Reason,
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to commit session")
		return
	}

	respondJSON(w, http.StatusOK, receipt)
}
