package handlers

import (
	"net/http"
	"strconv"

	"github.com/warekiosk/kioskgo/internal/middleware"
	"github.com/warekiosk/kioskgo/internal/models"
)

// listMyTransactions returns the caller's most recent transactions
func (r *Router) listMyTransactions(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var transactions []models.Transaction
	err := r.db.
		Preload("Item").
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(50).
		Find(&transactions).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

// listAllTransactions returns a paginated transaction log for admins
func (r *Router) listAllTransactions(w http.ResponseWriter, req *http.Request) {
	page, limit := pagination(req, 50)

	var total int64
	r.db.Model(&models.Transaction{}).Count(&total)

	var transactions []models.Transaction
	err := r.db.
		Preload("Item").
		Preload("User").
		Order("timestamp DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// listScanEvents returns the raw scan audit log for admins
func (r *Router) listScanEvents(w http.ResponseWriter, req *http.Request) {
	page, limit := pagination(req, 100)

	query := r.db.Model(&models.ScanEvent{})
	if deviceID := req.URL.Query().Get("deviceId"); deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}
	if accepted := req.URL.Query().Get("accepted"); accepted != "" {
		query = query.Where("accepted = ?", accepted == "true")
	}

	var total int64
	query.Count(&total)

	var events []models.ScanEvent
	err := query.
		Order("received_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load scan events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// pagination reads page/limit query parameters with sane bounds
func pagination(req *http.Request, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(req.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(req.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = defaultLimit
	}
	return page, limit
}
