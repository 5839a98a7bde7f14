package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/warekiosk/kioskgo/internal/models"
)

// ItemRequest creates or updates an inventory item
type ItemRequest struct {
	RfidUid  string `json:"rfidUid"`
	ItemName string `json:"itemName"`
}

// ScannerRequest creates or updates a kiosk scanner
type ScannerRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

// listItems returns the full inventory, optionally filtered by status
func (r *Router) listItems(w http.ResponseWriter, req *http.Request) {
	query := r.db.Preload("CurrentHolder").Order("item_name ASC")
	if status := req.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var items []models.Item
	if err := query.Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// createItem registers a new tagged inventory item
func (r *Router) createItem(w http.ResponseWriter, req *http.Request) {
	var itemReq ItemRequest
	if err := json.NewDecoder(req.Body).Decode(&itemReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if itemReq.RfidUid == "" || itemReq.ItemName == "" {
		respondError(w, http.StatusBadRequest, "rfidUid and itemName are required")
		return
	}

	item := models.Item{
		RfidUid:  itemReq.RfidUid,
		ItemName: itemReq.ItemName,
		Status:   models.ItemStatusAvailable,
	}
	if err := r.db.Create(&item).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create item (tag UID might exist)")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// updateItem renames an item or reassigns its tag
func (r *Router) updateItem(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var itemReq ItemRequest
	if err := json.NewDecoder(req.Body).Decode(&itemReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var item models.Item
	if err := r.db.First(&item, uint(id)).Error; err != nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}

	if itemReq.RfidUid != "" {
		item.RfidUid = itemReq.RfidUid
	}
	if itemReq.ItemName != "" {
		item.ItemName = itemReq.ItemName
	}
	if err := r.db.Save(&item).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to update item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// deleteItem removes an item from the inventory. Borrowed items must be
// returned first so the holder's record stays consistent.
func (r *Router) deleteItem(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var item models.Item
	if err := r.db.First(&item, uint(id)).Error; err != nil {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}
	if item.Status == models.ItemStatusBorrowed {
		respondError(w, http.StatusConflict, "Item is currently borrowed")
		return
	}

	if err := r.db.Delete(&item).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Item deleted"})
}

// listScanners returns all registered kiosk scanners
func (r *Router) listScanners(w http.ResponseWriter, req *http.Request) {
	var scanners []models.Scanner
	if err := r.db.Order("name ASC").Find(&scanners).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load scanners")
		return
	}
	respondJSON(w, http.StatusOK, scanners)
}

// createScanner registers a new kiosk scanner device
func (r *Router) createScanner(w http.ResponseWriter, req *http.Request) {
	var scannerReq ScannerRequest
	if err := json.NewDecoder(req.Body).Decode(&scannerReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if scannerReq.DeviceID == "" || scannerReq.Name == "" {
		respondError(w, http.StatusBadRequest, "deviceId and name are required")
		return
	}

	scanner := models.Scanner{
		DeviceID: scannerReq.DeviceID,
		Name:     scannerReq.Name,
		Status:   scannerReq.Status,
	}
	if scanner.Status == "" {
		scanner.Status = "active"
	}
	if err := r.db.Create(&scanner).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create scanner (device id might exist)")
		return
	}
	respondJSON(w, http.StatusCreated, scanner)
}

// updateScanner renames a scanner or changes its status
func (r *Router) updateScanner(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid scanner id")
		return
	}

	var scannerReq ScannerRequest
	if err := json.NewDecoder(req.Body).Decode(&scannerReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var scanner models.Scanner
	if err := r.db.First(&scanner, uint(id)).Error; err != nil {
		respondError(w, http.StatusNotFound, "Scanner not found")
		return
	}

	if scannerReq.Name != "" {
		scanner.Name = scannerReq.Name
	}
	if scannerReq.Status != "" {
		scanner.Status = scannerReq.Status
	}
	if err := r.db.Save(&scanner).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to update scanner")
		return
	}
	respondJSON(w, http.StatusOK, scanner)
}

// deleteScanner unregisters a kiosk scanner
func (r *Router) deleteScanner(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid scanner id")
		return
	}

	if err := r.db.Delete(&models.Scanner{}, uint(id)).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete scanner")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Scanner deleted"})
}

// listUsers returns all registered users for admins
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	var users []models.User
	if err := r.db.Order("email ASC").Find(&users).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}
