package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/warekiosk/kioskgo/internal/checkout"
	"github.com/warekiosk/kioskgo/internal/config"
	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/middleware"
	"github.com/warekiosk/kioskgo/internal/realtime"
	"github.com/warekiosk/kioskgo/internal/session"
)

// Router wraps the mux router and the service collaborators
type Router struct {
	*mux.Router
	db          *database.DB
	cfg         *config.Config
	hub         *realtime.Hub
	carts       *session.CartStore
	bindings    *session.BindingRegistry
	coordinator *checkout.Coordinator
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(
	db *database.DB,
	cfg *config.Config,
	hub *realtime.Hub,
	carts *session.CartStore,
	bindings *session.BindingRegistry,
	coordinator *checkout.Coordinator,
) *Router {
	r := &Router{
		Router:      mux.NewRouter(),
		db:          db,
		cfg:         cfg,
		hub:         hub,
		carts:       carts,
		bindings:    bindings,
		coordinator: coordinator,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes (unauthenticated)
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/login/rfid", r.loginRfid).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/verify-pin", r.verifyPin).Methods("POST")

	// Realtime endpoints. The kiosk socket carries the token as a query
	// parameter; the login socket is anonymous so the kiosk can show
	// RFID login results before anyone is authenticated.
	r.HandleFunc("/ws/kiosk", r.serveKioskSocket).Methods("GET")
	r.HandleFunc("/ws/login", r.serveLoginSocket).Methods("GET")

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))

	api.HandleFunc("/me", r.currentUser).Methods("GET")
	api.HandleFunc("/me/password", r.changePassword).Methods("PUT")
	api.HandleFunc("/logout", r.logout).Methods("POST")

	api.HandleFunc("/session", r.getSession).Methods("GET")
	api.HandleFunc("/session/bind", r.bindScanner).Methods("POST")
	api.HandleFunc("/session/clear", r.clearSession).Methods("POST")
	api.HandleFunc("/session/items/{itemId}", r.removeSessionItem).Methods("DELETE")
	api.HandleFunc("/session/commit", r.commitSession).Methods("POST")

	api.HandleFunc("/transactions", r.listMyTransactions).Methods("GET")

	// Admin API
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminOnly)

	admin.HandleFunc("/items", r.listItems).Methods("GET")
	admin.HandleFunc("/items", r.createItem).Methods("POST")
	admin.HandleFunc("/items/{id}", r.updateItem).Methods("PUT")
	admin.HandleFunc("/items/{id}", r.deleteItem).Methods("DELETE")

	admin.HandleFunc("/scanners", r.listScanners).Methods("GET")
	admin.HandleFunc("/scanners", r.createScanner).Methods("POST")
	admin.HandleFunc("/scanners/{id}", r.updateScanner).Methods("PUT")
	admin.HandleFunc("/scanners/{id}", r.deleteScanner).Methods("DELETE")

	admin.HandleFunc("/users", r.listUsers).Methods("GET")
	admin.HandleFunc("/transactions", r.listAllTransactions).Methods("GET")
	admin.HandleFunc("/scan-events", r.listScanEvents).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// serveKioskSocket upgrades an authenticated kiosk/session connection
func (r *Router) serveKioskSocket(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.TokenUserID(req.URL.Query().Get("token"), r.cfg.JWTSecret)
	if !ok {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}
	realtime.ServeWs(r.hub, w, req, userID)
}

// serveLoginSocket upgrades an anonymous login-watcher connection
func (r *Router) serveLoginSocket(w http.ResponseWriter, req *http.Request) {
	realtime.ServeWs(r.hub, w, req, 0)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
