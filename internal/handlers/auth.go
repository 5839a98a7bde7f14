package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/warekiosk/kioskgo/internal/middleware"
	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/telemetry"
	"github.com/warekiosk/kioskgo/internal/utils"
)

const (
	maxPinAttempts     = 5
	pinLockoutDuration = 15 * time.Minute
)

// LoginRequest represents a password login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
}

// RfidLoginRequest is the HTTP fallback for kiosks whose scanner posts card
// reads directly instead of through the device message queue
type RfidLoginRequest struct {
	RfidUid string `json:"rfidUid"`
	Scanner string `json:"scanner"`
}

// VerifyPinRequest completes an RFID login that requires a PIN
type VerifyPinRequest struct {
	Pin      string `json:"pin"`
	MfaToken string `json:"mfaToken"`
}

// ChangePasswordRequest updates the caller's own password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// login handles email/password login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var user models.User
	if err := r.db.Where("email = ?", loginReq.Email).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !utils.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateSessionToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// register handles user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if regReq.Email == "" || regReq.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Email:        regReq.Email,
		PasswordHash: hashedPassword,
		Name:         regReq.Name,
		Lastname:     regReq.Lastname,
	}
	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create user (email might exist)")
		return
	}

	token, err := utils.GenerateSessionToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "User created but failed to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// loginRfid resolves an RFID card tap delivered over HTTP. Same semantics as
// the queue-borne login path: the tag UID matches bare or legacy-prefixed
// stored values, PIN users get a step-up token instead of a session token,
// and a named scanner is bound to the user on success.
func (r *Router) loginRfid(w http.ResponseWriter, req *http.Request) {
	var rfidReq RfidLoginRequest
	if err := json.NewDecoder(req.Body).Decode(&rfidReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	uid := strings.TrimSpace(rfidReq.RfidUid)
	if len(uid) >= len(telemetry.LoginPrefix) && strings.EqualFold(uid[:len(telemetry.LoginPrefix)], telemetry.LoginPrefix) {
		uid = strings.TrimSpace(uid[len(telemetry.LoginPrefix):])
	}
	if uid == "" {
		respondError(w, http.StatusBadRequest, "rfidUid is required")
		return
	}

	var user models.User
	err := r.db.Where("rfid_tag_uid = ? OR rfid_tag_uid = ?", uid, telemetry.LoginPrefix+uid).First(&user).Error
	if err != nil {
		respondError(w, http.StatusUnauthorized, "No user found for this RFID card")
		return
	}

	var deviceID string
	if rfidReq.Scanner != "" {
		deviceID, _, err = r.bindings.Bind(req.Context(), user.ID, rfidReq.Scanner)
		if err != nil {
			respondError(w, http.StatusNotFound, "No scanner with that name")
			return
		}
	}

	if user.PinRequired() {
		mfaToken, err := utils.GenerateStepUpToken(&user, deviceID, r.cfg.JWTSecret)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"pinRequired": true,
			"mfaToken":    mfaToken,
			"user":        user,
		})
		return
	}

	token, err := utils.GenerateSessionToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pinRequired": false,
		"token":       token,
		"user":        user,
	})
}

// verifyPin exchanges a step-up token plus the correct PIN for a full
// session token. Repeated failures lock the PIN for a while.
func (r *Router) verifyPin(w http.ResponseWriter, req *http.Request) {
	var pinReq VerifyPinRequest
	if err := json.NewDecoder(req.Body).Decode(&pinReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	claims, err := utils.ValidateToken(pinReq.MfaToken, r.cfg.JWTSecret)
	if err != nil || !utils.IsStepUpToken(claims) {
		respondError(w, http.StatusUnauthorized, "Invalid or expired login, scan your card again")
		return
	}
	userID, _ := claims["id"].(float64)

	var user models.User
	if err := r.db.First(&user, uint(userID)).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired login, scan your card again")
		return
	}
	if !user.PinRequired() {
		respondError(w, http.StatusBadRequest, "No PIN configured for this account")
		return
	}

	now := time.Now().UTC()
	if user.PinLockoutUntil != nil && user.PinLockoutUntil.After(now) {
		respondError(w, http.StatusLocked, "PIN locked, try again later")
		return
	}

	if !utils.CheckPasswordHash(pinReq.Pin, *user.PinHash) {
		user.PinFailedAttempts++
		if user.PinFailedAttempts >= maxPinAttempts {
			lockout := now.Add(pinLockoutDuration)
			user.PinLockoutUntil = &lockout
			user.PinFailedAttempts = 0
			log.Printf("⚠️  PIN locked for user %d until %s", user.ID, lockout.Format(time.RFC3339))
		}
		r.db.Save(&user)
		respondError(w, http.StatusUnauthorized, "Incorrect PIN")
		return
	}

	user.PinFailedAttempts = 0
	user.PinLockoutUntil = nil
	r.db.Save(&user)

	token, err := utils.GenerateSessionToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// currentUser returns the authenticated user's profile
func (r *Router) currentUser(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// changePassword updates the caller's own password
func (r *Router) changePassword(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var changeReq ChangePasswordRequest
	if err := json.NewDecoder(req.Body).Decode(&changeReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if changeReq.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "New password is required")
		return
	}

	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if !utils.CheckPasswordHash(changeReq.CurrentPassword, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hashed, err := utils.HashPassword(changeReq.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	user.PasswordHash = hashed
	if err := r.db.Save(&user).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
