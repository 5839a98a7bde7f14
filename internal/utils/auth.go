package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warekiosk/kioskgo/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// TokenPurposeStepUp marks short-lived tokens issued after an RFID login that
// still needs PIN verification. They are only accepted by the verify-pin
// endpoint, never by the regular auth middleware.
const TokenPurposeStepUp = "pin-step-up"

// HashPassword hashes a password (or PIN) using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateSessionToken creates a full session token for an authenticated user
func GenerateSessionToken(user *models.User, secret string) (string, error) {
	claims := jwt.MapClaims{
		"id":      user.ID,
		"email":   user.Email,
		"isAdmin": user.IsAdmin,
		"exp":     time.Now().Add(time.Hour * 12).Unix(), // one work shift
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateStepUpToken creates a short-lived token proving a successful RFID
// card read that still awaits PIN entry at the named kiosk
func GenerateStepUpToken(user *models.User, deviceID, secret string) (string, error) {
	claims := jwt.MapClaims{
		"id":       user.ID,
		"purpose":  TokenPurposeStepUp,
		"deviceId": deviceID,
		"exp":      time.Now().Add(time.Minute * 2).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and validates a token
func ValidateToken(tokenString string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// IsStepUpToken reports whether claims carry the PIN step-up purpose
func IsStepUpToken(claims jwt.MapClaims) bool {
	purpose, _ := claims["purpose"].(string)
	return purpose == TokenPurposeStepUp
}

// Issuer adapts the token helpers to the scan resolver's needs
type Issuer struct {
	Secret string
}

func (i Issuer) IssueSession(user *models.User) (string, error) {
	return GenerateSessionToken(user, i.Secret)
}

func (i Issuer) IssueStepUp(user *models.User, deviceID string) (string, error) {
	return GenerateStepUpToken(user, deviceID, i.Secret)
}
