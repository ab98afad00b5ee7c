package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	controlTokenExpiry = 24 * time.Hour
	minPasswordLen     = 4
	maxPasswordLen     = 72 // bcrypt input limit
	joinRateWindow     = 60 * time.Second
	maxJoinAttempts    = 10
)

// bcryptCost is lowered by tests
var bcryptCost = bcrypt.DefaultCost

// Auth issues session control tokens and checks session passwords
type Auth struct {
	jwtSecret []byte

	// Rate limiting for password attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates a new Auth handler. db may be nil.
func NewAuth(db *DB) *Auth {
	return &Auth{
		jwtSecret: loadOrCreateSecret(db),
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			log.Printf("warning: could not persist JWT secret: %v", err)
		}
	}
	return secret
}

// IssueControlToken returns a token that lets its holder drive the arena of
// the given session.
func (a *Auth) IssueControlToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"exp": now.Add(controlTokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateControlToken checks that tokenStr was issued for sessionID
func (a *Auth) ValidateControlToken(tokenStr, sessionID string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid token")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid != sessionID {
		return fmt.Errorf("token not valid for this session")
	}
	return nil
}

// HashPassword validates and hashes a session password
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "", fmt.Errorf("password must be %d-%d characters", minPasswordLen, maxPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("internal error")
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. Attempts are rate
// limited per IP.
func (a *Auth) CheckPassword(hash, password, ip string) error {
	if !a.checkRate(ip) {
		return fmt.Errorf("too many attempts, try again later")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("wrong password")
	}
	return nil
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(joinRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxJoinAttempts
}
