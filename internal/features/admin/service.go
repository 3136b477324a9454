package admin

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
)

// Service manages staff authentication. Sessions and login attempts live
// in memory only: a restart logs everyone out, which is the safe default.
type Service struct {
	mu       sync.Mutex
	cfg      *config.Config
	sessions map[string]*Session
	attempts map[string][]time.Time

	now func() time.Time
}

// NewService creates the admin service.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// VerifyPassword checks the staff password and opens a session. Three
// failed attempts inside an hour lock the caller out for the rest of it.
func (s *Service) VerifyPassword(userID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-attemptWindow)
	var recent []time.Time
	for _, t := range s.attempts[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= maxLoginAttempts {
		s.attempts[userID] = recent
		return common.ErrTooManyAttempts
	}

	if !verifyArgon2id(password, s.cfg.AdminPasswordHash) {
		s.attempts[userID] = append(recent, now)
		log.WithField("user_id", userID).Warn("failed admin login")
		return common.ErrWrongPassword
	}

	delete(s.attempts, userID)
	s.sessions[userID] = &Session{
		UserID:          userID,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(sessionTTL),
	}
	log.WithField("user_id", userID).Info("admin logged in")
	return nil
}

// HasActiveSession reports whether the caller holds an unexpired session.
func (s *Service) HasActiveSession(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, userID)
		return false
	}
	return true
}

// Logout drops the caller's session.
func (s *Service) Logout(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// verifyArgon2id checks a password against an encoded Argon2id hash of the
// form $argon2id$v=19$m=65536,t=3,p=2$<salt_b64>$<hash_b64>.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("malformed Argon2id hash in config")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("failed to parse Argon2id parameters")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("failed to decode Argon2id salt")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("failed to decode Argon2id hash")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
