package admin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/argon2"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// encodeTestHash builds an encoded hash with the same derivation the
// verifier uses. Cheap parameters keep the test fast.
func encodeTestHash(password string) string {
	salt := []byte("0123456789abcdef")
	var (
		memory      uint32 = 1024
		iterations  uint32 = 1
		parallelism uint8  = 1
	)
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func newTestService(password string) *Service {
	cfg := &config.Config{AdminPasswordHash: encodeTestHash(password)}
	s := NewService(cfg)
	s.now = func() time.Time { return testStart }
	return s
}

func TestLoginOpensSession(t *testing.T) {
	s := newTestService("hunter2")

	if s.HasActiveSession("mod") {
		t.Fatal("session active before login")
	}
	if err := s.VerifyPassword("mod", "hunter2"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !s.HasActiveSession("mod") {
		t.Fatal("no session after successful login")
	}

	s.Logout("mod")
	if s.HasActiveSession("mod") {
		t.Fatal("session survived logout")
	}
}

func TestWrongPassword(t *testing.T) {
	s := newTestService("hunter2")

	if err := s.VerifyPassword("mod", "letmein"); !errors.Is(err, common.ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}
	if s.HasActiveSession("mod") {
		t.Fatal("session opened by a wrong password")
	}
}

func TestLockoutAfterThreeFailures(t *testing.T) {
	s := newTestService("hunter2")

	for i := 0; i < 3; i++ {
		if err := s.VerifyPassword("mod", "nope"); !errors.Is(err, common.ErrWrongPassword) {
			t.Fatalf("attempt %d: err = %v, want ErrWrongPassword", i+1, err)
		}
	}
	// Even the right password is refused while locked out.
	if err := s.VerifyPassword("mod", "hunter2"); !errors.Is(err, common.ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", err)
	}

	// Another user is unaffected.
	if err := s.VerifyPassword("other", "hunter2"); err != nil {
		t.Fatalf("VerifyPassword for other user: %v", err)
	}

	// The window slides: an hour later the attempts have aged out.
	s.now = func() time.Time { return testStart.Add(time.Hour + time.Second) }
	if err := s.VerifyPassword("mod", "hunter2"); err != nil {
		t.Fatalf("VerifyPassword after lockout window: %v", err)
	}
	if !s.HasActiveSession("mod") {
		t.Fatal("no session after lockout expired")
	}
}

func TestSuccessResetsAttemptCounter(t *testing.T) {
	s := newTestService("hunter2")

	s.VerifyPassword("mod", "nope")
	s.VerifyPassword("mod", "nope")
	if err := s.VerifyPassword("mod", "hunter2"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}

	// The counter starts fresh: two more failures do not lock out.
	s.Logout("mod")
	s.VerifyPassword("mod", "nope")
	s.VerifyPassword("mod", "nope")
	if err := s.VerifyPassword("mod", "hunter2"); err != nil {
		t.Fatalf("VerifyPassword after reset: %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	s := newTestService("hunter2")

	if err := s.VerifyPassword("mod", "hunter2"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}

	s.now = func() time.Time { return testStart.Add(sessionTTL + time.Minute) }
	if s.HasActiveSession("mod") {
		t.Fatal("session still active past its TTL")
	}
}

func TestMalformedHashRejectsEverything(t *testing.T) {
	cfg := &config.Config{AdminPasswordHash: "not-a-hash"}
	s := NewService(cfg)
	s.now = func() time.Time { return testStart }

	if err := s.VerifyPassword("mod", "anything"); !errors.Is(err, common.ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}
}
