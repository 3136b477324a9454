package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/store"
)

// Awarder is the slice of the ledger the task workflow needs.
type Awarder interface {
	AwardWithProofs(ctx context.Context, userID string, amount decimal.Decimal, purpose string, proofURLs []string) (*economy.AwardResult, error)
	ProofApproved(url string) bool
}

// Service owns the pending-submission state machine.
type Service struct {
	mu      sync.Mutex
	store   store.Store
	ledger  Awarder
	cfg     *config.Config
	pending map[string]*Submission // userID -> submission

	now func() time.Time
}

// NewService creates the task service. Call Load before serving traffic.
func NewService(st store.Store, ledger Awarder, cfg *config.Config) *Service {
	return &Service{
		store:   st,
		ledger:  ledger,
		cfg:     cfg,
		pending: make(map[string]*Submission),
		now:     time.Now,
	}
}

// Load restores pending submissions from the store.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx, store.TableSubmissions, &s.pending)
}

// Submit registers a proof link for moderation. The URL is normalized
// before any check so cosmetic variants of an already used link cannot
// slip through. A member may hold only one pending submission.
func (s *Service) Submit(ctx context.Context, userID, rawURL string) (*Submission, error) {
	url := common.NormalizeTweetURL(rawURL)
	if url == "" {
		return nil, common.ErrInvalidProofURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[userID]; exists {
		return nil, common.ErrPendingConflict
	}
	if s.ledger.ProofApproved(url) {
		return nil, common.ErrDuplicateSubmission
	}
	for _, sub := range s.pending {
		if sub.URL == url {
			return nil, common.ErrDuplicateSubmission
		}
	}

	sub := &Submission{
		UserID:      userID,
		URL:         url,
		RawURL:      rawURL,
		SubmittedAt: s.now(),
	}
	s.pending[userID] = sub
	s.persist(ctx)
	return sub, nil
}

// Verify approves a pending submission with moderator-verified engagement
// counts. Points are the configured per-interaction values scaled by the
// member's role multiplier, paid through the proof-guarded award so the
// same tweet can never be credited twice. The pending slot is cleared only
// after the award succeeds.
func (s *Service) Verify(ctx context.Context, userID string, eng Engagement, roleMultiplier float64) (*VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.pending[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if roleMultiplier <= 0 {
		roleMultiplier = 1
	}

	points := s.engagementPoints(eng).Mul(decimal.NewFromFloat(roleMultiplier)).Round(2)
	if points.LessThanOrEqual(decimal.Zero) {
		return nil, common.ErrInvalidAmount
	}

	res, err := s.ledger.AwardWithProofs(ctx, userID, points, "task reward", []string{sub.URL})
	if err != nil {
		return nil, err
	}

	delete(s.pending, userID)
	s.persist(ctx)

	return &VerifyResult{
		UserID:     userID,
		URL:        sub.URL,
		Points:     points,
		Multiplier: roleMultiplier,
		NewBalance: res.NewBalance,
	}, nil
}

// Reject drops a pending submission without any award. The member may
// submit again, including the same link.
func (s *Service) Reject(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[userID]; !ok {
		return common.ErrNotFound
	}
	delete(s.pending, userID)
	s.persist(ctx)
	return nil
}

// Pending returns a member's pending submission, nil if none.
func (s *Service) Pending(userID string) *Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.pending[userID]
	if !ok {
		return nil
	}
	cp := *sub
	return &cp
}

// PendingCount returns how many submissions await moderation.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) engagementPoints(eng Engagement) decimal.Decimal {
	pts := s.cfg.EngagementPoints
	total := decimal.Zero
	total = total.Add(decimal.NewFromFloat(pts["like"]).Mul(decimal.NewFromInt(int64(eng.Likes))))
	total = total.Add(decimal.NewFromFloat(pts["retweet"]).Mul(decimal.NewFromInt(int64(eng.Retweets))))
	total = total.Add(decimal.NewFromFloat(pts["comment"]).Mul(decimal.NewFromInt(int64(eng.Comments))))
	return total
}

func (s *Service) persist(ctx context.Context) {
	if err := s.store.Save(ctx, store.TableSubmissions, s.pending); err != nil {
		log.WithError(err).Error("failed to persist task submissions")
	}
}
