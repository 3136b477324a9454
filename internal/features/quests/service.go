package quests

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/store"
)

// QuestsPerWeek is fixed: every board carries exactly three quests.
const QuestsPerWeek = 3

// Awarder is the slice of the ledger the quest workflow needs.
type Awarder interface {
	AwardWithProofs(ctx context.Context, userID string, amount decimal.Decimal, purpose string, proofURLs []string) (*economy.AwardResult, error)
	ProofApproved(url string) bool
}

// Service owns the quest board and its submissions.
type Service struct {
	mu          sync.Mutex
	store       store.Store
	ledger      Awarder
	points      decimal.Decimal
	board       *Board
	submissions map[string]*Submission // "user:week:n"

	now func() time.Time
}

// NewService creates the quest service. Call Load before serving traffic.
func NewService(st store.Store, ledger Awarder, cfg *config.Config) *Service {
	return &Service{
		store:       st,
		ledger:      ledger,
		points:      decimal.NewFromFloat(cfg.QuestPoints),
		submissions: make(map[string]*Submission),
		now:         time.Now,
	}
}

// Load restores the board and submissions from the store.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(ctx, store.TableWeeklyQuests, &s.board); err != nil {
		return err
	}
	return s.store.Load(ctx, store.TableQuestSubmissions, &s.submissions)
}

// PostQuests replaces the board with a new week of exactly three quests.
// The week counter bumps and all prior submissions are dropped; last
// week's approvals live on in the ledger's proof guard, so their links
// stay spent forever.
func (s *Service) PostQuests(ctx context.Context, quests []string) (*Board, error) {
	if len(quests) != QuestsPerWeek {
		return nil, fmt.Errorf("need exactly %d quests, got %d", QuestsPerWeek, len(quests))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	week := 1
	if s.board != nil {
		week = s.board.Week + 1
	}
	s.board = &Board{
		Week:     week,
		Quests:   quests,
		PostedAt: s.now(),
	}
	s.submissions = make(map[string]*Submission)
	s.persist(ctx)

	cp := *s.board
	return &cp, nil
}

// Board returns the active board, nil when none has been posted.
func (s *Service) Board() *Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return nil
	}
	cp := *s.board
	return &cp
}

// Submit registers a proof for one quest slot of the current week. The
// slot accepts a new proof only when empty or previously rejected; an
// approved slot is final and a pending one must be reviewed first.
func (s *Service) Submit(ctx context.Context, userID string, questNumber int, rawURL string) (*Submission, error) {
	url := common.NormalizeTweetURL(rawURL)
	if url == "" {
		return nil, common.ErrInvalidProofURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return nil, common.ErrNoActiveQuests
	}
	if questNumber < 1 || questNumber > QuestsPerWeek {
		return nil, common.ErrInvalidQuestNumber
	}

	key := submissionKey(userID, s.board.Week, questNumber)
	if existing, ok := s.submissions[key]; ok {
		switch existing.Status {
		case StatusApproved:
			return nil, common.ErrAlreadyApproved
		case StatusPending:
			return nil, common.ErrPendingConflict
		}
		// Rejected: the slot reopens.
	}

	if s.ledger.ProofApproved(url) {
		return nil, common.ErrDuplicateSubmission
	}
	for _, sub := range s.submissions {
		if sub.URL == url && sub.Status != StatusRejected {
			return nil, common.ErrDuplicateSubmission
		}
	}

	sub := &Submission{
		UserID:      userID,
		Week:        s.board.Week,
		QuestNumber: questNumber,
		URL:         url,
		Status:      StatusPending,
		SubmittedAt: s.now(),
	}
	s.submissions[key] = sub
	s.persist(ctx)

	cp := *sub
	return &cp, nil
}

// Verify settles a pending submission. Approval pays the flat quest reward
// through the proof-guarded award and locks the slot; rejection reopens it.
func (s *Service) Verify(ctx context.Context, userID string, questNumber int, approve bool) (*economy.AwardResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return nil, common.ErrNoActiveQuests
	}
	key := submissionKey(userID, s.board.Week, questNumber)
	sub, ok := s.submissions[key]
	if !ok || sub.Status != StatusPending {
		if ok && sub.Status == StatusApproved {
			return nil, common.ErrAlreadyApproved
		}
		return nil, common.ErrNotFound
	}

	if !approve {
		sub.Status = StatusRejected
		s.persist(ctx)
		return nil, nil
	}

	res, err := s.ledger.AwardWithProofs(ctx, userID, s.points,
		fmt.Sprintf("weekly quest %d (week %d)", questNumber, sub.Week), []string{sub.URL})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user":  userID,
			"quest": questNumber,
		}).Warn("quest approval award failed, submission kept pending")
		return nil, err
	}

	sub.Status = StatusApproved
	s.persist(ctx)
	return res, nil
}

// Submissions returns a member's rows for the current week, slot order.
func (s *Service) Submissions(userID string) []*Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return nil
	}
	out := make([]*Submission, 0, QuestsPerWeek)
	for n := 1; n <= QuestsPerWeek; n++ {
		if sub, ok := s.submissions[submissionKey(userID, s.board.Week, n)]; ok {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out
}

// PendingCount returns how many submissions await review this week.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sub := range s.submissions {
		if sub.Status == StatusPending {
			n++
		}
	}
	return n
}

func submissionKey(userID string, week, questNumber int) string {
	return fmt.Sprintf("%s:%d:%d", userID, week, questNumber)
}

func (s *Service) persist(ctx context.Context) {
	if err := s.store.Save(ctx, store.TableWeeklyQuests, s.board); err != nil {
		log.WithError(err).Error("failed to persist quest board")
	}
	if err := s.store.Save(ctx, store.TableQuestSubmissions, s.submissions); err != nil {
		log.WithError(err).Error("failed to persist quest submissions")
	}
}
