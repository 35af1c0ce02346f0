package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stackit-hq/stackit/backend/internal/answers"
	"github.com/stackit-hq/stackit/backend/internal/apperr"
	"github.com/stackit-hq/stackit/backend/internal/config"
	"github.com/stackit-hq/stackit/backend/internal/ids"
	"github.com/stackit-hq/stackit/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var noOpLogger = zap.NewNop()

// LedgerConfig describes the dependencies required by the vote ledger.
type LedgerConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
	// MinAnswers is the contribution gate threshold. Zero selects
	// config.DefaultMinAnswersToVote.
	MinAnswers int
}

// Ledger enforces one vote per user per answer and keeps the answer's vote
// counter consistent with the vote records.
type Ledger struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
	minAnswers int
}

// NewLedger constructs the vote ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("votes: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("votes: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	minAnswers := cfg.MinAnswers
	if minAnswers == 0 {
		minAnswers = config.DefaultMinAnswersToVote
	}
	return &Ledger{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		minAnswers: minAnswers,
	}, nil
}

// CanVote reports whether the user clears the contribution gate.
func (l *Ledger) CanVote(ctx context.Context, userID string) (bool, error) {
	var user users.User
	err := l.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperr.NotFound("user not found")
	}
	if err != nil {
		return false, apperr.Unavailable("could not check voting eligibility", err)
	}
	return user.AnswerCount >= int64(l.minAnswers), nil
}

// Cast records, flips, or retracts the user's vote on the answer and returns
// the answer's new vote total. Casting the same type twice retracts the vote;
// casting the opposite type flips it for a two-point swing. The vote record
// and the counter update commit together or not at all.
func (l *Ledger) Cast(ctx context.Context, userID, answerID string, voteType VoteType) (int64, error) {
	if _, ok := ParseVoteType(string(voteType)); !ok {
		return 0, apperr.Validation("vote type must be 'up' or 'down'")
	}

	eligible, err := l.CanVote(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !eligible {
		return 0, apperr.Forbidden(fmt.Sprintf("insufficient contribution: you must answer at least %d questions before voting", l.minAnswers))
	}

	var newTotal int64
	txErr := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answer answers.Answer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", answerID).
			Take(&answer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("answer not found")
		}
		if err != nil {
			return apperr.Unavailable("could not record vote", err)
		}

		var existing Vote
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND answer_id = ?", userID, answerID).
			Take(&existing).Error

		var delta int64
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			delta, err = l.insertVote(tx, userID, answerID, voteType)
			if err != nil {
				return err
			}
		case err != nil:
			return apperr.Unavailable("could not record vote", err)
		case existing.Type == voteType:
			// Same type again retracts the vote.
			if err := tx.Delete(&Vote{}, "id = ?", existing.ID).Error; err != nil {
				return apperr.Unavailable("could not record vote", err)
			}
			if voteType == TypeUp {
				delta = -1
			} else {
				delta = 1
			}
		default:
			// Opposite type flips the vote in place.
			err := tx.Model(&Vote{}).Where("id = ?", existing.ID).
				UpdateColumns(map[string]interface{}{"type": voteType, "updated_at": l.clock()}).Error
			if err != nil {
				return apperr.Unavailable("could not record vote", err)
			}
			if voteType == TypeUp {
				delta = 2
			} else {
				delta = -2
			}
		}

		err = tx.Model(&answers.Answer{}).
			Where("id = ?", answerID).
			UpdateColumn("votes", gorm.Expr("votes + ?", delta)).Error
		if err != nil {
			return apperr.Unavailable("could not record vote", err)
		}

		newTotal = answer.Votes + delta
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}

	l.logger.Debug("vote recorded",
		zap.String("user_id", userID),
		zap.String("answer_id", answerID),
		zap.String("type", string(voteType)),
		zap.Int64("votes", newTotal))
	return newTotal, nil
}

func (l *Ledger) insertVote(tx *gorm.DB, userID, answerID string, voteType VoteType) (int64, error) {
	id, err := l.idProvider.NewID()
	if err != nil {
		return 0, apperr.Unavailable("could not record vote", err)
	}
	now := l.clock()
	vote := Vote{
		ID:        id,
		UserID:    userID,
		AnswerID:  answerID,
		Type:      voteType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(&vote).Error; err != nil {
		// A racing insert past the row lookup hits the unique index; the
		// caller already holds a vote, so this is not a server error.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, apperr.Conflict("already voted on this answer")
		}
		return 0, apperr.Unavailable("could not record vote", err)
	}
	if voteType == TypeUp {
		return 1, nil
	}
	return -1, nil
}

// UserVote returns the user's current vote on the answer, if any.
func (l *Ledger) UserVote(ctx context.Context, userID, answerID string) (VoteType, bool, error) {
	var vote Vote
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND answer_id = ?", userID, answerID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Unavailable("could not load vote", err)
	}
	return vote.Type, true, nil
}
