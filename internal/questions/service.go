package questions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stackit-hq/stackit/backend/internal/apperr"
	"github.com/stackit-hq/stackit/backend/internal/auth"
	"github.com/stackit-hq/stackit/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sort enumerates the supported question list orderings.
type Sort string

const (
	SortNewest      Sort = "newest"
	SortOldest      Sort = "oldest"
	SortMostAnswers Sort = "most-answers"
	SortUnanswered  Sort = "unanswered"
)

// DefaultRelatedLimit caps the related-question lookup.
const DefaultRelatedLimit = 5

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies required by the question service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service persists questions and serves the listing/search surface.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService constructs the question service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("questions: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("questions: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateInput carries the fields supplied when posting a question.
type CreateInput struct {
	Title       string
	Description string
	Tags        []string
}

// Create persists a question with its normalized tag set. The author's
// username is copied onto the record as a historical snapshot.
func (s *Service) Create(ctx context.Context, input CreateInput, author auth.Principal) (Question, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	if title == "" {
		return Question{}, apperr.Validation("title is required")
	}
	if len(title) > maxTitleLength {
		return Question{}, apperr.Validation(fmt.Sprintf("title must not exceed %d characters", maxTitleLength))
	}
	if description == "" {
		return Question{}, apperr.Validation("description is required")
	}
	if strings.TrimSpace(author.UserID) == "" {
		return Question{}, apperr.Validation("author is required")
	}

	tags := normalizeTags(input.Tags)

	id, err := s.idProvider.NewID()
	if err != nil {
		return Question{}, apperr.Unavailable("could not create question", err)
	}

	now := s.clock()
	question := Question{
		ID:          id,
		Title:       title,
		Description: description,
		AuthorID:    author.UserID,
		Author:      author.Username,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		for _, tag := range tags {
			if err := tx.Create(&QuestionTag{QuestionID: id, Tag: tag}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return Question{}, apperr.Unavailable("could not create question", txErr)
	}

	s.logger.Info("question created", zap.String("question_id", id), zap.String("author_id", author.UserID))
	return question, nil
}

// Filter restricts and orders the question listing.
type Filter struct {
	Search string
	Tag    string
	SortBy Sort
}

// List returns question projections matching the filter. Each projection
// carries the cached answer count, which is maintained transactionally with
// answer creation and therefore live.
func (s *Service) List(ctx context.Context, filter Filter) ([]Question, error) {
	query := s.db.WithContext(ctx).Model(&Question{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("lower(title) LIKE ? OR lower(description) LIKE ?", pattern, pattern)
	}

	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		query = query.Where(
			"id IN (?)",
			s.db.Model(&QuestionTag{}).Select("question_id").Where("tag = ?", tag),
		)
	}

	switch filter.SortBy {
	case SortOldest:
		query = query.Order("created_at ASC")
	case SortMostAnswers:
		query = query.Order("answer_count DESC")
	case SortUnanswered:
		query = query.Where("answer_count = 0").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var results []Question
	if err := query.Find(&results).Error; err != nil {
		return nil, apperr.Unavailable("could not list questions", err)
	}

	if err := s.attachTags(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetByID loads a single question with its tags.
func (s *Service) GetByID(ctx context.Context, id string) (Question, error) {
	var question Question
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Question{}, apperr.NotFound("question not found")
	}
	if err != nil {
		return Question{}, apperr.Unavailable("could not load question", err)
	}

	single := []Question{question}
	if err := s.attachTags(ctx, single); err != nil {
		return Question{}, err
	}
	return single[0], nil
}

// IncrementViews bumps the view counter. The increment runs as a single SQL
// expression so concurrent views never lose updates.
func (s *Service) IncrementViews(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&Question{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if result.Error != nil {
		return apperr.Unavailable("could not increment views", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("question not found")
	}
	return nil
}

// Related returns up to limit questions sharing at least one tag with the
// source question, most viewed first, never including the source itself.
func (s *Service) Related(ctx context.Context, id string, limit int) ([]Question, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	source, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(source.Tags) == 0 {
		return []Question{}, nil
	}

	var related []Question
	err = s.db.WithContext(ctx).Model(&Question{}).
		Where("id <> ?", id).
		Where(
			"id IN (?)",
			s.db.Model(&QuestionTag{}).Select("question_id").Where("tag IN ?", source.Tags),
		).
		Order("views DESC").
		Limit(limit).
		Find(&related).Error
	if err != nil {
		return nil, apperr.Unavailable("could not load related questions", err)
	}

	if err := s.attachTags(ctx, related); err != nil {
		return nil, err
	}
	return related, nil
}

// attachTags populates the Tags slice for each question in one query.
func (s *Service) attachTags(ctx context.Context, items []Question) error {
	if len(items) == 0 {
		return nil
	}

	questionIDs := make([]string, 0, len(items))
	for _, item := range items {
		questionIDs = append(questionIDs, item.ID)
	}

	var rows []QuestionTag
	if err := s.db.WithContext(ctx).Where("question_id IN ?", questionIDs).Find(&rows).Error; err != nil {
		return apperr.Unavailable("could not load question tags", err)
	}

	byQuestion := make(map[string][]string, len(items))
	for _, row := range rows {
		byQuestion[row.QuestionID] = append(byQuestion[row.QuestionID], row.Tag)
	}
	for index := range items {
		tags := byQuestion[items[index].ID]
		sort.Strings(tags)
		if tags == nil {
			tags = []string{}
		}
		items[index].Tags = tags
	}
	return nil
}

// normalizeTags lowercases, trims, and de-duplicates the supplied tags while
// preserving first-seen order.
func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, duplicate := seen[normalized]; duplicate {
			continue
		}
		seen[normalized] = struct{}{}
		tags = append(tags, normalized)
	}
	return tags
}
