package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classpulse/classpulse/backend/internal/models"
)

// GormStore is the database-backed ThreadStore. Update* calls run inside
// a transaction holding a row lock on the aggregate, so concurrent
// mutations of the same document serialize at the database and each
// read-modify-write commits as one unit.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateDiscussion(ctx context.Context, d *models.Discussion) error {
	if d == nil {
		return ErrInvalidInput
	}
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *GormStore) GetDiscussion(ctx context.Context, id string) (*models.Discussion, error) {
	var d models.Discussion
	err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *GormStore) ListDiscussions(ctx context.Context) ([]*models.Discussion, error) {
	var out []*models.Discussion
	err := s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateDiscussion(ctx context.Context, id string, mutate MutateDiscussion) (*models.Discussion, error) {
	var out *models.Discussion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Discussion
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := mutate(&d); err != nil {
			return err
		}
		if err := tx.Save(&d).Error; err != nil {
			return err
		}
		out = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) CreateReply(ctx context.Context, r *models.Reply) error {
	if r == nil {
		return ErrInvalidInput
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *GormStore) GetReply(ctx context.Context, id string) (*models.Reply, error) {
	var r models.Reply
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) GetReplies(ctx context.Context, ids []string) ([]*models.Reply, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var fetched []*models.Reply
	if err := s.db.WithContext(ctx).Where("id IN ?", []string(ids)).Find(&fetched).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Reply, len(fetched))
	for _, r := range fetched {
		byID[r.ID] = r
	}
	// Preserve the caller's ordering; the id list is display order
	out := make([]*models.Reply, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *GormStore) UpdateReply(ctx context.Context, id string, mutate MutateReply) (*models.Reply, error) {
	var out *models.Reply
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Reply
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := mutate(&r); err != nil {
			return err
		}
		if err := tx.Save(&r).Error; err != nil {
			return err
		}
		out = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ReportedDiscussions(ctx context.Context) ([]*models.Discussion, error) {
	all, err := s.ListDiscussions(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if d.ReportedBy.Count() > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *GormStore) ReportedReplies(ctx context.Context) ([]*models.Reply, error) {
	var all []*models.Reply
	err := s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at ASC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.ReportedBy.Count() > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}
