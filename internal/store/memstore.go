package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/classpulse/classpulse/backend/internal/models"
)

// MemStore is an in-memory ThreadStore. It backs tests and database-less
// local runs. All reads hand out copies so callers can never mutate the
// arena behind the store's back; all writes serialize on one mutex, which
// gives the per-aggregate atomic read-modify-write the interface requires.
type MemStore struct {
	mu          sync.RWMutex
	discussions map[string]*models.Discussion
	replies     map[string]*models.Reply
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		discussions: make(map[string]*models.Discussion),
		replies:     make(map[string]*models.Reply),
	}
}

func (s *MemStore) CreateDiscussion(ctx context.Context, d *models.Discussion) error {
	if d == nil {
		return ErrInvalidInput
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discussions[d.ID] = cloneDiscussion(d)
	return nil
}

func (s *MemStore) GetDiscussion(ctx context.Context, id string) (*models.Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discussions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDiscussion(d), nil
}

func (s *MemStore) ListDiscussions(ctx context.Context) ([]*models.Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Discussion, 0, len(s.discussions))
	for _, d := range s.discussions {
		if d.IsDeleted {
			continue
		}
		out = append(out, cloneDiscussion(d))
	}
	sortDiscussions(out)
	return out, nil
}

func (s *MemStore) UpdateDiscussion(ctx context.Context, id string, mutate MutateDiscussion) (*models.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneDiscussion(d)
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.discussions[id] = working
	return cloneDiscussion(working), nil
}

func (s *MemStore) CreateReply(ctx context.Context, r *models.Reply) error {
	if r == nil {
		return ErrInvalidInput
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[r.ID] = cloneReply(r)
	return nil
}

func (s *MemStore) GetReply(ctx context.Context, id string) (*models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.replies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReply(r), nil
}

func (s *MemStore) GetReplies(ctx context.Context, ids []string) ([]*models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Reply, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.replies[id]; ok {
			out = append(out, cloneReply(r))
		}
	}
	return out, nil
}

func (s *MemStore) UpdateReply(ctx context.Context, id string, mutate MutateReply) (*models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replies[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneReply(r)
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.replies[id] = working
	return cloneReply(working), nil
}

func (s *MemStore) ReportedDiscussions(ctx context.Context) ([]*models.Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Discussion
	for _, d := range s.discussions {
		if d.IsDeleted || d.ReportedBy.Count() == 0 {
			continue
		}
		out = append(out, cloneDiscussion(d))
	}
	sortDiscussions(out)
	return out, nil
}

func (s *MemStore) ReportedReplies(ctx context.Context) ([]*models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Reply
	for _, r := range s.replies {
		if r.IsDeleted || r.ReportedBy.Count() == 0 {
			continue
		}
		out = append(out, cloneReply(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func sortDiscussions(ds []*models.Discussion) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].ID < ds[j].ID
		}
		return ds[i].CreatedAt.After(ds[j].CreatedAt)
	})
}

func cloneDiscussion(d *models.Discussion) *models.Discussion {
	out := *d
	out.Tags = d.Tags.Clone()
	out.Upvotes = d.Upvotes.Clone()
	out.ReportedBy = d.ReportedBy.Clone()
	out.ReplyIDs = d.ReplyIDs.Clone()
	out.AISuggestions = d.AISuggestions.Clone()
	out.Replies = nil
	return &out
}

func cloneReply(r *models.Reply) *models.Reply {
	out := *r
	out.Upvotes = r.Upvotes.Clone()
	out.ReportedBy = r.ReportedBy.Clone()
	out.ReplyIDs = r.ReplyIDs.Clone()
	out.Replies = nil
	if r.ParentID != nil {
		parent := *r.ParentID
		out.ParentID = &parent
	}
	return &out
}
