// Package store provides the persistence abstraction for discussion
// threads. Entities are keyed by opaque id and children are stored as id
// lists, so the reply tree is resolved by explicit fetch rather than an
// in-memory object graph. Each Update* call is an atomic read-modify-write
// on one aggregate; the store is the sole arbiter of durability.
package store

import (
	"context"
	"errors"

	"github.com/classpulse/classpulse/backend/internal/models"
)

var (
	// ErrNotFound means the aggregate id does not exist in the store
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidInput means a nil or malformed entity was passed in
	ErrInvalidInput = errors.New("invalid input")
)

// MutateDiscussion is applied inside an atomic read-modify-write.
// Returning an error aborts the update without writing.
type MutateDiscussion func(*models.Discussion) error

// MutateReply is the reply counterpart of MutateDiscussion
type MutateReply func(*models.Reply) error

// ThreadStore persists discussions and replies. Get* calls return
// soft-deleted entities too (they stay addressable for parent
// resolution); List* calls exclude them.
type ThreadStore interface {
	CreateDiscussion(ctx context.Context, d *models.Discussion) error
	GetDiscussion(ctx context.Context, id string) (*models.Discussion, error)
	ListDiscussions(ctx context.Context) ([]*models.Discussion, error)
	UpdateDiscussion(ctx context.Context, id string, mutate MutateDiscussion) (*models.Discussion, error)

	CreateReply(ctx context.Context, r *models.Reply) error
	GetReply(ctx context.Context, id string) (*models.Reply, error)
	// GetReplies resolves ids in order; ids that no longer resolve are skipped
	GetReplies(ctx context.Context, ids []string) ([]*models.Reply, error)
	UpdateReply(ctx context.Context, id string, mutate MutateReply) (*models.Reply, error)

	// Reported queue reads: non-deleted entities with at least one reporter
	ReportedDiscussions(ctx context.Context) ([]*models.Discussion, error)
	ReportedReplies(ctx context.Context) ([]*models.Reply, error)
}
