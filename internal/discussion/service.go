// Package discussion owns the threaded discussion engine: discussion and
// reply creation with moderation before persistence, vote and report toggle
// ledgers, soft deletes, tree resolution, and post-commit event publication.
package discussion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse/backend/internal/assistant"
	"github.com/classpulse/classpulse/backend/internal/engagement"
	apperrors "github.com/classpulse/classpulse/backend/internal/errors"
	"github.com/classpulse/classpulse/backend/internal/events"
	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/models"
	"github.com/classpulse/classpulse/backend/internal/moderation"
	"github.com/classpulse/classpulse/backend/internal/store"
)

// DefaultMaxDepth is how many reply levels a single read resolves: top-level
// replies and their direct children. Deeper levels take separate reads.
const DefaultMaxDepth = 2

// Service coordinates the thread store, the moderation pipeline, and the
// event publisher. All invariants live here; handlers are transport glue.
type Service struct {
	store     store.ThreadStore
	pipeline  *moderation.Pipeline
	publisher events.Publisher
	generator assistant.Generator
	depthCap  int
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithModeration sets the moderation pipeline. Without one every entity is
// approved.
func WithModeration(p *moderation.Pipeline) Option {
	return func(s *Service) { s.pipeline = p }
}

// WithPublisher sets the post-commit event publisher
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithAssistant sets the summary/suggestion generator
func WithAssistant(g assistant.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithDepthCap bounds how deep a single read may resolve the reply tree
func WithDepthCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.depthCap = n
		}
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over the given store
func NewService(ts store.ThreadStore, opts ...Option) *Service {
	s := &Service{
		store:     ts,
		publisher: events.NopPublisher{},
		depthCap:  8,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDiscussionInput carries the fields for a new discussion
type CreateDiscussionInput struct {
	Title  string
	Prompt string
	Tags   models.Tags
	Author models.Author
}

// CreateDiscussion validates input, moderates title and prompt together,
// persists, and publishes discussion:created.
func (s *Service) CreateDiscussion(ctx context.Context, in CreateDiscussionInput) (*models.Discussion, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperrors.ValidationError("title", "title is required")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, apperrors.ValidationError("prompt", "prompt is required")
	}
	if err := validateAuthor(in.Author); err != nil {
		return nil, err
	}

	status := s.pipeline.Review(ctx, in.Title+" "+in.Prompt, moderation.ContentDiscussion)

	now := s.now()
	d := &models.Discussion{
		ID:               uuid.New().String(),
		Title:            in.Title,
		Prompt:           in.Prompt,
		Tags:             in.Tags.Normalize(),
		Author:           in.Author,
		Upvotes:          models.UserIDSet{},
		ReportedBy:       models.UserIDSet{},
		ReplyIDs:         models.ReplyIDList{},
		ModerationStatus: status,
		IsActive:         true,
		CreatedAt:        now,
		LastActivity:     now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateDiscussion(ctx, d); err != nil {
		return nil, fmt.Errorf("persist discussion: %w", err)
	}

	logger.InfoWithFields("discussion created",
		logger.WithDiscussionID(d.ID),
		zap.String("moderation_status", string(status)),
	)

	s.publisher.Publish(events.EventDiscussionCreated, d)
	return d, nil
}

// AddReplyInput carries the fields for a new reply. ParentReplyID nil means
// a top-level reply on the discussion.
type AddReplyInput struct {
	DiscussionID  string
	ParentReplyID *string
	Content       string
	Author        models.Author
}

// AddReply validates input, moderates the content, persists the reply, and
// attaches it to its owner. A top-level attach bumps the discussion's
// lastActivity; a nested attach does not.
func (s *Service) AddReply(ctx context.Context, in AddReplyInput) (*models.Reply, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.ValidationError("content", "content is required")
	}
	if err := validateAuthor(in.Author); err != nil {
		return nil, err
	}

	d, err := s.store.GetDiscussion(ctx, in.DiscussionID)
	if err != nil {
		return nil, notFoundOr(err, "discussion")
	}
	if d.IsDeleted {
		return nil, apperrors.NotFound("discussion")
	}

	if in.ParentReplyID != nil {
		parent, err := s.store.GetReply(ctx, *in.ParentReplyID)
		if err != nil {
			return nil, notFoundOr(err, "parent reply")
		}
		if parent.IsDeleted || parent.DiscussionID != in.DiscussionID {
			return nil, apperrors.NotFound("parent reply")
		}
	}

	status := s.pipeline.Review(ctx, in.Content, moderation.ContentReply)

	now := s.now()
	r := &models.Reply{
		ID:               uuid.New().String(),
		DiscussionID:     in.DiscussionID,
		ParentID:         in.ParentReplyID,
		Content:          in.Content,
		Author:           in.Author,
		Upvotes:          models.UserIDSet{},
		ReportedBy:       models.UserIDSet{},
		ReplyIDs:         models.ReplyIDList{},
		ModerationStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateReply(ctx, r); err != nil {
		return nil, fmt.Errorf("persist reply: %w", err)
	}

	// Attach to the owner. Exactly one aggregate is touched either way.
	if in.ParentReplyID != nil {
		_, err = s.store.UpdateReply(ctx, *in.ParentReplyID, func(parent *models.Reply) error {
			parent.ReplyIDs.Append(r.ID)
			return nil
		})
	} else {
		_, err = s.store.UpdateDiscussion(ctx, in.DiscussionID, func(d *models.Discussion) error {
			d.ReplyIDs.Append(r.ID)
			d.LastActivity = now
			return nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("attach reply: %w", err)
	}

	logger.InfoWithFields("reply added",
		logger.WithDiscussionID(in.DiscussionID),
		logger.WithReplyID(r.ID),
		zap.Bool("nested", in.ParentReplyID != nil),
	)

	s.publisher.Publish(events.EventReplyAdded, events.ReplyAddedPayload{
		DiscussionID: in.DiscussionID,
		Reply:        r,
	})
	return r, nil
}

// ReadOption configures tree resolution on read paths
type ReadOption func(*readConfig)

type readConfig struct {
	maxDepth int
}

// WithMaxDepth resolves up to n reply levels in one read, capped by the
// service's configured limit
func WithMaxDepth(n int) ReadOption {
	return func(c *readConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// GetDiscussion returns a discussion with its reply tree resolved. Deleted
// replies are excluded at every level; a deleted discussion is not found.
func (s *Service) GetDiscussion(ctx context.Context, id string, opts ...ReadOption) (*models.Discussion, error) {
	cfg := readConfig{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxDepth > s.depthCap {
		cfg.maxDepth = s.depthCap
	}

	d, err := s.store.GetDiscussion(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "discussion")
	}
	if d.IsDeleted {
		return nil, apperrors.NotFound("discussion")
	}

	if d.Replies, err = s.resolveReplies(ctx, d.ReplyIDs, cfg.maxDepth); err != nil {
		return nil, fmt.Errorf("resolve replies: %w", err)
	}
	return d, nil
}

// resolveReplies fetches the replies for ids, drops deleted ones, and
// recurses until remaining depth is exhausted
func (s *Service) resolveReplies(ctx context.Context, ids models.ReplyIDList, depth int) ([]*models.Reply, error) {
	if depth <= 0 || len(ids) == 0 {
		return nil, nil
	}

	fetched, err := s.store.GetReplies(ctx, ids)
	if err != nil {
		return nil, err
	}

	replies := make([]*models.Reply, 0, len(fetched))
	for _, r := range fetched {
		if r.IsDeleted {
			continue
		}
		if r.Replies, err = s.resolveReplies(ctx, r.ReplyIDs, depth-1); err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, nil
}

// ListDiscussions returns non-deleted discussions with resolved trees and
// inactivity annotations, plus the inactive count.
func (s *Service) ListDiscussions(ctx context.Context) ([]*models.Discussion, int, error) {
	discussions, err := s.store.ListDiscussions(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list discussions: %w", err)
	}

	for _, d := range discussions {
		if d.Replies, err = s.resolveReplies(ctx, d.ReplyIDs, DefaultMaxDepth); err != nil {
			return nil, 0, fmt.Errorf("resolve replies: %w", err)
		}
	}

	inactive := engagement.Annotate(discussions, s.now())
	return discussions, inactive, nil
}

// ToggleVote flips userID's membership in the target's upvote set and
// reports the new state. The target is the discussion itself, or one of its
// replies when replyID is given.
func (s *Service) ToggleVote(ctx context.Context, discussionID, userID string, replyID *string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, apperrors.ValidationError("userId", "userId is required")
	}

	var voted bool
	var count int

	if replyID != nil {
		_, err := s.updateLiveReply(ctx, discussionID, *replyID, func(r *models.Reply) error {
			voted = r.Upvotes.Toggle(userID)
			count = r.Upvotes.Count()
			return nil
		})
		if err != nil {
			return false, err
		}
	} else {
		_, err := s.updateLiveDiscussion(ctx, discussionID, func(d *models.Discussion) error {
			voted = d.Upvotes.Toggle(userID)
			count = d.Upvotes.Count()
			return nil
		})
		if err != nil {
			return false, err
		}
	}

	s.publisher.Publish(events.EventUpvoteUpdated, events.UpvotePayload{
		DiscussionID: discussionID,
		ReplyID:      deref(replyID),
		UserID:       userID,
		Voted:        voted,
		VoteCount:    count,
	})
	return voted, nil
}

// Report records userID in the target's reportedBy set. Repeat reports are
// no-ops; a report never changes moderation status by itself.
func (s *Service) Report(ctx context.Context, discussionID, userID string, reason models.ReportReason, replyID *string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.ValidationError("userId", "userId is required")
	}
	if !models.ValidReportReason(reason) {
		return apperrors.ValidationError("reason", fmt.Sprintf("unknown report reason %q", reason))
	}

	var count int

	if replyID != nil {
		_, err := s.updateLiveReply(ctx, discussionID, *replyID, func(r *models.Reply) error {
			r.ReportedBy.Add(userID)
			count = r.ReportedBy.Count()
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		_, err := s.updateLiveDiscussion(ctx, discussionID, func(d *models.Discussion) error {
			d.ReportedBy.Add(userID)
			count = d.ReportedBy.Count()
			return nil
		})
		if err != nil {
			return err
		}
	}

	logger.InfoWithFields("content reported",
		logger.WithDiscussionID(discussionID),
		zap.String("reason", string(reason)),
	)

	s.publisher.Publish(events.EventContentReported, events.ReportPayload{
		DiscussionID: discussionID,
		ReplyID:      deref(replyID),
		UserID:       userID,
		Reason:       string(reason),
		ReportCount:  count,
	})
	return nil
}

// Delete soft-deletes the target and forces its moderation status to
// removed. Idempotent; descendants are left in place under the hidden
// ancestor, never cascaded.
func (s *Service) Delete(ctx context.Context, discussionID string, replyID *string) error {
	kind := "discussion"

	if replyID != nil {
		kind = "reply"
		_, err := s.store.UpdateReply(ctx, *replyID, func(r *models.Reply) error {
			if r.DiscussionID != discussionID {
				return store.ErrNotFound
			}
			r.IsDeleted = true
			r.ModerationStatus = models.ModerationRemoved
			return nil
		})
		if err != nil {
			return notFoundOr(err, "reply")
		}
	} else {
		_, err := s.store.UpdateDiscussion(ctx, discussionID, func(d *models.Discussion) error {
			d.IsDeleted = true
			d.IsActive = false
			d.ModerationStatus = models.ModerationRemoved
			return nil
		})
		if err != nil {
			return notFoundOr(err, "discussion")
		}
	}

	logger.InfoWithFields("content deleted",
		logger.WithDiscussionID(discussionID),
		zap.String("kind", kind),
	)

	s.publisher.Publish(events.EventContentDeleted, events.DeletePayload{
		DiscussionID: discussionID,
		ReplyID:      deref(replyID),
		Kind:         kind,
	})
	return nil
}

// ReportedQueue is the moderator read model: everything non-deleted that
// has at least one reporter
type ReportedQueue struct {
	Discussions []*models.Discussion `json:"discussions"`
	Replies     []*models.Reply      `json:"replies"`
}

// Reported returns the reported queue
func (s *Service) Reported(ctx context.Context) (*ReportedQueue, error) {
	discussions, err := s.store.ReportedDiscussions(ctx)
	if err != nil {
		return nil, fmt.Errorf("reported discussions: %w", err)
	}
	replies, err := s.store.ReportedReplies(ctx)
	if err != nil {
		return nil, fmt.Errorf("reported replies: %w", err)
	}
	return &ReportedQueue{Discussions: discussions, Replies: replies}, nil
}

// Summarize generates a summary of the discussion's thread and caches it on
// the discussion
func (s *Service) Summarize(ctx context.Context, id string) (string, error) {
	if s.generator == nil {
		return "", apperrors.ServiceUnavailable("assistant")
	}

	d, err := s.GetDiscussion(ctx, id, WithMaxDepth(s.depthCap))
	if err != nil {
		return "", err
	}

	summary, err := s.generator.Summarize(ctx, d)
	if err != nil {
		return "", apperrors.ServiceUnavailable("assistant").WithDetails(err.Error())
	}

	if _, err := s.store.UpdateDiscussion(ctx, id, func(d *models.Discussion) error {
		d.AISummary = summary
		return nil
	}); err != nil {
		return "", fmt.Errorf("cache summary: %w", err)
	}
	return summary, nil
}

// SuggestActions generates re-engagement prompts for a quiet discussion and
// caches them on the discussion
func (s *Service) SuggestActions(ctx context.Context, id string) ([]string, error) {
	if s.generator == nil {
		return nil, apperrors.ServiceUnavailable("assistant")
	}

	d, err := s.GetDiscussion(ctx, id, WithMaxDepth(s.depthCap))
	if err != nil {
		return nil, err
	}

	suggestions, err := s.generator.SuggestActions(ctx, d)
	if err != nil {
		return nil, apperrors.ServiceUnavailable("assistant").WithDetails(err.Error())
	}

	if _, err := s.store.UpdateDiscussion(ctx, id, func(d *models.Discussion) error {
		d.AISuggestions = models.Tags(suggestions)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("cache suggestions: %w", err)
	}
	return suggestions, nil
}

// updateLiveDiscussion applies mutate to a non-deleted discussion. Deleted
// aggregates reject mutations as not found.
func (s *Service) updateLiveDiscussion(ctx context.Context, id string, mutate store.MutateDiscussion) (*models.Discussion, error) {
	d, err := s.store.UpdateDiscussion(ctx, id, func(d *models.Discussion) error {
		if d.IsDeleted {
			return store.ErrNotFound
		}
		return mutate(d)
	})
	if err != nil {
		return nil, notFoundOr(err, "discussion")
	}
	return d, nil
}

// updateLiveReply is the reply counterpart of updateLiveDiscussion; it also
// checks the reply belongs to the given discussion
func (s *Service) updateLiveReply(ctx context.Context, discussionID, id string, mutate store.MutateReply) (*models.Reply, error) {
	r, err := s.store.UpdateReply(ctx, id, func(r *models.Reply) error {
		if r.IsDeleted || r.DiscussionID != discussionID {
			return store.ErrNotFound
		}
		return mutate(r)
	})
	if err != nil {
		return nil, notFoundOr(err, "reply")
	}
	return r, nil
}

func validateAuthor(a models.Author) error {
	if strings.TrimSpace(a.Name) == "" {
		return apperrors.ValidationError("author", "author name is required")
	}
	if a.Role != models.RoleTeacher && a.Role != models.RoleStudent {
		return apperrors.ValidationError("author", "author role must be Teacher or Student")
	}
	return nil
}

func notFoundOr(err error, resource string) error {
	if err == nil {
		return nil
	}
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(resource)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
