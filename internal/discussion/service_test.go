package discussion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/classpulse/classpulse/backend/internal/errors"
	"github.com/classpulse/classpulse/backend/internal/events"
	"github.com/classpulse/classpulse/backend/internal/models"
	"github.com/classpulse/classpulse/backend/internal/moderation"
	"github.com/classpulse/classpulse/backend/internal/store"
)

// stubClassifier returns a fixed verdict or error
type stubClassifier struct {
	verdict moderation.Verdict
	err     error
}

func (s stubClassifier) Classify(ctx context.Context, text string, ct moderation.ContentType) (moderation.Verdict, error) {
	return s.verdict, s.err
}

// recordingPublisher captures published events for assertions
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(name string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events.Event{Name: name, Payload: payload})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Name
	}
	return out
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type ServiceSuite struct {
	suite.Suite
	svc       *Service
	publisher *recordingPublisher
	ctx       context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.publisher = &recordingPublisher{}
	s.svc = NewService(store.NewMemStore(),
		WithModeration(moderation.NewPipeline(stubClassifier{verdict: moderation.VerdictSafe}, moderation.FailOpen())),
		WithPublisher(s.publisher),
	)
	s.ctx = context.Background()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func teacherAuthor() models.Author {
	return models.Author{Name: "Ms. Rivera", Role: models.RoleTeacher}
}

func studentAuthor() models.Author {
	return models.Author{Name: "Alice", Role: models.RoleStudent}
}

func (s *ServiceSuite) createDiscussion() *models.Discussion {
	d, err := s.svc.CreateDiscussion(s.ctx, CreateDiscussionInput{
		Title:  "Photosynthesis",
		Prompt: "Why do leaves change color?",
		Tags:   models.Tags{"biology"},
		Author: teacherAuthor(),
	})
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) TestCreateDiscussionValidation() {
	cases := []struct {
		name  string
		in    CreateDiscussionInput
		field string
	}{
		{"missing title", CreateDiscussionInput{Prompt: "p", Author: teacherAuthor()}, "title"},
		{"blank title", CreateDiscussionInput{Title: "   ", Prompt: "p", Author: teacherAuthor()}, "title"},
		{"missing prompt", CreateDiscussionInput{Title: "t", Author: teacherAuthor()}, "prompt"},
		{"missing author", CreateDiscussionInput{Title: "t", Prompt: "p"}, "author"},
		{"bad role", CreateDiscussionInput{Title: "t", Prompt: "p", Author: models.Author{Name: "x", Role: "Admin"}}, "author"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.CreateDiscussion(s.ctx, tc.in)
			var apiErr *apperrors.APIError
			s.Require().ErrorAs(err, &apiErr)
			s.Equal(apperrors.ErrValidation, apiErr.Code)
			s.Equal(tc.field, apiErr.Field)
		})
	}

	// Nothing published on validation failure
	s.Empty(s.publisher.names())
}

func (s *ServiceSuite) TestCreateDiscussionPublishesEvent() {
	d := s.createDiscussion()

	s.Equal(models.ModerationApproved, d.ModerationStatus)
	s.True(d.IsActive)
	s.Equal(d.CreatedAt, d.LastActivity)
	s.Equal([]string{events.EventDiscussionCreated}, s.publisher.names())
}

func (s *ServiceSuite) TestFailOpenOnClassifierError() {
	svc := NewService(store.NewMemStore(),
		WithModeration(moderation.NewPipeline(stubClassifier{err: errors.New("connection refused")}, moderation.FailOpen())),
	)

	d, err := svc.CreateDiscussion(s.ctx, CreateDiscussionInput{
		Title: "X", Prompt: "Y", Author: teacherAuthor(),
	})
	s.Require().NoError(err)
	s.Equal(models.ModerationApproved, d.ModerationStatus)
}

func (s *ServiceSuite) TestBlockedContentStoredAsRemoved() {
	svc := NewService(store.NewMemStore(),
		WithModeration(moderation.NewPipeline(stubClassifier{verdict: moderation.VerdictBlock}, moderation.FailOpen())),
	)

	d, err := svc.CreateDiscussion(s.ctx, CreateDiscussionInput{
		Title: "X", Prompt: "Y", Author: teacherAuthor(),
	})
	s.Require().NoError(err)
	s.Equal(models.ModerationRemoved, d.ModerationStatus)
}

func (s *ServiceSuite) TestTopLevelReplyBumpsLastActivity() {
	d := s.createDiscussion()

	r, err := s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID,
		Content:      "Because chlorophyll breaks down",
		Author:       studentAuthor(),
	})
	s.Require().NoError(err)
	s.Nil(r.ParentID)

	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Replies, 1)
	s.Equal(r.ID, got.Replies[0].ID)
	s.True(got.LastActivity.After(d.LastActivity) || got.LastActivity.Equal(d.LastActivity))
	s.GreaterOrEqual(got.LastActivity.UnixNano(), got.CreatedAt.UnixNano())
}

func (s *ServiceSuite) TestNestedReplyDoesNotBumpLastActivity() {
	d := s.createDiscussion()
	r1, err := s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, Content: "first", Author: studentAuthor(),
	})
	s.Require().NoError(err)

	afterTopLevel, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)

	r2, err := s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, ParentReplyID: &r1.ID, Content: "nested", Author: teacherAuthor(),
	})
	s.Require().NoError(err)
	s.Equal(r1.ID, *r2.ParentID)

	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.True(got.LastActivity.Equal(afterTopLevel.LastActivity), "nested attach must not bump lastActivity")

	// Nested reply is resolved under its parent at depth 2
	s.Require().Len(got.Replies, 1)
	s.Require().Len(got.Replies[0].Replies, 1)
	s.Equal(r2.ID, got.Replies[0].Replies[0].ID)
}

func (s *ServiceSuite) TestAddReplyValidation() {
	d := s.createDiscussion()

	_, err := s.svc.AddReply(s.ctx, AddReplyInput{DiscussionID: d.ID, Author: studentAuthor()})
	var apiErr *apperrors.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrValidation, apiErr.Code)

	_, err = s.svc.AddReply(s.ctx, AddReplyInput{DiscussionID: "no-such-id", Content: "x", Author: studentAuthor()})
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrNotFound, apiErr.Code)

	bogus := "no-such-parent"
	_, err = s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, ParentReplyID: &bogus, Content: "x", Author: studentAuthor(),
	})
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrNotFound, apiErr.Code)
}

func (s *ServiceSuite) TestParentReplyFromOtherDiscussionRejected() {
	d1 := s.createDiscussion()
	d2 := s.createDiscussion()

	r1, err := s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d1.ID, Content: "on d1", Author: studentAuthor(),
	})
	s.Require().NoError(err)

	_, err = s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d2.ID, ParentReplyID: &r1.ID, Content: "cross-thread", Author: studentAuthor(),
	})
	var apiErr *apperrors.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrNotFound, apiErr.Code)
}

func (s *ServiceSuite) TestDepthCapResolution() {
	d := s.createDiscussion()

	// Build a chain four levels deep
	var parent *string
	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		r, err := s.svc.AddReply(s.ctx, AddReplyInput{
			DiscussionID: d.ID, ParentReplyID: parent,
			Content: fmt.Sprintf("level %d", i+1), Author: studentAuthor(),
		})
		s.Require().NoError(err)
		parent = &r.ID
		ids = append(ids, r.ID)
	}

	// Default read resolves two levels
	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Replies, 1)
	s.Require().Len(got.Replies[0].Replies, 1)
	s.Empty(got.Replies[0].Replies[0].Replies)

	// WithMaxDepth resolves deeper
	got, err = s.svc.GetDiscussion(s.ctx, d.ID, WithMaxDepth(4))
	s.Require().NoError(err)
	leaf := got.Replies[0].Replies[0].Replies[0].Replies[0]
	s.Equal(ids[3], leaf.ID)
}

func (s *ServiceSuite) TestToggleVoteIdempotence() {
	d := s.createDiscussion()

	voted, err := s.svc.ToggleVote(s.ctx, d.ID, "u1", nil)
	s.Require().NoError(err)
	s.True(voted)

	voted, err = s.svc.ToggleVote(s.ctx, d.ID, "u1", nil)
	s.Require().NoError(err)
	s.False(voted)

	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(0, got.Upvotes.Count())

	last := s.publisher.last()
	s.Equal(events.EventUpvoteUpdated, last.Name)
	payload := last.Payload.(events.UpvotePayload)
	s.False(payload.Voted)
	s.Equal(0, payload.VoteCount)
}

func (s *ServiceSuite) TestToggleVoteOnReply() {
	d := s.createDiscussion()
	r, err := s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, Content: "reply", Author: studentAuthor(),
	})
	s.Require().NoError(err)

	voted, err := s.svc.ToggleVote(s.ctx, d.ID, "u1", &r.ID)
	s.Require().NoError(err)
	s.True(voted)

	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.True(got.Replies[0].Upvotes.Has("u1"))
}

func (s *ServiceSuite) TestReportIdempotence() {
	d := s.createDiscussion()

	s.Require().NoError(s.svc.Report(s.ctx, d.ID, "u2", models.ReportReasonSpam, nil))
	s.Require().NoError(s.svc.Report(s.ctx, d.ID, "u2", models.ReportReasonSpam, nil))

	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(1, got.ReportedBy.Count())

	queue, err := s.svc.Reported(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(queue.Discussions, 1)
	s.Equal(d.ID, queue.Discussions[0].ID)
}

func (s *ServiceSuite) TestReportUnknownReason() {
	d := s.createDiscussion()

	err := s.svc.Report(s.ctx, d.ID, "u2", "not-a-reason", nil)
	var apiErr *apperrors.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrValidation, apiErr.Code)
}

func (s *ServiceSuite) TestDeleteExcludesFromReads() {
	d := s.createDiscussion()

	s.Require().NoError(s.svc.Delete(s.ctx, d.ID, nil))

	_, err := s.svc.GetDiscussion(s.ctx, d.ID)
	var apiErr *apperrors.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrNotFound, apiErr.Code)

	list, _, err := s.svc.ListDiscussions(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)

	// Idempotent: repeating the delete still succeeds
	s.Require().NoError(s.svc.Delete(s.ctx, d.ID, nil))
}

func (s *ServiceSuite) TestDeletedReplyHiddenNotCascaded() {
	d := s.createDiscussion()
	r1, err := s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, Content: "parent", Author: studentAuthor(),
	})
	s.Require().NoError(err)
	_, err = s.svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, ParentReplyID: &r1.ID, Content: "child", Author: studentAuthor(),
	})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctx, d.ID, &r1.ID))

	// The deleted reply and its subtree disappear from reads
	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Empty(got.Replies)

	// Mutations on the deleted reply are rejected
	_, err = s.svc.ToggleVote(s.ctx, d.ID, "u1", &r1.ID)
	var apiErr *apperrors.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrNotFound, apiErr.Code)
}

func (s *ServiceSuite) TestTreeWellFormedness() {
	d := s.createDiscussion()

	var parent *string
	for i := 0; i < 5; i++ {
		r, err := s.svc.AddReply(s.ctx, AddReplyInput{
			DiscussionID: d.ID, ParentReplyID: parent,
			Content: "node", Author: studentAuthor(),
		})
		s.Require().NoError(err)
		parent = &r.ID
	}

	// Walking parent pointers from the leaf terminates at the discussion
	steps := 0
	cur := *parent
	for {
		steps++
		s.Require().Less(steps, 100, "parent chain must terminate")
		r, err := s.svc.store.GetReply(s.ctx, cur)
		s.Require().NoError(err)
		s.Equal(d.ID, r.DiscussionID)
		if r.ParentID == nil {
			break
		}
		cur = *r.ParentID
	}
	s.Equal(5, steps)
}

func (s *ServiceSuite) TestConcurrentTogglesOnDistinctAggregates() {
	d1 := s.createDiscussion()
	d2 := s.createDiscussion()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := d1.ID
			if i%2 == 0 {
				id = d2.ID
			}
			_, err := s.svc.ToggleVote(s.ctx, id, fmt.Sprintf("user-%d", i), nil)
			assert.NoError(s.T(), err)
		}(i)
	}
	wg.Wait()

	got1, err := s.svc.GetDiscussion(s.ctx, d1.ID)
	s.Require().NoError(err)
	got2, err := s.svc.GetDiscussion(s.ctx, d2.ID)
	s.Require().NoError(err)
	s.Equal(5, got1.Upvotes.Count())
	s.Equal(5, got2.Upvotes.Count())
}

func (s *ServiceSuite) TestListAnnotatesInactivity() {
	past := time.Now().UTC().Add(-25 * time.Hour)
	svc := NewService(store.NewMemStore(), WithClock(func() time.Time { return past }))

	d, err := svc.CreateDiscussion(s.ctx, CreateDiscussionInput{
		Title: "old", Prompt: "thread", Author: teacherAuthor(),
	})
	s.Require().NoError(err)
	_, err = svc.AddReply(s.ctx, AddReplyInput{
		DiscussionID: d.ID, Content: "only reply", Author: studentAuthor(),
	})
	s.Require().NoError(err)

	// Move the clock back to the present for the read
	svc.now = func() time.Time { return time.Now().UTC() }

	list, inactiveCount, err := svc.ListDiscussions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.True(list[0].Inactive)
	s.Equal(1, inactiveCount)
}

func (s *ServiceSuite) TestSummarizeCachesOutput() {
	d := s.createDiscussion()
	s.svc.generator = stubGenerator{summary: "Students discussed pigments.", suggestions: []string{"Ask for examples"}}

	summary, err := s.svc.Summarize(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Students discussed pigments.", summary)

	got, err := s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(summary, got.AISummary)

	suggestions, err := s.svc.SuggestActions(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Ask for examples"}, suggestions)

	got, err = s.svc.GetDiscussion(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.Tags{"Ask for examples"}, got.AISuggestions)
}

func (s *ServiceSuite) TestSummarizeWithoutGenerator() {
	d := s.createDiscussion()

	_, err := s.svc.Summarize(s.ctx, d.ID)
	var apiErr *apperrors.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(apperrors.ErrServiceUnavail, apiErr.Code)
}

type stubGenerator struct {
	summary     string
	suggestions []string
}

func (g stubGenerator) Summarize(ctx context.Context, d *models.Discussion) (string, error) {
	return g.summary, nil
}

func (g stubGenerator) SuggestActions(ctx context.Context, d *models.Discussion) ([]string, error) {
	return g.suggestions, nil
}

// TestEndToEndScenario walks the full lifecycle: creation under a broken
// classifier, top-level and nested replies, vote toggling, and reporting.
func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemStore(),
		WithModeration(moderation.NewPipeline(stubClassifier{err: errors.New("classifier unreachable")}, moderation.FailOpen())),
	)

	// Classifier unreachable: discussion is approved anyway
	d, err := svc.CreateDiscussion(ctx, CreateDiscussionInput{
		Title: "X", Prompt: "Y", Author: models.Author{Name: "T", Role: models.RoleTeacher},
	})
	require.NoError(t, err)
	require.Equal(t, models.ModerationApproved, d.ModerationStatus)

	// Top-level reply bumps lastActivity
	r1, err := svc.AddReply(ctx, AddReplyInput{
		DiscussionID: d.ID, Content: "reply one",
		Author: models.Author{Name: "S", Role: models.RoleStudent},
	})
	require.NoError(t, err)

	afterR1, err := svc.GetDiscussion(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, afterR1.Replies, 1)
	require.Equal(t, r1.ID, afterR1.Replies[0].ID)
	require.False(t, afterR1.LastActivity.Before(d.LastActivity))

	// Nested reply leaves lastActivity unchanged
	r2, err := svc.AddReply(ctx, AddReplyInput{
		DiscussionID: d.ID, ParentReplyID: &r1.ID, Content: "reply two",
		Author: models.Author{Name: "S", Role: models.RoleStudent},
	})
	require.NoError(t, err)

	afterR2, err := svc.GetDiscussion(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, afterR2.LastActivity.Equal(afterR1.LastActivity))
	require.Len(t, afterR2.Replies[0].Replies, 1)
	require.Equal(t, r2.ID, afterR2.Replies[0].Replies[0].ID)

	// Vote toggle on and off
	voted, err := svc.ToggleVote(ctx, d.ID, "u1", nil)
	require.NoError(t, err)
	require.True(t, voted)
	voted, err = svc.ToggleVote(ctx, d.ID, "u1", nil)
	require.NoError(t, err)
	require.False(t, voted)

	got, err := svc.GetDiscussion(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Upvotes.Count())

	// Report lands r2 in the reported queue
	require.NoError(t, svc.Report(ctx, d.ID, "u2", models.ReportReasonSpam, &r2.ID))

	queue, err := svc.Reported(ctx)
	require.NoError(t, err)
	require.Len(t, queue.Replies, 1)
	require.Equal(t, r2.ID, queue.Replies[0].ID)
	require.True(t, queue.Replies[0].ReportedBy.Has("u2"))
}
