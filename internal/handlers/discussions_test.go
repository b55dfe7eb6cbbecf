package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse/backend/internal/discussion"
	"github.com/classpulse/classpulse/backend/internal/models"
	"github.com/classpulse/classpulse/backend/internal/moderation"
	"github.com/classpulse/classpulse/backend/internal/store"
)

type fixedClassifier struct {
	verdict moderation.Verdict
	err     error
}

func (f fixedClassifier) Classify(ctx context.Context, text string, ct moderation.ContentType) (moderation.Verdict, error) {
	return f.verdict, f.err
}

func newTestRouter(t *testing.T) (*gin.Engine, *Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := discussion.NewService(store.NewMemStore(),
		discussion.WithModeration(moderation.NewPipeline(fixedClassifier{verdict: moderation.VerdictSafe}, moderation.FailOpen())),
	)
	h := NewHandlers(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	{
		api.GET("/discussions", h.ListDiscussions)
		api.POST("/discussions", h.CreateDiscussion)
		api.GET("/discussions/:id", h.GetDiscussion)
		api.POST("/discussions/:id/replies", h.AddReply)
		api.POST("/discussions/:id/vote", h.ToggleVote)
		api.POST("/discussions/:id/report", h.Report)
		api.DELETE("/discussions/:id", h.DeleteContent)
		api.POST("/discussions/:id/summarize", h.SummarizeDiscussion)
		api.POST("/discussions/:id/suggestions", h.SuggestEngagementActions)
		api.GET("/moderation/reported", h.GetReportedQueue)
	}
	return router, h
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestDiscussion(t *testing.T, router *gin.Engine) models.Discussion {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/discussions", gin.H{
		"title":  "Fractions",
		"prompt": "Why is 1/2 bigger than 1/3?",
		"tags":   "math, arithmetic",
		"author": gin.H{"name": "Mr. Okafor", "role": "Teacher"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var d models.Discussion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d
}

func TestCreateDiscussion(t *testing.T) {
	router, _ := newTestRouter(t)

	d := createTestDiscussion(t, router)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, models.ModerationApproved, d.ModerationStatus)
	assert.Equal(t, models.Tags{"arithmetic", "math"}, d.Tags)
}

func TestCreateDiscussionValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/discussions", gin.H{
		"prompt": "no title",
		"author": gin.H{"name": "Mr. Okafor", "role": "Teacher"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
	assert.Equal(t, "title", body["field"])
}

func TestGetDiscussionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/discussions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddReplyAndGetTree(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/replies", d.ID), gin.H{
		"content": "Because the pieces are bigger",
		"author":  gin.H{"name": "Sam", "role": "Student"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var r1 models.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r1))

	// Nested reply under r1
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/replies", d.ID), gin.H{
		"content":         "Right, same whole split fewer ways",
		"author":          gin.H{"name": "Mr. Okafor", "role": "Teacher"},
		"parent_reply_id": r1.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions/"+d.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Discussion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Replies, 1)
	require.Len(t, got.Replies[0].Replies, 1)
}

func TestVoteToggleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/vote", d.ID), gin.H{
		"user_id": "u1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["voted"])

	// Second toggle removes the vote
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/vote", d.ID), gin.H{
		"user_id": "u1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["voted"])
}

func TestReportAndReportedQueue(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/report", d.ID), gin.H{
		"user_id": "u2",
		"reason":  "spam",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/moderation/reported", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var queue struct {
		Discussions []models.Discussion `json:"discussions"`
		Replies     []models.Reply      `json:"replies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue.Discussions, 1)
	assert.Equal(t, d.ID, queue.Discussions[0].ID)
}

func TestReportUnknownReasonRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/report", d.ID), gin.H{
		"user_id": "u2",
		"reason":  "because",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeleteDiscussionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/discussions/"+d.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Gone from reads
	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions/"+d.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Discussions []models.Discussion `json:"discussions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Discussions)

	// Idempotent
	w = doJSON(t, router, http.MethodDelete, "/api/v1/discussions/"+d.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteReplyViaQueryParam(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/replies", d.ID), gin.H{
		"content": "to be removed",
		"author":  gin.H{"name": "Sam", "role": "Student"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var r models.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))

	w = doJSON(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/discussions/%s?replyId=%s", d.ID, r.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions/"+d.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Discussion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got.Replies)
}

func TestListDiscussionsShape(t *testing.T) {
	router, _ := newTestRouter(t)
	createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/v1/discussions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "discussions")
	assert.Contains(t, body, "inactive_count")
}

func TestFailOpenSurfacesApproved(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := discussion.NewService(store.NewMemStore(),
		discussion.WithModeration(moderation.NewPipeline(fixedClassifier{err: context.DeadlineExceeded}, moderation.FailOpen())),
	)
	h := NewHandlers(svc)
	router := gin.New()
	router.POST("/api/v1/discussions", h.CreateDiscussion)

	w := doJSON(t, router, http.MethodPost, "/api/v1/discussions", gin.H{
		"title":  "X",
		"prompt": "Y",
		"author": gin.H{"name": "T", "role": "Teacher"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var d models.Discussion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, models.ModerationApproved, d.ModerationStatus)
}

func TestSummarizeWithoutAssistantUnavailable(t *testing.T) {
	router, _ := newTestRouter(t)
	d := createTestDiscussion(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/discussions/%s/summarize", d.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
