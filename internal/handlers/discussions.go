package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classpulse/classpulse/backend/internal/cache"
	"github.com/classpulse/classpulse/backend/internal/discussion"
	apperrors "github.com/classpulse/classpulse/backend/internal/errors"
	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/metrics"
	"github.com/classpulse/classpulse/backend/internal/models"
	"github.com/classpulse/classpulse/backend/internal/util"
)

// ListDiscussions returns all non-deleted discussions with resolved reply
// trees, inactivity flags, and the inactive count
// GET /api/v1/discussions
func (h *Handlers) ListDiscussions(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, cache.KeyDiscussionList); err == nil {
			metrics.CacheHits.WithLabelValues("discussion_list").Inc()
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		} else if !cache.IsMiss(err) {
			logger.WarnWithFields("Discussion list cache read failed", err)
		} else {
			metrics.CacheMisses.WithLabelValues("discussion_list").Inc()
		}
	}

	discussions, inactiveCount, err := h.discussions.ListDiscussions(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"discussions":    discussions,
		"inactive_count": inactiveCount,
	}

	if h.redis != nil {
		if data, err := json.Marshal(body); err == nil {
			if err := h.redis.SetEx(ctx, cache.KeyDiscussionList, data, cache.DefaultTTL); err != nil {
				logger.WarnWithFields("Discussion list cache write failed", err)
			}
		}
	}

	c.JSON(http.StatusOK, body)
}

// CreateDiscussion creates a new discussion thread
// POST /api/v1/discussions
func (h *Handlers) CreateDiscussion(c *gin.Context) {
	var req struct {
		Title  string        `json:"title"`
		Prompt string        `json:"prompt"`
		Tags   string        `json:"tags"` // comma-separated
		Author models.Author `json:"author"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	d, err := h.discussions.CreateDiscussion(c.Request.Context(), discussion.CreateDiscussionInput{
		Title:  req.Title,
		Prompt: req.Prompt,
		Tags:   models.Tags(util.ParseTagList(req.Tags)),
		Author: req.Author,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusCreated, d)
}

// GetDiscussion returns one discussion with its resolved reply tree
// GET /api/v1/discussions/:id
func (h *Handlers) GetDiscussion(c *gin.Context) {
	var opts []discussion.ReadOption
	if depth := util.ParseInt(c.Query("depth"), 0); depth > 0 {
		opts = append(opts, discussion.WithMaxDepth(depth))
	}

	d, err := h.discussions.GetDiscussion(c.Request.Context(), c.Param("id"), opts...)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// AddReply attaches a reply to a discussion or to another reply
// POST /api/v1/discussions/:id/replies
func (h *Handlers) AddReply(c *gin.Context) {
	var req struct {
		Content       string        `json:"content"`
		Author        models.Author `json:"author"`
		ParentReplyID *string       `json:"parent_reply_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	r, err := h.discussions.AddReply(c.Request.Context(), discussion.AddReplyInput{
		DiscussionID:  c.Param("id"),
		ParentReplyID: req.ParentReplyID,
		Content:       req.Content,
		Author:        req.Author,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusCreated, r)
}

// ToggleVote flips a user's vote on a discussion or reply
// POST /api/v1/discussions/:id/vote
func (h *Handlers) ToggleVote(c *gin.Context) {
	var req struct {
		UserID  string  `json:"user_id"`
		ReplyID *string `json:"reply_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	voted, err := h.discussions.ToggleVote(c.Request.Context(), c.Param("id"), req.UserID, req.ReplyID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "voted": voted})
}

// Report records a content report on a discussion or reply
// POST /api/v1/discussions/:id/report
func (h *Handlers) Report(c *gin.Context) {
	var req struct {
		UserID  string  `json:"user_id"`
		Reason  string  `json:"reason"`
		ReplyID *string `json:"reply_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	err := h.discussions.Report(c.Request.Context(), c.Param("id"), req.UserID,
		models.ReportReason(req.Reason), req.ReplyID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteContent soft-deletes a discussion, or one of its replies when the
// replyId query param is given
// DELETE /api/v1/discussions/:id
func (h *Handlers) DeleteContent(c *gin.Context) {
	var replyID *string
	if rid := c.Query("replyId"); rid != "" {
		replyID = &rid
	}

	if err := h.discussions.Delete(c.Request.Context(), c.Param("id"), replyID); err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetReportedQueue returns all non-deleted content with at least one report
// GET /api/v1/moderation/reported
func (h *Handlers) GetReportedQueue(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, cache.KeyReportedQueue); err == nil {
			metrics.CacheHits.WithLabelValues("reported_queue").Inc()
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		} else if !cache.IsMiss(err) {
			logger.WarnWithFields("Reported queue cache read failed", err)
		} else {
			metrics.CacheMisses.WithLabelValues("reported_queue").Inc()
		}
	}

	queue, err := h.discussions.Reported(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.redis != nil {
		if data, err := json.Marshal(queue); err == nil {
			if err := h.redis.SetEx(ctx, cache.KeyReportedQueue, data, cache.DefaultTTL); err != nil {
				logger.WarnWithFields("Reported queue cache write failed", err)
			}
		}
	}

	c.JSON(http.StatusOK, queue)
}

// SummarizeDiscussion generates and caches an AI summary of the thread
// POST /api/v1/discussions/:id/summarize
func (h *Handlers) SummarizeDiscussion(c *gin.Context) {
	summary, err := h.discussions.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// SuggestEngagementActions generates and caches re-engagement prompts
// POST /api/v1/discussions/:id/suggestions
func (h *Handlers) SuggestEngagementActions(c *gin.Context) {
	suggestions, err := h.discussions.SuggestActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateCaches(c)
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// respondError maps service errors onto the response helpers
func (h *Handlers) respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(*apperrors.APIError); ok {
		util.RespondWithAPIError(c, apiErr)
		return
	}
	util.RespondInternalError(c, "Something went wrong", err.Error())
}

// invalidateCaches drops the read caches after a successful mutation
func (h *Handlers) invalidateCaches(c *gin.Context) {
	if h.redis != nil {
		h.redis.InvalidateDiscussionCaches(c.Request.Context())
	}
}
