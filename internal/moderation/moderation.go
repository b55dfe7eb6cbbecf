// Package moderation runs new content through an external content-safety
// classifier before it is persisted. The pipeline makes a single
// classification attempt per call and applies an injectable failure
// policy when the classifier is unreachable; the default policy is
// fail-open (approve), so content is never blocked by pipeline failure.
package moderation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/metrics"
	"github.com/classpulse/classpulse/backend/internal/models"
)

// ContentType tells the classifier what kind of text it is looking at
type ContentType string

const (
	ContentDiscussion ContentType = "discussion"
	ContentReply      ContentType = "reply"
)

// Verdict is the classifier's three-value answer vocabulary. It is
// distinct from models.ModerationStatus on purpose: the classifier side
// is normalized into the stored vocabulary at exactly one boundary,
// MapVerdict, and the stored form is authoritative.
type Verdict string

const (
	VerdictSafe   Verdict = "SAFE"
	VerdictReview Verdict = "REVIEW"
	VerdictBlock  Verdict = "BLOCK"
)

// Classifier submits text to an external content-safety service
type Classifier interface {
	Classify(ctx context.Context, text string, contentType ContentType) (Verdict, error)
}

// Policy decides the stored status when classification fails. Deployments
// that cannot accept fail-open semantics inject a fail-closed policy.
type Policy struct {
	// OnFailure is the status applied when the classifier errors or
	// answers outside its vocabulary
	OnFailure models.ModerationStatus
}

// FailOpen approves content when the classifier is unavailable
func FailOpen() Policy {
	return Policy{OnFailure: models.ModerationApproved}
}

// FailClosed holds content for review when the classifier is unavailable
func FailClosed() Policy {
	return Policy{OnFailure: models.ModerationFlagged}
}

// MapVerdict normalizes a classifier verdict into the canonical stored
// vocabulary. ok is false when the verdict is outside the expected
// three-value set, in which case the caller applies its failure policy.
func MapVerdict(v Verdict) (models.ModerationStatus, bool) {
	switch Verdict(strings.ToUpper(strings.TrimSpace(string(v)))) {
	case VerdictSafe:
		return models.ModerationApproved, true
	case VerdictReview:
		return models.ModerationFlagged, true
	case VerdictBlock:
		return models.ModerationRemoved, true
	}
	return "", false
}

// Pipeline wraps a Classifier with verdict mapping and the failure policy
type Pipeline struct {
	classifier Classifier
	policy     Policy
}

// NewPipeline builds a pipeline around the given classifier
func NewPipeline(classifier Classifier, policy Policy) *Pipeline {
	return &Pipeline{classifier: classifier, policy: policy}
}

// Review classifies text and returns the moderation status to store.
// It never returns an error: classifier failures resolve through the
// policy so a create path is never blocked by the pipeline.
func (p *Pipeline) Review(ctx context.Context, text string, contentType ContentType) models.ModerationStatus {
	if p == nil || p.classifier == nil {
		return models.ModerationApproved
	}

	verdict, err := p.classifier.Classify(ctx, text, contentType)
	if err != nil {
		logger.Warn("content classifier unavailable, applying failure policy",
			zap.String("content_type", string(contentType)),
			zap.String("fallback_status", string(p.policy.OnFailure)),
			zap.Error(err),
		)
		metrics.ModerationFailures.WithLabelValues(string(contentType)).Inc()
		return p.policy.OnFailure
	}

	status, ok := MapVerdict(verdict)
	if !ok {
		logger.Warn("content classifier returned unknown verdict",
			zap.String("content_type", string(contentType)),
			zap.String("verdict", string(verdict)),
		)
		metrics.ModerationFailures.WithLabelValues(string(contentType)).Inc()
		return p.policy.OnFailure
	}

	metrics.ModerationVerdicts.WithLabelValues(string(contentType), string(status)).Inc()
	return status
}
