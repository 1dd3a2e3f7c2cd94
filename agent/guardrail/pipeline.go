package guardrail

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultFailClosedResponse = "Sorry, I can't check your message right now. Please try again in a moment."
	defaultAuditTimeout       = 2 * time.Second
)

var ErrClassifierUnavailable = errors.New("guardrail classifier unavailable")

// Classifier labels a raw user message. It never sees trip context.
type Classifier interface {
	Classify(ctx context.Context, message string) (Verdict, error)
}

type PipelineOption func(*Pipeline)

// WithFailClosed makes the pipeline block instead of allow when the
// classifier fails.
func WithFailClosed(response string) PipelineOption {
	return func(p *Pipeline) {
		p.failOpen = false
		if r := strings.TrimSpace(response); r != "" {
			p.failClosedResponse = r
		}
	}
}

func WithAuditSink(sinks ...AuditSink) PipelineOption {
	return func(p *Pipeline) {
		for _, s := range sinks {
			if s != nil {
				p.sinks = append(p.sinks, s)
			}
		}
	}
}

// WithAuditTimeout bounds how long the sinks may hold up a turn.
func WithAuditTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.auditTimeout = d
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

type Pipeline struct {
	classifier         Classifier
	sinks              []AuditSink
	failOpen           bool
	failClosedResponse string
	auditTimeout       time.Duration
	now                func() time.Time
}

func NewPipeline(classifier Classifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		classifier:         classifier,
		failOpen:           true,
		failClosedResponse: defaultFailClosedResponse,
		auditTimeout:       defaultAuditTimeout,
		now:                time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Evaluate always returns a valid verdict. Classifier errors and malformed
// verdicts are replaced by the fallback and audited.
func (p *Pipeline) Evaluate(ctx context.Context, sessionID, message string) Verdict {
	if p.classifier == nil {
		return p.fallback(ctx, sessionID, ErrClassifierUnavailable)
	}

	raw, err := p.classifier.Classify(ctx, message)
	if err != nil {
		return p.fallback(ctx, sessionID, errors.Join(ErrClassifierUnavailable, err))
	}

	v := raw.Normalize()
	if err := v.Validate(); err != nil {
		return p.fallback(ctx, sessionID, err)
	}

	if v.Blocked() {
		p.audit(ctx, AuditEvent{
			SessionID: sessionID,
			Kind:      AuditKindBlocked,
			Verdict:   v,
			At:        p.now().UTC(),
		})
	}
	return v
}

func (p *Pipeline) fallback(ctx context.Context, sessionID string, cause error) Verdict {
	v := FailOpen()
	kind := AuditKindFailOpen
	if !p.failOpen {
		v = Verdict{
			Decision:            DecisionBlock,
			Category:            CategoryOffTopic,
			Action:              ActionBlock,
			RecommendedResponse: p.failClosedResponse,
		}
		kind = AuditKindFailClosed
	}

	log.Warn().
		Err(cause).
		Str("session_id", sessionID).
		Str("decision", string(v.Decision)).
		Msg("guardrail_fallback")

	p.audit(ctx, AuditEvent{
		SessionID: sessionID,
		Kind:      kind,
		Verdict:   v,
		Error:     cause.Error(),
		At:        p.now().UTC(),
	})
	return v
}

// audit records ev on every sink under its own deadline. A cancelled request
// still gets its event recorded.
func (p *Pipeline) audit(ctx context.Context, ev AuditEvent) {
	if len(p.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.auditTimeout)
	defer cancel()

	for _, sink := range p.sinks {
		if err := sink.Record(ctx, ev); err != nil {
			log.Error().Err(err).Str("session_id", ev.SessionID).Msg("guardrail_audit_failed")
		}
	}
}
