// Package chat wires the turn pipeline: clarification resume, history
// compaction, planning, cached or fresh data fetch, synthesis, and the final
// history commit. Session history only changes at a turn's terminal points,
// so a cancelled or failed turn leaves the conversation exactly as it was.
package chat

import (
	"context"
	"crypto/md5"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/antoniostano/datachat/internal/agents"
	"github.com/antoniostano/datachat/internal/cancel"
	"github.com/antoniostano/datachat/internal/cache"
	"github.com/antoniostano/datachat/internal/history"
	"github.com/antoniostano/datachat/internal/memory"
	"github.com/antoniostano/datachat/internal/observability"
	"github.com/antoniostano/datachat/internal/policy"
	"github.com/antoniostano/datachat/internal/session"
)

// DefaultCacheKeepLast bounds each session's result cache after every
// successful fetch.
const DefaultCacheKeepLast = 5

// TurnResponse is the orchestrator's result for one processed message.
type TurnResponse struct {
	SessionID       string         `json:"session_id"`
	Message         string         `json:"message"`
	IsClarification bool           `json:"is_clarification"`
	Plot            map[string]any `json:"plot,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Orchestrator runs the turn pipeline over shared session state.
type Orchestrator struct {
	sessions    *session.Manager
	provider    agents.Provider
	executor    *FetchExecutor
	compactor   *history.Compactor
	coordinator *ClarificationCoordinator
	memory      memory.Store
	metrics     *observability.Metrics

	cacheKeepLast int

	tokenMu sync.Mutex
	tokens  map[string]*cancel.Token
}

type Options struct {
	Sessions      *session.Manager
	Provider      agents.Provider
	Executor      *FetchExecutor
	Compactor     *history.Compactor
	Memory        memory.Store
	Metrics       *observability.Metrics
	CacheKeepLast int
}

func NewOrchestrator(opts Options) *Orchestrator {
	keep := opts.CacheKeepLast
	if keep <= 0 {
		keep = DefaultCacheKeepLast
	}
	return &Orchestrator{
		sessions:      opts.Sessions,
		provider:      opts.Provider,
		executor:      opts.Executor,
		compactor:     opts.Compactor,
		coordinator:   NewClarificationCoordinator(),
		memory:        opts.Memory,
		metrics:       opts.Metrics,
		cacheKeepLast: keep,
		tokens:        make(map[string]*cancel.Token),
	}
}

// Cancel flags the session's in-flight turn for cancellation. Returns false
// when no turn is running.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.tokenMu.Lock()
	defer o.tokenMu.Unlock()
	tok, ok := o.tokens[sessionID]
	if !ok {
		return false
	}
	tok.Set()
	return true
}

func (o *Orchestrator) registerToken(sessionID string) *cancel.Token {
	tok := cancel.NewToken()
	o.tokenMu.Lock()
	o.tokens[sessionID] = tok
	o.tokenMu.Unlock()
	return tok
}

func (o *Orchestrator) releaseToken(sessionID string) {
	o.tokenMu.Lock()
	delete(o.tokens, sessionID)
	o.tokenMu.Unlock()
}

// HandleTurn processes one user message end to end. sessionID may be empty to
// start a fresh session. The returned response always carries the (possibly
// generated) session ID.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, text string) (TurnResponse, error) {
	// Seed from long-term memory only when the session does not exist yet;
	// an established session would discard the seed anyway, so skip the
	// memory-store round trip on every later turn.
	var seed []session.Turn
	if sessionID != "" {
		if _, err := o.sessions.Get(sessionID); err != nil {
			seed = o.seedFromMemory(ctx, sessionID)
		}
	}
	sess, created := o.sessions.GetOrCreate(sessionID, seed)
	if created {
		o.metrics.ActiveSessions.Set(float64(o.sessions.Count()))
	}

	sess.BeginTurn()
	defer sess.EndTurn()

	tok := o.registerToken(sess.ID)
	defer o.releaseToken(sess.ID)

	start := time.Now()
	resp, err := o.runTurn(ctx, sess, text, tok)
	o.metrics.ObserveTurnLatency(time.Since(start))

	switch {
	case err == cancel.ErrCancelled:
		o.metrics.TurnEvents.WithLabelValues("cancelled").Inc()
	case err != nil:
		o.metrics.TurnEvents.WithLabelValues("failed").Inc()
	case resp.IsClarification:
		o.metrics.TurnEvents.WithLabelValues("clarification").Inc()
	default:
		o.metrics.TurnEvents.WithLabelValues("completed").Inc()
	}
	return resp, err
}

func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, text string, tok *cancel.Token) (TurnResponse, error) {
	// Compaction happens before the turn's own entries exist, so a failure
	// here only delays trimming.
	compactStart := time.Now()
	compacted, err := o.compactor.CompactIfNeeded(ctx, sess.History())
	o.metrics.Stages.Observe(observability.StageCompact, stageMS(compactStart))
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("summarizer").Inc()
		log.Printf("history compaction skipped for session %s: %v", sess.ID, err)
	}

	input, resumed := o.coordinator.Resume(sess, text)
	if resumed {
		o.metrics.Stages.ObserveIndicator("clarification_resumed")
	}
	msgs := toMessages(compacted)

	if tok.Cancelled() {
		return TurnResponse{SessionID: sess.ID}, cancel.ErrCancelled
	}

	planStart := time.Now()
	planRes, err := o.provider.CreatePlan(ctx, input, msgs)
	o.metrics.Stages.Observe(observability.StagePlan, stageMS(planStart))
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("planner").Inc()
		return TurnResponse{SessionID: sess.ID}, fmt.Errorf("plan turn: %w", err)
	}
	if tok.Cancelled() {
		return TurnResponse{SessionID: sess.ID}, cancel.ErrCancelled
	}

	if planRes.IsClarification() {
		// Intent is unknown until the answer arrives; assume a data query,
		// the re-plan after the clarification decides for real.
		return o.commitClarification(ctx, sess, compacted, text, input, planRes.Clarification, string(agents.IntentDataQuery))
	}
	plan := planRes.Plan

	var outcome *agents.QueryOutcome
	if plan.NeedsData() {
		outcome, err = o.fetchData(ctx, sess, plan, input, msgs, tok)
		if err != nil {
			return TurnResponse{SessionID: sess.ID}, err
		}
		if outcome != nil && outcome.NeedsClarification {
			return o.commitClarification(ctx, sess, compacted, text, input, outcome.ClarificationQuestion, string(plan.Intent))
		}
		if tok.Cancelled() {
			return TurnResponse{SessionID: sess.ID}, cancel.ErrCancelled
		}
	}

	synthStart := time.Now()
	synthesis, err := o.provider.Synthesize(ctx, input, plan, outcome, msgs)
	o.metrics.Stages.Observe(observability.StageSynthesize, stageMS(synthStart))
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("synthesizer").Inc()
		return TurnResponse{SessionID: sess.ID}, fmt.Errorf("synthesize answer: %w", err)
	}

	plot := o.buildPlot(plan, outcome, input, synthesis.Columns)

	if tok.Cancelled() {
		return TurnResponse{SessionID: sess.ID}, cancel.ErrCancelled
	}

	now := time.Now().UTC()
	userTurn := session.Turn{Role: session.RoleUser, Content: text, CreatedAt: now}
	assistantTurn := session.Turn{Role: session.RoleAssistant, Content: synthesis.Message, CreatedAt: now}
	sess.CommitTurn(compacted, userTurn, assistantTurn)
	o.persistTurns(ctx, sess.ID, userTurn, assistantTurn)

	return TurnResponse{
		SessionID: sess.ID,
		Message:   synthesis.Message,
		Plot:      plot,
		Metadata: map[string]any{
			"intent_type":       string(plan.Intent),
			"requires_database": plan.NeedsData(),
			"session_id":        sess.ID,
		},
	}, nil
}

// fetchData resolves the plan's data need, from the session cache when the
// plan allows it, falling back to a fresh fetch on any cache miss.
func (o *Orchestrator) fetchData(ctx context.Context, sess *session.Session, plan *agents.Plan, input string, msgs []agents.Message, tok *cancel.Token) (*agents.QueryOutcome, error) {
	if plan.UseCachedData {
		if hit := o.lookupCache(sess.Cache(), plan.CacheKey); hit != nil {
			o.metrics.CacheEvents.WithLabelValues("hit").Inc()
			o.metrics.Stages.ObserveIndicator("cache_hit")
			return hit, nil
		}
		o.metrics.CacheEvents.WithLabelValues("miss_fallback").Inc()
		o.metrics.Stages.ObserveIndicator("cache_miss_fallback")
	}

	fetchStart := time.Now()
	outcome, attempts, err := o.executor.Execute(ctx, input, msgs, tok)
	o.metrics.Stages.Observe(observability.StageFetch, stageMS(fetchStart))
	if attempts > 0 {
		o.metrics.FetchAttempts.Observe(float64(attempts))
	}
	if err != nil {
		if err == cancel.ErrCancelled {
			return nil, err
		}
		o.metrics.ProviderErrors.WithLabelValues("query_generator").Inc()
		return nil, fmt.Errorf("fetch data: %w", err)
	}

	if outcome.Result.Success {
		c := sess.Cache()
		c.Put(cacheKey(outcome.SQL), outcome)
		c.Put(cache.LatestKey, outcome)
		c.EvictKeepLastN(o.cacheKeepLast)
		o.metrics.CacheEvents.WithLabelValues("stored").Inc()
	} else if !outcome.NeedsClarification {
		o.metrics.Stages.ObserveIndicator("fetch_retries_exhausted")
	}
	return &outcome, nil
}

func (o *Orchestrator) lookupCache(c *cache.ResultCache, key string) *agents.QueryOutcome {
	if key == "" || key == cache.LatestKey {
		return c.GetLatest()
	}
	return c.Get(key)
}

// commitClarification parks the interrupted input and commits the question as
// the assistant's turn, so the exchange reads naturally in the history.
func (o *Orchestrator) commitClarification(ctx context.Context, sess *session.Session, compacted []session.Turn, text, input, question, intent string) (TurnResponse, error) {
	o.coordinator.Begin(sess, input, intent)

	now := time.Now().UTC()
	userTurn := session.Turn{Role: session.RoleUser, Content: text, CreatedAt: now}
	assistantTurn := session.Turn{Role: session.RoleAssistant, Content: question, CreatedAt: now}
	sess.CommitTurn(compacted, userTurn, assistantTurn)
	o.persistTurns(ctx, sess.ID, userTurn, assistantTurn)

	return TurnResponse{
		SessionID:       sess.ID,
		Message:         question,
		IsClarification: true,
		Metadata: map[string]any{
			"intent_type":            intent,
			"requires_clarification": true,
			"session_id":             sess.ID,
		},
	}, nil
}

// buildPlot renders the chart when the plan asked for one. Plot failures
// degrade to a chartless answer, never a failed turn.
func (o *Orchestrator) buildPlot(plan *agents.Plan, outcome *agents.QueryOutcome, input string, columns []string) map[string]any {
	if !plan.NeedsPlot || outcome == nil || !outcome.Result.Success {
		return nil
	}
	spec, err := plotFromOutcome(outcome, plan.PlotKind, input, columns)
	if err != nil {
		o.metrics.Stages.ObserveIndicator("plot_failed")
		log.Printf("plot generation failed: %v", err)
		return nil
	}
	return spec
}

// persistTurns writes the committed turns to long-term memory, best effort
// and PII-redacted. A memory failure never fails the turn.
func (o *Orchestrator) persistTurns(ctx context.Context, sessionID string, turns ...session.Turn) {
	if o.memory == nil {
		return
	}
	for _, t := range turns {
		content, redacted := policy.RedactPII(t.Content)
		rec := memory.TurnRecord{
			SessionID:   sessionID,
			Role:        string(t.Role),
			Content:     content,
			PIIRedacted: redacted,
			CreatedAt:   t.CreatedAt,
		}
		if err := o.memory.SaveTurn(ctx, rec); err != nil {
			log.Printf("memory save failed for session %s: %v", sessionID, err)
			return
		}
	}
}

// seedFromMemory rebuilds conversation context for a brand-new session from
// the persisted turn log, so a restarted service keeps continuity.
func (o *Orchestrator) seedFromMemory(ctx context.Context, sessionID string) []session.Turn {
	if o.memory == nil || sessionID == "" {
		return nil
	}
	records, err := o.memory.SessionHistory(ctx, sessionID, history.DefaultKeepRecent)
	if err != nil || len(records) == 0 {
		return nil
	}
	turns := make([]session.Turn, 0, len(records))
	for _, r := range records {
		turns = append(turns, session.Turn{
			Role:      session.Role(r.Role),
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return turns
}

// cacheKey derives a stable short key from the SQL plus a timestamp, so the
// same query refreshed later gets its own entry.
func cacheKey(sql string) string {
	sum := md5.Sum([]byte(sql))
	return fmt.Sprintf("%x_%d", sum[:4], time.Now().Unix())
}

func toMessages(turns []session.Turn) []agents.Message {
	msgs := make([]agents.Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == session.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, agents.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func stageMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
