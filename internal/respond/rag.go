package respond

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/metrics"
	"restaurant-receptionist/internal/generation"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
	"restaurant-receptionist/internal/retrieval"
)

const (
	SourceGenerated = "rag.generated"
	SourceCached    = "rag.cached"
	SourceApology   = "fallback.apology"

	ApologyText = "I didn't quite catch that, could you rephrase?"
)

var ErrEmptyReply = errors.New("LLM_EMPTY_REPLY")

var unrelatedRe = regexp.MustCompile(`\b(?:weather|forecast|news|headlines|sports?|score|football|basketball|baseball|politics|election|president|stocks?|stock market|bitcoin|crypto)\b`)

type RAGConfig struct {
	TopK         int
	Timeout      time.Duration
	MaxTokens    int
	Temperature  float64
	HistoryTurns int
}

func DefaultRAGConfig() RAGConfig {
	return RAGConfig{TopK: 3, Timeout: 8 * time.Second, MaxTokens: 150, Temperature: 0.3, HistoryTurns: 2}
}

// RAG answers open questions from retrieved business passages.
type RAG struct {
	cfg          RAGConfig
	retriever    retrieval.Retriever
	client       generation.Client
	cache        Cache
	businessName func() string
	logger       logger.Logger
	group        singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is one shared generative call. It is cancelled once every caller
// waiting on it has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewRAG builds the retrieval-augmented tier. cache may be nil.
func NewRAG(cfg RAGConfig, retriever retrieval.Retriever, client generation.Client, cache Cache, businessName func() string, log logger.Logger) *RAG {
	def := DefaultRAGConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	if businessName == nil {
		businessName = func() string { return "the restaurant" }
	}
	return &RAG{
		cfg:          cfg,
		retriever:    retriever,
		client:       client,
		cache:        cache,
		businessName: businessName,
		logger:       log.With(map[string]interface{}{"component": "rag"}),
		flights:      make(map[string]*flight),
	}
}

// Unrelated reports whether text is about a topic the business documents
// cannot cover, in which case retrieval is skipped.
func Unrelated(text string) bool {
	return unrelatedRe.MatchString(features.Normalize(text))
}

// Answer produces a generated reply. Replies to clear questions are cached
// and concurrent identical misses share one generative call; clarification
// replies for unknown intents depend on history and are never cached.
func (r *RAG) Answer(ctx context.Context, utterance string, intent models.Intent, history []models.Exchange) (string, string, error) {
	cacheable := r.cache != nil && intent != models.IntentUnknown
	key := CacheKey(utterance)

	if cacheable {
		if text, ok := r.cache.Get(ctx, key); ok {
			metrics.ResponseCache.WithLabelValues("hit").Inc()
			return text, SourceCached, nil
		}
		metrics.ResponseCache.WithLabelValues("miss").Inc()
	}

	if !cacheable {
		text, err := r.generate(ctx, utterance, intent, history)
		return text, SourceGenerated, err
	}

	f := r.join(ctx, key)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		text, err := r.generate(f.ctx, utterance, intent, history)
		if err != nil {
			return "", err
		}
		r.cache.Set(context.WithoutCancel(f.ctx), key, text)
		return text, nil
	})

	select {
	case res := <-ch:
		r.leave(key, f)
		if res.Err != nil {
			return "", "", res.Err
		}
		if res.Shared {
			metrics.ResponseCache.WithLabelValues("shared").Inc()
		}
		return res.Val.(string), SourceGenerated, nil
	case <-ctx.Done():
		r.leave(key, f)
		return "", "", fmt.Errorf("%w: %v", generation.ErrTimeout, ctx.Err())
	}
}

// join registers the caller on the flight for key, starting one when none is
// in progress. The flight context keeps the first caller's values but not its
// cancellation.
func (r *RAG) join(ctx context.Context, key string) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f
}

func (r *RAG) leave(key string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[key] == f {
		delete(r.flights, key)
	}
	// a cancelled call may still be unwinding; later callers start afresh
	r.group.Forget(key)
}

func (r *RAG) generate(ctx context.Context, utterance string, intent models.Intent, history []models.Exchange) (string, error) {
	var passages []retrieval.Passage
	if r.retriever != nil && !Unrelated(utterance) {
		var err error
		passages, err = r.retriever.Retrieve(ctx, utterance, r.cfg.TopK)
		if err != nil {
			r.logger.WithError(err).Warn("retrieval failed", map[string]interface{}{"intent": string(intent)})
			return "", err
		}
	}

	req := generation.Request{
		System:      r.systemPrompt(intent),
		Prompt:      buildPrompt(utterance, passages, condense(history, r.cfg.HistoryTurns)),
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Timeout:     r.cfg.Timeout,
	}
	res := generation.Invoke(ctx, r.client, "rag", req)
	if !res.OK() {
		r.logger.WithError(res.Err).Warn("generation failed", map[string]interface{}{
			"outcome":  string(res.Outcome),
			"passages": len(passages),
		})
		return "", res.Err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func (r *RAG) systemPrompt(intent models.Intent) string {
	base := fmt.Sprintf("You are the friendly phone receptionist for %s. Answer only from the business information provided. "+
		"Keep the reply to one or two short sentences that sound natural when spoken. "+
		"If the information does not cover the question, say so and offer to have a staff member follow up.", r.businessName())
	if intent == models.IntentUnknown {
		base += " The caller's request was unclear: briefly say what you can help with and ask one short question to find out what they need."
	}
	return base
}

func buildPrompt(utterance string, passages []retrieval.Passage, history string) string {
	var b strings.Builder
	if len(passages) > 0 {
		b.WriteString("Business information:\n")
		for _, p := range passages {
			fmt.Fprintf(&b, "[%s]\n%s\n\n", p.Title, p.Text)
		}
	}
	if history != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Caller: %s\nReceptionist:", utterance)
	return b.String()
}

// condense renders the last n exchanges as a transcript.
func condense(history []models.Exchange, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, ex := range history {
		fmt.Fprintf(&b, "Caller: %s\nReceptionist: %s\n", ex.Utterance, ex.Reply)
	}
	return b.String()
}
