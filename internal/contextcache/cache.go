// Package contextcache keeps successive contexts of a session aligned with
// what the model backend already holds in its prompt cache.
//
// Instead of sending each freshly built context as is, the cache reuses the
// longest prefix of a previous context that still agrees with the fresh one
// and appends only what is new, plus deletions and updates for documents the
// reused prefix got wrong. When that incremental proposal grows too large it
// falls back to the fresh context.
//
// A Cache is not safe for concurrent use on the same key.
package contextcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
)

const (
	DefaultCapacity   = 128
	DefaultFreshShare = 0.5
)

// Request is one context build for a session.
type Request struct {
	Key       string              // session key, opaque
	Budget    int                 // character budget
	Knowledge knowledge.Knowledge // current documents
	Cached    prompt.Context      // what the backend reports as cached
	// IsExample reports whether an example is still valid. Nil treats every
	// example as valid.
	IsExample func(prompt.Example) bool
}

// Producer builds a context for a request.
type Producer interface {
	Produce(req Request) prompt.Context
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(req Request) prompt.Context

func (f ProducerFunc) Produce(req Request) prompt.Context { return f(req) }

// Formatter renders deletions and updates appended to a proposal.
type Formatter interface {
	Changes(removed knowledge.Index, updated knowledge.Knowledge) prompt.Context
}

// Entry is the cached pair for one session: the last proposed context and
// the one last confirmed to be in the backend cache.
type Entry struct {
	Speculative prompt.Context
	Confirmed   prompt.Context
}

// Config configures a Cache. Zero fields take defaults.
type Config struct {
	Capacity   int
	FreshShare float64 // fall back when fresh cost < FreshShare × proposal cost
	Formatter  Formatter
	Logger     *zap.Logger
}

// Cache wraps a Producer with per-session incremental reuse.
type Cache struct {
	inner      Producer
	entries    *lru.Cache[string, Entry]
	freshShare float64
	formatter  Formatter
	logger     *zap.Logger
}

var _ Producer = (*Cache)(nil)

// New creates a Cache in front of inner.
func New(inner Producer, cfg Config) (*Cache, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.FreshShare <= 0 {
		cfg.FreshShare = DefaultFreshShare
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.NewEnvelope()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := lru.New[string, Entry](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{
		inner:      inner,
		entries:    entries,
		freshShare: cfg.FreshShare,
		formatter:  cfg.Formatter,
		logger:     logger.Named("contextcache"),
	}, nil
}

// Produce returns the context to send for req and remembers it.
func (c *Cache) Produce(req Request) prompt.Context {
	fresh := c.inner.Produce(req)
	entry, _ := c.entries.Get(req.Key)

	baseline := entry.Confirmed
	if matching(entry.Speculative, req.Cached) > matching(entry.Confirmed, req.Cached) {
		baseline = entry.Speculative
	}

	n := consistentPrefix(baseline, fresh, req.IsExample)
	prefix := baseline.Slice(0, n)
	proposal := prefix.Append(novel(prefix, fresh.Slice(n, fresh.Len()))...)
	proposal = prompt.Compose(proposal, c.corrections(proposal, fresh, req.Knowledge))

	final := proposal
	switch {
	case proposal.Cost() > req.Budget:
		c.logger.Debug("proposal over budget, using fresh context",
			zap.String("key", req.Key), zap.Int("cost", proposal.Cost()), zap.Int("budget", req.Budget))
		final = fresh
	case float64(fresh.Cost()) < c.freshShare*float64(proposal.Cost()):
		c.logger.Debug("proposal bloated, using fresh context",
			zap.String("key", req.Key), zap.Int("cost", proposal.Cost()), zap.Int("fresh_cost", fresh.Cost()))
		final = fresh
	default:
		c.logger.Debug("reusing prefix",
			zap.String("key", req.Key), zap.Int("prefix_chunks", n), zap.Int("chunks", final.Len()))
	}

	c.entries.Add(req.Key, Entry{Speculative: final, Confirmed: baseline})
	return final
}

// corrections deletes documents the proposal shows that no longer exist and
// updates those whose content changed. A document as rendered by the fresh
// context counts as current, so trimmed renderings are not "updated".
func (c *Cache) corrections(proposal, fresh prompt.Context, current knowledge.Knowledge) prompt.Context {
	view := proposal.Knowledge()
	current = current.Merge(documents(fresh))
	removed := view.Index().Difference(current.Index())
	updated := current.Restrict(view.Index()).Minus(view)
	return c.formatter.Changes(removed, updated)
}

// Restore seeds the confirmed context of key, keeping any speculative one.
func (c *Cache) Restore(key string, confirmed prompt.Context) {
	entry, _ := c.entries.Peek(key)
	entry.Confirmed = confirmed
	c.entries.Add(key, entry)
}

// Entry returns the pair stored for key without updating its recency.
func (c *Cache) Entry(key string) (Entry, bool) {
	return c.entries.Peek(key)
}

func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every session.
func (c *Cache) Purge() { c.entries.Purge() }

// documents collects the content of document chunks, later chunks winning.
// Documents embedded in examples are left out.
func documents(ctx prompt.Context) knowledge.Knowledge {
	docs := make(map[string]string)
	for _, ch := range ctx.Chunks() {
		if ch.Kind() == prompt.KindDocument {
			docs[ch.Path()] = ch.Content()
		}
	}
	return knowledge.New(docs)
}

// matching counts the leading chunks of ctx that render like cached.
func matching(ctx, cached prompt.Context) int {
	n := 0
	for n < ctx.Len() && n < cached.Len() && ctx.Chunk(n).Equal(cached.Chunk(n)) {
		n++
	}
	return n
}

// consistentPrefix is the number of leading chunks baseline and wanted
// share. An example chunk whose example is no longer valid ends the prefix.
func consistentPrefix(baseline, wanted prompt.Context, isExample func(prompt.Example) bool) int {
	n := 0
	for n < baseline.Len() && n < wanted.Len() {
		ch := baseline.Chunk(n)
		if !ch.Equal(wanted.Chunk(n)) {
			break
		}
		if ex, ok := ch.Example(); ok && isExample != nil && !isExample(ex) {
			break
		}
		n++
	}
	return n
}

// novel keeps the chunks of rest that the prefix does not already convey.
func novel(prefix, rest prompt.Context) []prompt.Chunk {
	known := prefix.Knowledge()
	seen := prefix.Contains()
	var out []prompt.Chunk
	for _, ch := range rest.Chunks() {
		switch ch.Kind() {
		case prompt.KindDocument:
			if content, ok := known.Get(ch.Path()); ok && content == ch.Content() {
				continue
			}
		default:
			if seen(ch) {
				continue
			}
		}
		out = append(out, ch)
	}
	return out
}
