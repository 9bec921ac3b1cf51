// Package search provides a small, deterministic, concurrency-safe in-memory
// ranking index used by the doctor directory's free-text filter.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Unicode-aware tokenization: case folding and accent stripping via
//     golang.org/x/text, so "Cardiología" matches "cardiologia"
//   - Immutable after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring is Jaccard similarity between the query token set and each
// document's token set, score = |Q ∩ D| / |Q ∪ D|, where a query token of
// at least three runes also matches any document token it prefixes.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is an indexed unit. ID is returned in results; Text is tokenized.
type Document struct {
	ID   string
	Text string
}

// Result is a ranked document id with its similarity score.
type Result struct {
	ID    string
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minPrefixRunes int
	stopwords      map[string]struct{}
	maxDocs        int
}

func defaultConfig() config {
	return config{
		minPrefixRunes: 3,
		stopwords:      nil,
		maxDocs:        0,
	}
}

// WithMinPrefixRunes sets the shortest query token allowed to prefix-match.
// Zero disables prefix matching.
func WithMinPrefixRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minPrefixRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = normalize(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs. Documents without tokens are skipped.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		toks := tokenize(d.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, tokens: toks, tLen: len(toks)})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching documents. k <= 0 means all matches.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	buf := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		over := i.overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, Result{ID: d.id, Score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		return buf[a].Score > buf[b].Score
	})

	if k > 0 && k < len(buf) {
		buf = buf[:k]
	}
	return buf
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

var folder = cases.Fold()

// normalize case-folds s and strips combining marks.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(out)
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(normalize(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

// overlap counts query tokens matched by the document, exactly or by prefix.
func (i *index) overlap(q, d map[string]struct{}) int {
	n := 0
	for tok := range q {
		if _, ok := d[tok]; ok {
			n++
			continue
		}
		if i.cfg.minPrefixRunes == 0 || utf8.RuneCountInString(tok) < i.cfg.minPrefixRunes {
			continue
		}
		for dt := range d {
			if strings.HasPrefix(dt, tok) {
				n++
				break
			}
		}
	}
	return n
}
