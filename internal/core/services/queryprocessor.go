package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
	"github.com/quarrydocs/quarry/internal/logger"
)

// DefaultClassifyRetryDelay is the pause before the single classification retry.
const DefaultClassifyRetryDelay = 200 * time.Millisecond

// Heuristic classification patterns.
var (
	// ticketPattern matches JIRA-style issue keys like PROJ-1234.
	ticketPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

	// pathPattern matches file-path-like tokens (slashes or a source
	// file extension).
	pathPattern = regexp.MustCompile(`\S+/\S+|\S+\.(go|py|js|ts|java|c|cpp|h|rs|rb|sh|yaml|yml|json|toml)\b`)
)

// Keyword sets for the deterministic fallback classifier.
var (
	issueWords = []string{"bug", "ticket", "issue", "sprint", "backlog", "incident", "regression"}
	codeWords  = []string{"function", "method", "class", "struct", "implementation", "commit", "repo", "repository"}
	wikiWords  = []string{"page", "space", "wiki", "confluence", "meeting", "notes"}
	docsWords  = []string{"guide", "tutorial", "documentation", "docs", "readme", "howto", "manual"}
)

// stopwords are dropped when tokenising query text into search terms.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "for": true,
	"from": true, "how": true, "in": true, "is": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "what": true,
	"where": true, "with": true,
}

// QueryProcessor classifies raw query text into an intent and a likely
// source-type set. Classification uses a single LLM call when a service
// is available, with a deterministic heuristic fallback so that search
// keeps functioning when the provider is down.
type QueryProcessor struct {
	llm        driven.LLMService
	retryDelay time.Duration
}

// NewQueryProcessor creates a query processor. The LLM service is
// optional; when nil, only the heuristic classifier runs.
func NewQueryProcessor(llm driven.LLMService) *QueryProcessor {
	return &QueryProcessor{
		llm:        llm,
		retryDelay: DefaultClassifyRetryDelay,
	}
}

// Process classifies raw query text into a Query. It never fails:
// empty input yields a general query over all source types, and
// classifier errors fall back to the heuristics.
func (p *QueryProcessor) Process(ctx context.Context, raw string) domain.Query {
	raw = strings.TrimSpace(raw)

	query := domain.Query{
		RawText:           raw,
		Intent:            domain.IntentGeneral,
		ExpandedTerms:     tokenize(raw),
		LikelySourceTypes: domain.AllSourceTypes(),
	}
	if raw == "" {
		logger.Debug("Empty query, skipping classification")
		return query
	}

	if p.llm != nil {
		if cls, err := p.classifyWithRetry(ctx, raw); err == nil {
			logger.Debug("LLM classification: intent=%s sources=%v", cls.Intent, cls.SourceTypes)
			applyClassification(&query, cls)
			return query
		} else {
			logger.Warn("LLM classification failed: %v (falling back to heuristics)", err)
		}
	}

	intent, sources := heuristicClassify(raw)
	query.Intent = intent
	query.LikelySourceTypes = sources
	return query
}

// classifyWithRetry issues the classification call, retrying once after
// a short pause. Context cancellation is not retried.
func (p *QueryProcessor) classifyWithRetry(ctx context.Context, raw string) (driven.QueryClassification, error) {
	cls, err := p.llm.ClassifyQuery(ctx, raw)
	if err == nil {
		return cls, nil
	}
	if ctx.Err() != nil {
		return driven.QueryClassification{}, ctx.Err()
	}

	select {
	case <-ctx.Done():
		return driven.QueryClassification{}, ctx.Err()
	case <-time.After(p.retryDelay):
	}

	return p.llm.ClassifyQuery(ctx, raw)
}

// applyClassification merges validated classifier output into the query.
// Unknown intent or source type names degrade to the defaults rather
// than failing.
func applyClassification(query *domain.Query, cls driven.QueryClassification) {
	query.Intent = domain.ParseIntent(cls.Intent)

	var sources []domain.SourceType
	for _, name := range cls.SourceTypes {
		st, err := domain.ParseSourceType(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			continue
		}
		sources = append(sources, st)
	}
	if len(sources) > 0 {
		query.LikelySourceTypes = sources
	}

	for _, term := range cls.ExpandedTerms {
		for _, tok := range tokenize(term) {
			if !containsString(query.ExpandedTerms, tok) {
				query.ExpandedTerms = append(query.ExpandedTerms, tok)
			}
		}
	}
}

// heuristicClassify is the deterministic keyword/regex classifier used
// when no LLM is configured or the provider call fails.
func heuristicClassify(raw string) (domain.Intent, []domain.SourceType) {
	lower := strings.ToLower(raw)

	if ticketPattern.MatchString(raw) || containsAnyWord(lower, issueWords) {
		return domain.IntentIssue, []domain.SourceType{domain.SourceTypeJira}
	}

	if pathPattern.MatchString(raw) || containsAnyWord(lower, codeWords) {
		return domain.IntentCode, []domain.SourceType{
			domain.SourceTypeGit,
			domain.SourceTypeLocalFile,
		}
	}

	if containsAnyWord(lower, wikiWords) {
		return domain.IntentDocument, []domain.SourceType{domain.SourceTypeConfluence}
	}

	if containsAnyWord(lower, docsWords) {
		return domain.IntentDocument, []domain.SourceType{
			domain.SourceTypeConfluence,
			domain.SourceTypePublicDocs,
		}
	}

	return domain.IntentGeneral, domain.AllSourceTypes()
}

// tokenize lowercases text and splits it into search terms, dropping
// stopwords and single characters. Order follows the input; duplicates
// are removed.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	terms := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r > 127
}

func containsAnyWord(text string, words []string) bool {
	for _, w := range words {
		if containsWord(text, w) {
			return true
		}
	}
	return false
}

// containsWord reports whether text contains w as a whole token.
func containsWord(text, w string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordRune(rune(text[start-1]))
		afterOK := end == len(text) || !isWordRune(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
