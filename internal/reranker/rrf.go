package reranker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

const (
	rrfK          = 60
	rrfMinQueries = 2
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "i": true,
	"you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "what": true, "which": true, "who": true, "when": true,
	"where": true, "why": true, "how": true, "and": true, "or": true,
	"but": true, "if": true, "then": true, "of": true, "at": true,
	"by": true, "for": true, "with": true, "about": true, "to": true,
	"from": true, "in": true, "on": true, "my": true, "your": true,
	"me": true, "that": true, "this": true, "these": true, "those": true,
}

// RRF reranks without an LLM: decompose the query into sub-queries, rank
// documents per sub-query by embedding similarity, and fuse the ranks with
// reciprocal rank fusion.
type RRF struct {
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewRRF(embedder domain.EmbeddingClient, logger *zap.Logger) *RRF {
	return &RRF{embedder: embedder, logger: logger}
}

func (r *RRF) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	subQueries := decomposeQuery(query)

	vectors, err := r.embedder.EmbedBatch(ctx, append(subQueries, documents...))
	if err != nil {
		return nil, fmt.Errorf("embed sub-queries and documents: %w", err)
	}
	queryVecs := vectors[:len(subQueries)]
	docVecs := vectors[len(subQueries):]

	// score(d) = sum over sub-queries of 1/(k + rank), normalized by the
	// best possible sum N/(k+1) so scores land in [0,1].
	fused := make([]float64, len(documents))
	for _, qv := range queryVecs {
		for _, idx := range rankDocuments(qv, docVecs) {
			fused[idx.doc] += 1.0 / float64(rrfK+idx.rank)
		}
	}
	norm := float64(len(subQueries)) / float64(rrfK+1)
	scores := make([]float64, len(documents))
	for i, f := range fused {
		scores[i] = f / norm
	}
	return scores, nil
}

// decomposeQuery produces sub-queries from the full query, its sentence
// splits, and its stopword-stripped keywords, deduplicated
// case-insensitively. Short queries are padded by repeating the full query
// so at least rrfMinQueries remain.
func decomposeQuery(query string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	add(query)

	for _, sentence := range strings.FieldsFunc(query, func(r rune) bool {
		return r == '.' || r == '?' || r == '!'
	}) {
		add(sentence)
	}

	var keywords []string
	for _, word := range strings.Fields(query) {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:\"'"))
		if cleaned != "" && !stopwords[cleaned] {
			keywords = append(keywords, cleaned)
		}
	}
	if len(keywords) > 0 {
		add(strings.Join(keywords, " "))
	}

	for len(out) < rrfMinQueries {
		out = append(out, query)
	}
	return out
}

type docRank struct {
	doc  int
	rank int
}

// rankDocuments orders documents by similarity to one sub-query vector and
// assigns 1-based ranks.
func rankDocuments(queryVec []float32, docVecs [][]float32) []docRank {
	type scored struct {
		doc int
		sim float64
	}
	order := make([]scored, len(docVecs))
	for i, dv := range docVecs {
		order[i] = scored{doc: i, sim: cosineSimilarity(queryVec, dv)}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].sim > order[b].sim })

	ranks := make([]docRank, len(order))
	for rank, s := range order {
		ranks[rank] = docRank{doc: s.doc, rank: rank + 1}
	}
	return ranks
}
