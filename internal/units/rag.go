package units

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/pkg/config"
)

const (
	ragRole = `You are a helpful assistant that answers questions based on the provided documents.
If the answer is not contained in the documents, say so and answer from general knowledge.`

	hydeRole = `You are a helpful assistant that writes a hypothetical document which would answer the question.
Write a short, factual passage. Do not mention that it is hypothetical.`

	rewriteRole = `You are a search query optimizer. Rewrite the query into 3 alternative versions that may retrieve better results.
Respond with JSON only: {"queries": ["...", "...", "..."]}`

	strategyRole = `You are a retrieval strategist. Decide how many documents to retrieve for the query and the minimum relevance score between 0 and 1.
Respond with JSON only: {"params": {"k": 4, "min_relevance": 0.2}}`

	rerankRole = `You are a relevance judge. Order the numbered documents from most to least relevant to the query.
Respond with JSON only: {"order": [2, 0, 1]}`
)

const (
	defaultK     = 4
	maxK         = 20
	answerWindow = 3
)

// Strategy controls a vector search.
type Strategy struct {
	K            int     `json:"k"`
	MinRelevance float32 `json:"min_relevance"`
}

func (s Strategy) normalize() Strategy {
	if s.K <= 0 {
		s.K = defaultK
	}
	if s.K > maxK {
		s.K = maxK
	}
	if s.MinRelevance < 0 || s.MinRelevance > 1 {
		s.MinRelevance = 0
	}
	return s
}

// RAG answers from documents retrieved out of a vector store.
type RAG struct {
	caller
	Store      vectorstores.VectorStore
	Components config.RAGComponents
	Namespace  string
}

func NewRAG(d Deps, store vectorstores.VectorStore, components config.RAGComponents) *RAG {
	return &RAG{caller: newCaller(NameRAG, ragRole, d), Store: store, Components: components}
}

func (r *RAG) Process(ctx context.Context, task, context string) (string, error) {
	docs, err := r.Retrieve(ctx, task)
	if err != nil {
		return "", err
	}

	user := "Question: " + task
	if len(docs) > 0 {
		var b strings.Builder
		for i, d := range docs {
			fmt.Fprintf(&b, "Document %d:\n%s\n\n", i+1, d.PageContent)
		}
		user = "Documents:\n" + b.String() + user
	}
	return r.complete(ctx, r.role, withContext(user, task, context))
}

// Retrieve runs the enabled retrieval components and returns at most three
// documents, best first.
func (r *RAG) Retrieve(ctx context.Context, task string) ([]schema.Document, error) {
	if !r.Components.Database || r.Store == nil {
		return nil, nil
	}

	queries := []string{task}
	strategy := Strategy{K: defaultK}
	if r.Components.Retrieval {
		queries = append(queries, r.rewrite(ctx, task)...)
		strategy = r.strategy(ctx, task)
	}
	if r.Components.Embedding {
		if doc, err := r.complete(ctx, r.prompt("hyde", hydeRole), "Question: "+task); err == nil {
			queries = append(queries, doc)
		} else if ctx.Err() != nil {
			return nil, err
		}
	}

	docs, err := r.search(ctx, queries, strategy)
	if err != nil {
		return nil, err
	}
	if r.Components.Rerank && len(docs) > 1 {
		docs = r.rerank(ctx, task, docs)
	}
	if len(docs) > answerWindow {
		docs = docs[:answerWindow]
	}
	return docs, nil
}

// rewrite returns alternative phrasings. A failed rewrite only narrows the
// search, so it is not fatal.
func (r *RAG) rewrite(ctx context.Context, task string) []string {
	var out struct {
		Queries []string `json:"queries"`
	}
	if err := r.completeJSON(ctx, r.prompt("rewrite", rewriteRole), "Query: "+task, &out); err != nil {
		r.debugf("query rewrite skipped: %v", err)
		return nil
	}
	var queries []string
	for _, q := range out.Queries {
		if q = strings.TrimSpace(q); q != "" && q != task {
			queries = append(queries, q)
		}
	}
	return queries
}

func (r *RAG) strategy(ctx context.Context, task string) Strategy {
	var out struct {
		Params Strategy `json:"params"`
	}
	if err := r.completeJSON(ctx, r.prompt("strategy", strategyRole), "Query: "+task, &out); err != nil {
		r.debugf("default retrieval strategy: %v", err)
		return Strategy{K: defaultK}
	}
	return out.Params.normalize()
}

func (r *RAG) search(ctx context.Context, queries []string, s Strategy) ([]schema.Document, error) {
	opts := []vectorstores.Option{vectorstores.WithScoreThreshold(s.MinRelevance)}
	if r.Namespace != "" {
		opts = append(opts, vectorstores.WithNameSpace(r.Namespace))
	}

	best := make(map[string]schema.Document)
	for _, q := range queries {
		found, err := r.Store.SimilaritySearch(ctx, q, s.K, opts...)
		if err != nil {
			return nil, agent.NewUnitError(r.name, "", "vector search", err)
		}
		for _, d := range found {
			if prev, ok := best[d.PageContent]; !ok || d.Score > prev.Score {
				best[d.PageContent] = d
			}
		}
	}

	docs := make([]schema.Document, 0, len(best))
	for _, d := range best {
		docs = append(docs, d)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score == docs[j].Score {
			return docs[i].PageContent < docs[j].PageContent
		}
		return docs[i].Score > docs[j].Score
	})
	if len(docs) > s.K {
		docs = docs[:s.K]
	}
	return docs, nil
}

// rerank reorders docs by the model's judgement. Indices the model leaves
// out keep their score order after the ranked ones.
func (r *RAG) rerank(ctx context.Context, task string, docs []schema.Document) []schema.Document {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", task)
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n\n", i, d.PageContent)
	}

	var out struct {
		Order []int `json:"order"`
	}
	if err := r.completeJSON(ctx, r.prompt("rerank", rerankRole), b.String(), &out); err != nil {
		r.debugf("rerank skipped: %v", err)
		return docs
	}

	seen := make(map[int]bool, len(docs))
	ranked := make([]schema.Document, 0, len(docs))
	for _, i := range out.Order {
		if i < 0 || i >= len(docs) || seen[i] {
			continue
		}
		seen[i] = true
		ranked = append(ranked, docs[i])
	}
	for i, d := range docs {
		if !seen[i] {
			ranked = append(ranked, d)
		}
	}
	return ranked
}
