package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort orders.
const (
	SortRelevance = "relevance"
	SortRecent    = "recent"
)

// Params configures a search.
type Params struct {
	Query  string
	Labels []string // exact label filter, all must match
	Limit  int
	Offset int
	SortBy string

	IncludeFacets bool
	Highlight     bool
}

// DefaultParams returns the defaults used by the HTTP layer.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		SortBy:        SortRelevance,
		IncludeFacets: true,
		Highlight:     true,
	}
}

// Result is a page of hits.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []Hit        `json:"hits"`
	Labels []FacetCount `json:"labels,omitempty"`
}

// Hit is one matching thumbnail.
type Hit struct {
	Key        string            `json:"key"`
	Name       string            `json:"name"`
	Score      float64           `json:"score"`
	Labels     []string          `json:"labels,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// FacetCount is a label and the number of hits carrying it.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs params against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)

	if params.IncludeFacets {
		req.AddFacet("labels", bleve.NewFacetRequest("labels", 20))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("name")
	}
	req.Fields = []string{"name", "labels"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}

	for _, match := range res.Hits {
		hit := Hit{Key: match.ID, Score: match.Score}
		if n, ok := match.Fields["name"].(string); ok {
			hit.Name = n
		}
		hit.Labels = stringsField(match.Fields["labels"])

		if len(match.Fragments) > 0 {
			hit.Highlights = make(map[string]string)
			for field, fragments := range match.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, hit)
	}

	if facet, ok := res.Facets["labels"]; ok && facet.Terms != nil {
		for _, term := range facet.Terms.Terms() {
			result.Labels = append(result.Labels, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return result, nil
}

// stringsField reads a stored field that Bleve returns as a string for one value
// and as []any for several.
func stringsField(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// buildQuery matches the query text against photo names and labels, then ANDs in
// the exact label filters.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		labelExact := bleve.NewTermQuery(q)
		labelExact.SetField("labels")
		labelExact.SetBoost(2.5)
		textQueries = append(textQueries, labelExact)

		labelMatch := bleve.NewMatchQuery(q)
		labelMatch.SetField("label_text")
		labelMatch.SetBoost(2.0)
		textQueries = append(textQueries, labelMatch)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)
		textQueries = append(textQueries, fuzzy)

		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	for _, label := range params.Labels {
		tq := bleve.NewTermQuery(label)
		tq.SetField("labels")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, params Params) {
	if params.SortBy == SortRecent {
		req.SortBy([]string{"-created_at", "_id"})
		return
	}
	req.SortBy([]string{"-_score", "-created_at"})
}
