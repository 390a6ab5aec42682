package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchLabel",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search by label",
		Description: "Returns photos carrying exactly the given label, most recently labelled first. An unknown label yields an empty list.",
		Tags:        []string{"Search"},
	}, s.handleSearchLabel)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchFullText",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/fulltext",
		Summary:     "Full-text search",
		Description: "Searches photo names and labels with fuzzy and prefix matching",
		Tags:        []string{"Search"},
	}, s.handleSearchFullText)
}

// === DTOs ===

// SearchLabelInput contains the label search term.
type SearchLabelInput struct {
	Term string `query:"search-term" doc:"Label to look up, matched exactly"`
}

// SearchLabelResponse contains label search results.
type SearchLabelResponse struct {
	SearchTerm string          `json:"search_term" doc:"The term searched for"`
	Photos     []PhotoResponse `json:"photos" doc:"Matching photos, most recently labelled first"`
}

// SearchLabelOutput wraps label search results for Huma.
type SearchLabelOutput struct {
	Body SearchLabelResponse
}

// SearchFullTextInput contains full-text search parameters.
type SearchFullTextInput struct {
	Query  string   `query:"q" doc:"Search query"`
	Labels []string `query:"label" doc:"Only photos carrying all of these labels"`
	Sort   string   `query:"sort" enum:"relevance,recent" default:"relevance" doc:"Result order"`
	Limit  int      `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Page size"`
	Offset int      `query:"offset" default:"0" minimum:"0" doc:"Hits to skip"`
}

// SearchHitResponse is one full-text hit.
type SearchHitResponse struct {
	ThumbnailKey  string            `json:"thumbnail_key" doc:"Thumbnail key"`
	ThumbnailName string            `json:"thumbnail_name" doc:"Original photo object name"`
	ThumbnailURL  string            `json:"thumbnail_url" doc:"URL serving the thumbnail"`
	Score         float64           `json:"score" doc:"Relevance score"`
	Labels        []string          `json:"labels" doc:"Labels"`
	Highlights    map[string]string `json:"highlights,omitempty" doc:"Highlighted fragments by field"`
}

// LabelFacetResponse is a label and the number of hits carrying it.
type LabelFacetResponse struct {
	Label string `json:"label" doc:"Label"`
	Count int    `json:"count" doc:"Hits carrying the label"`
}

// SearchFullTextResponse contains a page of full-text results.
type SearchFullTextResponse struct {
	Query  string               `json:"query" doc:"The query searched for"`
	Total  uint64               `json:"total" doc:"Total matching photos"`
	TookMs int64                `json:"took_ms" doc:"Search time in milliseconds"`
	Hits   []SearchHitResponse  `json:"hits" doc:"Matching photos"`
	Labels []LabelFacetResponse `json:"labels,omitempty" doc:"Most common labels among the hits"`
}

// SearchFullTextOutput wraps full-text results for Huma.
type SearchFullTextOutput struct {
	Body SearchFullTextResponse
}

// === Handlers ===

func (s *Server) handleSearchLabel(ctx context.Context, input *SearchLabelInput) (*SearchLabelOutput, error) {
	photos, err := s.services.Album.SearchLabel(ctx, input.Term)
	if err != nil {
		return nil, err
	}
	return &SearchLabelOutput{Body: SearchLabelResponse{
		SearchTerm: input.Term,
		Photos:     toPhotoResponses(photos),
	}}, nil
}

func (s *Server) handleSearchFullText(ctx context.Context, input *SearchFullTextInput) (*SearchFullTextOutput, error) {
	if s.services.Search == nil {
		return nil, errors.Unavailable("full-text search is not configured")
	}

	params := search.DefaultParams()
	params.Query = input.Query
	params.Labels = input.Labels
	params.SortBy = input.Sort
	params.Limit = input.Limit
	params.Offset = input.Offset

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHitResponse, 0, len(result.Hits))
	for _, h := range result.Hits {
		labels := h.Labels
		if labels == nil {
			labels = []string{}
		}
		hits = append(hits, SearchHitResponse{
			ThumbnailKey:  h.Key,
			ThumbnailName: h.Name,
			ThumbnailURL:  s.services.Album.ThumbnailURL(h.Key),
			Score:         h.Score,
			Labels:        labels,
			Highlights:    h.Highlights,
		})
	}

	facets := make([]LabelFacetResponse, 0, len(result.Labels))
	for _, f := range result.Labels {
		facets = append(facets, LabelFacetResponse{Label: f.Value, Count: f.Count})
	}

	return &SearchFullTextOutput{Body: SearchFullTextResponse{
		Query:  result.Query,
		Total:  result.Total,
		TookMs: result.TookMs,
		Hits:   hits,
		Labels: facets,
	}}, nil
}
