package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for thumbnail documents.
//
//   - name uses the simple analyzer so "beach-party.jpg" yields beach, party, jpg
//   - labels are keywords for exact filtering and facets
//   - label_text is the English-analysed copy of the labels
//   - created_at is numeric for recency sorting
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = simple.Name
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	labelsFieldMapping := bleve.NewTextFieldMapping()
	labelsFieldMapping.Analyzer = keyword.Name
	labelsFieldMapping.Store = true
	labelsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("labels", labelsFieldMapping)

	labelTextFieldMapping := bleve.NewTextFieldMapping()
	labelTextFieldMapping.Analyzer = en.AnalyzerName
	labelTextFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("label_text", labelTextFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
