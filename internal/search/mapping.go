package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the mapping for book documents: English-stemmed
// title, author, and chapter text, keyword identity fields, and numeric
// fields for sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true

	// Sortable copy of the title; the analyzed field sorts by its terms.
	sortNameFieldMapping := bleve.NewTextFieldMapping()
	sortNameFieldMapping.Analyzer = keyword.Name
	sortNameFieldMapping.Name = "name_sort"
	docMapping.AddFieldMappingsAt("name", nameFieldMapping, sortNameFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = en.AnalyzerName
	authorFieldMapping.Store = true
	authorFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	chaptersFieldMapping := bleve.NewTextFieldMapping()
	chaptersFieldMapping.Analyzer = en.AnalyzerName
	chaptersFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("chapters", chaptersFieldMapping)

	for _, field := range []string{"id", "book_id", "url"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	durationFieldMapping := bleve.NewNumericFieldMapping()
	durationFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("duration", durationFieldMapping)

	chapterCountFieldMapping := bleve.NewNumericFieldMapping()
	chapterCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("chapter_count", chapterCountFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
