package store

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// newIndexMapping builds the static mapping for message documents.
// Text fields are lowercased by the standard analyzer and copied into the
// composite _all field, so an unqualified term matches any of them. Term
// vectors carry the positions phrase queries match on.
func newIndexMapping() *mapping.IndexMappingImpl {
	idField := bleve.NewKeywordFieldMapping()
	idField.Store = true
	idField.IncludeInAll = true

	ticksField := bleve.NewNumericFieldMapping()
	ticksField.Store = true
	ticksField.Index = true
	ticksField.DocValues = true
	ticksField.IncludeInAll = false

	docMapping := bleve.NewDocumentStaticMapping()
	docMapping.AddFieldMappingsAt(FieldID, idField)
	docMapping.AddFieldMappingsAt(FieldSender, textField())
	docMapping.AddFieldMappingsAt(FieldRecipient, textField())
	docMapping.AddFieldMappingsAt(FieldSubject, textField())
	docMapping.AddFieldMappingsAt(FieldBody, textField())
	docMapping.AddFieldMappingsAt(FieldTimestamp, ticksField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	indexMapping.IndexDynamic = false
	indexMapping.StoreDynamic = false
	indexMapping.DocValuesDynamic = false

	return indexMapping
}

func textField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = standard.Name
	fm.Store = true
	fm.IncludeInAll = true
	fm.IncludeTermVectors = true
	return fm
}
