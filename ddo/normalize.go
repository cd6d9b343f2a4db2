package ddo

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

const (
	ddoType = "DDO"

	flatSubjectPrefix = "http://example.org/ddo/"
	flatPredicate     = "http://example.org/ddo/property"
)

// WorkingCopy deep copies the document for validation, typed as a DDO node
// with all terms resolved against the schema.org vocabulary. The source
// document is never mutated.
func WorkingCopy(doc map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to marshal document")
	}

	var copied map[string]interface{}
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, errors.WithMessage(err, "failed to unmarshal document")
	}

	if copied == nil {
		return nil, ErrInvalidDocument
	}

	copied["@type"] = ddoType
	copied["@context"] = map[string]interface{}{"@vocab": nsSchema}

	return copied, nil
}

// Normalize expands and flattens the working copy as JSON-LD, and converts it
// into RDF statements, together with one flat statement per top level field.
func Normalize(working map[string]interface{}) (*Graph, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")

	expanded, err := proc.Expand(working, opts)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to expand document")
	}

	flattened, err := proc.Flatten(expanded, nil, opts)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to flatten document")
	}

	out, err := proc.ToRDF(flattened, opts)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to convert document to rdf")
	}

	dataset, ok := out.(*ld.RDFDataset)
	if !ok {
		return nil, errors.Errorf("unexpected rdf output %T", out)
	}

	g := NewGraph()
	fromLdDataset(g, dataset)
	AddFlatTriples(g, working)

	return g, nil
}

// AddFlatTriples adds a statement `<http://example.org/ddo/{key}> property "{value}"`
// per top level field in key order, with non-string values JSON encoded.
func AddFlatTriples(g *Graph, doc map[string]interface{}) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	predicate := NewIRI(flatPredicate)
	for _, k := range keys {
		g.Add(NewIRI(flatSubjectPrefix+k), predicate, NewLiteral(stringify(doc[k]), ""))
	}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(data)
}
