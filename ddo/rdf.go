package ddo

import (
	"sort"
	"strings"

	"github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"
)

const (
	nsRdf    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsXsd    = "http://www.w3.org/2001/XMLSchema#"
	nsSchema = "http://schema.org/"

	rdfType   = nsRdf + "type"
	xsdString = nsXsd + "string"
)

type TermKind int

const (
	TermIRI TermKind = iota
	TermBlank
	TermLiteral
)

// Term is an RDF node, either an IRI, a blank node or a literal.
type Term struct {
	Kind     TermKind
	Value    string // IRI, blank node label without `_:` or literal lexical form
	Datatype string
	Language string
}

func NewIRI(iri string) Term {
	return Term{Kind: TermIRI, Value: iri}
}

func NewBlank(label string) Term {
	return Term{Kind: TermBlank, Value: strings.TrimPrefix(label, "_:")}
}

func NewLiteral(value, datatype string) Term {
	if len(datatype) == 0 {
		datatype = xsdString
	}

	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

var ntEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// NTriples renders the term in N-Triples syntax.
func (t Term) NTriples() string {
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	}

	lit := `"` + ntEscaper.Replace(t.Value) + `"`
	switch {
	case len(t.Language) > 0:
		return lit + "@" + t.Language
	case len(t.Datatype) > 0 && t.Datatype != xsdString:
		return lit + "^^<" + t.Datatype + ">"
	}

	return lit
}

func (t Term) IsLiteral() bool { return t.Kind == TermLiteral }

// Triple is an RDF statement of the default graph.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Graph is an in-memory RDF graph indexed by subject and predicate.
type Graph struct {
	triples []Triple
	index   map[string]map[string][]Term
}

func NewGraph() *Graph {
	return &Graph{index: make(map[string]map[string][]Term)}
}

func (g *Graph) Add(s, p, o Term) {
	g.triples = append(g.triples, Triple{s, p, o})

	key := s.NTriples()
	if g.index[key] == nil {
		g.index[key] = make(map[string][]Term)
	}
	g.index[key][p.Value] = append(g.index[key][p.Value], o)
}

func (g *Graph) Len() int {
	return len(g.triples)
}

func (g *Graph) Triples() []Triple {
	return g.triples
}

// Objects returns the objects of statements with the subject and predicate.
func (g *Graph) Objects(subject Term, predicate string) []Term {
	return g.index[subject.NTriples()][predicate]
}

// Object returns the first object of statements with the subject and predicate.
func (g *Graph) Object(subject Term, predicate string) (Term, bool) {
	objs := g.Objects(subject, predicate)
	if len(objs) == 0 {
		return Term{}, false
	}

	return objs[0], true
}

// HasType checks if the subject is declared as an instance of the class.
func (g *Graph) HasType(subject Term, class string) bool {
	for _, t := range g.Objects(subject, rdfType) {
		if t.Kind == TermIRI && t.Value == class {
			return true
		}
	}

	return false
}

// InstancesOf returns subjects typed with the class, in insertion order.
func (g *Graph) InstancesOf(class string) []Term {
	var result []Term
	seen := make(map[string]bool)

	for _, t := range g.triples {
		if t.Predicate.Value != rdfType || t.Object.Kind != TermIRI || t.Object.Value != class {
			continue
		}

		if key := t.Subject.NTriples(); !seen[key] {
			seen[key] = true
			result = append(result, t.Subject)
		}
	}

	return result
}

// fromLdNode converts a json-ld processor node.
func fromLdNode(n ld.Node) Term {
	switch v := n.(type) {
	case *ld.IRI:
		return NewIRI(v.Value)
	case *ld.BlankNode:
		return NewBlank(v.Attribute)
	case *ld.Literal:
		t := NewLiteral(v.Value, v.Datatype)
		t.Language = v.Language
		return t
	}

	return NewLiteral(n.GetValue(), "")
}

// fromLdDataset collects statements of the default graph of a json-ld dataset.
func fromLdDataset(g *Graph, ds *ld.RDFDataset) {
	graphNames := make([]string, 0, len(ds.Graphs))
	for name := range ds.Graphs {
		graphNames = append(graphNames, name)
	}
	sort.Strings(graphNames)

	for _, name := range graphNames {
		for _, q := range ds.Graphs[name] {
			g.Add(fromLdNode(q.Subject), fromLdNode(q.Predicate), fromLdNode(q.Object))
		}
	}
}

// fromTurtleTerm converts a term decoded from turtle.
func fromTurtleTerm(t rdf.Term) Term {
	switch t.Type() {
	case rdf.TermIRI:
		return NewIRI(t.String())
	case rdf.TermBlank:
		return NewBlank(t.String())
	}

	if lit, ok := t.(rdf.Literal); ok {
		return NewLiteral(lit.String(), lit.DataType.String())
	}

	return NewLiteral(t.String(), "")
}
