package ddo

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/knakk/rdf"
	"github.com/pkg/errors"
)

const (
	nsSh = "http://www.w3.org/ns/shacl#"

	shNodeShape   = nsSh + "NodeShape"
	shTargetClass = nsSh + "targetClass"
	shProperty    = nsSh + "property"
	shPath        = nsSh + "path"
	shMinCount    = nsSh + "minCount"
	shMaxCount    = nsSh + "maxCount"
	shDatatype    = nsSh + "datatype"
	shClass       = nsSh + "class"
	shPattern     = nsSh + "pattern"
	shFlags       = nsSh + "flags"
	shMinLength   = nsSh + "minLength"
	shMaxLength   = nsSh + "maxLength"
	shNode        = nsSh + "node"
	shMessage     = nsSh + "message"

	// guards sh:node recursion on cyclic data
	maxShapeDepth = 16
)

// ErrNoReport is returned when the shapes graph can't produce a validation report.
var ErrNoReport = errors.New("validation report does not exist")

// propertyShape holds the core constraints on values of a predicate path.
type propertyShape struct {
	path      string
	minCount  int
	maxCount  int // -1 if unbounded
	datatype  string
	class     string
	pattern   *regexp.Regexp
	minLength int // -1 if unset
	maxLength int // -1 if unset
	node      string
	message   string
}

type nodeShape struct {
	name          string
	targetClasses []string
	properties    []*propertyShape
}

// ShapesGraph is a compiled, immutable set of SHACL node shapes.
type ShapesGraph struct {
	shapes  map[string]*nodeShape
	ordered []*nodeShape
}

// ValidationResult is a single constraint violation.
type ValidationResult struct {
	Focus   Term
	Path    *Term
	Message string
}

// ShapesReport is the outcome of validating a data graph.
type ShapesReport struct {
	Conforms bool
	Results  []ValidationResult
}

// ParseShapes decodes and compiles a shapes graph in turtle syntax.
func ParseShapes(r io.Reader) (*ShapesGraph, error) {
	triples, err := rdf.NewTripleDecoder(r, rdf.Turtle).DecodeAll()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to decode turtle")
	}

	g := NewGraph()
	for _, t := range triples {
		g.Add(fromTurtleTerm(t.Subj), fromTurtleTerm(t.Pred), fromTurtleTerm(t.Obj))
	}

	return CompileShapes(g)
}

// CompileShapes compiles node shapes declared in the graph. Only IRI predicate
// paths and a subset of core constraints are supported.
func CompileShapes(g *Graph) (*ShapesGraph, error) {
	sg := &ShapesGraph{shapes: make(map[string]*nodeShape)}

	for _, subject := range g.InstancesOf(shNodeShape) {
		shape := &nodeShape{name: subject.Value}

		for _, cls := range g.Objects(subject, shTargetClass) {
			shape.targetClasses = append(shape.targetClasses, cls.Value)
		}

		for _, p := range g.Objects(subject, shProperty) {
			ps, err := compilePropertyShape(g, p)
			if err != nil {
				return nil, errors.WithMessagef(err, "shape %v", subject.NTriples())
			}

			shape.properties = append(shape.properties, ps)
		}

		sg.shapes[shape.name] = shape
		sg.ordered = append(sg.ordered, shape)
	}

	for _, shape := range sg.ordered {
		for _, ps := range shape.properties {
			if len(ps.node) > 0 && sg.shapes[ps.node] == nil {
				return nil, errors.Errorf("shape %v refers to undeclared node shape %v", shape.name, ps.node)
			}
		}
	}

	return sg, nil
}

func compilePropertyShape(g *Graph, subject Term) (*propertyShape, error) {
	path, ok := g.Object(subject, shPath)
	if !ok || path.Kind != TermIRI {
		return nil, errors.Errorf("property shape %v requires an IRI path", subject.NTriples())
	}

	ps := &propertyShape{path: path.Value, maxCount: -1, minLength: -1, maxLength: -1}

	var err error
	intValue := func(predicate string, dst *int) {
		if v, ok := g.Object(subject, predicate); ok && err == nil {
			if *dst, err = strconv.Atoi(v.Value); err != nil {
				err = errors.WithMessagef(err, "invalid %v of %v", predicate, path.NTriples())
			}
		}
	}

	intValue(shMinCount, &ps.minCount)
	intValue(shMaxCount, &ps.maxCount)
	intValue(shMinLength, &ps.minLength)
	intValue(shMaxLength, &ps.maxLength)
	if err != nil {
		return nil, err
	}

	if v, ok := g.Object(subject, shDatatype); ok {
		ps.datatype = v.Value
	}

	if v, ok := g.Object(subject, shClass); ok {
		ps.class = v.Value
	}

	if v, ok := g.Object(subject, shNode); ok {
		ps.node = v.Value
	}

	if v, ok := g.Object(subject, shMessage); ok {
		ps.message = v.Value
	}

	if v, ok := g.Object(subject, shPattern); ok {
		expr := v.Value
		if flags, ok := g.Object(subject, shFlags); ok && len(flags.Value) > 0 {
			expr = "(?" + flags.Value + ")" + expr
		}

		if ps.pattern, err = regexp.Compile(expr); err != nil {
			return nil, errors.WithMessagef(err, "invalid pattern of %v", path.NTriples())
		}
	}

	return ps, nil
}

// Len returns the number of node shapes.
func (sg *ShapesGraph) Len() int {
	return len(sg.ordered)
}

// Validate validates target nodes of all shapes in the data graph.
func (sg *ShapesGraph) Validate(data *Graph) (*ShapesReport, error) {
	if len(sg.ordered) == 0 {
		return nil, errors.WithMessage(ErrNoReport, "empty shapes graph")
	}

	report := &ShapesReport{}
	for _, shape := range sg.ordered {
		for _, cls := range shape.targetClasses {
			for _, focus := range data.InstancesOf(cls) {
				report.Results = append(report.Results, sg.validateNode(data, focus, shape, 0)...)
			}
		}
	}

	report.Conforms = len(report.Results) == 0
	return report, nil
}

func (sg *ShapesGraph) validateNode(data *Graph, focus Term, shape *nodeShape, depth int) []ValidationResult {
	var results []ValidationResult
	for _, ps := range shape.properties {
		results = append(results, sg.validateProperty(data, focus, ps, depth)...)
	}

	return results
}

func (sg *ShapesGraph) validateProperty(data *Graph, focus Term, ps *propertyShape, depth int) []ValidationResult {
	path := NewIRI(ps.path)
	values := data.Objects(focus, ps.path)

	var results []ValidationResult
	violate := func(format string, args ...interface{}) {
		msg := ps.message
		if len(msg) == 0 {
			msg = fmt.Sprintf(format, args...)
		}

		results = append(results, ValidationResult{Focus: focus, Path: &path, Message: msg})
	}

	if len(values) < ps.minCount {
		violate("Less than %v values on %v->%v", ps.minCount, focus.NTriples(), path.NTriples())
	}

	if ps.maxCount >= 0 && len(values) > ps.maxCount {
		violate("More than %v values on %v->%v", ps.maxCount, focus.NTriples(), path.NTriples())
	}

	for _, v := range values {
		if len(ps.datatype) > 0 && (!v.IsLiteral() || v.Datatype != ps.datatype) {
			violate("Value does not have datatype <%v>", ps.datatype)
		}

		if len(ps.class) > 0 && !data.HasType(v, ps.class) {
			violate("Value does not have class <%v>", ps.class)
		}

		if ps.pattern != nil && (v.Kind == TermBlank || !ps.pattern.MatchString(v.Value)) {
			violate("Value does not match pattern %q", ps.pattern.String())
		}

		if ps.minLength >= 0 || ps.maxLength >= 0 {
			length := utf8.RuneCountInString(v.Value)

			switch {
			case v.Kind == TermBlank:
				violate("Value is a blank node")
			case ps.minLength >= 0 && length < ps.minLength:
				violate("Value has less than %v characters", ps.minLength)
			case ps.maxLength >= 0 && length > ps.maxLength:
				violate("Value has more than %v characters", ps.maxLength)
			}
		}

		if len(ps.node) > 0 {
			nested := sg.nestedResults(data, v, ps.node, depth)
			if len(nested) > 0 {
				violate("Value does not have shape <%v>", ps.node)
				results = append(results, nested...)
			}
		}
	}

	return results
}

func (sg *ShapesGraph) nestedResults(data *Graph, focus Term, shapeName string, depth int) []ValidationResult {
	if depth >= maxShapeDepth {
		return []ValidationResult{{Focus: focus, Message: "Maximum shape depth exceeded"}}
	}

	if focus.IsLiteral() {
		return []ValidationResult{{Focus: focus, Message: fmt.Sprintf("Literal value %v is not a node", focus.NTriples())}}
	}

	return sg.validateNode(data, focus, sg.shapes[shapeName], depth+1)
}
