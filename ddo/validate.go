package ddo

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// ErrorKeyReport is the error key when no validation report produced.
	ErrorKeyReport = "error"

	msgNoReport = "Validation report does not exist"
)

// ErrInvalidDocument is returned when the document is not a JSON object.
var ErrInvalidDocument = errors.New("invalid document")

var isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d{1,3})?Z)?$`)

// IsIsoFormat checks if the string is an ISO-8601 date, optionally with UTC time.
func IsIsoFormat(s string) bool {
	return isoDateRegex.MatchString(s)
}

// Validator validates documents against structural rules and versioned schemas.
// It is safe for concurrent use.
type Validator struct {
	schemas *SchemaRegistry
	logger  logrus.FieldLogger
}

func NewValidator(schemas *SchemaRegistry, logger logrus.FieldLogger) *Validator {
	return &Validator{schemas: schemas, logger: logger}
}

// ValidateJSON decodes and validates a document.
func (v *Validator) ValidateJSON(
	ctx context.Context, data []byte, chainId uint64, nftAddress string,
) (*types.ValidationReport, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithMessage(ErrInvalidDocument, err.Error())
	}

	return v.Validate(ctx, doc, chainId, nftAddress)
}

// Validate checks the document minted by nftAddress on chain chainId.
//
// Document defects are reported as entries of the returned report and never
// as error. Error is only returned for unknown schema version or a nil
// document, while other failures to produce a report end up with a single
// `error` entry.
func (v *Validator) Validate(
	ctx context.Context, doc map[string]interface{}, chainId uint64, nftAddress string,
) (report *types.ValidationReport, err error) {
	if doc == nil {
		return nil, ErrInvalidDocument
	}

	start := time.Now()
	defer func() {
		if err != nil {
			metrics.Registry.Validation.Failure().Mark(1)
		} else if report != nil {
			metrics.Registry.Validation.Conformance(report.Conforms).Mark(1)
			metrics.Registry.Validation.ConformanceRate().Mark(report.Conforms)
			metrics.Registry.Validation.Duration().UpdateSince(start)
		}
	}()

	logger := v.logger.WithFields(logrus.Fields{
		"chainId":    chainId,
		"nftAddress": nftAddress,
		"id":         doc["id"],
	})

	structural := checkStructure(doc, chainId, nftAddress)

	shapes, err := v.schemas.Resolve(documentVersion(doc))
	if errors.Is(err, ErrUnknownSchemaVersion) {
		return nil, err
	}

	var shapesReport *ShapesReport
	if err == nil {
		shapesReport, err = v.validateShapes(shapes, doc)
	}

	if err != nil {
		logger.WithError(err).Info(msgNoReport)
		return &types.ValidationReport{
			Conforms: false,
			Errors:   map[string]string{ErrorKeyReport: msgNoReport},
		}, nil
	}

	report = mergeErrors(shapesReport, structural)
	if !report.Conforms {
		logger.WithField("errors", report.Errors).Debug("Document does not conform")
	}

	return report, nil
}

func (v *Validator) validateShapes(shapes *ShapesGraph, doc map[string]interface{}) (*ShapesReport, error) {
	working, err := WorkingCopy(doc)
	if err != nil {
		return nil, err
	}

	data, err := Normalize(working)
	if err != nil {
		return nil, errors.WithMessage(ErrNoReport, err.Error())
	}

	return shapes.Validate(data)
}

func documentVersion(doc map[string]interface{}) string {
	switch version := doc["version"].(type) {
	case nil:
		return CurrentVersion
	case string:
		if len(version) == 0 {
			return CurrentVersion
		}
		return version
	default:
		return fmt.Sprint(version)
	}
}

// structuralErrors accumulates errors of checks on the raw document, the latter
// overrides the former on the same key.
type structuralErrors map[string]string

func (e structuralErrors) check(ok bool, key, message string) {
	if !ok {
		e[key] = message
	}
}

func checkStructure(doc map[string]interface{}, chainId uint64, nftAddress string) structuralErrors {
	errs := make(structuralErrors)

	ldContext, hasContext := doc["@context"]
	errs.check(hasContext, "@context", "Context is missing.")
	if hasContext {
		_, isArray := ldContext.([]interface{})
		errs.check(isArray, "@context", "Context is not an array.")
	}

	metadata, hasMetadata := doc["metadata"]
	meta, isObject := metadata.(map[string]interface{})
	errs.check(hasMetadata && isObject, "metadata", "Metadata is missing or invalid.")

	for _, attr := range []string{"created", "updated"} {
		if val, ok := meta[attr]; ok {
			s, _ := val.(string)
			errs.check(IsIsoFormat(s), "metadata", attr+" is not in ISO format.")
		}
	}

	errs.check(chainId != 0, "chainId", "chainId is missing or invalid.")

	_, err := ChecksumAddress(nftAddress)
	errs.check(err == nil, "nftAddress", "nftAddress is missing or invalid.")

	did, err := MakeDid(nftAddress, chainId)
	id, _ := doc["id"].(string)
	errs.check(err == nil && did == id, "id", "did is not valid for chain Id and nft address")

	return errs
}

// mergeErrors merges structural errors into the schema report. Any structural
// error on a key the schema didn't report makes the merged errors authoritative
// and the document non-conforming.
func mergeErrors(shapesReport *ShapesReport, structural structuralErrors) *types.ValidationReport {
	schemaErrs := reportErrors(shapesReport.Results)

	merged := make(map[string]string, len(schemaErrs)+len(structural))
	for k, msg := range schemaErrs {
		merged[k] = msg
	}

	introduced := false
	for k, msg := range structural {
		if _, ok := schemaErrs[k]; !ok {
			introduced = true
		}
		merged[k] = msg
	}

	if introduced {
		return &types.ValidationReport{Conforms: false, Errors: merged}
	}

	return &types.ValidationReport{Conforms: shapesReport.Conforms, Errors: schemaErrs}
}

// reportErrors converts violations into errors keyed by the N-Triples path with
// the schema.org vocabulary stripped.
func reportErrors(results []ValidationResult) map[string]string {
	errs := make(map[string]string)
	for _, r := range results {
		if r.Path == nil || len(r.Message) == 0 {
			continue
		}

		key := strings.ReplaceAll(r.Path.NTriples(), nsSchema, "")
		errs[key] = beautifyMessage(strings.ReplaceAll(r.Message, nsSchema, ""))
	}

	return errs
}

func beautifyMessage(message string) string {
	const minCountPrefix = "Less than 1 values on"

	if strings.HasPrefix(message, minCountPrefix) {
		if idx := strings.Index(message, "->"); idx >= 0 {
			return "Less than 1 value on " + message[idx+2:]
		}
	}

	return message
}
