package ddo

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainId uint64 = 137

const testDocumentTemplate = `{
	"@context": ["https://w3id.org/did/v1"],
	"id": "{DID}",
	"version": "4.5.0",
	"chainId": 137,
	"nftAddress": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"metadata": {
		"created": "2021-12-20T14:35:20Z",
		"updated": "2021-12-20T14:35:20.123Z",
		"type": "dataset",
		"name": "ocean whitepaper",
		"description": "The ocean protocol whitepaper as a dataset",
		"author": "oceanprotocol",
		"license": "https://market.oceanprotocol.com/terms",
		"tags": ["white-papers", "ocean"]
	},
	"services": [{
		"id": "24654b91482a3351050510ff72694d88edae803cf31a5da993da963ba0087648",
		"type": "access",
		"files": "0x04beba2f90639ff7559618160df5a81729904022578e6bd5f60c3bebfe5cb2aca59d7e062228a98ed88c4582c290045f47cdf3824d1c8bb25d46b78cdbf3f7a1cd",
		"datatokenAddress": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"serviceEndpoint": "https://v4.provider.polygon.oceanprotocol.com",
		"timeout": 86400
	}]
}`

func newTestDocument(t *testing.T) map[string]interface{} {
	did, err := MakeDid(testNftAddress, testChainId)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.Replace(testDocumentTemplate, "{DID}", did, 1)), &doc))

	return doc
}

func newTestValidator(t *testing.T) *Validator {
	registry, err := NewSchemaRegistry(EmbeddedSchemas(), 8, logrus.StandardLogger())
	require.NoError(t, err)

	return NewValidator(registry, logrus.StandardLogger())
}

func metadataOf(doc map[string]interface{}) map[string]interface{} {
	return doc["metadata"].(map[string]interface{})
}

func TestValidateConformingDocument(t *testing.T) {
	v := newTestValidator(t)

	for _, version := range AllowedVersions {
		doc := newTestDocument(t)
		doc["version"] = version

		report, err := v.Validate(context.Background(), doc, testChainId, testNftAddress)
		require.NoError(t, err)
		assert.Truef(t, report.Conforms, "version %v: %v", version, report.Errors)
		assert.Empty(t, report.Errors)
	}
}

func TestValidateDefaultVersion(t *testing.T) {
	doc := newTestDocument(t)
	delete(doc, "version")

	report, err := newTestValidator(t).Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.True(t, report.Conforms)
}

func TestValidateDoesNotMutateDocument(t *testing.T) {
	doc := newTestDocument(t)
	before, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = newTestValidator(t).Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)

	after, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestValidateInvalidIsoDate(t *testing.T) {
	doc := newTestDocument(t)
	metadataOf(doc)["created"] = "not-a-date"

	report, err := newTestValidator(t).Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "created is not in ISO format.", report.Errors["metadata"])

	doc = newTestDocument(t)
	metadataOf(doc)["updated"] = "20/12/2021"

	report, err = newTestValidator(t).Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "updated is not in ISO format.", report.Errors["metadata"])
}

func TestValidateDidMismatch(t *testing.T) {
	doc := newTestDocument(t)

	// valid DID of the same nft on another chain
	did, err := MakeDid(testNftAddress, 1)
	require.NoError(t, err)
	doc["id"] = did

	report, err := newTestValidator(t).Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "did is not valid for chain Id and nft address", report.Errors["id"])

	// declared id is right but validated against another nft
	report, err = newTestValidator(t).Validate(context.Background(), newTestDocument(t), testChainId, testOtherNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Contains(t, report.Errors, "id")
}

func TestValidateStructuralErrorsHaveDistinctKeys(t *testing.T) {
	v := newTestValidator(t)

	doc := newTestDocument(t)
	delete(doc, "@context")
	report, err := v.Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "Context is missing.", report.Errors["@context"])

	doc = newTestDocument(t)
	doc["@context"] = "https://w3id.org/did/v1"
	report, err = v.Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "Context is not an array.", report.Errors["@context"])

	doc = newTestDocument(t)
	delete(doc, "metadata")
	report, err = v.Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "Metadata is missing or invalid.", report.Errors["metadata"])
	assert.Equal(t, "Less than 1 value on <metadata>", report.Errors["<metadata>"])
	assert.NotContains(t, report.Errors, "@context")
}

func TestValidateInvalidParameters(t *testing.T) {
	v := newTestValidator(t)

	report, err := v.Validate(context.Background(), newTestDocument(t), 0, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "chainId is missing or invalid.", report.Errors["chainId"])
	assert.Contains(t, report.Errors, "id")

	report, err = v.Validate(context.Background(), newTestDocument(t), testChainId, "0x1234")
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "nftAddress is missing or invalid.", report.Errors["nftAddress"])
	assert.Equal(t, "did is not valid for chain Id and nft address", report.Errors["id"])
}

func TestValidateSchemaViolations(t *testing.T) {
	v := newTestValidator(t)

	doc := newTestDocument(t)
	delete(doc, "services")
	report, err := v.Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, map[string]string{
		"<services>": "Less than 1 value on <services>",
	}, report.Errors)

	doc = newTestDocument(t)
	metadataOf(doc)["type"] = "video"
	report, err = v.Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Contains(t, report.Errors, "<type>")
	assert.Equal(t, "Value does not have shape <MetadataShape>", report.Errors["<metadata>"])

	doc = newTestDocument(t)
	doc["chainId"] = "137"
	report, err = v.Validate(context.Background(), doc, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.False(t, report.Conforms)
	assert.Equal(t, "Value does not have datatype <http://www.w3.org/2001/XMLSchema#integer>", report.Errors["<chainId>"])
}

func TestValidateUnknownVersion(t *testing.T) {
	doc := newTestDocument(t)
	doc["version"] = "9.9.9"

	report, err := newTestValidator(t).Validate(context.Background(), doc, testChainId, testNftAddress)
	assert.True(t, errors.Is(err, ErrUnknownSchemaVersion))
	assert.Nil(t, report)
}

func TestValidateWithoutReport(t *testing.T) {
	for name, fsys := range map[string]fstest.MapFS{
		"missing schema file": {},
		"empty schema":        {"4.5.0.ttl": {Data: []byte("@prefix ex: <http://example.org/> .")}},
	} {
		registry, err := NewSchemaRegistry(fsys, 8, logrus.StandardLogger())
		require.NoError(t, err)

		v := NewValidator(registry, logrus.StandardLogger())
		report, err := v.Validate(context.Background(), newTestDocument(t), testChainId, testNftAddress)
		require.NoError(t, err, name)
		assert.False(t, report.Conforms, name)
		assert.Equal(t, map[string]string{"error": "Validation report does not exist"}, report.Errors, name)
	}
}

func TestValidateJSON(t *testing.T) {
	doc := newTestDocument(t)
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	v := newTestValidator(t)
	report, err := v.ValidateJSON(context.Background(), data, testChainId, testNftAddress)
	require.NoError(t, err)
	assert.True(t, report.Conforms)

	_, err = v.ValidateJSON(context.Background(), []byte("{"), testChainId, testNftAddress)
	assert.Error(t, err)
}

func TestSchemaRegistryCache(t *testing.T) {
	registry, err := NewSchemaRegistry(EmbeddedSchemas(), 2, logrus.StandardLogger())
	require.NoError(t, err)

	for _, version := range AllowedVersions {
		sg, err := registry.Resolve(version)
		require.NoError(t, err)
		assert.Positive(t, sg.Len())
	}

	first, err := registry.Resolve(CurrentVersion)
	require.NoError(t, err)
	second, err := registry.Resolve(CurrentVersion)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestIsIsoFormat(t *testing.T) {
	for s, expected := range map[string]bool{
		"2021-12-20":                true,
		"2021-12-20T14:35:20Z":      true,
		"2021-12-20T14:35:20.1Z":    true,
		"2021-12-20T14:35:20.123Z":  true,
		"2021-12-20T14:35:20":       false,
		"2021-12-20T14:35:20.1234Z": false,
		"2021-12-20 14:35:20Z":      false,
		"not-a-date":                false,
		"":                          false,
	} {
		assert.Equalf(t, expected, IsIsoFormat(s), "date %q", s)
	}
}

func TestAddFlatTriples(t *testing.T) {
	g := NewGraph()
	AddFlatTriples(g, map[string]interface{}{
		"id":       "did:op:1",
		"chainId":  float64(137),
		"metadata": map[string]interface{}{"name": "x"},
	})

	require.Equal(t, 3, g.Len())

	triples := g.Triples()
	assert.Equal(t, "http://example.org/ddo/chainId", triples[0].Subject.Value)
	assert.Equal(t, "137", triples[0].Object.Value)
	assert.Equal(t, "http://example.org/ddo/id", triples[1].Subject.Value)
	assert.Equal(t, "did:op:1", triples[1].Object.Value)
	assert.Equal(t, `{"name":"x"}`, triples[2].Object.Value)

	for _, tr := range triples {
		assert.Equal(t, "http://example.org/ddo/property", tr.Predicate.Value)
	}
}

func TestValidateNilDocument(t *testing.T) {
	v := newTestValidator(t)

	assert.NotPanics(t, func() {
		report, err := v.Validate(context.Background(), nil, testChainId, testNftAddress)
		assert.True(t, errors.Is(err, ErrInvalidDocument))
		assert.Nil(t, report)
	})

	for _, data := range []string{"null", "[]", `"ddo"`, "1"} {
		assert.NotPanicsf(t, func() {
			report, err := v.ValidateJSON(context.Background(), []byte(data), testChainId, testNftAddress)
			assert.Truef(t, errors.Is(err, ErrInvalidDocument), "document %v", data)
			assert.Nil(t, report)
		}, "document %v", data)
	}

	_, err := WorkingCopy(nil)
	assert.True(t, errors.Is(err, ErrInvalidDocument))
}
