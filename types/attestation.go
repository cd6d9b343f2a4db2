package types

import "encoding/json"

// Attestation is a recoverable signature over the hash of a canonical document.
//
// An attestation with empty PublicKey is the sentinel of a failed signing
// attempt and must never be treated as valid.
type Attestation struct {
	Hash      string `json:"hash"`
	PublicKey string `json:"publicKey"`
	R         string `json:"r"`
	S         string `json:"s"`
	V         uint8  `json:"v"`
}

// EmptyAttestation is returned whenever signing fails.
var EmptyAttestation = Attestation{}

// IsEmpty returns true if the attestation is the signing failure sentinel.
func (a Attestation) IsEmpty() bool {
	return len(a.PublicKey) == 0
}

// MarshalJSON renders the failure sentinel with every field empty, including `v`.
func (a Attestation) MarshalJSON() ([]byte, error) {
	type plain Attestation
	if !a.IsEmpty() {
		return json.Marshal(plain(a))
	}

	return json.Marshal(map[string]string{
		"hash": "", "publicKey": "", "r": "", "s": "", "v": "",
	})
}

// ValidationReport is the outcome of validating a single document. The errors
// map is keyed by RDF path (or structural field name) with human readable messages.
type ValidationReport struct {
	Conforms bool              `json:"conforms"`
	Errors   map[string]string `json:"errors"`
}
