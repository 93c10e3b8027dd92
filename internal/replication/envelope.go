// Package replication moves reference data and inventory events between the
// purchases service and its peers through a durable job queue.
//
// The producer side wraps a payload in an Envelope and routes it to a queue
// by its Process tag. The reception side decodes envelopes from the inbound
// queue and dispatches them to the handler registered for the process.
package replication

import (
	"encoding/json"
	"fmt"
)

// Source identifies the service that emitted an envelope.
type Source string

const (
	SourcePurchases Source = "API_PURCHASES"
	SourceProducts  Source = "API_PRODUCTS"
	SourceAdmin     Source = "API_ADMIN"
	SourceSales     Source = "API_SALES"
)

// Process tags the business change an envelope carries. The receiver
// dispatches on it.
type Process string

const (
	ProcessCompanyUpdate         Process = "companyUpdate"
	ProcessCompanyDelete         Process = "companyDelete"
	ProcessUserUpdate            Process = "userUpdate"
	ProcessUserDelete            Process = "userDelete"
	ProcessDocumentTypeUpdate    Process = "documentTypeUpdate"
	ProcessDocumentTypeDelete    Process = "documentTypeDelete"
	ProcessProductUpdate         Process = "productUpdate"
	ProcessProductDelete         Process = "productDelete"
	ProcessProductCategoryUpdate Process = "productCategoryUpdate"
	ProcessProductCategoryDelete Process = "productCategoryDelete"
	ProcessMovementUpdate        Process = "movementUpdate"
	ProcessMovementDelete        Process = "movementDelete"
	ProcessProductCostUpdate     Process = "productCostUpdate"
)

// Envelope is the unit exchanged over the queue. JSONData holds the
// process-specific payload serialized as a JSON string (an array for batch
// processes, an object for single-entity ones).
//
// Envelopes carry no version; receivers must tolerate duplicates.
type Envelope struct {
	Source   Source  `json:"source"`
	Process  Process `json:"process"`
	JSONData string  `json:"jsonData"`
}

// NewEnvelope marshals payload and wraps it.
func NewEnvelope(source Source, process Process, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", process, err)
	}
	return Envelope{Source: source, Process: process, JSONData: string(data)}, nil
}

// Decode unmarshals JSONData into dst.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal([]byte(e.JSONData), dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Process, err)
	}
	return nil
}

// Marshal encodes the envelope in its wire shape.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes the wire shape.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	return env, nil
}
