// Package models - Document payload accepted by the submission endpoint.
// Field names on the wire are snake_case and must not change: the remote
// service matches them verbatim.
package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is a goods-introduction document as accepted by the remote endpoint.
// Unset optional fields are left out of the payload rather than sent empty.
type Document struct {
	Description    *Description `json:"description,omitempty"`
	DocID          *string      `json:"doc_id,omitempty"`
	DocStatus      *string      `json:"doc_status,omitempty"`
	DocType        *string      `json:"doc_type,omitempty"`
	ImportRequest  bool         `json:"import_request"`
	OwnerInn       *string      `json:"owner_inn,omitempty"`
	ParticipantInn *string      `json:"participant_inn,omitempty"`
	ProducerInn    *string      `json:"producer_inn,omitempty"`
	ProductionDate *string      `json:"production_date,omitempty"`
	ProductionType *string      `json:"production_type,omitempty"`
	Products       []Product    `json:"products,omitempty"`
	RegDate        *string      `json:"reg_date,omitempty"`
	RegNumber      *string      `json:"reg_number,omitempty"`
}

// Description carries the participant the document is filed for.
type Description struct {
	ParticipantInn *string `json:"participant_inn,omitempty"`
}

// Product is a single marked item listed in a Document.
type Product struct {
	CertificateDocument       *string `json:"certificate_document,omitempty"`
	CertificateDocumentDate   *string `json:"certificate_document_date,omitempty"`
	CertificateDocumentNumber *string `json:"certificate_document_number,omitempty"`
	OwnerInn                  *string `json:"owner_inn,omitempty"`
	ProducerInn               *string `json:"producer_inn,omitempty"`
	ProductionDate            *string `json:"production_date,omitempty"`
	TnvedCode                 *string `json:"tnved_code,omitempty"`
	UitCode                   *string `json:"uit_code,omitempty"`
	UituCode                  *string `json:"uitu_code,omitempty"`
}

// String returns a pointer to s for filling optional document fields.
func String(s string) *string {
	return &s
}

// ID returns the document id, or "" when it is unset.
func (d *Document) ID() string {
	if d == nil || d.DocID == nil {
		return ""
	}
	return *d.DocID
}

// LoadDocument reads a JSON-encoded Document from filePath.
func LoadDocument(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document %s: %w", filePath, err)
	}
	return &doc, nil
}
