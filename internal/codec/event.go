// Package codec serializes journal events for the durable event log.
// Payloads are JSON: order and fill events carry free-form strings (order
// ids, security ids, reject annotations), so a fixed binary layout would
// either truncate or waste space. The framing header stays binary and is
// owned by the journal package.
package codec

import (
	"encoding/json"

	"github.com/yanun0323/errors"

	"stratmgr/internal/schema"
)

// EncodeOrderJournal serializes an order lifecycle event.
func EncodeOrderJournal(oj schema.OrderJournal) ([]byte, error) {
	payload, err := json.Marshal(oj)
	if err != nil {
		return nil, errors.Wrap(err, "encode order journal").With("order_id", oj.Order.OrderID)
	}
	return payload, nil
}

// DecodeOrderJournal parses an order lifecycle event payload.
func DecodeOrderJournal(payload []byte) (schema.OrderJournal, error) {
	var oj schema.OrderJournal
	if err := json.Unmarshal(payload, &oj); err != nil {
		return schema.OrderJournal{}, errors.Wrap(err, "decode order journal")
	}
	return oj, nil
}

// EncodeFillJournal serializes an execution event.
func EncodeFillJournal(fj schema.FillJournal) ([]byte, error) {
	payload, err := json.Marshal(fj)
	if err != nil {
		return nil, errors.Wrap(err, "encode fill journal").With("order_id", fj.OrderID)
	}
	return payload, nil
}

// DecodeFillJournal parses an execution event payload.
func DecodeFillJournal(payload []byte) (schema.FillJournal, error) {
	var fj schema.FillJournal
	if err := json.Unmarshal(payload, &fj); err != nil {
		return schema.FillJournal{}, errors.Wrap(err, "decode fill journal")
	}
	return fj, nil
}
