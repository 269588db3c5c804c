package siri

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrNotSiri is returned when a well-formed document has no recognised SIRI payload.
var ErrNotSiri = errors.New("document is not a SIRI message")

// Decode parses a SIRI XML document.
func Decode(data []byte) (*Siri, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotSiri)
	}
	var doc Siri
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode siri: %w", err)
	}
	if err := expectEnd(dec); err != nil {
		return nil, fmt.Errorf("decode siri: %w", err)
	}
	if doc.ServiceDelivery == nil && doc.HeartbeatNotification == nil &&
		doc.SubscriptionRequest == nil && doc.SubscriptionResponse == nil &&
		doc.TerminateSubscriptionRequest == nil && doc.TerminateSubscriptionResponse == nil {
		return nil, ErrNotSiri
	}
	return &doc, nil
}

// expectEnd fails unless only whitespace and comments follow the root element.
func expectEnd(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return fmt.Errorf("unexpected text after root element")
			}
		default:
			return fmt.Errorf("unexpected %T after root element", tok)
		}
	}
}

// VehicleActivities flattens every VehicleActivity across all deliveries.
func (s *Siri) VehicleActivities() []VehicleActivity {
	if s == nil || s.ServiceDelivery == nil {
		return nil
	}
	var out []VehicleActivity
	for _, d := range s.ServiceDelivery.VehicleMonitoringDelivery {
		out = append(out, d.VehicleActivity...)
	}
	return out
}
