// Package formatter provides response wrapping and serialization for SIRI documents.
//
// This package is organized into:
// - wrapper.go: ServiceDelivery and request envelope construction
// - xml.go: XML serialization with proper escaping
//
// All serialization is done manually; element order follows the SIRI schema.
package formatter
