package gtfs

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
)

// SerializeIndex encodes a GTFSIndex to bytes using gob encoding.
func SerializeIndex(index *GTFSIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(index); err != nil {
		return nil, fmt.Errorf("failed to encode GTFSIndex: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeIndex decodes a GTFSIndex from bytes using gob encoding.
// The lookup map is rebuilt, so the result is ready for Match.
func DeserializeIndex(data []byte) (*GTFSIndex, error) {
	index := NewGTFSIndex()
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(index); err != nil {
		return nil, fmt.Errorf("failed to decode GTFSIndex: %w", err)
	}
	index.finalize()
	return index, nil
}

// SerializeIndexToFile writes a GTFSIndex to a file using gob encoding.
func SerializeIndexToFile(index *GTFSIndex, path string) error {
	data, err := SerializeIndex(index)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DeserializeIndexFromFile reads a GTFSIndex previously written by SerializeIndexToFile.
func DeserializeIndexFromFile(path string) (*GTFSIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DeserializeIndex(data)
}
