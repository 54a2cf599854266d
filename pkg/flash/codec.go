package flash

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MalformedBatchError reports an encoded batch that is not a JSON array of
// [category, message] string pairs.
type MalformedBatchError struct {
	Reason string
	Err    error
}

func (e *MalformedBatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed flash batch: %s: %v", e.Reason, e.Err)
	}
	return "malformed flash batch: " + e.Reason
}

func (e *MalformedBatchError) Unwrap() error { return e.Err }

// DecodeBatch parses the wire encoding of a batch:
//
//	[["success","Saved"],["danger","Failed"]]
//
// Empty input, "null" and "[]" decode to an empty batch. Any other shape is a
// *MalformedBatchError and no items are returned.
func DecodeBatch(raw []byte) (Batch, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Batch{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &MalformedBatchError{Reason: "not an array", Err: err}
	}

	batch := make(Batch, 0, len(elems))
	for i, elem := range elems {
		item, err := decodePair(elem, fmt.Sprintf("element %d", i))
		if err != nil {
			return nil, err
		}
		batch = append(batch, item)
	}
	return batch, nil
}

// DecodeItem parses one stored ["category","message"] entry.
func DecodeItem(entry []byte) (Item, error) {
	return decodePair(entry, "entry")
}

func decodePair(raw []byte, what string) (Item, error) {
	var pair []string
	if err := json.Unmarshal(raw, &pair); err != nil {
		return Item{}, &MalformedBatchError{Reason: what + " is not a string pair", Err: err}
	}
	if len(pair) != 2 {
		return Item{}, &MalformedBatchError{Reason: fmt.Sprintf("%s has %d fields, want 2", what, len(pair))}
	}
	return Item{Category: pair[0], Message: pair[1]}, nil
}

// EncodeBatch is the inverse of DecodeBatch.
func EncodeBatch(b Batch) ([]byte, error) {
	if b == nil {
		b = Batch{}
	}
	return json.Marshal(b)
}
