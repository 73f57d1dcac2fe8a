package risk

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrenderable is returned by RawTransaction implementations that can not
// produce a text form. Classification treats such records as unmatched.
var ErrUnrenderable = errors.New("transaction can not be rendered to text")

// RawTransaction is a single indexer record as seen by the classifier.
// Text returns the complete textual projection of the record; keyword search
// runs over all of it, not over a subset of fields.
type RawTransaction interface {
	Text() (string, error)
}

// JSONTransaction is a raw JSON record as returned by the indexing API.
// Its text is the payload bytes as received, not a re-encoding of the
// decoded value, so a keyword spelled with \uXXXX escapes does not match.
type JSONTransaction []byte

func (t JSONTransaction) Text() (string, error) {
	if len(t) == 0 || !json.Valid(t) {
		return "", ErrUnrenderable
	}
	return string(t), nil
}

// Record is a decoded, schema-less record. Its text is canonical JSON with
// sorted keys, so the same record always renders the same way.
type Record map[string]any

func (r Record) Text() (string, error) {
	if r == nil {
		return "", ErrUnrenderable
	}
	b, err := json.Marshal(map[string]any(r))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnrenderable, err)
	}
	return string(b), nil
}

// TextTransaction is a record that is already in its text form.
type TextTransaction string

func (t TextTransaction) Text() (string, error) {
	return string(t), nil
}
