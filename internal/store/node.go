package store

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Node is one record of the tree. A nil or JSON null Value means the path
// holds nothing.
type Node struct {
	Path  Path
	Value json.RawMessage
}

func (n Node) Key() string {
	return n.Path.Key()
}

func (n Node) Exists() bool {
	v := bytes.TrimSpace(n.Value)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

// Decode unmarshals the record into v.
func (n Node) Decode(v any) error {
	if !n.Exists() {
		return errors.Newf("decode %s: node is absent", n.Path)
	}
	if err := json.Unmarshal(n.Value, v); err != nil {
		return errors.Wrapf(err, "decode %s", n.Path)
	}
	return nil
}

// Encode turns a record into the raw JSON stored at a path. Raw messages
// and byte slices holding JSON pass through untouched.
func Encode(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("encode: invalid raw JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("encode: invalid raw JSON")
		}
		return json.RawMessage(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return b, nil
}
