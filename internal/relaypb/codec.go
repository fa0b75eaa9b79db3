package relaypb

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldPath   = "path"
	fieldValue  = "value"
	fieldExists = "exists"
)

func pathList(p store.Path) []any {
	out := make([]any, len(p))
	for i, s := range p {
		out[i] = s
	}
	return out
}

// PathRequest wraps p for Get, List and Watch.
func PathRequest(p store.Path) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{fieldPath: pathList(p)})
}

// PathFromStruct reads the "path" field and validates it.
func PathFromStruct(s *structpb.Struct) (store.Path, error) {
	v, ok := s.GetFields()[fieldPath]
	if !ok {
		return nil, errors.Wrap(store.ErrInvalidPath, "missing path field")
	}
	list := v.GetListValue()
	if list == nil {
		return nil, errors.Wrap(store.ErrInvalidPath, "path is not a list")
	}
	p := make(store.Path, 0, len(list.GetValues()))
	for _, seg := range list.GetValues() {
		str, ok := seg.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.Wrap(store.ErrInvalidPath, "path segment is not a string")
		}
		p = append(p, str.StringValue)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NodeToStruct encodes n. The JSON value travels as a string so numbers and
// nested objects survive untouched.
func NodeToStruct(n store.Node) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldPath:   pathList(n.Path),
		fieldExists: n.Exists(),
	}
	if n.Exists() {
		fields[fieldValue] = string(n.Value)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "encode node")
	}
	return s, nil
}

func NodeFromStruct(s *structpb.Struct) (store.Node, error) {
	p, err := PathFromStruct(s)
	if err != nil {
		return store.Node{}, err
	}
	n := store.Node{Path: p}
	if !s.GetFields()[fieldExists].GetBoolValue() {
		return n, nil
	}
	raw := s.GetFields()[fieldValue].GetStringValue()
	if !json.Valid([]byte(raw)) {
		return store.Node{}, errors.Newf("node %s: value is not valid JSON", p)
	}
	n.Value = json.RawMessage(raw)
	return n, nil
}

func NodesToList(nodes []store.Node) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(nodes))}
	for _, n := range nodes {
		s, err := NodeToStruct(n)
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

func NodesFromList(l *structpb.ListValue) ([]store.Node, error) {
	out := make([]store.Node, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, errors.Newf("list item %d is not a node", i)
		}
		n, err := NodeFromStruct(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
