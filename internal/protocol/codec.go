package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// TypeMap maps ids to descriptors. It serializes as a JSON object keyed by
// the decimal id, in ascending id order.
type TypeMap map[TypeID]Descriptor

// IDs returns the map's ids in ascending order.
func (m TypeMap) IDs() []TypeID {
	ids := make([]TypeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WithoutDisplay returns a copy of m whose descriptors carry no labels.
func (m TypeMap) WithoutDisplay() TypeMap {
	out := make(TypeMap, len(m))
	for id, d := range m {
		out[id] = WithoutDisplay(d)
	}
	return out
}

func (m TypeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.IDs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatUint(uint64(id), 10))
		buf.WriteString(`":`)
		b, err := MarshalDescriptor(m[id])
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", id, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *TypeMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(TypeMap, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return fmt.Errorf("type id %q: %w", key, err)
		}
		d, err := UnmarshalDescriptor(value)
		if err != nil {
			return fmt.Errorf("type %d: %w", id, err)
		}
		out[TypeID(id)] = d
	}
	*m = out
	return nil
}

// MarshalDescriptor encodes d as a JSON object whose first key is "kind".
func MarshalDescriptor(d Descriptor) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	tag := `{"kind":"` + string(d.Kind()) + `"`
	if len(body) <= 2 {
		return []byte(tag + "}"), nil
	}
	return append([]byte(tag+","), body[1:]...), nil
}

var decoders = map[Kind]func([]byte) (Descriptor, error){
	KindInstance:      decodeAs[Instance],
	KindClassLiteral:  decodeAs[ClassLiteral],
	KindSubclassOf:    decodeAs[SubclassOf],
	KindUnion:         decodeAs[Union],
	KindIntersection:  decodeAs[Intersection],
	KindFunction:      decodeAs[Function],
	KindCallable:      decodeAs[Callable],
	KindBoundMethod:   decodeAs[BoundMethod],
	KindIntLiteral:    decodeAs[IntLiteral],
	KindBoolLiteral:   decodeAs[BoolLiteral],
	KindStringLiteral: decodeAs[StringLiteral],
	KindBytesLiteral:  decodeAs[BytesLiteral],
	KindEnumLiteral:   decodeAs[EnumLiteral],
	KindLiteralString: decodeAs[LiteralString],
	KindDynamic:       decodeAs[Dynamic],
	KindNever:         decodeAs[Never],
	KindTruthy:        decodeAs[Truthy],
	KindFalsy:         decodeAs[Falsy],
	KindTypeVar:       decodeAs[TypeVar],
	KindModule:        decodeAs[Module],
	KindTypeAlias:     decodeAs[TypeAlias],
	KindTypedDict:     decodeAs[TypedDict],
	KindTypeIs:        decodeAs[TypeIs],
	KindTypeGuard:     decodeAs[TypeGuard],
	KindNewType:       decodeAs[NewType],
	KindSpecialForm:   decodeAs[SpecialForm],
	KindProperty:      decodeAs[Property],
	KindOther:         decodeAs[Other],
}

// descriptorPtr is satisfied by *T for every descriptor struct T.
type descriptorPtr[T any] interface {
	*T
	Descriptor
}

func decodeAs[T any, P descriptorPtr[T]](data []byte) (Descriptor, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return P(&v), nil
}

// UnmarshalDescriptor decodes a descriptor produced by MarshalDescriptor.
func UnmarshalDescriptor(data []byte) (Descriptor, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	decode, ok := decoders[head.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown descriptor kind %q", head.Kind)
	}
	return decode(data)
}
