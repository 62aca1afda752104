package protocol

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDescriptorKindFirst(t *testing.T) {
	t.Parallel()

	b, err := MarshalDescriptor(&IntLiteral{Display: "Literal[42]", Value: 42})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"intLiteral","display":"Literal[42]","value":42}`, string(b))

	b, err = MarshalDescriptor(&Never{})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"never"}`, string(b))
}

func TestTypeMapJSON(t *testing.T) {
	t.Parallel()

	m := TypeMap{
		3:  &Instance{Display: "int", ClassName: "int", ClassID: Ref(2)},
		2:  &ClassLiteral{Display: "<class 'int'>", ClassName: "int"},
		10: &TypeVar{Name: "T@f", UpperBound: Ref(3)},
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"2": {"kind": "classLiteral", "display": "<class 'int'>", "className": "int"},
		"3": {"kind": "instance", "display": "int", "className": "int", "classId": 2},
		"10": {"kind": "typeVar", "name": "T@f", "upperBound": 3}
	}`, string(b))
	assert.Less(t, bytes.Index(b, []byte(`"2"`)), bytes.Index(b, []byte(`"10"`)), "ids are emitted in ascending order")

	var back TypeMap
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m, back)
}

func TestUnmarshalDescriptorUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalDescriptor([]byte(`{"kind":"mystery"}`))
	assert.ErrorContains(t, err, "mystery")
}

func TestWithoutDisplayCopies(t *testing.T) {
	t.Parallel()

	orig := &Function{Display: "def f() -> int", Name: "f", Parameters: []Parameter{}, ReturnType: Ref(1)}
	m := TypeMap{1: orig, 2: &Dynamic{Display: "Unknown", DynamicKind: "Unknown"}}

	stripped := m.WithoutDisplay()
	for id, d := range stripped {
		assert.Empty(t, d.Label(), "id %d", id)
	}
	assert.Equal(t, "def f() -> int", orig.Display)
	assert.Equal(t, "Unknown", stripped[2].(*Dynamic).DynamicKind)
}

func TestResponseEnvelope(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Failure(nil, Errorf(CodeParseError, "Parse error: %s", "bad")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error: bad"},"id":null}`, string(b))

	b, err = json.Marshal(Success(json.RawMessage(`7`), OKResult{OK: true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"ok":true},"id":7}`, string(b))
}
