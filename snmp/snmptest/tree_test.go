package snmptest

import (
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treeYAML = `
- oid: 1.3.6.1.2.1.1.5.0
  type: string
  value: lobby
- oid: .1.3.6.1.2.1.25.3.2.1.2.1
  type: oid
  value: 1.3.6.1.2.1.25.3.1.5
- oid: 1.3.6.1.2.1.43.11.1.1.9.1.1
  type: integer
  value: 40
- oid: 1.3.6.1.2.1.1.3.0
  type: timeticks
  value: 12345
`

func TestParseTreeYAML(t *testing.T) {
	tree, err := ParseTreeYAML([]byte(treeYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())

	reply, ok := tree.Respond(Request{Type: gosnmp.GetRequest, Name: "1.3.6.1.2.1.1.5.0"})
	require.True(t, ok)
	assert.Equal(t, gosnmp.OctetString, reply.Type)
	assert.Equal(t, []byte("lobby"), reply.Value)

	reply, ok = tree.Respond(Request{Type: gosnmp.GetRequest, Name: "1.3.6.1.2.1.25.3.2.1.2.1"})
	require.True(t, ok)
	assert.Equal(t, ".1.3.6.1.2.1.25.3.1.5", reply.Value)

	reply, ok = tree.Respond(Request{Type: gosnmp.GetRequest, Name: "1.3.6.1.2.1.1.3.0"})
	require.True(t, ok)
	assert.Equal(t, uint32(12345), reply.Value)
}

func TestParseTreeYAMLErrors(t *testing.T) {
	_, err := ParseTreeYAML([]byte("- oid: 1.3.6.1\n  type: float\n  value: 1\n"))
	assert.ErrorContains(t, err, "unsupported type")

	_, err = ParseTreeYAML([]byte("- oid: 1.3.6.1\n  type: integer\n  value: many\n"))
	assert.ErrorContains(t, err, "expected a number")

	_, err = ParseTreeYAML([]byte("- oid: one.two\n  value: x\n"))
	assert.Error(t, err)
}

func TestTreeGetNext(t *testing.T) {
	tree, err := NewTree(map[string]Variable{
		"1.3.6.1.2.1.43.5.1.1.1.1":    {Type: gosnmp.Integer, Value: 1},
		"1.3.6.1.2.1.43.11.1.1.9.1.1": {Type: gosnmp.Integer, Value: 40},
		"1.3.6.1.2.1.43.11.1.1.9.1.2": {Type: gosnmp.Integer, Value: 80},
	})
	require.NoError(t, err)

	steps := []struct {
		from string
		want string
	}{
		{"1.3.6.1.2.1.43", "1.3.6.1.2.1.43.5.1.1.1.1"},
		{"1.3.6.1.2.1.43.5.1.1.1.1", "1.3.6.1.2.1.43.11.1.1.9.1.1"},
		{"1.3.6.1.2.1.43.11.1.1.9.1.1", "1.3.6.1.2.1.43.11.1.1.9.1.2"},
	}
	for _, step := range steps {
		reply, ok := tree.Respond(Request{Type: gosnmp.GetNextRequest, Name: step.from})
		require.True(t, ok)
		assert.Equal(t, step.want, reply.Name, "next after %s", step.from)
		assert.Equal(t, gosnmp.NoError, reply.ErrorStatus)
	}

	reply, ok := tree.Respond(Request{Type: gosnmp.GetNextRequest, Name: "1.3.6.1.2.1.43.11.1.1.9.1.2"})
	require.True(t, ok)
	assert.Equal(t, gosnmp.NoSuchName, reply.ErrorStatus)
	assert.Empty(t, reply.Name, "end of tree echoes the request name")
}

func TestTreeGetMissing(t *testing.T) {
	tree, err := NewTree(nil)
	require.NoError(t, err)

	reply, ok := tree.Respond(Request{Type: gosnmp.GetRequest, Name: "1.3.6.1.2.1.1.5.0"})
	require.True(t, ok)
	assert.Equal(t, gosnmp.NoSuchName, reply.ErrorStatus)
	assert.Equal(t, uint8(1), reply.ErrorIndex)
}

func TestScriptOrder(t *testing.T) {
	script := NewScript(Integer("1.3.6.1", 1), Timeout())
	script.Push(String("1.3.6.2", "x"))
	assert.Equal(t, 3, script.Pending())

	first, ok := script.Respond(Request{})
	require.True(t, ok)
	assert.Equal(t, "1.3.6.1", first.Name)

	second, ok := script.Respond(Request{})
	require.True(t, ok)
	assert.True(t, second.Drop)

	third, ok := script.Respond(Request{})
	require.True(t, ok)
	assert.Equal(t, []byte("x"), third.Value)

	_, ok = script.Respond(Request{})
	assert.False(t, ok)
}

func TestReplyMarshalDecodes(t *testing.T) {
	out, err := Integer("1.3.6.1.2.1.43.11.1.1.9.1.1", 40).marshal(Request{Community: "public", RequestID: 7})
	require.NoError(t, err)

	decoded, err := gosnmp.Default.SnmpDecodePacket(out)
	require.NoError(t, err)
	assert.Equal(t, gosnmp.GetResponse, decoded.PDUType)
	assert.Equal(t, uint32(7), decoded.RequestID)
	require.Len(t, decoded.Variables, 1)
	assert.Equal(t, ".1.3.6.1.2.1.43.11.1.1.9.1.1", decoded.Variables[0].Name)
}

func TestParseTreeYAMLHex(t *testing.T) {
	tree, err := ParseTreeYAML([]byte("- oid: 1.3.6.1.2.1.25.3.5.1.2.1\n  type: hex\n  value: \"08 00\"\n"))
	require.NoError(t, err)

	reply, ok := tree.Respond(Request{Type: gosnmp.GetRequest, Name: "1.3.6.1.2.1.25.3.5.1.2.1"})
	require.True(t, ok)
	assert.Equal(t, gosnmp.OctetString, reply.Type)
	assert.Equal(t, []byte{0x08, 0x00}, reply.Value)

	_, err = ParseTreeYAML([]byte("- oid: 1.3.6.1\n  type: hex\n  value: \"zz\"\n"))
	assert.Error(t, err)
}
