package snmptest

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/gosnmp/gosnmp"
	"gopkg.in/yaml.v3"

	"github.com/geekxflood/printkit/snmp"
)

// Variable is one object held by a Tree.
type Variable struct {
	Type  gosnmp.Asn1BER
	Value any
}

type treeEntry struct {
	oid snmp.OID
	Variable
}

// Tree answers GET and GET-NEXT from an ordered OID table. Names that do
// not exist, and GET-NEXT past the last entry, get noSuchName with the
// requested name echoed, as SNMPv1 agents do.
type Tree struct {
	entries []treeEntry
}

// NewTree builds a tree from dotted OIDs.
func NewTree(vars map[string]Variable) (*Tree, error) {
	t := &Tree{entries: make([]treeEntry, 0, len(vars))}
	for name, v := range vars {
		oid, err := snmp.ParseOID(name)
		if err != nil {
			return nil, err
		}
		t.entries = append(t.entries, treeEntry{oid: oid, Variable: v})
	}
	sort.Slice(t.entries, func(i, j int) bool {
		return t.entries[i].oid.Compare(t.entries[j].oid) < 0
	})
	return t, nil
}

// Len returns the number of objects in the tree.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Respond implements Responder.
func (t *Tree) Respond(req Request) (Reply, bool) {
	oid, err := snmp.ParseOID(req.Name)
	if err != nil {
		return Reply{ErrorStatus: gosnmp.GenErr, ErrorIndex: 1}, true
	}

	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].oid.Compare(oid) >= 0
	})

	switch req.Type {
	case gosnmp.GetRequest:
		if i < len(t.entries) && t.entries[i].oid.Equal(oid) {
			return t.entries[i].reply(), true
		}
	case gosnmp.GetNextRequest:
		if i < len(t.entries) && t.entries[i].oid.Equal(oid) {
			i++
		}
		if i < len(t.entries) {
			return t.entries[i].reply(), true
		}
	default:
		return Reply{ErrorStatus: gosnmp.GenErr, ErrorIndex: 1}, true
	}
	return Reply{ErrorStatus: gosnmp.NoSuchName, ErrorIndex: 1}, true
}

func (e treeEntry) reply() Reply {
	return Reply{Name: e.oid.String(), Type: e.Type, Value: e.Value}
}

// yamlObject is one entry of a YAML tree file:
//
//	- oid: 1.3.6.1.2.1.1.5.0
//	  type: string
//	  value: lobby-printer
type yamlObject struct {
	OID   string `yaml:"oid"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// ParseTreeYAML reads a list of oid/type/value objects. Supported types are
// integer, string, hex, oid, counter, gauge, timeticks, ipaddress and null.
// A hex value is an octet string written as hex digits, for binary objects
// such as hrPrinterDetectedErrorState.
func ParseTreeYAML(data []byte) (*Tree, error) {
	var objects []yamlObject
	if err := yaml.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("failed to parse tree: %w", err)
	}

	vars := make(map[string]Variable, len(objects))
	for _, obj := range objects {
		v, err := convertValue(obj)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", obj.OID, err)
		}
		vars[obj.OID] = v
	}
	return NewTree(vars)
}

func convertValue(obj yamlObject) (Variable, error) {
	switch strings.ToLower(obj.Type) {
	case "integer", "int":
		n, err := toInt(obj.Value)
		return Variable{Type: gosnmp.Integer, Value: int(n)}, err
	case "string", "octetstring", "":
		return Variable{Type: gosnmp.OctetString, Value: []byte(fmt.Sprint(obj.Value))}, nil
	case "hex":
		b, err := hex.DecodeString(strings.ReplaceAll(fmt.Sprint(obj.Value), " ", ""))
		return Variable{Type: gosnmp.OctetString, Value: b}, err
	case "oid":
		return Variable{Type: gosnmp.ObjectIdentifier, Value: "." + trimDot(fmt.Sprint(obj.Value))}, nil
	case "counter":
		n, err := toInt(obj.Value)
		return Variable{Type: gosnmp.Counter32, Value: uint32(n)}, err
	case "gauge":
		n, err := toInt(obj.Value)
		return Variable{Type: gosnmp.Gauge32, Value: uint32(n)}, err
	case "timeticks":
		n, err := toInt(obj.Value)
		return Variable{Type: gosnmp.TimeTicks, Value: uint32(n)}, err
	case "ipaddress":
		return Variable{Type: gosnmp.IPAddress, Value: fmt.Sprint(obj.Value)}, nil
	case "null":
		return Variable{Type: gosnmp.Null}, nil
	default:
		return Variable{}, fmt.Errorf("unsupported type %q", obj.Type)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
