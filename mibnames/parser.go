package mibnames

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/geekxflood/printkit/snmp"
)

var (
	commentRegex = regexp.MustCompile(`--[^\n]*`)
	moduleRegex  = regexp.MustCompile(`([A-Za-z][\w-]*)\s+DEFINITIONS\s*::=\s*BEGIN`)

	// A definition runs from its name to the first "::= { parent arc }".
	// Names start lower case, which keeps "SYNTAX OBJECT IDENTIFIER" inside
	// an OBJECT-TYPE body from matching.
	definitionRegex = regexp.MustCompile(
		`(?s)\b([a-z][\w-]*)\s+(OBJECT-TYPE|OBJECT IDENTIFIER|NOTIFICATION-TYPE|MODULE-IDENTITY|OBJECT-IDENTITY|OBJECT-GROUP|NOTIFICATION-GROUP|MODULE-COMPLIANCE)\b(.*?)::=\s*\{\s*([a-zA-Z][\w-]*)\s+(\d+)\s*\}`)
)

// OIDEntry is one named node found in a MIB file.
type OIDEntry struct {
	OID    snmp.OID `json:"oid"`
	Name   string   `json:"name"`
	Type   string   `json:"type,omitempty"`
	Module string   `json:"module,omitempty"`
}

type definition struct {
	entry  OIDEntry
	parent string
	arc    uint32
}

// MIBParser extracts name assignments from MIB modules. It does not compile
// MIBs: only the "::= { parent arc }" form is understood. Definitions whose
// parent is not yet known are held back and resolved by later files.
type MIBParser struct {
	known   map[string]snmp.OID
	pending []definition
}

// NewMIBParser returns a parser that already knows the SMI roots and the
// built-in printer names.
func NewMIBParser() *MIBParser {
	p := &MIBParser{known: make(map[string]snmp.OID)}
	for name, oid := range smiRoots {
		p.known[name] = snmp.MustParseOID(oid)
	}
	for _, b := range builtinNames {
		p.known[b.name] = snmp.MustParseOID(b.oid)
	}
	return p
}

// ParseFile parses the MIB at path.
func (p *MIBParser) ParseFile(path string) ([]OIDEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(string(content))
}

// Parse returns every entry that could be resolved after adding the
// definitions in content, including held-back ones from earlier calls.
func (p *MIBParser) Parse(content string) ([]OIDEntry, error) {
	content = commentRegex.ReplaceAllString(content, "")

	module := ""
	if m := moduleRegex.FindStringSubmatch(content); m != nil {
		module = m[1]
	}

	matches := definitionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 && module == "" {
		return nil, fmt.Errorf("no MIB definitions found")
	}

	for _, m := range matches {
		arc, err := strconv.ParseUint(m[5], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("definition %s: invalid arc %q", m[1], m[5])
		}
		p.pending = append(p.pending, definition{
			entry:  OIDEntry{Name: m[1], Type: m[2], Module: module},
			parent: m[4],
			arc:    uint32(arc),
		})
	}
	return p.resolve(), nil
}

// resolve repeatedly places pending definitions under known parents until
// a pass makes no progress.
func (p *MIBParser) resolve() []OIDEntry {
	var resolved []OIDEntry
	for {
		progress := false
		remaining := p.pending[:0]
		for _, def := range p.pending {
			parent, ok := p.known[def.parent]
			if !ok {
				remaining = append(remaining, def)
				continue
			}
			def.entry.OID = parent.Append(def.arc)
			p.known[def.entry.Name] = def.entry.OID
			resolved = append(resolved, def.entry)
			progress = true
		}
		p.pending = remaining
		if !progress || len(p.pending) == 0 {
			return resolved
		}
	}
}

// Unresolved is the number of definitions still waiting for a parent.
func (p *MIBParser) Unresolved() int {
	return len(p.pending)
}
