package config

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/snmp"
)

// FallbackCommunity is used when neither configuration file names one.
const FallbackCommunity = "public"

// SNMPConf holds the directives of a legacy line-oriented snmp.conf:
//
//	# comment
//	Address @LOCAL
//	Community private
//	DebugLevel 1
//	MaxRunTime 120
//
// Unknown directives are ignored.
type SNMPConf struct {
	Address    []string
	Community  string
	DebugLevel int
	MaxRunTime time.Duration
}

// ParseSNMPConf reads snmp.conf directives from r. The first Community line
// wins; Address lines accumulate.
func ParseSNMPConf(r io.Reader) (SNMPConf, error) {
	var conf SNMPConf
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "address":
			conf.Address = append(conf.Address, strings.Fields(value)...)
		case "community":
			if conf.Community == "" {
				conf.Community = value
			}
		case "debuglevel":
			n, err := strconv.Atoi(value)
			if err != nil {
				return conf, fmt.Errorf("line %d: bad DebugLevel %q", lineNo, value)
			}
			conf.DebugLevel = n
		case "maxruntime":
			n, err := strconv.Atoi(value)
			if err != nil {
				return conf, fmt.Errorf("line %d: bad MaxRunTime %q", lineNo, value)
			}
			conf.MaxRunTime = time.Duration(n) * time.Second
		}
	}
	if err := scanner.Err(); err != nil {
		return conf, fmt.Errorf("failed to read snmp.conf: %w", err)
	}
	return conf, nil
}

// ReadSNMPConf parses the legacy file at path.
func ReadSNMPConf(path string) (SNMPConf, error) {
	f, err := os.Open(path)
	if err != nil {
		return SNMPConf{}, err
	}
	defer f.Close()
	return ParseSNMPConf(f)
}

// legacyConf reads the legacy file named by snmp.legacyFile. A missing or
// unreadable file yields an empty SNMPConf.
func legacyConf(p Provider) SNMPConf {
	path, _ := p.GetString("snmp.legacyFile", "")
	if path == "" {
		return SNMPConf{}
	}
	conf, err := ReadSNMPConf(path)
	if err != nil {
		return SNMPConf{}
	}
	return conf
}

// DefaultCommunity returns snmp.community, else the first Community of the
// legacy snmp.conf, else "public".
func DefaultCommunity(p Provider) string {
	if community, _ := p.GetString("snmp.community", ""); community != "" {
		return community
	}
	if conf := legacyConf(p); conf.Community != "" {
		return conf.Community
	}
	return FallbackCommunity
}

// ClientSettings is everything a command needs to open a Conn and run
// requests.
type ClientSettings struct {
	Family      string
	Community   string
	Timeout     time.Duration
	WalkTimeout time.Duration
	MaxRunTime  time.Duration
	Targets     []netip.Addr
	Options     snmp.Options
}

// ClientOptions builds client settings from p. Debug level 2 and above turns
// on packet dumps. Targets come from snmp.address, then the legacy Address
// lines, then discovery.broadcast; "@LOCAL" and "@IF(name)" mean the limited
// broadcast address.
func ClientOptions(p Provider, logger logging.Logger) (ClientSettings, error) {
	var s ClientSettings
	var err error

	if s.Family, err = p.GetString("snmp.family", "udp4"); err != nil {
		return s, err
	}
	port, err := p.GetInt("snmp.port", snmp.DefaultPort)
	if err != nil {
		return s, err
	}
	debug, err := p.GetInt("snmp.debug", 0)
	if err != nil {
		return s, err
	}
	if s.Timeout, err = p.GetDuration("snmp.timeout", time.Second); err != nil {
		return s, err
	}
	if s.WalkTimeout, err = p.GetDuration("discovery.walkTimeout", 2*time.Second); err != nil {
		return s, err
	}
	if s.MaxRunTime, err = p.GetDuration("snmp.maxRunTime", 120*time.Second); err != nil {
		return s, err
	}

	legacy := legacyConf(p)
	if debug == 0 {
		debug = legacy.DebugLevel
	}
	if !p.Exists("snmp.maxRunTime") && legacy.MaxRunTime > 0 {
		s.MaxRunTime = legacy.MaxRunTime
	}

	addresses, err := p.GetStringSlice("snmp.address", nil)
	if err != nil {
		return s, err
	}
	if len(addresses) == 0 {
		addresses = legacy.Address
	}
	if len(addresses) == 0 {
		if addresses, err = p.GetStringSlice("discovery.broadcast", []string{"255.255.255.255"}); err != nil {
			return s, err
		}
	}
	if s.Targets, err = parseTargets(addresses); err != nil {
		return s, err
	}

	s.Community = DefaultCommunity(p)
	s.Options = snmp.Options{
		Port:   port,
		Logger: logger,
		Dump:   debug >= 2,
	}
	return s, nil
}

func parseTargets(addresses []string) ([]netip.Addr, error) {
	seen := make(map[netip.Addr]bool)
	var out []netip.Addr
	for _, a := range addresses {
		var addr netip.Addr
		if a == "@LOCAL" || strings.HasPrefix(a, "@IF(") {
			addr = netip.AddrFrom4([4]byte{255, 255, 255, 255})
		} else {
			var err error
			if addr, err = netip.ParseAddr(a); err != nil {
				return nil, fmt.Errorf("invalid address %q: %w", a, err)
			}
		}
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out, nil
}
