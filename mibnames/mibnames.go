// Package mibnames translates numeric OIDs into MIB names.
//
// Names come from a built-in table covering the system group, the Host
// Resources MIB and the Printer MIB, plus any MIB files loaded from a
// directory. Lookup is longest-prefix: an OID below a named node renders as
// that name followed by the remaining arcs.
//
// Basic Usage:
//
//	translator := mibnames.New()
//	if err := translator.Init("/usr/share/snmp/mibs"); err != nil {
//		return err
//	}
//	defer translator.Close()
//
//	name, _ := translator.Translate("1.3.6.1.2.1.43.11.1.1.9.1.1")
//	// name == "prtMarkerSuppliesLevel.1.1"
//
// MIB files are parsed with regular expressions, not compiled: only
// assignments of the form "::= { parent arc }" are understood, which covers
// OBJECT-TYPE, OBJECT IDENTIFIER and NOTIFICATION-TYPE definitions.
package mibnames

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geekxflood/printkit/logging"
	"github.com/geekxflood/printkit/snmp"
)

// ErrNotFound is returned when no prefix of an OID has a name.
var ErrNotFound = errors.New("OID not found")

// lazyBatch is how many unread MIB files a lookup miss loads at a time.
const lazyBatch = 5

// Translator turns OIDs into names.
type Translator interface {
	// Init loads the built-in names and prepares MIB files under mibDir.
	// An empty mibDir uses the built-in names only.
	Init(mibDir string) error

	// Translate renders a dotted OID, with or without a leading dot. When no
	// prefix is named it returns the OID unchanged with ErrNotFound.
	Translate(oid string) (string, error)

	TranslateOID(oid snmp.OID) (string, error)

	// TranslateBatch translates every OID. The result always holds an entry
	// per input; the error lists the ones that failed.
	TranslateBatch(oids []string) (map[string]string, error)

	// LoadMIB parses one MIB file into the name table.
	LoadMIB(filename string) error

	GetStats() Stats

	Close() error
}

// Stats describes the translator's state.
type Stats struct {
	LoadedMIBs       int           `json:"loaded_mibs"`
	PendingMIBs      int           `json:"pending_mibs"`
	TotalOIDs        int           `json:"total_oids"`
	Unresolved       int           `json:"unresolved"`
	CacheHits        int64         `json:"cache_hits"`
	CacheMisses      int64         `json:"cache_misses"`
	TranslationCount int64         `json:"translation_count"`
	AverageLatency   time.Duration `json:"average_latency"`
}

// Config holds translator options.
type Config struct {
	// LazyLoading defers reading MIB files until a lookup has no exact
	// match.
	LazyLoading bool `json:"lazy_loading"`

	// MaxCacheSize bounds the translation cache; zero disables it.
	MaxCacheSize int `json:"max_cache_size"`

	Logger logging.Logger `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LazyLoading:  true,
		MaxCacheSize: 1024,
	}
}

type translator struct {
	mu          sync.RWMutex
	logger      logging.Logger
	lazyLoading bool
	mibDir      string
	trie        *OIDTrie
	cache       *Cache
	parser      *MIBParser
	loadedMIBs  map[string]bool
	pending     []string
	stats       Stats
	initialized bool
}

// New creates a translator with DefaultConfig.
func New() Translator {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a translator with config.
func NewWithConfig(config Config) Translator {
	return &translator{
		logger:      logging.OrDiscard(config.Logger),
		lazyLoading: config.LazyLoading,
		trie:        NewOIDTrie(),
		cache:       NewCache(config.MaxCacheSize),
		parser:      NewMIBParser(),
		loadedMIBs:  make(map[string]bool),
	}
}

func (t *translator) Init(mibDir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return errors.New("translator already initialized")
	}

	var files []string
	if mibDir != "" {
		info, err := os.Stat(mibDir)
		if err != nil {
			return fmt.Errorf("MIB directory does not exist: %s", mibDir)
		}
		if !info.IsDir() {
			return fmt.Errorf("MIB path is not a directory: %s", mibDir)
		}
		if files, err = listMIBFiles(mibDir); err != nil {
			return fmt.Errorf("failed to list MIB directory %s: %w", mibDir, err)
		}
	}

	for _, b := range builtinNames {
		t.trie.Insert(snmp.MustParseOID(b.oid), b.name)
	}
	t.stats.TotalOIDs = t.trie.Size()
	t.mibDir = mibDir
	t.pending = files
	t.initialized = true

	if !t.lazyLoading {
		for len(t.pending) > 0 {
			t.loadNextLocked(len(t.pending))
		}
	}
	t.logger.Debug("translator initialized", "mib_dir", mibDir, "files", len(files), "lazy", t.lazyLoading)
	return nil
}

func (t *translator) Translate(oid string) (string, error) {
	parsed, err := snmp.ParseOID(oid)
	if err != nil {
		return oid, fmt.Errorf("invalid OID %q: %w", oid, err)
	}
	return t.TranslateOID(parsed)
}

func (t *translator) TranslateOID(oid snmp.OID) (string, error) {
	t.mu.RLock()
	initialized := t.initialized
	t.mu.RUnlock()
	if !initialized {
		return "", errors.New("translator not initialized")
	}

	start := time.Now()
	defer func() {
		t.updateStats(time.Since(start))
	}()

	key := oid.String()
	if name, ok := t.cache.Get(key); ok {
		return name, nil
	}

	// Pending MIB files may name oid itself, so an inexact match keeps
	// loading until one is exact or nothing is left.
	name, exact, ok := t.render(oid)
	for !exact && t.loadNext() {
		name, exact, ok = t.render(oid)
	}
	if !ok {
		return key, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	t.cache.Set(key, name)
	return name, nil
}

// render returns the longest named prefix followed by the remaining arcs,
// whether the prefix was oid itself and whether any prefix was named.
func (t *translator) render(oid snmp.OID) (string, bool, bool) {
	name, depth := t.trie.LongestPrefix(oid)
	if name == "" {
		return "", false, false
	}
	if depth == len(oid) {
		return name, true, true
	}

	var b strings.Builder
	b.WriteString(name)
	for _, arc := range oid[depth:] {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(arc), 10))
	}
	return b.String(), false, true
}

func (t *translator) TranslateBatch(oids []string) (map[string]string, error) {
	result := make(map[string]string, len(oids))
	var errs []error
	for _, oid := range oids {
		name, err := t.Translate(oid)
		result[oid] = name
		if err != nil {
			errs = append(errs, fmt.Errorf("OID %s: %w", oid, err))
		}
	}
	if len(errs) > 0 {
		return result, fmt.Errorf("batch translation errors: %w", errors.Join(errs...))
	}
	return result, nil
}

func (t *translator) LoadMIB(filename string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.loadFileLocked(filename); err != nil {
		return fmt.Errorf("failed to parse MIB file %s: %w", filename, err)
	}
	return nil
}

func (t *translator) GetStats() Stats {
	t.mu.RLock()
	stats := t.stats
	stats.PendingMIBs = len(t.pending)
	stats.Unresolved = t.parser.Unresolved()
	t.mu.RUnlock()

	cache := t.cache.Stats()
	stats.CacheHits = cache.Hits
	stats.CacheMisses = cache.Misses
	return stats
}

func (t *translator) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache.Clear()
	t.trie = NewOIDTrie()
	t.parser = NewMIBParser()
	t.loadedMIBs = make(map[string]bool)
	t.pending = nil
	t.initialized = false
	return nil
}

// loadNext reads the next batch of pending MIB files. It reports whether
// anything was attempted.
func (t *translator) loadNext() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return false
	}
	t.loadNextLocked(lazyBatch)
	return true
}

func (t *translator) loadNextLocked(n int) {
	if n > len(t.pending) {
		n = len(t.pending)
	}
	batch := t.pending[:n]
	t.pending = t.pending[n:]

	for _, path := range batch {
		if err := t.loadFileLocked(path); err != nil {
			t.logger.Warn("failed to load MIB file", "path", path, "error", err)
		}
	}
}

func (t *translator) loadFileLocked(filename string) error {
	if t.loadedMIBs[filename] {
		return nil
	}

	entries, err := t.parser.ParseFile(filename)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		t.trie.Insert(entry.OID, entry.Name)
	}

	t.loadedMIBs[filename] = true
	t.stats.LoadedMIBs++
	t.stats.TotalOIDs = t.trie.Size()
	// A later file may have completed names whose lookups were cached as
	// shorter prefixes.
	if len(entries) > 0 {
		t.cache.Clear()
	}
	return nil
}

func (t *translator) updateStats(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TranslationCount++
	if t.stats.AverageLatency == 0 {
		t.stats.AverageLatency = d
		return
	}
	t.stats.AverageLatency = time.Duration(0.9*float64(t.stats.AverageLatency) + 0.1*float64(d))
}

func listMIBFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isMIBFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// isMIBFile accepts the usual MIB extensions; MIB files often have none.
func isMIBFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mib", ".txt", ".my", "":
		return true
	}
	return false
}
