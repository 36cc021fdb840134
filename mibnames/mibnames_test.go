package mibnames

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/geekxflood/printkit/snmp"
)

func TestMIBNames(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MIBNames Suite")
}

const vendorMIB = `
ACME-PRINTER-MIB DEFINITIONS ::= BEGIN

IMPORTS
    MODULE-IDENTITY, OBJECT-TYPE, enterprises
        FROM SNMPv2-SMI;

acme MODULE-IDENTITY
    LAST-UPDATED "202401010000Z"
    ORGANIZATION "Acme"
    DESCRIPTION  "Acme printers."
    ::= { enterprises 99999 }

acmePrinter OBJECT IDENTIFIER ::= { acme 1 }

-- acmeIgnored OBJECT IDENTIFIER ::= { acme 9 }

acmePageCount OBJECT-TYPE
    SYNTAX      Counter32
    MAX-ACCESS  read-only
    STATUS      current
    DESCRIPTION "Pages printed since manufacture."
    ::= { acmePrinter 1 }

acmeTonerModel OBJECT-TYPE
    SYNTAX      OBJECT IDENTIFIER
    MAX-ACCESS  read-only
    STATUS      current
    DESCRIPTION "Installed cartridge model."
    ::= { acmePrinter 2 }

END
`

// childMIB refers to a parent defined in vendorMIB.
const childMIB = `
ACME-EXTRA-MIB DEFINITIONS ::= BEGIN
acmeDuplexUnit OBJECT IDENTIFIER ::= { acmePrinter 3 }
END
`

func writeMIB(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
	return path
}

var _ = Describe("Translator", func() {
	var (
		translator Translator
		dir        string
	)

	BeforeEach(func() {
		translator = New()
		dir = GinkgoT().TempDir()
		DeferCleanup(func() { _ = translator.Close() })
	})

	Describe("Init", func() {
		It("works without a MIB directory", func() {
			Expect(translator.Init("")).To(Succeed())
			Expect(translator.GetStats().TotalOIDs).To(Equal(len(builtinNames)))
		})

		It("fails for a missing directory", func() {
			err := translator.Init("/non/existent/directory")
			Expect(err).To(MatchError(ContainSubstring("does not exist")))
		})

		It("fails when already initialized", func() {
			Expect(translator.Init(dir)).To(Succeed())
			Expect(translator.Init(dir)).To(MatchError(ContainSubstring("already initialized")))
		})

		It("refuses to translate before Init", func() {
			_, err := New().Translate("1.3.6.1.2.1.1.1.0")
			Expect(err).To(MatchError(ContainSubstring("not initialized")))
		})
	})

	Describe("built-in names", func() {
		BeforeEach(func() {
			Expect(translator.Init("")).To(Succeed())
		})

		DescribeTable("renders the longest named prefix",
			func(oid, expected string) {
				name, err := translator.Translate(oid)
				Expect(err).NotTo(HaveOccurred())
				Expect(name).To(Equal(expected))
			},
			Entry("exact", "1.3.6.1.2.1.43.11.1.1.9", "prtMarkerSuppliesLevel"),
			Entry("with indices", "1.3.6.1.2.1.43.11.1.1.9.1.1", "prtMarkerSuppliesLevel.1.1"),
			Entry("leading dot", ".1.3.6.1.2.1.1.1.0", "sysDescr.0"),
			Entry("device type value", "1.3.6.1.2.1.25.3.1.5", "hrDevicePrinter"),
			Entry("error state", "1.3.6.1.2.1.25.3.5.1.2.1", "hrPrinterDetectedErrorState.1"),
			Entry("unnamed column", "1.3.6.1.2.1.43.11.1.1.99.1", "prtMarkerSuppliesEntry.99.1"),
			Entry("generic trap", "1.3.6.1.6.3.1.1.5.1", "coldStart"),
		)

		It("leaves OIDs outside every named subtree alone", func() {
			name, err := translator.Translate(".1.2.3.4.5.6.7.8.9")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			Expect(name).To(Equal("1.2.3.4.5.6.7.8.9"))
		})

		It("rejects malformed OIDs", func() {
			_, err := translator.Translate("1.3.six")
			Expect(err).To(MatchError(ContainSubstring("invalid OID")))
		})

		It("translates snmp.OID values", func() {
			name, err := translator.TranslateOID(snmp.OID{1, 3, 6, 1, 2, 1, 1, 5, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("sysName.0"))
		})

		It("translates batches and reports failures", func() {
			results, err := translator.TranslateBatch([]string{"1.3.6.1.2.1.1.6.0", "1.2.3"})
			Expect(err).To(MatchError(ContainSubstring("OID 1.2.3")))
			Expect(results).To(HaveKeyWithValue("1.3.6.1.2.1.1.6.0", "sysLocation.0"))
			Expect(results).To(HaveKeyWithValue("1.2.3", "1.2.3"))
		})

		It("serves repeats from the cache", func() {
			for range 3 {
				_, err := translator.Translate("1.3.6.1.2.1.1.1.0")
				Expect(err).NotTo(HaveOccurred())
			}
			stats := translator.GetStats()
			Expect(stats.TranslationCount).To(Equal(int64(3)))
			Expect(stats.CacheHits).To(Equal(int64(2)))
			Expect(stats.CacheMisses).To(Equal(int64(1)))
		})
	})

	Describe("MIB files", func() {
		It("loads a directory eagerly", func() {
			writeMIB(dir, "ACME-PRINTER-MIB.txt", vendorMIB)
			translator = NewWithConfig(Config{MaxCacheSize: 16})
			Expect(translator.Init(dir)).To(Succeed())

			Expect(translator.GetStats().LoadedMIBs).To(Equal(1))
			Expect(translator.Translate("1.3.6.1.4.1.99999.1.1.0")).To(Equal("acmePageCount.0"))
			Expect(translator.Translate("1.3.6.1.4.1.99999.1.2")).To(Equal("acmeTonerModel"))
		})

		It("loads files on a lookup miss when lazy", func() {
			writeMIB(dir, "ACME-PRINTER-MIB.txt", vendorMIB)
			Expect(translator.Init(dir)).To(Succeed())
			Expect(translator.GetStats().PendingMIBs).To(Equal(1))

			Expect(translator.Translate("1.3.6.1.4.1.99999.1")).To(Equal("acmePrinter"))
			Expect(translator.GetStats().PendingMIBs).To(Equal(0))
		})

		It("ignores commented-out definitions", func() {
			writeMIB(dir, "ACME-PRINTER-MIB.txt", vendorMIB)
			Expect(translator.Init(dir)).To(Succeed())

			Expect(translator.Translate("1.3.6.1.4.1.99999.9")).To(Equal("acme.9"))
		})

		It("resolves parents defined in a file loaded later", func() {
			Expect(translator.Init(dir)).To(Succeed())
			Expect(translator.LoadMIB(writeMIB(dir, "ACME-EXTRA-MIB", childMIB))).To(Succeed())
			Expect(translator.GetStats().Unresolved).To(Equal(1))

			Expect(translator.LoadMIB(writeMIB(dir, "ACME-PRINTER-MIB.txt", vendorMIB))).To(Succeed())
			Expect(translator.GetStats().Unresolved).To(Equal(0))
			Expect(translator.Translate("1.3.6.1.4.1.99999.1.3")).To(Equal("acmeDuplexUnit"))
		})

		It("reports unparsable files", func() {
			Expect(translator.Init(dir)).To(Succeed())
			err := translator.LoadMIB(writeMIB(dir, "notes.txt", "nothing to see here"))
			Expect(err).To(MatchError(ContainSubstring("no MIB definitions")))
		})

		It("forgets loaded names on Close", func() {
			Expect(translator.Init(dir)).To(Succeed())
			Expect(translator.LoadMIB(writeMIB(dir, "ACME-PRINTER-MIB.txt", vendorMIB))).To(Succeed())
			Expect(translator.Close()).To(Succeed())

			_, err := translator.Translate("1.3.6.1.4.1.99999.1")
			Expect(err).To(MatchError(ContainSubstring("not initialized")))
		})
	})
})

var _ = Describe("OIDTrie", func() {
	var trie *OIDTrie

	BeforeEach(func() {
		trie = NewOIDTrie()
		trie.Insert(snmp.MustParseOID("1.3.6.1.2.1.43"), "printmib")
		trie.Insert(snmp.MustParseOID("1.3.6.1.2.1.43.11.1.1.9"), "prtMarkerSuppliesLevel")
	})

	It("looks up exact names only", func() {
		Expect(trie.Lookup(snmp.MustParseOID("1.3.6.1.2.1.43"))).To(Equal("printmib"))
		Expect(trie.Lookup(snmp.MustParseOID("1.3.6.1.2.1.43.11"))).To(BeEmpty())
		Expect(trie.Lookup(snmp.MustParseOID("1.3.6.1.2.1.44"))).To(BeEmpty())
	})

	It("finds the longest named prefix", func() {
		name, depth := trie.LongestPrefix(snmp.MustParseOID("1.3.6.1.2.1.43.11.1.1.9.1.2"))
		Expect(name).To(Equal("prtMarkerSuppliesLevel"))
		Expect(depth).To(Equal(11))

		name, depth = trie.LongestPrefix(snmp.MustParseOID("1.3.6.1.2.1.43.5"))
		Expect(name).To(Equal("printmib"))
		Expect(depth).To(Equal(7))

		name, depth = trie.LongestPrefix(snmp.MustParseOID("1.3.6.1.2.1.1"))
		Expect(name).To(BeEmpty())
		Expect(depth).To(BeZero())
	})

	It("counts named nodes once", func() {
		trie.Insert(snmp.MustParseOID("1.3.6.1.2.1.43"), "printerMIB")
		Expect(trie.Size()).To(Equal(2))
		Expect(trie.Lookup(snmp.MustParseOID("1.3.6.1.2.1.43"))).To(Equal("printerMIB"))
	})
})

var _ = Describe("Cache", func() {
	It("evicts the least recently used entry", func() {
		cache := NewCache(2)
		cache.Set("a", "1")
		cache.Set("b", "2")
		_, _ = cache.Get("a")
		cache.Set("c", "3")

		_, ok := cache.Get("b")
		Expect(ok).To(BeFalse())
		value, ok := cache.Get("a")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal("1"))
		value, ok = cache.Get("c")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal("3"))

		stats := cache.Stats()
		Expect(stats.Evictions).To(Equal(int64(1)))
		Expect(stats.Size).To(Equal(2))
		Expect(stats.Capacity).To(Equal(2))
	})

	It("stores nothing with zero capacity", func() {
		cache := NewCache(0)
		cache.Set("a", "1")
		_, ok := cache.Get("a")
		Expect(ok).To(BeFalse())
	})
})
