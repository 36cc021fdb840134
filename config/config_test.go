package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/geekxflood/printkit/snmp"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

// writeFile creates name under a per-spec temporary directory.
func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
	return path
}

const testConfig = `
snmp:
  community: private
  port: 1161
  timeout: 250ms
  address:
    - 192.0.2.10
    - "@LOCAL"
discovery:
  workers: 4
logging:
  level: debug
  format: json
`

var _ = Describe("Manager", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Context("with the embedded schema", func() {
		It("resolves every default without a config file", func() {
			manager, err := NewManager(Options{})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.GetInt("snmp.port")).To(Equal(161))
			Expect(manager.GetDuration("snmp.timeout")).To(Equal(time.Second))
			Expect(manager.GetString("snmp.family")).To(Equal("udp4"))
			Expect(manager.GetStringSlice("discovery.broadcast")).To(Equal([]string{"255.255.255.255"}))
			Expect(manager.GetInt("discovery.workers")).To(Equal(8))
			Expect(manager.GetBool("metrics.enabled")).To(BeFalse())
			Expect(manager.GetBool("traps.enabled")).To(BeFalse())
			Expect(manager.GetString("traps.listen")).To(Equal(":162"))
			Expect(manager.GetInt("traps.workers")).To(Equal(4))
			Expect(manager.GetString("logging.format")).To(Equal("logfmt"))
			Expect(manager.Validate()).To(Succeed())
		})

		It("overlays a YAML file on the defaults", func() {
			path := writeFile(dir, "printkit.yaml", testConfig)
			manager, err := NewManager(Options{ConfigPath: path})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.GetString("snmp.community")).To(Equal("private"))
			Expect(manager.GetInt("snmp.port")).To(Equal(1161))
			Expect(manager.GetDuration("snmp.timeout")).To(Equal(250 * time.Millisecond))
			Expect(manager.GetInt("discovery.workers")).To(Equal(4))
			// Untouched siblings keep their defaults.
			Expect(manager.GetString("discovery.interval")).To(Equal("5m"))
			Expect(manager.GetString("snmp.legacyFile")).To(Equal("/etc/cups/snmp.conf"))
		})

		It("reads JSON files", func() {
			path := writeFile(dir, "printkit.json", `{"snmp": {"community": "json"}}`)
			manager, err := NewManager(Options{ConfigPath: path})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.GetString("snmp.community")).To(Equal("json"))
		})

		It("expands environment references", func() {
			GinkgoT().Setenv("PRINTKIT_TEST_COMMUNITY", "fromenv")
			path := writeFile(dir, "printkit.yaml", `
snmp:
  community: "${PRINTKIT_TEST_COMMUNITY:-public}"
  legacyFile: "${PRINTKIT_TEST_UNSET:-/nonexistent/snmp.conf}"
`)
			manager, err := NewManager(Options{ConfigPath: path})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.GetString("snmp.community")).To(Equal("fromenv"))
			Expect(manager.GetString("snmp.legacyFile")).To(Equal("/nonexistent/snmp.conf"))
		})

		It("rejects values outside the schema", func() {
			path := writeFile(dir, "printkit.yaml", "snmp:\n  port: 70000\n")
			_, err := NewManager(Options{ConfigPath: path})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("configuration validation failed"))
		})

		It("rejects unknown severities in reason rules", func() {
			path := writeFile(dir, "printkit.yaml", `
reasons:
  rules:
    - name: x
      expr: "true"
      reason: x
      severity: fatal
`)
			_, err := NewManager(Options{ConfigPath: path})
			Expect(err).To(HaveOccurred())
		})

		It("rejects empty and comment-only files", func() {
			_, err := NewManager(Options{ConfigPath: writeFile(dir, "empty.yaml", "  \n")})
			Expect(err).To(MatchError(ContainSubstring("is empty")))

			_, err = NewManager(Options{ConfigPath: writeFile(dir, "comments.yaml", "# nothing\n")})
			Expect(err).To(MatchError(ContainSubstring("only comments")))
		})

		It("rejects unsupported extensions", func() {
			_, err := NewManager(Options{ConfigPath: writeFile(dir, "printkit.toml", "a = 1\n")})
			Expect(err).To(MatchError(ContainSubstring("unsupported config file format")))
		})
	})

	Context("getters", func() {
		var manager Manager

		BeforeEach(func() {
			var err error
			manager, err = NewManager(Options{ConfigPath: writeFile(dir, "printkit.yaml", testConfig)})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)
		})

		It("returns the default for missing paths", func() {
			Expect(manager.GetString("snmp.missing", "fallback")).To(Equal("fallback"))
			Expect(manager.GetInt("nope.nope", 7)).To(Equal(7))
			Expect(manager.GetDuration("snmp.missing", time.Minute)).To(Equal(time.Minute))
			Expect(manager.Exists("snmp.missing")).To(BeFalse())
			Expect(manager.Exists("snmp.port")).To(BeTrue())
		})

		It("reports missing paths without a default", func() {
			_, err := manager.GetString("snmp.missing")
			Expect(err).To(MatchError(ContainSubstring("not found")))
		})

		It("reports type mismatches", func() {
			_, err := manager.GetInt("snmp.community")
			Expect(err).To(MatchError(ContainSubstring("is not an integer")))

			_, err = manager.GetDuration("snmp.community")
			Expect(err).To(MatchError(ContainSubstring("failed to parse duration")))
		})

		It("returns a copy from GetMap", func() {
			section, err := manager.GetMap("snmp")
			Expect(err).NotTo(HaveOccurred())
			section["community"] = "changed"

			Expect(manager.GetString("snmp.community")).To(Equal("private"))
		})

		It("converts lists to string slices", func() {
			Expect(manager.GetStringSlice("snmp.address")).To(Equal([]string{"192.0.2.10", "@LOCAL"}))
		})
	})

	Context("options", func() {
		It("rejects both schema path and content", func() {
			_, err := NewManager(Options{SchemaPath: "a.cue", SchemaContent: "a: 1"})
			Expect(err).To(MatchError(ContainSubstring("cannot specify both")))
		})

		It("requires paths for hot reload", func() {
			_, err := NewManager(Options{EnableConfigHotReload: true})
			Expect(err).To(MatchError(ContainSubstring("config hot reload requires a config path")))

			_, err = NewManager(Options{SchemaContent: "a: int | *1", EnableSchemaHotReload: true})
			Expect(err).To(MatchError(ContainSubstring("schema hot reload requires a schema path")))
		})

		It("accepts inline schema content", func() {
			manager, err := NewManager(Options{SchemaContent: `agent: { port: int | *1161 }`})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.GetInt("agent.port")).To(Equal(1161))
		})

		It("loads a schema directory", func() {
			schemaDir := filepath.Join(dir, "schema")
			Expect(os.Mkdir(schemaDir, 0o755)).To(Succeed())
			writeFile(schemaDir, "a.cue", "package schema\n\na: string | *\"x\"\n")
			writeFile(schemaDir, "b.cue", "package schema\n\nb: int | *2\n")

			manager, err := NewManager(Options{SchemaPath: schemaDir})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.GetString("a")).To(Equal("x"))
			Expect(manager.GetInt("b")).To(Equal(2))
		})
	})

	Context("reloading", func() {
		It("keeps the previous configuration when a reload fails", func() {
			path := writeFile(dir, "printkit.yaml", testConfig)
			manager, err := NewManager(Options{ConfigPath: path})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			writeFile(dir, "printkit.yaml", "snmp:\n  port: 0\n")
			Expect(manager.Reload()).NotTo(Succeed())
			Expect(manager.GetInt("snmp.port")).To(Equal(1161))

			writeFile(dir, "printkit.yaml", "snmp:\n  port: 1162\n")
			Expect(manager.Reload()).To(Succeed())
			Expect(manager.GetInt("snmp.port")).To(Equal(1162))
		})

		It("picks up file changes with hot reload", func() {
			path := writeFile(dir, "printkit.yaml", testConfig)
			manager, err := NewManager(Options{ConfigPath: path, EnableConfigHotReload: true})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			changes := make(chan error, 10)
			manager.OnConfigChange(func(err error) { changes <- err })

			writeFile(dir, "printkit.yaml", strings.Replace(testConfig, "community: private", "community: rotated", 1))

			Eventually(changes, 5*time.Second).Should(Receive(BeNil()))
			Expect(manager.GetString("snmp.community")).To(Equal("rotated"))
		})

		It("refuses to start hot reload twice", func() {
			path := writeFile(dir, "printkit.yaml", testConfig)
			manager, err := NewManager(Options{ConfigPath: path, EnableConfigHotReload: true})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)

			Expect(manager.StartHotReload(context.Background())).To(MatchError(ContainSubstring("already started")))
			manager.StopHotReload()
			manager.StopHotReload()
		})
	})
})

var _ = Describe("snmp.conf", func() {
	It("parses directives case-insensitively", func() {
		conf, err := ParseSNMPConf(strings.NewReader(`
# CUPS SNMP backend configuration
Address @LOCAL
address 192.0.2.1 192.0.2.2
Community first
COMMUNITY second
DebugLevel 2
MaxRunTime 30
HostNameLookups on
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(conf.Address).To(Equal([]string{"@LOCAL", "192.0.2.1", "192.0.2.2"}))
		Expect(conf.Community).To(Equal("first"))
		Expect(conf.DebugLevel).To(Equal(2))
		Expect(conf.MaxRunTime).To(Equal(30 * time.Second))
	})

	It("reports malformed numbers with the line", func() {
		_, err := ParseSNMPConf(strings.NewReader("DebugLevel lots\n"))
		Expect(err).To(MatchError(ContainSubstring("line 1")))
	})

	Describe("DefaultCommunity", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		newManager := func(yaml string) Manager {
			manager, err := NewManager(Options{ConfigPath: writeFile(dir, "printkit.yaml", yaml)})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(manager.Close)
			return manager
		}

		It("prefers the configured community", func() {
			legacy := writeFile(dir, "snmp.conf", "Community legacy\n")
			manager := newManager("snmp:\n  community: configured\n  legacyFile: " + legacy + "\n")
			Expect(DefaultCommunity(manager)).To(Equal("configured"))
		})

		It("falls back to the legacy file", func() {
			legacy := writeFile(dir, "snmp.conf", "Community legacy\n")
			manager := newManager("snmp:\n  legacyFile: " + legacy + "\n")
			Expect(DefaultCommunity(manager)).To(Equal("legacy"))
		})

		It("falls back to public", func() {
			manager := newManager("snmp:\n  legacyFile: " + filepath.Join(dir, "missing.conf") + "\n")
			Expect(DefaultCommunity(manager)).To(Equal(FallbackCommunity))
		})
	})
})

var _ = Describe("ClientOptions", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("builds transport options and targets", func() {
		path := writeFile(dir, "printkit.yaml", strings.Replace(testConfig, "  port: 1161\n", "  port: 1161\n  debug: 2\n", 1))
		manager, err := NewManager(Options{ConfigPath: path})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(manager.Close)

		settings, err := ClientOptions(manager, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(settings.Family).To(Equal("udp4"))
		Expect(settings.Community).To(Equal("private"))
		Expect(settings.Timeout).To(Equal(250 * time.Millisecond))
		Expect(settings.WalkTimeout).To(Equal(2 * time.Second))
		Expect(settings.Options.Port).To(Equal(1161))
		Expect(settings.Options.Dump).To(BeTrue())
		Expect(settings.Targets).To(HaveLen(2))
		Expect(settings.Targets[0].String()).To(Equal("192.0.2.10"))
		Expect(settings.Targets[1].String()).To(Equal("255.255.255.255"))
	})

	It("uses legacy addresses and run time when the file has none", func() {
		legacy := writeFile(dir, "snmp.conf", "Address 192.0.2.7\nMaxRunTime 15\n")
		manager, err := NewManager(Options{ConfigPath: writeFile(dir, "printkit.yaml", "snmp:\n  legacyFile: "+legacy+"\n")})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(manager.Close)

		settings, err := ClientOptions(manager, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(settings.Targets).To(HaveLen(1))
		Expect(settings.Targets[0].String()).To(Equal("192.0.2.7"))
		Expect(settings.Options.Port).To(Equal(snmp.DefaultPort))
		Expect(settings.Options.Dump).To(BeFalse())
		Expect(settings.MaxRunTime).To(Equal(15 * time.Second))
	})

	It("rejects unparsable addresses", func() {
		manager, err := NewManager(Options{ConfigPath: writeFile(dir, "printkit.yaml", "snmp:\n  address: [printer.local]\n")})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(manager.Close)

		_, err = ClientOptions(manager, nil)
		Expect(err).To(MatchError(ContainSubstring("invalid address")))
	})
})
