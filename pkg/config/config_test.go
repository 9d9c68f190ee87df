package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[gateway]
base_url = "http://gw.internal:9000"

[chat]
model = "llama3"
temperature = 0.2
stream = false
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Gateway.BaseURL).To(Equal("http://gw.internal:9000"))
			Expect(cfg.Chat.Model).To(Equal("llama3"))
			Expect(*cfg.Chat.Temperature).To(Equal(0.2))
			Expect(*cfg.Chat.Stream).To(BeFalse())
		})

		It("fills in defaults for unset fields in a partial config", func() {
			data := `[chat]
model = "llama3"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Chat.Model).To(Equal("llama3"))
			Expect(cfg.Gateway).To(Equal(defaults.Gateway))
			Expect(*cfg.Chat.Stream).To(BeTrue())
			Expect(cfg.Admin).To(Equal(defaults.Admin))
			Expect(cfg.Health).To(Equal(defaults.Health))
			Expect(cfg.Serve).To(Equal(defaults.Serve))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[gateway\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 7\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk owner-only", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Chat.APIKey = "sk-secret"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("round-trips every key",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(Succeed())
				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value))
			},
			Entry(nil, "gateway.base_url", "http://gw:1"),
			Entry(nil, "gateway.timeout", "30s"),
			Entry(nil, "chat.model", "llama3"),
			Entry(nil, "chat.temperature", "0.7"),
			Entry(nil, "chat.max_tokens", "256"),
			Entry(nil, "chat.stream", "false"),
			Entry(nil, "chat.api_key", "sk-1"),
			Entry(nil, "chat.key", "alpha"),
			Entry(nil, "stream.flush_on_close", "true"),
			Entry(nil, "admin.poll_interval", "2s"),
			Entry(nil, "admin.poll_max_attempts", "5"),
			Entry(nil, "health.poll_interval", "500ms"),
			Entry(nil, "health.poll_max_attempts", "3"),
			Entry(nil, "serve.listen", ":9999"),
		)

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry(nil, "gateway.timeout", "soon"),
			Entry(nil, "chat.temperature", "warm"),
			Entry(nil, "chat.max_tokens", "-1"),
			Entry(nil, "chat.stream", "maybe"),
			Entry(nil, "admin.poll_max_attempts", "many"),
		)

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(`unknown config key: "proxy.upstream"`))
			_, err := c.GetConfigValue("proxy.upstream")
			Expect(err).To(HaveOccurred())
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("chat.model", "llama3")).To(Succeed())
			Expect(c.SetConfigValue("chat.key", "alpha")).To(Succeed())

			got, err := c.GetConfigValue("chat.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("llama3"))
		})

		It("returns the default value when no config file exists", func() {
			got, err := c.GetConfigValue("gateway.base_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("http://localhost:8080"))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key in stable order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys[0]).To(Equal("gateway.base_url"))
			Expect(keys).To(ContainElements("chat.key", "chat.api_key", "serve.listen"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
		})

		It("marks credentials secret", func() {
			Expect(config.IsSecretKey("chat.api_key")).To(BeTrue())
			Expect(config.IsSecretKey("chat.key")).To(BeFalse())
		})
	})
})
