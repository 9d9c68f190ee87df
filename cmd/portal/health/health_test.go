package healthcmder_test

import (
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/cmd/portal/cmdtest"
	healthcmder "github.com/papercomputeco/portal/cmd/portal/health"
	"github.com/papercomputeco/portal/mockgw"
)

var _ = Describe("NewHealthCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := healthcmder.NewHealthCmd()
		Expect(cmd.Use).To(Equal("health"))
		Expect(cmd.Flags().Lookup("ollama")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("wait")).NotTo(BeNil())
	})
})

var _ = Describe("Health command execution", func() {
	It("reports a healthy gateway", func() {
		session := cmdtest.NewSession(mockgw.Config{})
		res := session.Run("health")
		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Stdout).To(MatchRegexp(`Status:\s+ok`))
	})

	It("checks the provider endpoint with --ollama", func() {
		session := cmdtest.NewSession(mockgw.Config{ProviderDown: true})

		Expect(session.Run("health").Err).NotTo(HaveOccurred())

		res := session.Run("health", "--ollama")
		Expect(res.Err).To(HaveOccurred())
		Expect(res.Err.Error()).To(ContainSubstring("Provider is not reachable"))
	})

	It("waits for a healthy gateway", func() {
		session := cmdtest.NewSession(mockgw.Config{})
		res := session.Run("health", "--wait")
		Expect(res.Err).NotTo(HaveOccurred())
	})

	It("gives up on an unreachable gateway after the configured attempts", func() {
		session := cmdtest.NewSession(mockgw.Config{})
		Expect(session.Run("config", "set", "health.poll_interval", "1ms").Err).NotTo(HaveOccurred())
		Expect(session.Run("config", "set", "health.poll_max_attempts", "2").Err).NotTo(HaveOccurred())

		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		closed := "http://" + l.Addr().String()
		Expect(l.Close()).To(Succeed())

		res := session.Run("health", "--wait", "--gateway", closed)
		Expect(res.Err).To(HaveOccurred())
		Expect(res.Err.Error()).To(ContainSubstring("after 2 attempts"))
	})
})
