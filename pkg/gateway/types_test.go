package gateway_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/pkg/gateway"
)

var _ = Describe("ChatRequest", func() {
	user := gateway.Message{Role: gateway.RoleUser, Content: "hi"}
	system := gateway.Message{Role: gateway.RoleSystem, Content: "be brief"}

	DescribeTable("Validate",
		func(req gateway.ChatRequest, ok bool) {
			if ok {
				Expect(req.Validate()).To(Succeed())
			} else {
				Expect(req.Validate()).NotTo(Succeed())
			}
		},
		Entry("user only", gateway.ChatRequest{Model: "m", Messages: []gateway.Message{user}}, true),
		Entry("system then user", gateway.ChatRequest{Model: "m", Messages: []gateway.Message{system, user}}, true),
		Entry("no model", gateway.ChatRequest{Messages: []gateway.Message{user}}, false),
		Entry("no messages", gateway.ChatRequest{Model: "m"}, false),
		Entry("user then system", gateway.ChatRequest{Model: "m", Messages: []gateway.Message{user, system}}, false),
		Entry("blank user", gateway.ChatRequest{Model: "m", Messages: []gateway.Message{{Role: gateway.RoleUser, Content: " "}}}, false),
	)

	It("exposes the prompts", func() {
		req := gateway.ChatRequest{Model: "m", Messages: []gateway.Message{system, user}}
		Expect(req.SystemPrompt()).To(Equal("be brief"))
		Expect(req.UserPrompt()).To(Equal("hi"))
	})
})

var _ = Describe("APIKeyEntry", func() {
	It("falls back to the tenant for unnamed keys", func() {
		Expect(gateway.APIKeyEntry{Tenant: "acme"}.DisplayName()).To(Equal("acme"))

		name := "alpha"
		Expect(gateway.APIKeyEntry{Name: &name, Tenant: "acme"}.DisplayName()).To(Equal("alpha"))
	})
})
