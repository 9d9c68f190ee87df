package mockgw_test

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/mockgw"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/logger"
)

func newTestGateway(config mockgw.Config) (*mockgw.Server, *gateway.Client) {
	srv, err := mockgw.New(config, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = srv.Close() })
	return srv, gateway.NewClient("http://mock.local", gateway.WithDoer(srv.Doer()))
}

var _ = Describe("Server", func() {
	var (
		ctx    context.Context
		srv    *mockgw.Server
		client *gateway.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv, client = newTestGateway(mockgw.Config{})
	})

	Describe("health", func() {
		It("reports ok", func() {
			status, err := client.Health(ctx, gateway.PathHealth)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Status).To(Equal("ok"))
		})

		It("reports the provider down when configured", func() {
			_, client = newTestGateway(mockgw.Config{ProviderDown: true})

			_, err := client.Health(ctx, gateway.PathHealthOllama)

			var apiErr *gateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(http.StatusServiceUnavailable))
			Expect(apiErr.Detail.Code).To(Equal("provider_unavailable"))
		})
	})

	Describe("admin", func() {
		It("bootstraps once", func() {
			status, err := client.AdminStatus(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.AdminInitialized).To(BeFalse())

			key, err := client.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(HavePrefix("adm_"))
			Expect(srv.AdminKey()).To(Equal(key))

			_, err = client.Bootstrap(ctx)
			var apiErr *gateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(http.StatusConflict))
			Expect(apiErr.Detail.Code).To(Equal("admin_exists"))

			status, err = client.AdminStatus(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.AdminInitialized).To(BeTrue())
		})

		It("rotates only with the current admin key", func() {
			key, err := client.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Rotate(ctx, "adm_wrong")
			Expect(gateway.IsAuthError(err)).To(BeTrue())

			rotated, err := client.Rotate(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rotated).NotTo(Equal(key))

			_, err = client.ListKeys(ctx, key)
			Expect(gateway.IsAuthError(err)).To(BeTrue())
		})

		It("creates, lists and revokes keys", func() {
			admin, err := client.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())

			keys, err := client.ListKeys(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(BeEmpty())

			created, err := client.CreateKey(ctx, admin, " alpha ")
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Tenant).To(Equal("alpha"))
			Expect(created.APIKey).To(HavePrefix("sk-"))

			keys, err = client.ListKeys(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(HaveLen(1))
			Expect(keys[0].DisplayName()).To(Equal("alpha"))
			Expect(keys[0].Active).To(BeTrue())
			Expect(keys[0].CreatedAt).NotTo(BeEmpty())

			Expect(client.DeleteKey(ctx, admin, keys[0].ID)).To(Succeed())
			keys, err = client.ListKeys(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys[0].Active).To(BeFalse())

			err = client.DeleteKey(ctx, admin, "key_missing")
			var apiErr *gateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(http.StatusNotFound))
		})

		It("rejects a blank key name", func() {
			admin, err := client.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.CreateKey(ctx, admin, "  ")
			var apiErr *gateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Detail.Code).To(Equal(gateway.CodeInvalidRequest))
		})

		It("forgets everything on reset", func() {
			admin, err := client.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = client.CreateKey(ctx, admin, "alpha")
			Expect(err).NotTo(HaveOccurred())

			srv.Reset()

			Expect(srv.AdminKey()).To(BeEmpty())
			_, err = client.ListKeys(ctx, admin)
			Expect(gateway.IsAuthError(err)).To(BeTrue())
		})
	})

	Describe("chat", func() {
		var apiKey string

		BeforeEach(func() {
			admin, err := client.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())
			created, err := client.CreateKey(ctx, admin, "alpha")
			Expect(err).NotTo(HaveOccurred())
			apiKey = created.APIKey
		})

		It("rejects unknown API keys", func() {
			resp, err := client.Send(ctx, http.MethodPost, gateway.PathChat, "sk-unknown",
				gateway.ChatRequest{Model: "mock-1", Messages: []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}}})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(gateway.ReadError(resp).Code).To(Equal("invalid_api_key"))
		})

		It("rejects malformed requests", func() {
			resp, err := client.Send(ctx, http.MethodPost, gateway.PathChat, apiKey,
				gateway.ChatRequest{Model: "mock-1"})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(gateway.ReadError(resp).Code).To(Equal(gateway.CodeInvalidRequest))
		})

		It("sets routing metadata headers", func() {
			resp, err := client.Send(ctx, http.MethodPost, gateway.PathChat, apiKey,
				gateway.ChatRequest{Model: "auto", Messages: []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}}})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("X-Request-Id")).NotTo(BeEmpty())
			Expect(resp.Header.Get("X-Model-Chosen")).To(Equal(mockgw.DefaultModel))
			Expect(resp.Header.Get("X-Route-Reason")).To(Equal("auto"))
			Expect(resp.Header.Get("X-Provider")).To(Equal("mock"))
			Expect(resp.Header.Get("X-RateLimit-Tokens-Remaining")).NotTo(BeEmpty())
		})
	})
})
