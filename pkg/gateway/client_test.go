package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/pkg/gateway"
	testutils "github.com/papercomputeco/portal/pkg/utils/test"
)

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		lastReq *http.Request
		body    []byte
	)

	record := func(resp *http.Response) gateway.Doer {
		return testutils.DoerFunc(func(req *http.Request) (*http.Response, error) {
			lastReq = req
			body = nil
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			return resp, nil
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		lastReq = nil
	})

	It("trims the trailing slash from the base URL", func() {
		c := gateway.NewClient(" http://gw.local:8080/ ")
		Expect(c.BaseURL()).To(Equal("http://gw.local:8080"))
	})

	Describe("Send", func() {
		It("sets the bearer, content type and JSON body", func() {
			c := gateway.NewClient("http://gw.local", gateway.WithDoer(record(testutils.JSONResponse(200, `{}`))))

			resp, err := c.Send(ctx, http.MethodPost, gateway.PathChat, "sk-1", gateway.CreateKeyRequest{Name: "alpha"})
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(lastReq.URL.String()).To(Equal("http://gw.local/v1/chat"))
			Expect(lastReq.Header.Get("Authorization")).To(Equal("Bearer sk-1"))
			Expect(lastReq.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(string(body)).To(MatchJSON(`{"name":"alpha"}`))
		})

		It("omits the bearer and body when empty", func() {
			c := gateway.NewClient("http://gw.local", gateway.WithDoer(record(testutils.JSONResponse(200, `{}`))))

			resp, err := c.Send(ctx, http.MethodGet, gateway.PathHealth, "", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(lastReq.Header.Get("Authorization")).To(BeEmpty())
			Expect(lastReq.Header.Get("Content-Type")).To(BeEmpty())
		})

		It("wraps transport failures", func() {
			c := gateway.NewClient("http://gw.local", gateway.WithDoer(testutils.DoerFunc(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection reset by peer")
			})))

			_, err := c.Send(ctx, http.MethodGet, gateway.PathHealth, "", nil)

			var terr *gateway.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.BaseURL).To(Equal("http://gw.local"))
			Expect(terr.Unreachable()).To(BeFalse())
			Expect(terr.Detail().Message).To(ContainSubstring("Ensure the gateway is running on http://gw.local"))
		})

		It("returns the context error when cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			c := gateway.NewClient("http://gw.local", gateway.WithDoer(testutils.DoerFunc(func(*http.Request) (*http.Response, error) {
				cancel()
				return nil, errors.New("request aborted")
			})))

			_, err := c.Send(cctx, http.MethodGet, gateway.PathHealth, "", nil)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("reports an unreachable gateway", func() {
			server := httptest.NewServer(http.NotFoundHandler())
			url := server.URL
			server.Close()

			_, err := gateway.NewClient(url).Health(ctx, gateway.PathHealth)

			detail := gateway.DetailOf(err)
			Expect(detail.Code).To(Equal(gateway.CodeClientError))
			Expect(detail.Message).To(Equal("Gateway not reachable at " + url + ". Start the gateway (or run `portal serve mock`), then retry."))
		})
	})

	Describe("admin endpoints", func() {
		var (
			server *httptest.Server
			c      *gateway.Client
		)

		BeforeEach(func() {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /v1/admin/bootstrap", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(gateway.IssuedKeyResponse{APIKey: "adm-1"})
			})
			mux.HandleFunc("GET /v1/admin/keys", func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer adm-1" {
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"error":{"code":"invalid_admin_key","message":"nope"}}`))
					return
				}
				_, _ = w.Write([]byte(`{"keys":null}`))
			})
			mux.HandleFunc("DELETE /v1/admin/keys/{id}", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.PathValue("id")).To(Equal("key 1"))
				w.WriteHeader(http.StatusNoContent)
			})
			server = httptest.NewServer(mux)
			DeferCleanup(server.Close)
			c = gateway.NewClient(server.URL)
		})

		It("bootstraps and lists", func() {
			key, err := c.Bootstrap(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("adm-1"))

			keys, err := c.ListKeys(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).NotTo(BeNil())
			Expect(keys).To(BeEmpty())
		})

		It("maps rejections to auth APIErrors", func() {
			_, err := c.ListKeys(ctx, "adm-stale")

			Expect(gateway.IsAuthError(err)).To(BeTrue())
			Expect(gateway.DetailOf(err).Code).To(Equal("invalid_admin_key"))
		})

		It("escapes key ids", func() {
			Expect(c.DeleteKey(ctx, "adm-1", "key 1")).To(Succeed())
		})
	})

	Describe("request timeout", func() {
		// blocking waits for the request context to end.
		blocking := testutils.DoerFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

		It("bounds non-streaming calls with a deadline", func() {
			c := gateway.NewClient("http://gw.local", gateway.WithDoer(blocking), gateway.WithTimeout(20*time.Millisecond))

			_, err := c.ListKeys(ctx, "adm-1")

			var transportErr *gateway.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})

		It("returns the caller's cancellation unchanged", func() {
			c := gateway.NewClient("http://gw.local", gateway.WithDoer(blocking), gateway.WithTimeout(time.Minute))
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := c.ListKeys(cctx, "adm-1")

			Expect(err).To(MatchError(context.Canceled))
		})

		It("leaves Send without a deadline so streams are bounded by ctx only", func() {
			var hasDeadline bool
			c := gateway.NewClient("http://gw.local",
				gateway.WithDoer(testutils.DoerFunc(func(req *http.Request) (*http.Response, error) {
					_, hasDeadline = req.Context().Deadline()
					return testutils.JSONResponse(200, `{}`), nil
				})),
				gateway.WithTimeout(time.Minute),
			)

			resp, err := c.Send(ctx, http.MethodPost, gateway.PathChatStream, "sk-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(hasDeadline).To(BeFalse())

			Expect(c.ListKeys(ctx, "adm-1")).Error().NotTo(HaveOccurred())
			Expect(hasDeadline).To(BeTrue())
		})
	})
})
