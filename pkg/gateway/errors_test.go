package gateway_test

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/pkg/gateway"
	testutils "github.com/papercomputeco/portal/pkg/utils/test"
)

var _ = Describe("errors", func() {
	Describe("ReadError", func() {
		It("decodes the gateway envelope", func() {
			resp := testutils.JSONResponse(http.StatusTooManyRequests, `{"error":{"code":"rate_limited","message":"slow down"}}`)
			Expect(gateway.ReadError(resp)).To(Equal(gateway.ErrorDetail{Code: "rate_limited", Message: "slow down"}))
		})

		DescribeTable("falls back to the status",
			func(body string) {
				resp := testutils.JSONResponse(http.StatusBadGateway, body)
				Expect(gateway.ReadError(resp)).To(Equal(gateway.ErrorDetail{
					Code:    gateway.CodeRequestFailed,
					Message: "Request failed (502)",
				}))
			},
			Entry("empty body", ""),
			Entry("html body", "<html>bad gateway</html>"),
			Entry("envelope without error", `{"detail":"x"}`),
		)

		It("reads at most 64KB", func() {
			big := `{"error":{"code":"x","message":"` + strings.Repeat("a", 70*1024) + `"}}`
			resp := testutils.JSONResponse(http.StatusBadRequest, big)
			Expect(gateway.ReadError(resp).Code).To(Equal(gateway.CodeRequestFailed))
		})
	})

	Describe("APIError", func() {
		DescribeTable("IsAuth",
			func(status int, want bool) {
				Expect((&gateway.APIError{Status: status}).IsAuth()).To(Equal(want))
			},
			Entry("401", http.StatusUnauthorized, true),
			Entry("403", http.StatusForbidden, true),
			Entry("404", http.StatusNotFound, false),
			Entry("500", http.StatusInternalServerError, false),
		)

		It("is found through wrapping", func() {
			err := fmt.Errorf("listing keys: %w", &gateway.APIError{Status: 401})
			Expect(gateway.IsAuthError(err)).To(BeTrue())
			Expect(gateway.IsAuthError(errors.New("401"))).To(BeFalse())
		})
	})

	Describe("TransportError", func() {
		DescribeTable("Unreachable",
			func(cause error, want bool) {
				Expect((&gateway.TransportError{Err: cause}).Unreachable()).To(Equal(want))
			},
			Entry("refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true),
			Entry("dns", &net.DNSError{Err: "no such host", Name: "gw"}, true),
			Entry("dial op", &net.OpError{Op: "dial", Err: errors.New("timeout")}, true),
			Entry("read op", &net.OpError{Op: "read", Err: errors.New("reset")}, false),
			Entry("other", errors.New("boom"), false),
		)
	})

	Describe("DetailOf", func() {
		It("passes an ErrorDetail through", func() {
			d := gateway.ErrorDetail{Code: "c", Message: "m"}
			Expect(gateway.DetailOf(fmt.Errorf("wrapped: %w", d))).To(Equal(d))
		})

		It("wraps unknown errors as client errors", func() {
			Expect(gateway.DetailOf(errors.New("boom"))).To(Equal(gateway.ErrorDetail{Code: gateway.CodeClientError, Message: "boom"}))
		})
	})
})
