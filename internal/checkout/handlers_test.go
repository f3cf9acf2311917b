package checkout_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clover-relay/internal/checkout"
	"github.com/noah-isme/clover-relay/internal/clover"
)

// stubPlatform records the calls the orchestrator makes, in order.
type stubPlatform struct {
	t          *testing.T
	calls      []string
	lineBodies []map[string]any
	checkout   map[string]any
	failOn     string
}

func (s *stubPlatform) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		switch {
		case strings.HasSuffix(r.URL.Path, "/line_items"):
			s.calls = append(s.calls, "line_item")
			var body map[string]any
			require.NoError(s.t, json.Unmarshal(raw, &body))
			s.lineBodies = append(s.lineBodies, body)
			if s.failOn == fmt.Sprintf("line_item_%d", len(s.lineBodies)-1) {
				http.Error(w, `{"message":"item rejected"}`, http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		case strings.HasSuffix(r.URL.Path, "/orders"):
			s.calls = append(s.calls, "create_order")
			if s.failOn == "create_order" {
				http.Error(w, `{"message":"merchant suspended"}`, http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(`{"id":"O1"}`))
		case strings.HasSuffix(r.URL.Path, "/checkouts"):
			s.calls = append(s.calls, "create_checkout")
			require.NoError(s.t, json.Unmarshal(raw, &s.checkout))
			if s.failOn == "create_checkout" {
				http.Error(w, `{"message":"checkout unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"id":"CHK1","href":"https://pay.example/O1"}`))
		default:
			s.t.Fatalf("unexpected upstream path %s", r.URL.Path)
		}
	})
}

func newCheckoutHandler(t *testing.T, stub *stubPlatform) *checkout.Handler {
	t.Helper()
	upstream := httptest.NewServer(stub.handler())
	t.Cleanup(upstream.Close)
	svc := &checkout.Service{
		Clover:      &clover.Client{APIBase: upstream.URL},
		Currency:    "USD",
		RedirectURL: "https://merchant.example/paid",
		Logger:      zerolog.Nop(),
	}
	return checkout.NewHandler(svc)
}

func post(t *testing.T, h *checkout.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)
	return rec
}

func TestCheckoutRejectsInvalidInputBeforeAnyCall(t *testing.T) {
	stub := &stubPlatform{t: t}
	h := newCheckoutHandler(t, stub)

	bodies := []string{
		`{"accessToken":"T","lines":[],"amountCents":700}`,
		`{"merchantId":"M1","lines":[],"amountCents":700}`,
		`{"merchantId":"M1","accessToken":"T","amountCents":700}`,
		`{"merchantId":"M1","accessToken":"T","lines":"not-a-sequence","amountCents":700}`,
		`{"merchantId":"M1","accessToken":"T","lines":[],"amountCents":0}`,
		`{"merchantId":"M1","accessToken":"T","lines":[{"name":"Coffee","priceCents":350,"qty":0}],"amountCents":700}`,
		`not json`,
	}
	for _, body := range bodies {
		rec := post(t, h, body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Empty(t, stub.calls)
}

func TestCheckoutHappyPath(t *testing.T) {
	stub := &stubPlatform{t: t}
	h := newCheckoutHandler(t, stub)

	rec := post(t, h, `{
		"merchantId":"M1","accessToken":"T",
		"lines":[{"name":"Coffee","priceCents":350,"qty":2}],
		"amountCents":700
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out checkout.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "O1", out.OrderID)
	require.Equal(t, "https://pay.example/O1", out.PayURL)
	require.Equal(t, []string{"create_order", "line_item", "create_checkout"}, stub.calls)
}

func TestCheckoutAttachesLinesInInputOrder(t *testing.T) {
	stub := &stubPlatform{t: t}
	h := newCheckoutHandler(t, stub)

	rec := post(t, h, `{
		"merchantId":"M1","accessToken":"T",
		"lines":[
			{"name":"Coffee","priceCents":350,"qty":1},
			{"itemId":"SKU9","priceCents":500,"qty":2},
			{"name":"Muffin","priceCents":275,"qty":1}
		],
		"amountCents":1625
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.lineBodies, 3)
	require.Equal(t, "Coffee", stub.lineBodies[0]["name"])
	item, ok := stub.lineBodies[1]["item"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "SKU9", item["id"])
	require.Equal(t, "Muffin", stub.lineBodies[2]["name"])
}

func TestCheckoutAmountIsCallerSuppliedVerbatim(t *testing.T) {
	stub := &stubPlatform{t: t}
	h := newCheckoutHandler(t, stub)

	// amount deliberately disagrees with the line total; the relay must not
	// recompute it
	rec := post(t, h, `{
		"merchantId":"M1","accessToken":"T",
		"lines":[{"name":"Coffee","priceCents":350,"qty":2}],
		"amountCents":9999
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 9999, stub.checkout["amount"])
}

func TestCheckoutAbortsOnOrderFailure(t *testing.T) {
	stub := &stubPlatform{t: t, failOn: "create_order"}
	h := newCheckoutHandler(t, stub)

	rec := post(t, h, `{
		"merchantId":"M1","accessToken":"T",
		"lines":[{"name":"Coffee","priceCents":350,"qty":2}],
		"amountCents":700
	}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, []string{"create_order"}, stub.calls)
}

func TestCheckoutAbortsMidLinesWithoutCompensation(t *testing.T) {
	stub := &stubPlatform{t: t, failOn: "line_item_1"}
	h := newCheckoutHandler(t, stub)

	rec := post(t, h, `{
		"merchantId":"M1","accessToken":"T",
		"lines":[
			{"name":"Coffee","priceCents":350,"qty":1},
			{"name":"Muffin","priceCents":275,"qty":1},
			{"name":"Tea","priceCents":300,"qty":1}
		],
		"amountCents":925
	}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// first line landed, second failed, third never attempted, no checkout,
	// no order cancellation
	require.Equal(t, []string{"create_order", "line_item", "line_item"}, stub.calls)
}
