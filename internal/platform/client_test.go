package platform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/storefront-bridge/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.PlatformConfig{
		BaseURL:          server.URL,
		CartSectionPath:  "/cart?section_id=main-cart-items",
		CartAddPath:      "/cart/add.js",
		CartChangePath:   "/cart/change.js",
		CartUpdatePath:   "/cart/update.js",
		CartSnapshotPath: "/cart.js",
		ProductPathTpl:   "/products/%s.js",
		TimeoutSeconds:   5,
	})
}

func TestClientAddItem_SendsFormEncodedBody(t *testing.T) {
	var gotContentType, gotToken, gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotToken = r.Header.Get("Cart-Token")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"variant_id": 101, "key": "k1", "quantity": 2}`))
	})

	form := url.Values{}
	form.Set("id", "101")
	form.Set("quantity", "2")
	result, err := client.AddItem(context.Background(), "tok-1", form)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type: %s", gotContentType)
	}
	if gotToken != "tok-1" {
		t.Fatalf("expected cart token header, got %q", gotToken)
	}
	if gotBody != form.Encode() {
		t.Fatalf("unexpected body: %s", gotBody)
	}
	if result.VariantID != 101 || result.Quantity != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientFetchCartSnapshot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "tok-1", "item_count": 3, "total_price": 6400, "discount_codes": [{"code": "SAVE10", "applicable": true}], "items": [{"key": "k1", "variant_id": 101, "quantity": 3, "line_price": 6400}]}`))
	})

	snapshot, err := client.FetchCartSnapshot(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("fetch snapshot failed: %v", err)
	}
	if snapshot.ItemCount != 3 || len(snapshot.DiscountCodes) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	// cart.js 金额按最小货币单位传递
	if snapshot.TotalPriceCents != 6400 || snapshot.TotalPrice().String() != "64" {
		t.Fatalf("expected total 6400 cents (64.00), got %d (%s)", snapshot.TotalPriceCents, snapshot.TotalPrice().String())
	}
	if len(snapshot.Items) != 1 || snapshot.Items[0].LinePrice().String() != "64" {
		t.Fatalf("unexpected snapshot items: %+v", snapshot.Items)
	}
	if !snapshot.DiscountCodes[0].Applicable {
		t.Fatal("expected applicable discount code")
	}
}

func TestClientDecodeError_StructuredBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		w.Write([]byte(`{"status": 422, "message": "Cart Error", "description": "stock exceeded"}`))
	})

	_, err := client.FetchCartSnapshot(context.Background(), "tok-1")
	pe, ok := IsPlatformError(err)
	if !ok {
		t.Fatalf("expected platform error, got %v", err)
	}
	if pe.Status != 422 || pe.Message != "Cart Error" || pe.Description != "stock exceeded" {
		t.Fatalf("unexpected platform error: %+v", pe)
	}
}

func TestClientDecodeError_ErrorsField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		w.Write([]byte(`{"errors": "quantity not available"}`))
	})

	_, err := client.FetchCartSnapshot(context.Background(), "tok-1")
	pe, ok := IsPlatformError(err)
	if !ok {
		t.Fatalf("expected platform error, got %v", err)
	}
	if pe.Message != "quantity not available" {
		t.Fatalf("unexpected message: %q", pe.Message)
	}
}

func TestClientDecodeError_FallsBackToStatusText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.FetchProduct(context.Background(), "missing-product")
	pe, ok := IsPlatformError(err)
	if !ok {
		t.Fatalf("expected platform error, got %v", err)
	}
	if pe.Status != 404 || pe.Message != "Not Found" {
		t.Fatalf("unexpected platform error: %+v", pe)
	}
}

func TestClientFetchProduct_EscapesHandle(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"handle": "trail-shirt", "options": [], "variants": [{"id": 1, "options": []}]}`))
	})

	if _, err := client.FetchProduct(context.Background(), "trail-shirt"); err != nil {
		t.Fatalf("fetch product failed: %v", err)
	}
	if gotPath != "/products/trail-shirt.js" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}
