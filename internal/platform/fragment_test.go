package platform

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleFragment = `
<div data-cart-items data-cart-total="6400">
  <div data-cart-line data-line="1" data-key="key-a" data-variant-id="101" data-quantity="2" data-line-price="4000">
    <span data-line-title>Trail Shirt - S / Red</span>
  </div>
  <div data-cart-line data-line="2" data-key="key-b" data-variant-id="104" data-quantity="1" data-line-price="2400">
    <span data-line-title>Trail Shirt - M / Blue</span>
  </div>
  <ul>
    <li data-discount-code="SAVE10">SAVE10</li>
  </ul>
</div>`

func TestParseCartFragment(t *testing.T) {
	fragment, err := ParseCartFragment(strings.NewReader(sampleFragment))
	if err != nil {
		t.Fatalf("parse fragment failed: %v", err)
	}

	if len(fragment.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(fragment.Lines))
	}
	first := fragment.Lines[0]
	if first.Line != 1 || first.Key != "key-a" || first.VariantID != 101 || first.Quantity != 2 {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if first.Title != "Trail Shirt - S / Red" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if !first.LinePrice.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected line price 40.00, got %s", first.LinePrice.String())
	}

	if !fragment.Subtotal.Equal(decimal.RequireFromString("64.00")) {
		t.Fatalf("expected subtotal 64.00, got %s", fragment.Subtotal.String())
	}
	if fragment.ItemCount != 3 {
		t.Fatalf("expected item count 3, got %d", fragment.ItemCount)
	}
	if fragment.Empty {
		t.Fatal("fragment with lines must not be empty")
	}
	if len(fragment.VisibleCodes) != 1 || fragment.VisibleCodes[0] != "SAVE10" {
		t.Fatalf("unexpected visible codes: %v", fragment.VisibleCodes)
	}
}

func TestParseCartFragment_Empty(t *testing.T) {
	html := `<div data-cart-items data-cart-total="0"><p data-cart-empty>Your cart is empty</p></div>`
	fragment, err := ParseCartFragment(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fragment failed: %v", err)
	}
	if !fragment.Empty {
		t.Fatal("expected empty cart")
	}
	if fragment.ItemCount != 0 || len(fragment.Lines) != 0 {
		t.Fatalf("unexpected content in empty cart: %+v", fragment)
	}
}

func TestParseCartFragment_MissingRoot(t *testing.T) {
	_, err := ParseCartFragment(strings.NewReader(`<div><p>not a cart</p></div>`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestParseCartFragment_BadLineAttribute(t *testing.T) {
	html := `
<div data-cart-items data-cart-total="100">
  <div data-cart-line data-line="1" data-key="k" data-variant-id="abc" data-quantity="1" data-line-price="100"></div>
</div>`
	_, err := ParseCartFragment(strings.NewReader(html))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for bad variant id, got %v", err)
	}
}
