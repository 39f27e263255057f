package platform

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleProductJSON = `{
  "handle": "trail-shirt",
  "title": "Trail Shirt",
  "options": [
    {"name": "Size", "values": ["S", "M"]},
    {"name": "Color", "values": ["Red", "Blue"]}
  ],
  "variants": [
    {
      "id": 101,
      "title": "S / Red",
      "options": ["S", "Red"],
      "available": true,
      "price": 2000,
      "compare_at_price": 2500,
      "unit_price": 480,
      "unit_price_measurement": {"reference_value": 100, "reference_unit": "ml"},
      "selling_plan_allocations": [
        {"selling_plan_id": 9001, "price": 1800, "compare_at_price": null}
      ],
      "featured_media": {"id": 7, "media_type": "image", "preview_image": {"src": "https://cdn.example/shirt.jpg"}}
    },
    {
      "id": 102,
      "title": "S / Blue",
      "options": ["S", "Blue"],
      "available": false,
      "price": 2000,
      "compare_at_price": null
    }
  ],
  "selling_plan_groups": [
    {
      "id": "subscription",
      "name": "Subscribe & Save",
      "selling_plans": [
        {"id": 9001, "name": "Monthly", "price_adjustments": [{"value_type": "percentage", "value": 10}]}
      ]
    }
  ]
}`

func TestParseProduct(t *testing.T) {
	product, err := ParseProduct([]byte(sampleProductJSON))
	if err != nil {
		t.Fatalf("parse product failed: %v", err)
	}

	if product.Handle != "trail-shirt" || len(product.Options) != 2 || len(product.Variants) != 2 {
		t.Fatalf("unexpected product shape: %+v", product)
	}

	first := product.Variants[0]
	if !first.Price.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected price 20.00, got %s", first.Price.String())
	}
	if first.CompareAtPrice == nil || !first.CompareAtPrice.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("unexpected compare_at_price: %+v", first.CompareAtPrice)
	}
	if first.UnitPrice == nil || first.UnitPriceMeasurement == nil || first.UnitPriceMeasurement.ReferenceUnit != "ml" {
		t.Fatalf("unexpected unit price: %+v %+v", first.UnitPrice, first.UnitPriceMeasurement)
	}
	if len(first.SellingPlanAllocations) != 1 || first.SellingPlanAllocations[0].SellingPlanID != 9001 {
		t.Fatalf("unexpected allocations: %+v", first.SellingPlanAllocations)
	}
	if first.SellingPlanAllocations[0].CompareAtPrice != nil {
		t.Fatal("null compare_at_price must stay nil")
	}
	if first.FeaturedMedia == nil || first.FeaturedMedia.Src != "https://cdn.example/shirt.jpg" {
		t.Fatalf("unexpected featured media: %+v", first.FeaturedMedia)
	}

	second := product.Variants[1]
	if second.Available {
		t.Fatal("second variant must be sold out")
	}
	if second.CompareAtPrice != nil {
		t.Fatal("null compare_at_price must stay nil")
	}

	if len(product.SellingPlanGroups) != 1 || len(product.SellingPlanGroups[0].SellingPlans) != 1 {
		t.Fatalf("unexpected selling plan groups: %+v", product.SellingPlanGroups)
	}
}

func TestParseProduct_Malformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"handle": `},
		{"not an object", `[1, 2, 3]`},
		{"missing handle", `{"title": "x", "variants": [{"id": 1, "options": []}]}`},
		{"no variants", `{"handle": "x", "variants": []}`},
		{"variant missing id", `{"handle": "x", "options": [], "variants": [{"options": []}]}`},
		{"variant missing options", `{"handle": "x", "options": [], "variants": [{"id": 1}]}`},
		{
			"option arity mismatch",
			`{"handle": "x", "options": [{"name": "Size", "values": ["S"]}], "variants": [{"id": 1, "options": ["S", "Red"]}]}`,
		},
	}
	for _, tc := range cases {
		if _, err := ParseProduct([]byte(tc.body)); !errors.Is(err, ErrMalformedProduct) {
			t.Fatalf("%s: expected ErrMalformedProduct, got %v", tc.name, err)
		}
	}
}
