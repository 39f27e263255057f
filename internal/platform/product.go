package platform

import (
	"fmt"

	"github.com/storefront-bridge/internal/models"

	"github.com/tidwall/gjson"
)

// ParseProduct 解析内嵌商品 JSON
// 商品 payload 是模板渲染时内嵌的结构化数据，格式错误属于契约破坏，
// 必须立刻报错而不是降级为空目录。
func ParseProduct(body []byte) (*models.Product, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: not valid json", ErrMalformedProduct)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedProduct)
	}

	handle := root.Get("handle").String()
	if handle == "" {
		return nil, fmt.Errorf("%w: missing handle", ErrMalformedProduct)
	}

	product := &models.Product{
		Handle: handle,
		Title:  root.Get("title").String(),
	}

	for _, opt := range root.Get("options").Array() {
		option := models.ProductOption{Name: opt.Get("name").String()}
		for _, value := range opt.Get("values").Array() {
			option.Values = append(option.Values, value.String())
		}
		product.Options = append(product.Options, option)
	}

	variants := root.Get("variants").Array()
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: product %s has no variants", ErrMalformedProduct, handle)
	}
	for i, raw := range variants {
		variant, err := parseVariant(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s variant[%d]: %v", ErrMalformedProduct, handle, i, err)
		}
		if len(variant.Options) != len(product.Options) {
			return nil, fmt.Errorf("%w: product %s variant[%d]: option arity %d, want %d",
				ErrMalformedProduct, handle, i, len(variant.Options), len(product.Options))
		}
		product.Variants = append(product.Variants, variant)
	}

	for _, rawGroup := range root.Get("selling_plan_groups").Array() {
		group := models.SellingPlanGroup{
			ID:   rawGroup.Get("id").String(),
			Name: rawGroup.Get("name").String(),
		}
		for _, rawPlan := range rawGroup.Get("selling_plans").Array() {
			plan := models.SellingPlan{
				ID:          rawPlan.Get("id").Int(),
				Name:        rawPlan.Get("name").String(),
				Description: rawPlan.Get("description").String(),
			}
			for _, rawAdj := range rawPlan.Get("price_adjustments").Array() {
				plan.PriceAdjustments = append(plan.PriceAdjustments, models.PlanPriceAdjustment{
					ValueType: rawAdj.Get("value_type").String(),
					Value:     rawAdj.Get("value").Int(),
				})
			}
			group.SellingPlans = append(group.SellingPlans, plan)
		}
		product.SellingPlanGroups = append(product.SellingPlanGroups, group)
	}

	return product, nil
}

func parseVariant(raw gjson.Result) (models.Variant, error) {
	if !raw.Get("id").Exists() {
		return models.Variant{}, fmt.Errorf("missing id")
	}
	optionsRaw := raw.Get("options")
	if !optionsRaw.Exists() || !optionsRaw.IsArray() {
		return models.Variant{}, fmt.Errorf("missing options tuple")
	}

	variant := models.Variant{
		ID:        raw.Get("id").Int(),
		Title:     raw.Get("title").String(),
		Available: raw.Get("available").Bool(),
		Price:     models.NewMoneyFromMinorUnits(raw.Get("price").Int()),
	}
	for _, value := range optionsRaw.Array() {
		variant.Options = append(variant.Options, value.String())
	}

	if compareAt := raw.Get("compare_at_price"); compareAt.Exists() && compareAt.Type != gjson.Null {
		money := models.NewMoneyFromMinorUnits(compareAt.Int())
		variant.CompareAtPrice = &money
	}
	if up := raw.Get("unit_price"); up.Exists() && up.Type != gjson.Null {
		money := models.NewMoneyFromMinorUnits(up.Int())
		variant.UnitPrice = &money
		if m := raw.Get("unit_price_measurement"); m.Exists() {
			variant.UnitPriceMeasurement = &models.UnitPriceMeasurement{
				ReferenceValue: m.Get("reference_value").Int(),
				ReferenceUnit:  m.Get("reference_unit").String(),
			}
		}
	}

	for _, rawAlloc := range raw.Get("selling_plan_allocations").Array() {
		alloc := models.SellingPlanAllocation{
			SellingPlanID: rawAlloc.Get("selling_plan_id").Int(),
			Price:         models.NewMoneyFromMinorUnits(rawAlloc.Get("price").Int()),
		}
		if compareAt := rawAlloc.Get("compare_at_price"); compareAt.Exists() && compareAt.Type != gjson.Null {
			money := models.NewMoneyFromMinorUnits(compareAt.Int())
			alloc.CompareAtPrice = &money
		}
		if up := rawAlloc.Get("unit_price"); up.Exists() && up.Type != gjson.Null {
			money := models.NewMoneyFromMinorUnits(up.Int())
			alloc.UnitPrice = &money
		}
		variant.SellingPlanAllocations = append(variant.SellingPlanAllocations, alloc)
	}

	if media := raw.Get("featured_media"); media.Exists() && media.IsObject() {
		variant.FeaturedMedia = &models.FeaturedMedia{
			ID:        media.Get("id").Int(),
			MediaType: media.Get("media_type").String(),
			Src:       media.Get("preview_image.src").String(),
			Alt:       media.Get("alt").String(),
		}
	}

	return variant, nil
}
