package service

import (
	"github.com/storefront-bridge/internal/models"
)

// PriceState 派生价格状态（variant + plan + quantity 的纯函数）
type PriceState struct {
	UnitPrice      models.Money                 `json:"unit_price"`
	CompareAtPrice *models.Money                `json:"compare_at_price,omitempty"`
	TotalPrice     models.Money                 `json:"total_price"`
	OnSale         bool                         `json:"on_sale"`
	MeasuredPrice  *models.Money                `json:"measured_price,omitempty"`
	Measurement    *models.UnitPriceMeasurement `json:"measurement,omitempty"`
}

// ComputePriceState 计算生效价格、划线价与单位价格
// 变体级促销：compare_at_price > price。
// 计划级促销：计划调价与变体基准价比较，而不是与基准划线价比较。
func ComputePriceState(variant *models.Variant, plan *PlanResolution, quantity int) PriceState {
	if quantity < 1 {
		quantity = 1
	}
	state := PriceState{}
	if variant == nil {
		return state
	}

	if plan != nil && plan.Allocation != nil {
		state.UnitPrice = plan.Allocation.Price
		if variant.Price.GreaterThan(plan.Allocation.Price) {
			state.OnSale = true
			base := variant.Price
			state.CompareAtPrice = &base
		}
		if plan.Allocation.UnitPrice != nil {
			state.MeasuredPrice = plan.Allocation.UnitPrice
			state.Measurement = variant.UnitPriceMeasurement
		}
	} else {
		state.UnitPrice = variant.Price
		if variant.CompareAtPrice != nil && variant.CompareAtPrice.GreaterThan(variant.Price) {
			state.OnSale = true
			state.CompareAtPrice = variant.CompareAtPrice
		}
		if variant.UnitPrice != nil {
			state.MeasuredPrice = variant.UnitPrice
			state.Measurement = variant.UnitPriceMeasurement
		}
	}

	state.TotalPrice = state.UnitPrice.MulInt(quantity)
	return state
}
