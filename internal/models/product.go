package models

// Product 商品目录快照（每次页面加载解析一次，解析后只读）
type Product struct {
	Handle            string             `json:"handle"`
	Title             string             `json:"title"`
	Options           []ProductOption    `json:"options"`
	Variants          []Variant          `json:"variants"`
	SellingPlanGroups []SellingPlanGroup `json:"selling_plan_groups,omitempty"`
}

// ProductOption 商品选项（名称 + 有序候选值）
type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Variant 具体可购组合
// Options 是按位置排列的选项值元组，位置 i 对应 Product.Options[i]，
// 且该元组在商品内唯一（用作查找键）。
type Variant struct {
	ID                     int64                   `json:"id"`
	Title                  string                  `json:"title"`
	Options                []string                `json:"options"`
	Available              bool                    `json:"available"`
	Price                  Money                   `json:"price"`
	CompareAtPrice         *Money                  `json:"compare_at_price,omitempty"`
	UnitPrice              *Money                  `json:"unit_price,omitempty"`
	UnitPriceMeasurement   *UnitPriceMeasurement   `json:"unit_price_measurement,omitempty"`
	SellingPlanAllocations []SellingPlanAllocation `json:"selling_plan_allocations,omitempty"`
	FeaturedMedia          *FeaturedMedia          `json:"featured_media,omitempty"`
}

// UnitPriceMeasurement 单位价格计量（如每 100ml）
type UnitPriceMeasurement struct {
	ReferenceValue int64  `json:"reference_value"`
	ReferenceUnit  string `json:"reference_unit"`
}

// FeaturedMedia 变体主图/视频引用
type FeaturedMedia struct {
	ID        int64  `json:"id"`
	MediaType string `json:"media_type"`
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
}

// SellingPlanAllocation 订阅计划下该变体的调价
type SellingPlanAllocation struct {
	SellingPlanID  int64  `json:"selling_plan_id"`
	Price          Money  `json:"price"`
	CompareAtPrice *Money `json:"compare_at_price,omitempty"`
	UnitPrice      *Money `json:"unit_price,omitempty"`
}

// SellingPlanGroup 订阅计划分组
type SellingPlanGroup struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	SellingPlans []SellingPlan `json:"selling_plans"`
}

// SellingPlan 订阅计划明细
type SellingPlan struct {
	ID               int64                 `json:"id"`
	Name             string                `json:"name"`
	Description      string                `json:"description,omitempty"`
	PriceAdjustments []PlanPriceAdjustment `json:"price_adjustments,omitempty"`
}

// PlanPriceAdjustment 计划价格调整
type PlanPriceAdjustment struct {
	ValueType string `json:"value_type"` // percentage / fixed_amount / price
	Value     int64  `json:"value"`
}

// OptionCount 商品选项个数
func (p *Product) OptionCount() int {
	if p == nil {
		return 0
	}
	return len(p.Options)
}
