package models

// CartView 购物车视图模型（服务端为准的镜像）
// 每次成功变更后整体替换，从不做局部修补。
type CartView struct {
	Lines         []CartLine     `json:"lines"`
	DiscountCodes []DiscountCode `json:"discount_codes"`
	VisibleCodes  []string       `json:"visible_codes"` // 片段中实际渲染的折扣码
	Subtotal      Money          `json:"subtotal"`
	ItemCount     int            `json:"item_count"`
	Empty         bool           `json:"empty"`

	// 免邮进度（0~100，阈值未配置时恒为 0）
	FreeShippingProgress int `json:"free_shipping_progress"`
}

// CartLine 购物车行项目
type CartLine struct {
	Line      int    `json:"line"` // 1 起始的行号（平台变更端点按行号寻址）
	Key       string `json:"key"`
	VariantID int64  `json:"variant_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	LinePrice Money  `json:"line_price"`
}

// DiscountCode 折扣码及其服务端判定
type DiscountCode struct {
	Code       string `json:"code"`
	Applicable bool   `json:"applicable"`
}

// CartSnapshot 平台 cart.js 端点返回的权威 JSON 快照
// 快照金额以最小货币单位（分）传递，读取用 TotalPrice/LinePrice 换算。
type CartSnapshot struct {
	Token           string         `json:"token"`
	ItemCount       int            `json:"item_count"`
	TotalPriceCents int64          `json:"total_price"`
	DiscountCodes   []DiscountCode `json:"discount_codes"`
	Items           []SnapshotItem `json:"items"`
}

// TotalPrice 快照总金额
func (s *CartSnapshot) TotalPrice() Money {
	if s == nil {
		return Money{}
	}
	return NewMoneyFromMinorUnits(s.TotalPriceCents)
}

// SnapshotItem 快照中的行项目
type SnapshotItem struct {
	Key            string `json:"key"`
	VariantID      int64  `json:"variant_id"`
	Quantity       int    `json:"quantity"`
	LinePriceCents int64  `json:"line_price"`
}

// LinePrice 行项目金额
func (i SnapshotItem) LinePrice() Money {
	return NewMoneyFromMinorUnits(i.LinePriceCents)
}

// QuantityOf 返回指定变体在快照中的数量
func (s *CartSnapshot) QuantityOf(variantID int64) int {
	if s == nil {
		return 0
	}
	total := 0
	for _, item := range s.Items {
		if item.VariantID == variantID {
			total += item.Quantity
		}
	}
	return total
}
