package service

import (
	"fmt"

	"github.com/storefront-bridge/internal/constants"
	"github.com/storefront-bridge/internal/models"
)

// Selections 有序选项选择向量
// 位置 i 对应 Product.Options[i]，空字符串表示该槽位尚未选择。
type Selections []string

// Defined 判断槽位是否已选择
func (s Selections) Defined(i int) bool {
	return i < len(s) && s[i] != ""
}

// WithValue 返回替换了第 i 个槽位的副本
func (s Selections) WithValue(i int, value string) Selections {
	out := make(Selections, len(s))
	copy(out, s)
	if i < len(out) {
		out[i] = value
	}
	return out
}

// OptionValueState 某个候选选项值的可购状态
type OptionValueState struct {
	Value string `json:"value"`
	State string `json:"state"` // available / sold_out / unavailable
}

// OptionAvailability 单个选项位置上所有候选值的可购状态
type OptionAvailability struct {
	Name   string             `json:"name"`
	Values []OptionValueState `json:"values"`
}

// PlanResolution 选中订阅计划的解析结果
type PlanResolution struct {
	Allocation *models.SellingPlanAllocation `json:"allocation"`
	Group      *models.SellingPlanGroup      `json:"group"`
	Plan       *models.SellingPlan           `json:"plan"`
}

// VariantService 变体解析服务
// 纯数据变换，对静态商品快照操作，不触网。
type VariantService struct{}

// NewVariantService 创建变体解析服务
func NewVariantService() *VariantService {
	return &VariantService{}
}

// ResolveVariant 按选项选择解析唯一匹配的变体
// 匹配规则：对每个已定义槽位做大小写敏感的精确相等比较。
// 空选择向量回退到首个变体（单变体商品没有选项控件）。
// 找不到匹配返回 (nil, nil)——这是合法的未命中而非错误。
func (s *VariantService) ResolveVariant(product *models.Product, selections Selections) (*models.Variant, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if len(selections) == 0 {
		return &product.Variants[0], nil
	}
	if len(selections) != len(product.Options) {
		return nil, fmt.Errorf("%w: got %d slots, product has %d options",
			ErrInvalidSelection, len(selections), len(product.Options))
	}

	for i := range product.Variants {
		if matchesSelections(&product.Variants[i], selections) {
			return &product.Variants[i], nil
		}
	}
	return nil, nil
}

// ComputeOptionAvailability 计算每个候选选项值的可购状态
// 对每个 (选项位置, 候选值)：把候选值代入当前选择向量（其余位置不动），
// 扫描全部变体分类为 available / sold_out / unavailable。
// 每次选项变化都重新计算，O(选项数 × 候选值数 × 变体数)，目录规模下可接受。
func (s *VariantService) ComputeOptionAvailability(product *models.Product, selections Selections) ([]OptionAvailability, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if len(selections) != len(product.Options) {
		return nil, fmt.Errorf("%w: got %d slots, product has %d options",
			ErrInvalidSelection, len(selections), len(product.Options))
	}

	result := make([]OptionAvailability, 0, len(product.Options))
	for i, option := range product.Options {
		availability := OptionAvailability{
			Name:   option.Name,
			Values: make([]OptionValueState, 0, len(option.Values)),
		}
		for _, candidate := range option.Values {
			hypothetical := selections.WithValue(i, candidate)
			availability.Values = append(availability.Values, OptionValueState{
				Value: candidate,
				State: classifySelection(product, hypothetical),
			})
		}
		result = append(result, availability)
	}
	return result, nil
}

// ResolveSellingPlan 解析变体上选中的订阅计划
// 计划 id 对该变体无效（如切换变体后的陈旧 id）返回 nil，不是错误。
func (s *VariantService) ResolveSellingPlan(product *models.Product, variant *models.Variant, planID int64) *PlanResolution {
	if product == nil || variant == nil || planID == 0 {
		return nil
	}
	var allocation *models.SellingPlanAllocation
	for i := range variant.SellingPlanAllocations {
		if variant.SellingPlanAllocations[i].SellingPlanID == planID {
			allocation = &variant.SellingPlanAllocations[i]
			break
		}
	}
	if allocation == nil {
		return nil
	}

	for gi := range product.SellingPlanGroups {
		group := &product.SellingPlanGroups[gi]
		for pi := range group.SellingPlans {
			if group.SellingPlans[pi].ID == planID {
				return &PlanResolution{
					Allocation: allocation,
					Group:      group,
					Plan:       &group.SellingPlans[pi],
				}
			}
		}
	}
	// 分配存在但分组缺失：目录不一致，按未命中处理
	return nil
}

func validateProduct(product *models.Product) error {
	if product == nil {
		return fmt.Errorf("%w: product is nil", ErrInvalidProduct)
	}
	if len(product.Variants) == 0 {
		return fmt.Errorf("%w: product %s has no variants", ErrInvalidProduct, product.Handle)
	}
	if product.Variants[0].Options == nil {
		return fmt.Errorf("%w: product %s variant options missing", ErrInvalidProduct, product.Handle)
	}
	return nil
}

// matchesSelections 变体是否满足所有已定义槽位
func matchesSelections(variant *models.Variant, selections Selections) bool {
	for i := range selections {
		if !selections.Defined(i) {
			continue
		}
		if i >= len(variant.Options) || variant.Options[i] != selections[i] {
			return false
		}
	}
	return true
}

// classifySelection 对假设选择向量分类
// 命中且有货 → available，命中但缺货 → sold_out，无变体命中 → unavailable。
func classifySelection(product *models.Product, selections Selections) string {
	exists := false
	for i := range product.Variants {
		if !matchesSelections(&product.Variants[i], selections) {
			continue
		}
		if product.Variants[i].Available {
			return constants.OptionValueAvailable
		}
		exists = true
	}
	if exists {
		return constants.OptionValueSoldOut
	}
	return constants.OptionValueUnavailable
}
