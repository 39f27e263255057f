package public

import (
	"github.com/storefront-bridge/internal/http/response"
	"github.com/storefront-bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// ResolveRequest 变体解析请求
type ResolveRequest struct {
	Selections  []string `json:"selections"`
	Quantity    int      `json:"quantity"`
	SellingPlan int64    `json:"selling_plan"`
}

// GetProduct 获取商品快照
func (h *Handler) GetProduct(c *gin.Context) {
	handle := c.Param("handle")
	product, err := h.CatalogService.GetProduct(c.Request.Context(), handle)
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, product)
}

// ResolveVariant 按选项选择解析变体与派生价格状态
func (h *Handler) ResolveVariant(c *gin.Context) {
	handle := c.Param("handle")
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	product, err := h.CatalogService.GetProduct(c.Request.Context(), handle)
	if err != nil {
		respondCatalogError(c, err)
		return
	}

	variant, err := h.VariantService.ResolveVariant(product, service.Selections(req.Selections))
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	if variant == nil {
		// 合法的未命中：前端渲染 unavailable 态
		response.Success(c, gin.H{"variant": nil})
		return
	}

	plan := h.VariantService.ResolveSellingPlan(product, variant, req.SellingPlan)
	price := service.ComputePriceState(variant, plan, req.Quantity)

	response.Success(c, gin.H{
		"variant": variant,
		"plan":    plan,
		"price":   price,
	})
}

// OptionAvailability 计算每个候选选项值的可购状态
func (h *Handler) OptionAvailability(c *gin.Context) {
	handle := c.Param("handle")
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	product, err := h.CatalogService.GetProduct(c.Request.Context(), handle)
	if err != nil {
		respondCatalogError(c, err)
		return
	}

	availability, err := h.VariantService.ComputeOptionAvailability(product, service.Selections(req.Selections))
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, gin.H{"options": availability})
}
