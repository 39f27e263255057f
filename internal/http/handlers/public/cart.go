package public

import (
	"strconv"
	"strings"

	"github.com/storefront-bridge/internal/http/response"
	"github.com/storefront-bridge/internal/repository"
	"github.com/storefront-bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionRequest 会话签发请求
type SessionRequest struct {
	CartToken string `json:"cart_token"`
}

// AddItemRequest 加购请求
type AddItemRequest struct {
	Fields      []service.FormField `json:"fields" binding:"required"`
	MaxQuantity int                 `json:"max_quantity"`
}

// ChangeLineRequest 行项目变更请求
type ChangeLineRequest struct {
	Line     int  `json:"line" binding:"required"`
	Quantity *int `json:"quantity" binding:"required"` // 指针以区分 0（移除）与缺失
}

// DiscountRequest 折扣码请求
type DiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

// CreateSession 签发店面会话令牌
func (h *Handler) CreateSession(c *gin.Context) {
	var req SessionRequest
	_ = c.ShouldBindJSON(&req)

	token, err := h.SessionService.Issue(req.CartToken)
	if err != nil {
		response.Error(c, response.CodeInternal, "session issue failed")
		return
	}
	response.Success(c, token)
}

// BindCartToken 绑定/更新会话关联的平台购物车令牌
// 平台侧购物车合并或重建后，前端凭新令牌重新绑定。
func (h *Handler) BindCartToken(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CartToken) == "" {
		response.BadRequest(c, "cart token required")
		return
	}

	if err := h.SessionService.BindCartToken(sessionID, req.CartToken); err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, nil)
}

// GetCart 拉取权威购物车视图
func (h *Handler) GetCart(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	view, err := h.CartService.GetView(c.Request.Context(), sessionID)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// AddCartItem 加购
func (h *Handler) AddCartItem(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	outcome, err := h.CartService.AddItem(c.Request.Context(), sessionID, service.AddItemInput{
		Fields:      req.Fields,
		MaxQuantity: req.MaxQuantity,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}
	if outcome.Warning != "" {
		response.SuccessWithMsg(c, outcome.Warning, outcome)
		return
	}
	response.Success(c, outcome)
}

// ChangeCartLine 变更行项目数量（数量 0 即移除）
func (h *Handler) ChangeCartLine(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	var req ChangeLineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	view, err := h.CartService.ChangeLine(c.Request.Context(), sessionID, req.Line, *req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// ApplyDiscount 应用折扣码
func (h *Handler) ApplyDiscount(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	var req DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	outcome, err := h.CartService.ApplyDiscount(c.Request.Context(), sessionID, req.Code)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, outcome)
}

// RemoveDiscount 移除折扣码
func (h *Handler) RemoveDiscount(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	code := c.Param("code")

	outcome, err := h.CartService.RemoveDiscount(c.Request.Context(), sessionID, code)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, outcome)
}

// ListCartEvents 查询会话的购物车事件（调试用途）
func (h *Handler) ListCartEvents(c *gin.Context) {
	sessionID, ok := getSessionID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.CartEventRepo.List(repository.CartEventListFilter{
		SessionID: sessionID,
		EventType: c.Query("type"),
		Limit:     limit,
	})
	if err != nil {
		response.Error(c, response.CodeInternal, "event query failed")
		return
	}
	response.Success(c, gin.H{"events": events})
}
