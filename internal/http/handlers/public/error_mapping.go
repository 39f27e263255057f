package public

import (
	"errors"

	"github.com/storefront-bridge/internal/http/response"
	"github.com/storefront-bridge/internal/platform"
	"github.com/storefront-bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 业务错误到接口错误响应的映射关系
type mappedHandlerError struct {
	target  error
	code    int
	message string
}

var cartCommonErrorRules = []mappedHandlerError{
	{target: service.ErrSessionInvalid, code: response.CodeUnauthorized, message: "session invalid or expired"},
	{target: service.ErrCartBusy, code: response.CodeConflict, message: "another cart update is in progress"},
	{target: service.ErrInvalidLine, code: response.CodeBadRequest, message: "invalid line number"},
	{target: service.ErrInvalidQuantity, code: response.CodeBadRequest, message: "invalid quantity"},
	{target: service.ErrEmptyDiscount, code: response.CodeBadRequest, message: "discount code required"},
}

var catalogCommonErrorRules = []mappedHandlerError{
	{target: platform.ErrMalformedProduct, code: response.CodeUpstream, message: "product payload malformed"},
	{target: service.ErrInvalidProduct, code: response.CodeUpstream, message: "product catalog invalid"},
	{target: service.ErrInvalidSelection, code: response.CodeBadRequest, message: "invalid option selection"},
}

// respondCartError 映射购物车错误
// MutationError 携带作用域信息（触发的表单/行项目），随响应体返回，
// 前端据此把错误渲染在触发控件旁而不是全局弹窗。
func respondCartError(c *gin.Context, err error) {
	var mutationErr *service.MutationError
	if errors.As(err, &mutationErr) {
		response.ErrorWithData(c, response.CodeUpstream, mutationErr.Message, gin.H{
			"scope": mutationErr.Scope,
		})
		return
	}
	respondWithMappedError(c, err, cartCommonErrorRules, response.CodeInternal, "cart operation failed")
}

// respondCatalogError 映射商品目录错误
func respondCatalogError(c *gin.Context, err error) {
	if pe, ok := platform.IsPlatformError(err); ok {
		if pe.Status == 404 {
			response.NotFound(c, "product not found")
			return
		}
		response.Error(c, response.CodeUpstream, pe.Message)
		return
	}
	respondWithMappedError(c, err, catalogCommonErrorRules, response.CodeInternal, "catalog operation failed")
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMessage string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			response.Error(c, rule.code, rule.message)
			return
		}
	}
	// 未映射的错误统一包装后记录日志再返回
	appErr := response.WrapError(fallbackCode, fallbackMessage, err)
	if err != nil {
		requestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}
