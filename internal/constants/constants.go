package constants

// 选项可购状态常量
const (
	OptionValueAvailable   = "available"
	OptionValueSoldOut     = "sold_out"
	OptionValueUnavailable = "unavailable"
)

// 购物车控制器状态常量
const (
	CartStateIdle        = "idle"
	CartStateMutating    = "mutating"
	CartStateReconciling = "reconciling"
)

// 购物车展示模式常量
const (
	CartModePage   = "page"
	CartModeDrawer = "drawer"
)

// 折扣码检查结果常量
const (
	DiscountCheckApplied      = "applied"
	DiscountCheckDuplicate    = "duplicate"
	DiscountCheckRejected     = "rejected"
	DiscountCheckShippingOnly = "shipping_only"
)

// 购物车事件类型常量
const (
	CartEventRefreshed       = "cart_refreshed"
	CartEventItemAdded       = "item_added"
	CartEventItemAddWarning  = "item_add_warning"
	CartEventLineChanged     = "line_changed"
	CartEventLineError       = "line_error"
	CartEventDiscountApplied = "discount_applied"
	CartEventDiscountRemoved = "discount_removed"
	CartEventDiscountInfo    = "discount_info"
	CartEventDiscountError   = "discount_error"
	CartEventFormError       = "form_error"
)

// 队列与任务常量
const (
	QueueDefault = "default"

	TaskCartEventRecord    = "cart:event_record"
	TaskProductSnapRefresh = "product:snapshot_refresh"
)

// 会话常量
const (
	SessionTokenHeader = "X-Session-Token"
	SessionContextKey  = "session_id"
)
