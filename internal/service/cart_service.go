package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/storefront-bridge/internal/constants"
	"github.com/storefront-bridge/internal/logger"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/platform"
	"github.com/storefront-bridge/internal/queue"
	"github.com/storefront-bridge/internal/repository"

	"github.com/shopspring/decimal"
)

// CartGateway 商城平台购物车网关接口
// 解耦控制器与具体 HTTP 实现，platform.Client 是生产实现。
type CartGateway interface {
	FetchCartFragment(ctx context.Context, cartToken string) (*platform.CartFragment, error)
	FetchCartSnapshot(ctx context.Context, cartToken string) (*models.CartSnapshot, error)
	AddItem(ctx context.Context, cartToken string, form url.Values) (*platform.AddItemResult, error)
	ChangeLine(ctx context.Context, cartToken string, input platform.ChangeLineInput) (*models.CartSnapshot, error)
	UpdateDiscounts(ctx context.Context, cartToken string, csv string) (*models.CartSnapshot, error)
}

// MutationError 定位到触发控件的内联错误
// 只影响触发的表单/行项目，购物车其余部分保持可交互。
type MutationError struct {
	Scope   string `json:"scope"` // form / line:N / discount
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("cart mutation failed (%s): %s", e.Scope, e.Message)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// FormField 原始表单字段
// 同名字段可能重复（noscript 兜底输入），提交前需去重。
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AddItemInput 加购输入
type AddItemInput struct {
	Fields      []FormField `json:"fields"`
	MaxQuantity int         `json:"max_quantity"` // >0 时执行"已在购物车数量"上限检查
}

// AddItemOutcome 加购结果
type AddItemOutcome struct {
	Warning    string           `json:"warning,omitempty"`
	RedirectTo string           `json:"redirect_to,omitempty"` // page 模式跳转地址
	View       *models.CartView `json:"view,omitempty"`
}

// DiscountOutcome 折扣操作结果
type DiscountOutcome struct {
	Result  string           `json:"result"` // applied / duplicate / rejected / shipping_only / removed / superseded
	Code    string           `json:"code"`
	Message string           `json:"message,omitempty"`
	View    *models.CartView `json:"view,omitempty"`
}

// DiscountResultSuperseded 操作被更新的提交取代
const DiscountResultSuperseded = "superseded"

// DiscountResultRemoved 折扣码已移除
const DiscountResultRemoved = "removed"

// CartServiceOptions 控制器行为配置
type CartServiceOptions struct {
	Mode                  string // page / drawer
	FreeShippingThreshold string // 十进制金额，空字符串关闭
}

// CartService 购物车同步控制器
// 服务端购物车是唯一事实来源：每次变更成功后重新拉取权威片段并
// 整体替换视图模型，从不局部修补。
type CartService struct {
	gateway  CartGateway
	sessions repository.SessionRepository
	queue    *queue.Client
	notifier cartNotifier

	mode          string
	freeThreshold *models.Money

	mu     sync.Mutex
	states map[string]*cartState
}

// cartState 单个会话的控制器状态
type cartState struct {
	mu             sync.Mutex
	phase          string
	phaseOwner     string
	view           *models.CartView
	discountGen    uint64
	discountCancel context.CancelFunc
}

// NewCartService 创建购物车同步控制器
func NewCartService(gateway CartGateway, sessions repository.SessionRepository, queueClient *queue.Client, opts CartServiceOptions) *CartService {
	mode := strings.TrimSpace(opts.Mode)
	if mode != constants.CartModePage {
		mode = constants.CartModeDrawer
	}
	s := &CartService{
		gateway:  gateway,
		sessions: sessions,
		queue:    queueClient,
		mode:     mode,
		states:   make(map[string]*cartState),
	}
	if raw := strings.TrimSpace(opts.FreeShippingThreshold); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil && d.IsPositive() {
			threshold := models.NewMoneyFromDecimal(d)
			s.freeThreshold = &threshold
		}
	}
	return s
}

// Subscribe 订阅购物车事件
func (s *CartService) Subscribe(listener CartListener) {
	s.notifier.subscribe(listener)
}

// GetView 拉取权威购物车并整体替换视图
// 刷新同样占用变更互斥：reconcile 置入的 Reconciling 阶段由 endMutation 统一复位。
func (s *CartService) GetView(ctx context.Context, sessionID string) (*models.CartView, error) {
	session, state, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.beginMutation(state, "view"); err != nil {
		return nil, err
	}
	defer s.endMutation(state)

	snapshot, err := s.gateway.FetchCartSnapshot(ctx, session.CartToken)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sessionID, state, session, snapshot, 0)
}

// AddItem 加购
// 表单字段先按"同名保留最后一个非空值"去重，再提交表单编码请求。
// MaxQuantity 上限命中时返回警告结果，不发起变更请求也不算失败。
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*AddItemOutcome, error) {
	session, state, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}

	form := DedupeFormFields(input.Fields)
	variantID, _ := strconv.ParseInt(form.Get("id"), 10, 64)
	if variantID == 0 {
		return nil, &MutationError{Scope: "form", Message: "missing variant id", Err: ErrInvalidSelection}
	}
	quantity := 1
	if q, err := strconv.Atoi(form.Get("quantity")); err == nil && q > 0 {
		quantity = q
	}

	if err := s.beginMutation(state, "add"); err != nil {
		return nil, err
	}
	defer s.endMutation(state)

	if input.MaxQuantity > 0 {
		snapshot, err := s.gateway.FetchCartSnapshot(ctx, session.CartToken)
		if err != nil {
			return nil, s.mutationFailed(sessionID, "form", constants.CartEventFormError, err)
		}
		if snapshot.QuantityOf(variantID)+quantity > input.MaxQuantity {
			warning := fmt.Sprintf("you can only add %d of this item to your cart", input.MaxQuantity)
			s.notifier.notify(CartEvent{
				Type:      constants.CartEventItemAddWarning,
				SessionID: sessionID,
				Scope:     "form",
				Message:   warning,
			})
			s.audit(sessionID, constants.CartEventItemAddWarning, "form", map[string]interface{}{
				"variant_id": variantID,
				"max":        input.MaxQuantity,
			})
			return &AddItemOutcome{Warning: warning}, nil
		}
	}

	result, err := s.gateway.AddItem(ctx, session.CartToken, form)
	if err != nil {
		return nil, s.mutationFailed(sessionID, "form", constants.CartEventFormError, err)
	}

	view, err := s.reconcile(ctx, sessionID, state, session, nil, 0)
	if err != nil {
		return nil, s.mutationFailed(sessionID, "form", constants.CartEventFormError, err)
	}

	s.notifier.notify(CartEvent{
		Type:      constants.CartEventItemAdded,
		SessionID: sessionID,
		Scope:     "form",
		View:      view,
	})
	s.audit(sessionID, constants.CartEventItemAdded, "form", map[string]interface{}{
		"variant_id": result.VariantID,
		"quantity":   result.Quantity,
	})

	outcome := &AddItemOutcome{View: view}
	if s.mode == constants.CartModePage {
		outcome.RedirectTo = "/cart"
	}
	return outcome, nil
}

// ChangeLine 变更某一行的数量（数量 0 即移除）
// 失败时视图保持变更前状态（数量回滚），错误只定位到该行。
func (s *CartService) ChangeLine(ctx context.Context, sessionID string, line, quantity int) (*models.CartView, error) {
	if line < 1 {
		return nil, ErrInvalidLine
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	session, state, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.beginMutation(state, "line"); err != nil {
		return nil, err
	}
	defer s.endMutation(state)

	scope := fmt.Sprintf("line:%d", line)
	snapshot, err := s.gateway.ChangeLine(ctx, session.CartToken, platform.ChangeLineInput{
		Line:     line,
		Quantity: quantity,
	})
	if err != nil {
		return nil, s.mutationFailed(sessionID, scope, constants.CartEventLineError, err)
	}

	view, err := s.reconcile(ctx, sessionID, state, session, snapshot, 0)
	if err != nil {
		return nil, s.mutationFailed(sessionID, scope, constants.CartEventLineError, err)
	}

	s.notifier.notify(CartEvent{
		Type:      constants.CartEventLineChanged,
		SessionID: sessionID,
		Scope:     scope,
		Line:      line,
		View:      view,
	})
	s.audit(sessionID, constants.CartEventLineChanged, scope, map[string]interface{}{
		"line":     line,
		"quantity": quantity,
	})
	return view, nil
}

// ApplyDiscount 应用折扣码
// 先拉取平台权威折扣列表（本地缓存可能过期），大小写不敏感地查重，
// 然后把既有码与新码的并集以 CSV 一次性提交（平台端点是声明式替换）。
// 新的提交会取消仍在途的旧提交，乱序到达的旧响应绝不生效。
func (s *CartService) ApplyDiscount(ctx context.Context, sessionID, code string) (*DiscountOutcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyDiscount
	}
	session, state, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}

	opCtx, gen, err := s.beginDiscount(ctx, state)
	if err != nil {
		return nil, err
	}
	defer s.endDiscount(state, gen)

	snapshot, err := s.gateway.FetchCartSnapshot(opCtx, session.CartToken)
	if err != nil {
		return s.discountFailure(sessionID, code, err)
	}

	existing := canonicalCodes(snapshot.DiscountCodes)
	for _, existingCode := range existing {
		if strings.EqualFold(strings.TrimSpace(existingCode), code) {
			// 已应用过：提示重复，不发起任何网络变更
			outcome := &DiscountOutcome{
				Result:  constants.DiscountCheckDuplicate,
				Code:    code,
				Message: "discount code is already applied",
			}
			s.notifier.notify(CartEvent{
				Type:      constants.CartEventDiscountInfo,
				SessionID: sessionID,
				Scope:     "discount",
				Code:      code,
				Message:   outcome.Message,
			})
			return outcome, nil
		}
	}

	// 更新前快照一份可见折扣码，用于区分"被拒"与"生效但不渲染"（仅运费折扣）
	visibleBefore := s.visibleCodeSet(state)

	updated, err := s.gateway.UpdateDiscounts(opCtx, session.CartToken, strings.Join(append(existing, code), ","))
	if err != nil {
		return s.discountFailure(sessionID, code, err)
	}

	applied := findCode(updated.DiscountCodes, code)
	view, err := s.reconcile(opCtx, sessionID, state, session, updated, gen)
	if err != nil {
		return s.discountFailure(sessionID, code, err)
	}

	if applied == nil || !applied.Applicable {
		outcome := &DiscountOutcome{
			Result:  constants.DiscountCheckRejected,
			Code:    code,
			Message: "discount code cannot be applied to this cart",
			View:    view,
		}
		s.notifier.notify(CartEvent{
			Type:      constants.CartEventDiscountError,
			SessionID: sessionID,
			Scope:     "discount",
			Code:      code,
			Message:   outcome.Message,
		})
		s.audit(sessionID, constants.CartEventDiscountError, "discount", map[string]interface{}{"code": code})
		return outcome, nil
	}

	s.persistSessionCodes(session, updated.DiscountCodes)

	if !s.codeVisible(view, code) && !visibleBefore[strings.ToLower(code)] {
		// 服务端认可且在权威列表中，但片段没有渲染出新码：仅运费折扣
		outcome := &DiscountOutcome{
			Result:  constants.DiscountCheckShippingOnly,
			Code:    applied.Code,
			Message: "discount applies to shipping and will show at checkout",
			View:    view,
		}
		s.notifier.notify(CartEvent{
			Type:      constants.CartEventDiscountInfo,
			SessionID: sessionID,
			Scope:     "discount",
			Code:      applied.Code,
			Message:   outcome.Message,
		})
		s.audit(sessionID, constants.CartEventDiscountInfo, "discount", map[string]interface{}{"code": applied.Code, "shipping_only": true})
		return outcome, nil
	}

	outcome := &DiscountOutcome{
		Result: constants.DiscountCheckApplied,
		Code:   applied.Code,
		View:   view,
	}
	s.notifier.notify(CartEvent{
		Type:      constants.CartEventDiscountApplied,
		SessionID: sessionID,
		Scope:     "discount",
		Code:      applied.Code,
		View:      view,
	})
	s.audit(sessionID, constants.CartEventDiscountApplied, "discount", map[string]interface{}{"code": applied.Code})
	return outcome, nil
}

// RemoveDiscount 移除折扣码
// 同样先拉取权威列表，大小写不敏感地过滤目标码，
// 但提交的剩余码保留服务端的原始大小写。
func (s *CartService) RemoveDiscount(ctx context.Context, sessionID, code string) (*DiscountOutcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyDiscount
	}
	session, state, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}

	opCtx, gen, err := s.beginDiscount(ctx, state)
	if err != nil {
		return nil, err
	}
	defer s.endDiscount(state, gen)

	snapshot, err := s.gateway.FetchCartSnapshot(opCtx, session.CartToken)
	if err != nil {
		return s.discountFailure(sessionID, code, err)
	}

	existing := canonicalCodes(snapshot.DiscountCodes)
	remainder := make([]string, 0, len(existing))
	for _, existingCode := range existing {
		if strings.EqualFold(strings.TrimSpace(existingCode), code) {
			continue
		}
		remainder = append(remainder, existingCode)
	}

	updated, err := s.gateway.UpdateDiscounts(opCtx, session.CartToken, strings.Join(remainder, ","))
	if err != nil {
		return s.discountFailure(sessionID, code, err)
	}

	view, err := s.reconcile(opCtx, sessionID, state, session, updated, gen)
	if err != nil {
		return s.discountFailure(sessionID, code, err)
	}

	s.persistSessionCodes(session, updated.DiscountCodes)

	outcome := &DiscountOutcome{
		Result: DiscountResultRemoved,
		Code:   code,
		View:   view,
	}
	s.notifier.notify(CartEvent{
		Type:      constants.CartEventDiscountRemoved,
		SessionID: sessionID,
		Scope:     "discount",
		Code:      code,
		View:      view,
	})
	s.audit(sessionID, constants.CartEventDiscountRemoved, "discount", map[string]interface{}{"code": code})
	return outcome, nil
}

// CurrentView 返回当前视图模型（可能为 nil，表示尚未拉取过）
func (s *CartService) CurrentView(sessionID string) *models.CartView {
	state := s.stateFor(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.view
}

// reconcile 拉取权威购物车片段并整体替换视图
// gen 非 0 时校验折扣代次：被更新提交超越的旧响应即使到达也被丢弃。
func (s *CartService) reconcile(ctx context.Context, sessionID string, state *cartState, session *models.StorefrontSession, snapshot *models.CartSnapshot, gen uint64) (*models.CartView, error) {
	state.mu.Lock()
	state.phase = constants.CartStateReconciling
	state.mu.Unlock()

	fragment, err := s.gateway.FetchCartFragment(ctx, session.CartToken)
	if err != nil {
		return nil, err
	}

	view := s.buildView(fragment, snapshot)

	state.mu.Lock()
	if gen != 0 && gen != state.discountGen {
		state.mu.Unlock()
		// 已有更新的折扣提交，旧结果不可信
		return nil, context.Canceled
	}
	state.view = view
	state.mu.Unlock()

	s.notifier.notify(CartEvent{
		Type:      constants.CartEventRefreshed,
		SessionID: sessionID,
		View:      view,
	})
	return view, nil
}

// buildView 由片段（+ 可选权威快照）构建全新视图模型
func (s *CartService) buildView(fragment *platform.CartFragment, snapshot *models.CartSnapshot) *models.CartView {
	view := &models.CartView{
		Lines:        fragment.Lines,
		VisibleCodes: fragment.VisibleCodes,
		Subtotal:     fragment.Subtotal,
		ItemCount:    fragment.ItemCount,
		Empty:        fragment.Empty,
	}
	if snapshot != nil {
		view.DiscountCodes = snapshot.DiscountCodes
	}
	if s.freeThreshold != nil {
		ratio := view.Subtotal.Decimal.Div(s.freeThreshold.Decimal).Mul(decimal.NewFromInt(100))
		progress := int(ratio.IntPart())
		if progress > 100 {
			progress = 100
		}
		if progress < 0 {
			progress = 0
		}
		view.FreeShippingProgress = progress
	}
	return view
}

func (s *CartService) stateFor(sessionID string) *cartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID]
	if !ok {
		state = &cartState{phase: constants.CartStateIdle}
		s.states[sessionID] = state
	}
	return state
}

func (s *CartService) loadSession(sessionID string) (*models.StorefrontSession, *cartState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil, ErrSessionInvalid
	}
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionInvalid
	}
	return session, s.stateFor(sessionID), nil
}

// beginMutation 互斥进入 Mutating 阶段（浏览器里对应禁用全部购物车控件）
func (s *CartService) beginMutation(state *cartState, owner string) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.phase != constants.CartStateIdle {
		return ErrCartBusy
	}
	state.phase = constants.CartStateMutating
	state.phaseOwner = owner
	return nil
}

func (s *CartService) endMutation(state *cartState) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.phase = constants.CartStateIdle
	state.phaseOwner = ""
}

// beginDiscount 进入折扣提交；取消仍在途的旧提交并占据新代次
// 折扣提交之间不互斥：最新的用户意图才是权威。
func (s *CartService) beginDiscount(ctx context.Context, state *cartState) (context.Context, uint64, error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.phase != constants.CartStateIdle && state.phaseOwner != "discount" {
		return nil, 0, ErrCartBusy
	}
	if state.discountCancel != nil {
		state.discountCancel()
	}
	opCtx, cancel := context.WithCancel(ctx)
	state.discountCancel = cancel
	state.discountGen++
	state.phase = constants.CartStateMutating
	state.phaseOwner = "discount"
	return opCtx, state.discountGen, nil
}

func (s *CartService) endDiscount(state *cartState, gen uint64) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if gen != state.discountGen {
		// 更新的提交已接管状态机
		return
	}
	state.phase = constants.CartStateIdle
	state.phaseOwner = ""
}

// discountFailure 折扣操作失败的收尾
// 被取代（abort）不是失败：静默返回 superseded，不发事件不记日志噪音。
func (s *CartService) discountFailure(sessionID, code string, err error) (*DiscountOutcome, error) {
	if platform.IsAbort(err) {
		logger.Debugw("cart_discount_superseded", "session_id", sessionID, "code", code)
		return &DiscountOutcome{Result: DiscountResultSuperseded, Code: code}, nil
	}
	message := "could not update discounts, please try again"
	if pe, ok := platform.IsPlatformError(err); ok && pe.Message != "" {
		message = pe.Message
	}
	s.notifier.notify(CartEvent{
		Type:      constants.CartEventDiscountError,
		SessionID: sessionID,
		Scope:     "discount",
		Code:      code,
		Message:   message,
	})
	return nil, &MutationError{Scope: "discount", Message: message, Err: err}
}

// mutationFailed 包装加购/行变更失败为定位到触发控件的内联错误
func (s *CartService) mutationFailed(sessionID, scope, eventType string, err error) error {
	message := "something went wrong, please try again"
	if pe, ok := platform.IsPlatformError(err); ok && pe.Message != "" {
		message = pe.Message
	}
	s.notifier.notify(CartEvent{
		Type:      eventType,
		SessionID: sessionID,
		Scope:     scope,
		Message:   message,
	})
	return &MutationError{Scope: scope, Message: message, Err: err}
}

func (s *CartService) visibleCodeSet(state *cartState) map[string]bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	set := make(map[string]bool)
	if state.view == nil {
		return set
	}
	for _, code := range state.view.VisibleCodes {
		set[strings.ToLower(strings.TrimSpace(code))] = true
	}
	return set
}

func (s *CartService) codeVisible(view *models.CartView, code string) bool {
	if view == nil {
		return false
	}
	for _, visible := range view.VisibleCodes {
		if strings.EqualFold(strings.TrimSpace(visible), code) {
			return true
		}
	}
	return false
}

// persistSessionCodes 把权威折扣列表写回会话缓存（尽力而为）
func (s *CartService) persistSessionCodes(session *models.StorefrontSession, codes []models.DiscountCode) {
	session.SetCachedDiscountCodes(canonicalCodes(codes))
	if err := s.sessions.Update(session); err != nil {
		logger.Warnw("cart_session_codes_persist_failed", "session_id", session.SessionID, "error", err)
	}
}

// audit 异步记录购物车事件（尽力而为，失败只打日志）
func (s *CartService) audit(sessionID, eventType, scope string, payload map[string]interface{}) {
	if s.queue == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.queue.EnqueueCartEventRecord(queue.CartEventRecordPayload{
		SessionID: sessionID,
		EventType: eventType,
		Scope:     scope,
		Payload:   string(body),
	}); err != nil {
		logger.Warnw("cart_event_enqueue_failed", "session_id", sessionID, "event_type", eventType, "error", err)
	}
}

// DedupeFormFields 同名字段保留最后一个非空值
// noscript 兜底输入会和交互控件重名，最后出现的非空值代表用户意图。
func DedupeFormFields(fields []FormField) url.Values {
	form := url.Values{}
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		if field.Value == "" && form.Has(name) {
			continue
		}
		form.Set(name, field.Value)
	}
	return form
}

func canonicalCodes(codes []models.DiscountCode) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		trimmed := strings.TrimSpace(code.Code)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func findCode(codes []models.DiscountCode, code string) *models.DiscountCode {
	for i := range codes {
		if strings.EqualFold(strings.TrimSpace(codes[i].Code), code) {
			return &codes[i]
		}
	}
	return nil
}
