package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/storefront-bridge/internal/constants"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/platform"
	"github.com/storefront-bridge/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeGateway 内存购物车网关，按需覆盖各端点行为
type fakeGateway struct {
	mu sync.Mutex

	fragment *platform.CartFragment
	snapshot *models.CartSnapshot

	fetchFragmentFn   func(ctx context.Context, cartToken string) (*platform.CartFragment, error)
	fetchSnapshotFn   func(ctx context.Context, cartToken string) (*models.CartSnapshot, error)
	addItemFn         func(ctx context.Context, cartToken string, form url.Values) (*platform.AddItemResult, error)
	changeLineFn      func(ctx context.Context, cartToken string, input platform.ChangeLineInput) (*models.CartSnapshot, error)
	updateDiscountsFn func(ctx context.Context, cartToken string, csv string) (*models.CartSnapshot, error)

	addItemCalls    []url.Values
	discountSubmits []string
}

func (g *fakeGateway) FetchCartFragment(ctx context.Context, cartToken string) (*platform.CartFragment, error) {
	if g.fetchFragmentFn != nil {
		return g.fetchFragmentFn(ctx, cartToken)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fragment == nil {
		return &platform.CartFragment{Empty: true}, nil
	}
	return g.fragment, nil
}

func (g *fakeGateway) FetchCartSnapshot(ctx context.Context, cartToken string) (*models.CartSnapshot, error) {
	if g.fetchSnapshotFn != nil {
		return g.fetchSnapshotFn(ctx, cartToken)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.snapshot == nil {
		return &models.CartSnapshot{Token: cartToken}, nil
	}
	return g.snapshot, nil
}

func (g *fakeGateway) AddItem(ctx context.Context, cartToken string, form url.Values) (*platform.AddItemResult, error) {
	g.mu.Lock()
	g.addItemCalls = append(g.addItemCalls, form)
	g.mu.Unlock()
	if g.addItemFn != nil {
		return g.addItemFn(ctx, cartToken, form)
	}
	return &platform.AddItemResult{Quantity: 1}, nil
}

func (g *fakeGateway) ChangeLine(ctx context.Context, cartToken string, input platform.ChangeLineInput) (*models.CartSnapshot, error) {
	if g.changeLineFn != nil {
		return g.changeLineFn(ctx, cartToken, input)
	}
	return g.FetchCartSnapshot(ctx, cartToken)
}

func (g *fakeGateway) UpdateDiscounts(ctx context.Context, cartToken string, csv string) (*models.CartSnapshot, error) {
	g.mu.Lock()
	g.discountSubmits = append(g.discountSubmits, csv)
	g.mu.Unlock()
	if g.updateDiscountsFn != nil {
		return g.updateDiscountsFn(ctx, cartToken, csv)
	}
	return g.FetchCartSnapshot(ctx, cartToken)
}

func newCartSessionRepo(t *testing.T) repository.SessionRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.StorefrontSession{}); err != nil {
		t.Fatalf("auto migrate session failed: %v", err)
	}
	return repository.NewSessionRepository(db)
}

func newCartTestService(t *testing.T, gateway CartGateway, sessionID string, opts CartServiceOptions) *CartService {
	t.Helper()

	repo := newCartSessionRepo(t)
	session := &models.StorefrontSession{
		SessionID:  sessionID,
		CartToken:  "cart-token-1",
		CartMode:   constants.CartModeDrawer,
		LastSeenAt: time.Now(),
	}
	if err := repo.Create(session); err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return NewCartService(gateway, repo, nil, opts)
}

func testFragment(lines []models.CartLine, visibleCodes []string, subtotalCents int64) *platform.CartFragment {
	fragment := &platform.CartFragment{
		Lines:        lines,
		VisibleCodes: visibleCodes,
		Subtotal:     models.NewMoneyFromMinorUnits(subtotalCents),
		Empty:        len(lines) == 0,
	}
	for _, line := range lines {
		fragment.ItemCount += line.Quantity
	}
	return fragment
}

func TestDedupeFormFields_KeepsLastNonEmpty(t *testing.T) {
	form := DedupeFormFields([]FormField{
		{Name: "id", Value: "101"},
		{Name: "quantity", Value: "2"},
		{Name: "id", Value: "104"},
		{Name: "id", Value: ""}, // noscript 兜底的空值不覆盖
		{Name: "", Value: "ignored"},
		{Name: "properties[Note]", Value: ""},
	})

	if got := form.Get("id"); got != "104" {
		t.Fatalf("expected id=104, got %q", got)
	}
	if got := form.Get("quantity"); got != "2" {
		t.Fatalf("expected quantity=2, got %q", got)
	}
	// 首次出现的空值保留（字段存在但无值）
	if !form.Has("properties[Note]") {
		t.Fatal("expected empty-valued field to be kept on first occurrence")
	}
}

func TestAddItem_MissingVariantID(t *testing.T) {
	gateway := &fakeGateway{}
	svc := newCartTestService(t, gateway, "sess-add-novariant", CartServiceOptions{})

	_, err := svc.AddItem(context.Background(), "sess-add-novariant", AddItemInput{
		Fields: []FormField{{Name: "quantity", Value: "1"}},
	})
	var mutationErr *MutationError
	if !errors.As(err, &mutationErr) {
		t.Fatalf("expected MutationError, got %v", err)
	}
	if mutationErr.Scope != "form" {
		t.Fatalf("expected scope form, got %s", mutationErr.Scope)
	}
	if len(gateway.addItemCalls) != 0 {
		t.Fatal("gateway must not be called without a variant id")
	}
}

func TestAddItem_MaxQuantityReturnsWarningWithoutMutation(t *testing.T) {
	gateway := &fakeGateway{
		snapshot: &models.CartSnapshot{
			Token: "cart-token-1",
			Items: []models.SnapshotItem{{Key: "k1", VariantID: 101, Quantity: 2}},
		},
	}
	svc := newCartTestService(t, gateway, "sess-add-max", CartServiceOptions{})

	outcome, err := svc.AddItem(context.Background(), "sess-add-max", AddItemInput{
		Fields: []FormField{
			{Name: "id", Value: "101"},
			{Name: "quantity", Value: "2"},
		},
		MaxQuantity: 3,
	})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if outcome.Warning == "" {
		t.Fatal("expected warning outcome when cart quantity would exceed max")
	}
	if len(gateway.addItemCalls) != 0 {
		t.Fatal("no add request may be sent when the max check trips")
	}
}

func TestAddItem_SuccessReplacesViewAndRedirectsInPageMode(t *testing.T) {
	gateway := &fakeGateway{
		fragment: testFragment([]models.CartLine{
			{Line: 1, Key: "k1", VariantID: 101, Title: "Trail Shirt", Quantity: 1, LinePrice: models.NewMoneyFromMinorUnits(2000)},
		}, nil, 2000),
	}
	svc := newCartTestService(t, gateway, "sess-add-ok", CartServiceOptions{Mode: constants.CartModePage})

	outcome, err := svc.AddItem(context.Background(), "sess-add-ok", AddItemInput{
		Fields: []FormField{
			{Name: "id", Value: "101"},
			{Name: "quantity", Value: "1"},
		},
	})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if outcome.RedirectTo != "/cart" {
		t.Fatalf("expected /cart redirect in page mode, got %q", outcome.RedirectTo)
	}
	if outcome.View == nil || outcome.View.ItemCount != 1 {
		t.Fatalf("unexpected view: %+v", outcome.View)
	}
	if view := svc.CurrentView("sess-add-ok"); view != outcome.View {
		t.Fatal("controller must hold the replaced view model")
	}
}

func TestChangeLine_Validation(t *testing.T) {
	svc := newCartTestService(t, &fakeGateway{}, "sess-line-valid", CartServiceOptions{})

	if _, err := svc.ChangeLine(context.Background(), "sess-line-valid", 0, 1); !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}
	if _, err := svc.ChangeLine(context.Background(), "sess-line-valid", 1, -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestChangeLine_ZeroQuantityRemovesLine(t *testing.T) {
	gateway := &fakeGateway{}
	// 删除第 1 行后，服务端返回重排过行号的片段
	gateway.changeLineFn = func(_ context.Context, cartToken string, input platform.ChangeLineInput) (*models.CartSnapshot, error) {
		if input.Line != 1 || input.Quantity != 0 {
			t.Fatalf("unexpected change input: %+v", input)
		}
		gateway.mu.Lock()
		gateway.fragment = testFragment([]models.CartLine{
			{Line: 1, Key: "k2", VariantID: 104, Title: "Trail Shirt", Quantity: 2, LinePrice: models.NewMoneyFromMinorUnits(4400)},
		}, nil, 4400)
		gateway.mu.Unlock()
		return &models.CartSnapshot{Token: cartToken, ItemCount: 2}, nil
	}
	svc := newCartTestService(t, gateway, "sess-line-remove", CartServiceOptions{})

	view, err := svc.ChangeLine(context.Background(), "sess-line-remove", 1, 0)
	if err != nil {
		t.Fatalf("change line failed: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Key != "k2" || view.Lines[0].Line != 1 {
		t.Fatalf("expected renumbered single line k2, got %+v", view.Lines)
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("44.00")) {
		t.Fatalf("expected subtotal 44.00, got %s", view.Subtotal.String())
	}
}

func TestChangeLine_FailureKeepsPriorView(t *testing.T) {
	gateway := &fakeGateway{
		fragment: testFragment([]models.CartLine{
			{Line: 1, Key: "k1", VariantID: 101, Quantity: 1, LinePrice: models.NewMoneyFromMinorUnits(2000)},
		}, nil, 2000),
	}
	svc := newCartTestService(t, gateway, "sess-line-fail", CartServiceOptions{})

	if _, err := svc.GetView(context.Background(), "sess-line-fail"); err != nil {
		t.Fatalf("get view failed: %v", err)
	}
	before := svc.CurrentView("sess-line-fail")

	gateway.changeLineFn = func(context.Context, string, platform.ChangeLineInput) (*models.CartSnapshot, error) {
		return nil, &platform.Error{Status: 422, Message: "stock exceeded"}
	}
	_, err := svc.ChangeLine(context.Background(), "sess-line-fail", 1, 5)
	var mutationErr *MutationError
	if !errors.As(err, &mutationErr) {
		t.Fatalf("expected MutationError, got %v", err)
	}
	if mutationErr.Scope != "line:1" {
		t.Fatalf("expected scope line:1, got %s", mutationErr.Scope)
	}
	if mutationErr.Message != "stock exceeded" {
		t.Fatalf("expected platform message passthrough, got %q", mutationErr.Message)
	}
	if svc.CurrentView("sess-line-fail") != before {
		t.Fatal("failed mutation must not touch the view model")
	}
}

func TestGetView_LeavesControllerIdle(t *testing.T) {
	gateway := &fakeGateway{
		fragment: testFragment([]models.CartLine{
			{Line: 1, Key: "k1", VariantID: 101, Quantity: 1, LinePrice: models.NewMoneyFromMinorUnits(2000)},
		}, nil, 2000),
	}
	svc := newCartTestService(t, gateway, "sess-view-idle", CartServiceOptions{})

	// 连续两次刷新都必须成功，阶段每次都要回到 Idle
	for i := 0; i < 2; i++ {
		if _, err := svc.GetView(context.Background(), "sess-view-idle"); err != nil {
			t.Fatalf("get view %d failed: %v", i, err)
		}
	}

	// 刷新之后的变更不允许被互斥拒绝
	outcome, err := svc.AddItem(context.Background(), "sess-view-idle", AddItemInput{
		Fields: []FormField{{Name: "id", Value: "101"}, {Name: "quantity", Value: "1"}},
	})
	if err != nil {
		t.Fatalf("add item after view refresh failed: %v", err)
	}
	if outcome == nil || outcome.Warning != "" {
		t.Fatalf("expected clean add outcome, got %+v", outcome)
	}
	if _, err := svc.ChangeLine(context.Background(), "sess-view-idle", 1, 2); err != nil {
		t.Fatalf("change line after view refresh failed: %v", err)
	}
}

func TestCartBusyGuard(t *testing.T) {
	gateway := &fakeGateway{}
	started := make(chan struct{})
	release := make(chan struct{})
	gateway.addItemFn = func(context.Context, string, url.Values) (*platform.AddItemResult, error) {
		close(started)
		<-release
		return &platform.AddItemResult{Quantity: 1}, nil
	}
	svc := newCartTestService(t, gateway, "sess-busy", CartServiceOptions{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddItem(context.Background(), "sess-busy", AddItemInput{
			Fields: []FormField{{Name: "id", Value: "101"}},
		})
		done <- err
	}()
	<-started

	if _, err := svc.ChangeLine(context.Background(), "sess-busy", 1, 2); !errors.Is(err, ErrCartBusy) {
		t.Fatalf("expected ErrCartBusy while another mutation is in flight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first mutation failed: %v", err)
	}

	// 首个变更完成后控制器回到空闲态
	if _, err := svc.ChangeLine(context.Background(), "sess-busy", 1, 2); err != nil {
		t.Fatalf("mutation after idle failed: %v", err)
	}
}

func TestApplyDiscount_DuplicateCaseInsensitive(t *testing.T) {
	gateway := &fakeGateway{
		snapshot: &models.CartSnapshot{
			Token:         "cart-token-1",
			DiscountCodes: []models.DiscountCode{{Code: "SAVE10", Applicable: true}},
		},
	}
	svc := newCartTestService(t, gateway, "sess-disc-dup", CartServiceOptions{})

	outcome, err := svc.ApplyDiscount(context.Background(), "sess-disc-dup", "save10")
	if err != nil {
		t.Fatalf("apply discount failed: %v", err)
	}
	if outcome.Result != constants.DiscountCheckDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome.Result)
	}
	if len(gateway.discountSubmits) != 0 {
		t.Fatal("duplicate must not cause a network mutation")
	}
}

func TestApplyDiscount_SubmitsUnionCSV(t *testing.T) {
	gateway := &fakeGateway{
		snapshot: &models.CartSnapshot{
			Token:         "cart-token-1",
			DiscountCodes: []models.DiscountCode{{Code: "EXISTING", Applicable: true}},
		},
	}
	gateway.updateDiscountsFn = func(_ context.Context, cartToken string, csv string) (*models.CartSnapshot, error) {
		return &models.CartSnapshot{
			Token: cartToken,
			DiscountCodes: []models.DiscountCode{
				{Code: "EXISTING", Applicable: true},
				{Code: "SAVE10", Applicable: true},
			},
		}, nil
	}
	gateway.fragment = testFragment(nil, []string{"EXISTING", "SAVE10"}, 0)
	svc := newCartTestService(t, gateway, "sess-disc-union", CartServiceOptions{})

	outcome, err := svc.ApplyDiscount(context.Background(), "sess-disc-union", "SAVE10")
	if err != nil {
		t.Fatalf("apply discount failed: %v", err)
	}
	if outcome.Result != constants.DiscountCheckApplied {
		t.Fatalf("expected applied, got %s", outcome.Result)
	}
	if len(gateway.discountSubmits) != 1 || gateway.discountSubmits[0] != "EXISTING,SAVE10" {
		t.Fatalf("expected union CSV submit, got %v", gateway.discountSubmits)
	}
	if outcome.View == nil || len(outcome.View.DiscountCodes) != 2 {
		t.Fatalf("expected authoritative codes on view, got %+v", outcome.View)
	}
}

func TestApplyDiscount_Rejected(t *testing.T) {
	gateway := &fakeGateway{}
	gateway.updateDiscountsFn = func(_ context.Context, cartToken string, _ string) (*models.CartSnapshot, error) {
		// 服务端接受请求但判定折扣码不适用
		return &models.CartSnapshot{
			Token:         cartToken,
			DiscountCodes: []models.DiscountCode{{Code: "NOPE", Applicable: false}},
		}, nil
	}
	svc := newCartTestService(t, gateway, "sess-disc-reject", CartServiceOptions{})

	outcome, err := svc.ApplyDiscount(context.Background(), "sess-disc-reject", "NOPE")
	if err != nil {
		t.Fatalf("apply discount failed: %v", err)
	}
	if outcome.Result != constants.DiscountCheckRejected {
		t.Fatalf("expected rejected, got %s", outcome.Result)
	}
}

func TestApplyDiscount_ShippingOnlyDetection(t *testing.T) {
	gateway := &fakeGateway{}
	gateway.updateDiscountsFn = func(_ context.Context, cartToken string, _ string) (*models.CartSnapshot, error) {
		return &models.CartSnapshot{
			Token:         cartToken,
			DiscountCodes: []models.DiscountCode{{Code: "FREESHIP", Applicable: true}},
		}, nil
	}
	// 片段不渲染该码：服务端认可但不出现在行级折扣里
	gateway.fragment = testFragment([]models.CartLine{
		{Line: 1, Key: "k1", VariantID: 101, Quantity: 1, LinePrice: models.NewMoneyFromMinorUnits(2000)},
	}, nil, 2000)
	svc := newCartTestService(t, gateway, "sess-disc-ship", CartServiceOptions{})

	outcome, err := svc.ApplyDiscount(context.Background(), "sess-disc-ship", "FREESHIP")
	if err != nil {
		t.Fatalf("apply discount failed: %v", err)
	}
	if outcome.Result != constants.DiscountCheckShippingOnly {
		t.Fatalf("expected shipping_only, got %s", outcome.Result)
	}
}

func TestApplyDiscount_SupersededByNewerSubmission(t *testing.T) {
	gateway := &fakeGateway{}
	firstInFlight := make(chan struct{})
	gateway.updateDiscountsFn = func(ctx context.Context, cartToken string, csv string) (*models.CartSnapshot, error) {
		if csv == "OLD" {
			close(firstInFlight)
			// 挂起直到被更新的提交取消
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &models.CartSnapshot{
			Token:         cartToken,
			DiscountCodes: []models.DiscountCode{{Code: "NEW", Applicable: true}},
		}, nil
	}
	gateway.fragment = testFragment(nil, []string{"NEW"}, 0)
	svc := newCartTestService(t, gateway, "sess-disc-race", CartServiceOptions{})

	firstDone := make(chan *DiscountOutcome, 1)
	go func() {
		outcome, err := svc.ApplyDiscount(context.Background(), "sess-disc-race", "OLD")
		if err != nil {
			t.Errorf("superseded submission must not surface an error: %v", err)
		}
		firstDone <- outcome
	}()
	<-firstInFlight

	second, err := svc.ApplyDiscount(context.Background(), "sess-disc-race", "NEW")
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if second.Result != constants.DiscountCheckApplied {
		t.Fatalf("expected newer submission applied, got %s", second.Result)
	}

	first := <-firstDone
	if first == nil || first.Result != DiscountResultSuperseded {
		t.Fatalf("expected first submission superseded, got %+v", first)
	}

	// 最终视图反映最新提交，旧响应绝不回写
	view := svc.CurrentView("sess-disc-race")
	if view == nil || len(view.DiscountCodes) != 1 || view.DiscountCodes[0].Code != "NEW" {
		t.Fatalf("expected view from newest submission, got %+v", view)
	}
}

func TestRemoveDiscount_CaseInsensitiveKeepsCanonicalRemainder(t *testing.T) {
	gateway := &fakeGateway{
		snapshot: &models.CartSnapshot{
			Token: "cart-token-1",
			DiscountCodes: []models.DiscountCode{
				{Code: "Save10", Applicable: true},
				{Code: "WELCOME", Applicable: true},
			},
		},
	}
	gateway.updateDiscountsFn = func(_ context.Context, cartToken string, csv string) (*models.CartSnapshot, error) {
		return &models.CartSnapshot{
			Token:         cartToken,
			DiscountCodes: []models.DiscountCode{{Code: "WELCOME", Applicable: true}},
		}, nil
	}
	svc := newCartTestService(t, gateway, "sess-disc-remove", CartServiceOptions{})

	outcome, err := svc.RemoveDiscount(context.Background(), "sess-disc-remove", "SAVE10")
	if err != nil {
		t.Fatalf("remove discount failed: %v", err)
	}
	if outcome.Result != DiscountResultRemoved {
		t.Fatalf("expected removed, got %s", outcome.Result)
	}
	// 目标码大小写不敏感剔除，剩余码保留服务端原始大小写
	if len(gateway.discountSubmits) != 1 || gateway.discountSubmits[0] != "WELCOME" {
		t.Fatalf("expected canonical remainder submit, got %v", gateway.discountSubmits)
	}
}

func TestGetView_FreeShippingProgress(t *testing.T) {
	gateway := &fakeGateway{
		fragment: testFragment([]models.CartLine{
			{Line: 1, Key: "k1", VariantID: 101, Quantity: 2, LinePrice: models.NewMoneyFromMinorUnits(5000)},
		}, nil, 5000),
	}
	svc := newCartTestService(t, gateway, "sess-freeship", CartServiceOptions{FreeShippingThreshold: "100.00"})

	view, err := svc.GetView(context.Background(), "sess-freeship")
	if err != nil {
		t.Fatalf("get view failed: %v", err)
	}
	if view.FreeShippingProgress != 50 {
		t.Fatalf("expected 50%% progress, got %d", view.FreeShippingProgress)
	}

	gateway.mu.Lock()
	gateway.fragment = testFragment([]models.CartLine{
		{Line: 1, Key: "k1", VariantID: 101, Quantity: 8, LinePrice: models.NewMoneyFromMinorUnits(20000)},
	}, nil, 20000)
	gateway.mu.Unlock()

	view, err = svc.GetView(context.Background(), "sess-freeship")
	if err != nil {
		t.Fatalf("get view failed: %v", err)
	}
	if view.FreeShippingProgress != 100 {
		t.Fatalf("progress must clamp at 100, got %d", view.FreeShippingProgress)
	}
}

func TestCartService_UnknownSession(t *testing.T) {
	svc := newCartTestService(t, &fakeGateway{}, "sess-known", CartServiceOptions{})

	if _, err := svc.GetView(context.Background(), "sess-unknown"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}
