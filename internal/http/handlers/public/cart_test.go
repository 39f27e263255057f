package public

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storefront-bridge/internal/constants"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/provider"
	"github.com/storefront-bridge/internal/repository"
	"github.com/storefront-bridge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const handlerTestSecret = "0123456789abcdef0123456789abcdef"

func newSessionFixture(t *testing.T) (*Handler, repository.SessionRepository, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.StorefrontSession{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewSessionRepository(db)
	sessions := service.NewSessionService(repo, handlerTestSecret, 1, constants.CartModeDrawer)

	token, err := sessions.Issue("cart-token-old")
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	handler := New(&provider.Container{
		SessionRepo:    repo,
		SessionService: sessions,
	})
	return handler, repo, token.SessionID
}

func TestBindCartToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, sessionID := newSessionFixture(t)

	r := gin.New()
	r.PUT("/cart/token", func(c *gin.Context) {
		c.Set(constants.SessionContextKey, sessionID)
	}, handler.BindCartToken)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/cart/token", strings.NewReader(`{"cart_token": "cart-token-new"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status_code":0`) {
		t.Fatalf("bind failed: %d %s", w.Code, w.Body.String())
	}
	session, err := repo.GetBySessionID(sessionID)
	if err != nil || session == nil {
		t.Fatalf("load session failed: %v", err)
	}
	if session.CartToken != "cart-token-new" {
		t.Fatalf("expected rebound cart token, got %q", session.CartToken)
	}
}

func TestBindCartToken_RequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, sessionID := newSessionFixture(t)

	r := gin.New()
	r.PUT("/cart/token", func(c *gin.Context) {
		c.Set(constants.SessionContextKey, sessionID)
	}, handler.BindCartToken)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/cart/token", strings.NewReader(`{"cart_token": "  "}`))
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"status_code":400`) {
		t.Fatalf("expected bad request envelope, got %s", w.Body.String())
	}
}

func TestRespondCartError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 未映射的错误走统一包装后的兜底响应
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondCartError(c, errors.New("connection reset"))
	if !strings.Contains(w.Body.String(), `"status_code":500`) ||
		!strings.Contains(w.Body.String(), "cart operation failed") {
		t.Fatalf("unexpected fallback body: %s", w.Body.String())
	}

	// 变更错误携带作用域
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondCartError(c, &service.MutationError{Scope: "line:2", Message: "stock exceeded"})
	if !strings.Contains(w.Body.String(), `"scope":"line:2"`) ||
		!strings.Contains(w.Body.String(), "stock exceeded") {
		t.Fatalf("unexpected mutation error body: %s", w.Body.String())
	}

	// 哨兵错误按映射表返回
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondCartError(c, service.ErrCartBusy)
	if !strings.Contains(w.Body.String(), `"status_code":409`) {
		t.Fatalf("unexpected busy body: %s", w.Body.String())
	}
}
