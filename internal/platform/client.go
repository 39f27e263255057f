package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storefront-bridge/internal/config"
	"github.com/storefront-bridge/internal/models"
)

// Client 商城平台网关
// 封装平台的购物车/商品 HTTP 契约，所有方法都接受 context 以支持取消。
type Client struct {
	httpClient       *http.Client
	baseURL          string
	cartSectionPath  string
	cartAddPath      string
	cartChangePath   string
	cartUpdatePath   string
	cartSnapshotPath string
	productPathTpl   string
}

// NewClient 创建平台网关
func NewClient(cfg *config.PlatformConfig) *Client {
	timeout := time.Duration(0)
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: timeout},
		baseURL:          strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		cartSectionPath:  cfg.CartSectionPath,
		cartAddPath:      cfg.CartAddPath,
		cartChangePath:   cfg.CartChangePath,
		cartUpdatePath:   cfg.CartUpdatePath,
		cartSnapshotPath: cfg.CartSnapshotPath,
		productPathTpl:   cfg.ProductPathTpl,
	}
}

// ChangeLineInput 行项目变更输入（行号从 1 开始，数量 0 表示移除）
type ChangeLineInput struct {
	Line     int `json:"line"`
	Quantity int `json:"quantity"`
}

// AddItemResult 加购结果
type AddItemResult struct {
	VariantID int64  `json:"variant_id"`
	Key       string `json:"key"`
	Quantity  int    `json:"quantity"`
}

// FetchCartFragment 拉取权威购物车 HTML 片段并解析
func (c *Client) FetchCartFragment(ctx context.Context, cartToken string) (*CartFragment, error) {
	body, err := c.do(ctx, http.MethodGet, c.cartSectionPath, cartToken, "", nil)
	if err != nil {
		return nil, err
	}
	return ParseCartFragment(bytes.NewReader(body))
}

// FetchCartSnapshot 拉取权威购物车 JSON 快照
// 折扣写操作前必须调用，本地折扣码缓存不可信。
func (c *Client) FetchCartSnapshot(ctx context.Context, cartToken string) (*models.CartSnapshot, error) {
	body, err := c.do(ctx, http.MethodGet, c.cartSnapshotPath, cartToken, "", nil)
	if err != nil {
		return nil, err
	}
	var snapshot models.CartSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: cart snapshot: %v", ErrMalformedPayload, err)
	}
	return &snapshot, nil
}

// AddItem 加购（表单编码）
func (c *Client) AddItem(ctx context.Context, cartToken string, form url.Values) (*AddItemResult, error) {
	payload := []byte(form.Encode())
	body, err := c.do(ctx, http.MethodPost, c.cartAddPath, cartToken, "application/x-www-form-urlencoded", payload)
	if err != nil {
		return nil, err
	}
	var result AddItemResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: add item: %v", ErrMalformedPayload, err)
	}
	return &result, nil
}

// ChangeLine 变更指定行的数量
func (c *Client) ChangeLine(ctx context.Context, cartToken string, input ChangeLineInput) (*models.CartSnapshot, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, c.cartChangePath, cartToken, "application/json", payload)
	if err != nil {
		return nil, err
	}
	var snapshot models.CartSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: change line: %v", ErrMalformedPayload, err)
	}
	return &snapshot, nil
}

// UpdateDiscounts 提交完整折扣码集合（CSV，声明式替换而非追加）
func (c *Client) UpdateDiscounts(ctx context.Context, cartToken string, csv string) (*models.CartSnapshot, error) {
	payload, err := json.Marshal(map[string]string{"discount": csv})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, c.cartUpdatePath, cartToken, "application/json", payload)
	if err != nil {
		return nil, err
	}
	var snapshot models.CartSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: update discounts: %v", ErrMalformedPayload, err)
	}
	return &snapshot, nil
}

// FetchProduct 拉取并解析商品 JSON
func (c *Client) FetchProduct(ctx context.Context, handle string) (*models.Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrMalformedProduct)
	}
	path := fmt.Sprintf(c.productPathTpl, url.PathEscape(handle))
	body, err := c.do(ctx, http.MethodGet, path, "", "", nil)
	if err != nil {
		return nil, err
	}
	return ParseProduct(body)
}

func (c *Client) do(ctx context.Context, method, path, cartToken, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/html")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cartToken != "" {
		req.Header.Set("Cart-Token", cartToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

// decodeError 将非 2xx 响应转换为平台业务错误
// 平台的错误体可能是 {status,message,description} 或 {errors:...}。
func decodeError(status int, body []byte) error {
	var pe Error
	if err := json.Unmarshal(body, &pe); err == nil && pe.Message != "" {
		pe.Status = status
		return &pe
	}
	var errBody struct {
		Errors interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Errors != nil {
		return &Error{Status: status, Message: fmt.Sprintf("%v", errBody.Errors)}
	}
	return &Error{Status: status, Message: http.StatusText(status)}
}
