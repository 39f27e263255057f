package platform

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/storefront-bridge/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// CartFragment 解析后的购物车片段
// 片段是服务端渲染的 HTML，行项目与合计通过 data 属性携带。
type CartFragment struct {
	Lines        []models.CartLine
	VisibleCodes []string // 片段中实际渲染出的折扣码（仅影响运费的码不会出现）
	Subtotal     models.Money
	ItemCount    int
	Empty        bool
}

// ParseCartFragment 解析购物车 HTML 片段
func ParseCartFragment(r io.Reader) (*CartFragment, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cart fragment: %v", ErrMalformedPayload, err)
	}

	root := doc.Find("[data-cart-items]").First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("%w: cart fragment: missing [data-cart-items] root", ErrMalformedPayload)
	}

	fragment := &CartFragment{}

	totalCents, err := attrInt64(root, "data-cart-total")
	if err != nil {
		return nil, fmt.Errorf("%w: cart fragment: %v", ErrMalformedPayload, err)
	}
	fragment.Subtotal = models.NewMoneyFromMinorUnits(totalCents)

	var parseErr error
	root.Find("[data-cart-line]").Each(func(_ int, sel *goquery.Selection) {
		if parseErr != nil {
			return
		}
		line, err := parseCartLine(sel)
		if err != nil {
			parseErr = err
			return
		}
		fragment.Lines = append(fragment.Lines, line)
	})
	if parseErr != nil {
		return nil, fmt.Errorf("%w: cart fragment: %v", ErrMalformedPayload, parseErr)
	}

	for _, line := range fragment.Lines {
		fragment.ItemCount += line.Quantity
	}
	fragment.Empty = len(fragment.Lines) == 0 || doc.Find("[data-cart-empty]").Length() > 0

	doc.Find("[data-discount-code]").Each(func(_ int, sel *goquery.Selection) {
		code := strings.TrimSpace(sel.AttrOr("data-discount-code", ""))
		if code == "" {
			code = strings.TrimSpace(sel.Text())
		}
		if code != "" {
			fragment.VisibleCodes = append(fragment.VisibleCodes, code)
		}
	})

	return fragment, nil
}

func parseCartLine(sel *goquery.Selection) (models.CartLine, error) {
	lineNo, err := attrInt64(sel, "data-line")
	if err != nil {
		return models.CartLine{}, err
	}
	variantID, err := attrInt64(sel, "data-variant-id")
	if err != nil {
		return models.CartLine{}, err
	}
	quantity, err := attrInt64(sel, "data-quantity")
	if err != nil {
		return models.CartLine{}, err
	}
	priceCents, err := attrInt64(sel, "data-line-price")
	if err != nil {
		return models.CartLine{}, err
	}

	title := strings.TrimSpace(sel.Find("[data-line-title]").First().Text())

	return models.CartLine{
		Line:      int(lineNo),
		Key:       strings.TrimSpace(sel.AttrOr("data-key", "")),
		VariantID: variantID,
		Title:     title,
		Quantity:  int(quantity),
		LinePrice: models.NewMoneyFromMinorUnits(priceCents),
	}, nil
}

func attrInt64(sel *goquery.Selection, name string) (int64, error) {
	raw, ok := sel.Attr(name)
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s=%q", name, raw)
	}
	return value, nil
}
