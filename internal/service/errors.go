package service

import "errors"

// 校验类错误（契约破坏，调用方编程错误，必须响亮失败）
var (
	ErrInvalidProduct   = errors.New("invalid product catalog")
	ErrInvalidSelection = errors.New("invalid option selection")
)

// 购物车控制器错误
var (
	ErrCartBusy        = errors.New("cart mutation in flight")
	ErrInvalidLine     = errors.New("invalid line number")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrEmptyDiscount   = errors.New("empty discount code")
	ErrSessionInvalid  = errors.New("session invalid")
)
