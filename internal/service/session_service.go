package service

import (
	"strings"
	"time"

	"github.com/storefront-bridge/internal/constants"
	"github.com/storefront-bridge/internal/models"
	"github.com/storefront-bridge/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionService 店面会话服务
// 会话以签名令牌下发，服务端保存购物车令牌与折扣码缓存。
type SessionService struct {
	sessions    repository.SessionRepository
	secret      []byte
	expireHours int
	cartMode    string
}

// NewSessionService 创建会话服务
func NewSessionService(sessions repository.SessionRepository, secret string, expireHours int, cartMode string) *SessionService {
	if expireHours <= 0 {
		expireHours = 72
	}
	mode := strings.TrimSpace(cartMode)
	if mode != constants.CartModePage {
		mode = constants.CartModeDrawer
	}
	return &SessionService{
		sessions:    sessions,
		secret:      []byte(secret),
		expireHours: expireHours,
		cartMode:    mode,
	}
}

// SessionToken 已签发的会话令牌
type SessionToken struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	CartMode  string `json:"cart_mode"`
}

// Issue 创建新会话并签发令牌
func (s *SessionService) Issue(cartToken string) (*SessionToken, error) {
	session := &models.StorefrontSession{
		SessionID:  uuid.NewString(),
		CartToken:  strings.TrimSpace(cartToken),
		CartMode:   s.cartMode,
		LastSeenAt: time.Now(),
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{
		"sid": session.SessionID,
		"exp": time.Now().Add(time.Duration(s.expireHours) * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &SessionToken{
		SessionID: session.SessionID,
		Token:     signed,
		CartMode:  session.CartMode,
	}, nil
}

// Verify 校验令牌并返回会话标识
func (s *SessionService) Verify(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrSessionInvalid
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSessionInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrSessionInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrSessionInvalid
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", ErrSessionInvalid
	}

	session, err := s.sessions.GetBySessionID(sid)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrSessionInvalid
	}
	_ = s.sessions.Touch(sid)
	return sid, nil
}

// BindCartToken 绑定/更新平台购物车令牌
func (s *SessionService) BindCartToken(sessionID, cartToken string) error {
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionInvalid
	}
	session.CartToken = strings.TrimSpace(cartToken)
	return s.sessions.Update(session)
}
