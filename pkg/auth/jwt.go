package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Ошибки разбора токенов
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token is expired")
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
	// Usage различает токены доступа хоста и короткоживущие WS-тикеты
	Usage string `json:"usage,omitempty"`
	// SessionID и CID присутствуют только в WS-тикетах игроков
	SessionID string `json:"session_id,omitempty"`
	CID       string `json:"cid,omitempty"`
}

// JWTService предоставляет методы для работы с JWT
type JWTService struct {
	secret        []byte
	expirationHrs int
	// Время жизни тикета для WebSocket
	wsTicketExpiry time.Duration
}

// NewJWTService создает новый сервис JWT и возвращает ошибку при проблемах
func NewJWTService(secret string, expirationHrs, wsTicketExpirySec int) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required for JWTService")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	wsExpiry := time.Duration(wsTicketExpirySec) * time.Second
	if wsExpiry <= 0 {
		wsExpiry = 60 * time.Second
	}

	return &JWTService{
		secret:         []byte(secret),
		expirationHrs:  expirationHrs,
		wsTicketExpiry: wsExpiry,
	}, nil
}

// GenerateToken создает токен доступа хоста
func (s *JWTService) GenerateToken(userID uint) (string, error) {
	claims := &JWTCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expirationHrs) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		// Usage не устанавливаем, т.к. это стандартный токен доступа
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken проверяет токен доступа и возвращает его claims
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != "" {
		// WS-тикет нельзя использовать как токен доступа
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateWSTicket создает короткоживущий JWT для аутентификации WebSocket.
// Тикет привязывает соединение к сессии и client id.
func (s *JWTService) GenerateWSTicket(userID uint, sessionID, cid string) (string, error) {
	claims := &JWTCustomClaims{
		UserID:    userID,
		Usage:     "websocket_auth", // Указываем назначение токена
		SessionID: sessionID,
		CID:       cid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.wsTicketExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign WS ticket: %w", err)
	}

	log.Printf("[JWTService] WS-тикет выдан (cid %s, сессия %s, TTL %s)", cid, sessionID, s.wsTicketExpiry)
	return signed, nil
}

// ParseWSTicket проверяет JWT, используемый как WS тикет
func (s *JWTService) ParseWSTicket(ticketString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(ticketString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != "websocket_auth" {
		return nil, fmt.Errorf("%w: token is not a websocket ticket", ErrInvalidToken)
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*JWTCustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
