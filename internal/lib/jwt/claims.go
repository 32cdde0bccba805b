// Package jwt реализует выпуск и проверку JWT токенов для админского API.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims - структура для удобного хранения данных внутри токена.
type CustomClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// MakerImpl реализует интерфейс Maker.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создает новый экземпляр MakerImpl.
func NewJWTMaker(secretKey string, tokenTTL time.Duration) *MakerImpl {
	return &MakerImpl{secretKey: secretKey, tokenTTL: tokenTTL}
}
