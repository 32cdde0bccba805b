// Package gateway реализует клиент к API медиа-сервера для управления доступом.
package gateway

import "context"

// GrantResult - результат выдачи доступа.
type GrantResult string

// Возможные результаты выдачи доступа.
const (
	GrantGranted        GrantResult = "granted"
	GrantAlreadyGranted GrantResult = "already_granted"
	GrantFailed         GrantResult = "failed"
)

// RevokeResult - результат отзыва доступа.
type RevokeResult string

// Возможные результаты отзыва доступа.
const (
	RevokeRemoved  RevokeResult = "removed"
	RevokeNotFound RevokeResult = "not_found"
	RevokeFailed   RevokeResult = "failed"
)

// AccessGateway - интерфейс для управления доступом участника на медиа-сервере.
type AccessGateway interface {
	QueryAccess(ctx context.Context, email string) (bool, error)
	GrantAccess(ctx context.Context, email string) (GrantResult, error)
	RevokeAccess(ctx context.Context, email string) (RevokeResult, error)
}
