// Package auth содержит логику регистрации и авторизации администраторов.
package auth

import (
	"context"
	"errors"

	"github.com/magabrotheeeer/access-reconciler/internal/lib/jwt"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/password"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// AdminRepository описывает контракт для работы с администраторами в базе данных.
type AdminRepository interface {
	RegisterAdmin(ctx context.Context, a models.Admin) error
	GetAdminByName(ctx context.Context, name string) (*models.Admin, error)
}

// ErrInvalidCredentials возвращается при неверном имени или пароле.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service отвечает за регистрацию и авторизацию администраторов панели.
type Service struct {
	admins   AdminRepository
	jwtMaker jwt.Maker
}

// New создает новый экземпляр Service.
func New(admins AdminRepository, jwtMaker jwt.Maker) *Service {
	return &Service{admins: admins, jwtMaker: jwtMaker}
}

// Register заводит администратора с хэшированием пароля.
func (s *Service) Register(ctx context.Context, name, email, rawPassword string) error {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return err
	}
	return s.admins.RegisterAdmin(ctx, models.Admin{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
	})
}

// Login проверяет пароль администратора и выдаёт JWT.
func (s *Service) Login(ctx context.Context, name, rawPassword string) (string, error) {
	admin, err := s.admins.GetAdminByName(ctx, name)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !password.CompareHash(rawPassword, admin.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.jwtMaker.GenerateToken(admin.Name)
}

// ValidateToken проверяет JWT и возвращает имя администратора.
func (s *Service) ValidateToken(_ context.Context, token string) (string, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Name, nil
}
