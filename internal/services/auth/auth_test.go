package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/access-reconciler/internal/lib/jwt"
	"github.com/magabrotheeeer/access-reconciler/internal/lib/password"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

type MockAdminRepository struct {
	mock.Mock
}

func (m *MockAdminRepository) RegisterAdmin(ctx context.Context, a models.Admin) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAdminRepository) GetAdminByName(ctx context.Context, name string) (*models.Admin, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Admin), args.Error(1)
}

func TestLoginAndValidate(t *testing.T) {
	repo := new(MockAdminRepository)
	maker := jwt.NewJWTMaker("secret", time.Hour)
	svc := New(repo, maker)

	hash, err := password.GetHash("pa55word")
	require.NoError(t, err)
	repo.On("GetAdminByName", mock.Anything, "root").Return(&models.Admin{
		Name:         "root",
		PasswordHash: hash,
	}, nil)

	token, err := svc.Login(context.Background(), "root", "pa55word")
	require.NoError(t, err)

	name, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "root", name)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockAdminRepository)
	svc := New(repo, jwt.NewJWTMaker("secret", time.Hour))

	hash, err := password.GetHash("pa55word")
	require.NoError(t, err)
	repo.On("GetAdminByName", mock.Anything, "root").Return(&models.Admin{
		Name:         "root",
		PasswordHash: hash,
	}, nil)

	_, err = svc.Login(context.Background(), "root", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
