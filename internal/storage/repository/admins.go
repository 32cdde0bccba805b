package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// ErrAdminNotFound возвращается при обращении к несуществующему администратору.
var ErrAdminNotFound = errors.New("admin not found")

// RegisterAdmin сохраняет учётную запись администратора панели управления.
func (s *Storage) RegisterAdmin(ctx context.Context, a models.Admin) error {
	const op = "storage.RegisterAdmin"

	query := `INSERT INTO admins (name, email, password_hash)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (name) DO UPDATE SET
			      email = excluded.email,
			      password_hash = excluded.password_hash;`
	if _, err := s.DB.ExecContext(ctx, query, a.Name, a.Email, a.PasswordHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAdminByName возвращает администратора по имени.
func (s *Storage) GetAdminByName(ctx context.Context, name string) (*models.Admin, error) {
	const op = "storage.GetAdminByName"

	a := &models.Admin{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT name, email, password_hash FROM admins WHERE name = $1`, name).
		Scan(&a.Name, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAdminNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
