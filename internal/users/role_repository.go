package users

import (
	"context"

	"github.com/onsell/backoffice/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository interface {
	WithTx(tx *gorm.DB) RoleRepository
	Find(ctx context.Context, userID uint) ([]string, error)
	Grant(ctx context.Context, userID uint, role string) error
	Revoke(ctx context.Context, userID uint, role string) error
	Replace(ctx context.Context, userID uint, roles []string) error
}

type roleRepository struct {
	db *gorm.DB
}

func (r *roleRepository) Find(ctx context.Context, userID uint) ([]string, error) {
	var roles []string
	err := r.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("role", &roles).Error
	return roles, err
}

// Grant adds role to the user. Granting a role the user already holds is a
// no-op.
func (r *roleRepository) Grant(ctx context.Context, userID uint, role string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserRole{UserID: userID, Role: role}).Error
}

func (r *roleRepository) Revoke(ctx context.Context, userID uint, role string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		Delete(&model.UserRole{}).Error
}

// Replace sets the user's roles to exactly roles in one transaction.
func (r *roleRepository) Replace(ctx context.Context, userID uint, roles []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}
		if len(roles) == 0 {
			return nil
		}
		rows := make([]model.UserRole, 0, len(roles))
		seen := make(map[string]struct{}, len(roles))
		for _, role := range roles {
			if _, ok := seen[role]; ok {
				continue
			}
			seen[role] = struct{}{}
			rows = append(rows, model.UserRole{UserID: userID, Role: role})
		}
		return tx.Create(&rows).Error
	})
}

func (r *roleRepository) WithTx(tx *gorm.DB) RoleRepository {
	return NewRoleRepository(tx)
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db}
}
