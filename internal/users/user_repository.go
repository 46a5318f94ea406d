package users

import (
	"context"

	"github.com/onsell/backoffice/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	First(ctx context.Context, query any, args ...any) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) First(ctx context.Context, query any, args ...any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(columns)
	return result.RowsAffected, result.Error
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return NewUserRepository(tx)
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}
