package users

import (
	"context"
	"errors"
	"net/mail"
	"slices"

	"github.com/go-sql-driver/mysql"
	"github.com/onsell/backoffice/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var knownRoles = []string{model.RoleAdmin, model.RoleAgencyOwner, model.RoleClientUser}

type CreateUserOptions struct {
	Name     string
	Email    string
	Password string
	AgencyID *uint
	ClientID *uint
	Roles    []string
}

type UserService struct {
	userRepo UserRepository
	roleRepo RoleRepository
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.First(ctx, "id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailAddress
	}
	user, err := s.userRepo.First(ctx, "email = ?", email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidEmailAddress) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}
	return user, nil
}

func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return nil, ErrInvalidEmailAddress
	}
	if len(opts.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	for _, role := range opts.Roles {
		if !slices.Contains(knownRoles, role) {
			return nil, ErrUnknownRole
		}
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Name:     opts.Name,
		Email:    opts.Email,
		Password: string(passwordHash),
		AgencyID: opts.AgencyID,
		ClientID: opts.ClientID,
	}
	for _, role := range opts.Roles {
		user.Roles = append(user.Roles, model.UserRole{Role: role})
	}

	var mysqlErr *mysql.MySQLError
	err = s.userRepo.Create(ctx, &user)
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 || errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrEmailRegistered
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID uint, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	n, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{"password": string(passwordHash)})
	if err == nil && n == 0 {
		return ErrUserNotFound
	}
	return err
}

func (s *UserService) GetRoles(ctx context.Context, userID uint) ([]string, error) {
	return s.roleRepo.Find(ctx, userID)
}

func (s *UserService) GrantRole(ctx context.Context, userID uint, role string) error {
	return s.roleRepo.Grant(ctx, userID, role)
}

func (s *UserService) RevokeRole(ctx context.Context, userID uint, role string) error {
	return s.roleRepo.Revoke(ctx, userID, role)
}

func (s *UserService) ReplaceRoles(ctx context.Context, userID uint, roles []string) error {
	return s.roleRepo.Replace(ctx, userID, roles)
}

func NewUserService(userRepo UserRepository, roleRepo RoleRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		roleRepo: roleRepo,
	}
}
