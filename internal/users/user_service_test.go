package users

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/onsell/backoffice/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserRepository struct {
	users     map[string]*model.User
	createErr error
}

func (r *fakeUserRepository) WithTx(tx *gorm.DB) UserRepository { return r }

func (r *fakeUserRepository) First(ctx context.Context, query any, args ...any) (*model.User, error) {
	for _, u := range r.users {
		switch query {
		case "email = ?":
			if u.Email == args[0] {
				return u, nil
			}
		case "id = ?":
			if u.ID == args[0] {
				return u, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepository) Create(ctx context.Context, user *model.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = uint(len(r.users) + 1)
	r.users[user.Email] = user
	return nil
}

func (r *fakeUserRepository) Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error) {
	for _, u := range r.users {
		if u.ID == userID {
			u.Password = columns["password"].(string)
			return 1, nil
		}
	}
	return 0, nil
}

func newTestUserService(t *testing.T, users ...*model.User) (*UserService, *fakeUserRepository) {
	t.Helper()
	repo := &fakeUserRepository{users: map[string]*model.User{}}
	for _, u := range users {
		repo.users[u.Email] = u
	}
	return NewUserService(repo, nil), repo
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestUserService(t,
		&model.User{ID: 1, Email: "ana@onsell.test", Password: hash(t, "s3cret-pass")},
		&model.User{ID: 2, Email: "off@onsell.test", Password: hash(t, "s3cret-pass"), Disabled: true},
	)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "ana@onsell.test", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)

	_, err = svc.Authenticate(ctx, "ana@onsell.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@onsell.test", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "not-an-email", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "off@onsell.test", "s3cret-pass")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestCreateUser(t *testing.T) {
	svc, repo := newTestUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserOptions{
		Name:     "Admin",
		Email:    "admin@onsell.test",
		Password: "long-enough",
		Roles:    []string{model.RoleAdmin},
	})
	require.NoError(t, err)
	require.Len(t, user.Roles, 1)
	assert.Equal(t, model.RoleAdmin, user.Roles[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("long-enough")))

	_, err = svc.CreateUser(ctx, CreateUserOptions{Email: "x@onsell.test", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = svc.CreateUser(ctx, CreateUserOptions{Email: "x@onsell.test", Password: "long-enough", Roles: []string{"root"}})
	assert.ErrorIs(t, err, ErrUnknownRole)

	repo.createErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	_, err = svc.CreateUser(ctx, CreateUserOptions{Email: "admin@onsell.test", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrEmailRegistered)

	repo.createErr = errors.New("boom")
	_, err = svc.CreateUser(ctx, CreateUserOptions{Email: "y@onsell.test", Password: "long-enough"})
	assert.EqualError(t, err, "boom")
}

func TestUpdatePassword(t *testing.T) {
	svc, repo := newTestUserService(t, &model.User{ID: 7, Email: "u@onsell.test", Password: "old"})
	require.NoError(t, svc.UpdatePassword(context.Background(), 7, "brand-new-pass"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u@onsell.test"].Password), []byte("brand-new-pass")))
	assert.ErrorIs(t, svc.UpdatePassword(context.Background(), 99, "brand-new-pass"), ErrUserNotFound)
}
