package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/user"
)

var userOrderings = map[string]lessFunc[user.User]{
	"name":       func(a, b user.User) int { return cmpStrings(a.Name, b.Name) },
	"email":      func(a, b user.User) int { return cmpStrings(a.Email, b.Email) },
	"role":       func(a, b user.User) int { return user.RolePriority(a.Role) - user.RolePriority(b.Role) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"last_login": func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs []string, _ ...core.DBExecutor) (err error) {
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	repo.db.read(func(t *tables) {
		for _, usr := range t.users {
			if strings.EqualFold(usr.Email, email) && !excluded[usr.ID] {
				err = user.ErrEmailExists
				return
			}
		}
	})
	return err
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	repo.db.write(exec, func(t *tables) { t.users[usr.ID] = usr })
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (users []user.User, err error) {
	repo.db.read(func(t *tables) { users = t.users.rows(filter.Match) })
	order(users, ordering, userOrderings, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (usr user.User, err error) {
	err = user.ErrNotFound
	repo.db.read(func(t *tables) {
		if filter.ID != "" {
			if u, ok := t.users[filter.ID]; ok {
				usr, err = u, nil
			}
			return
		}
		for _, u := range t.users {
			if filter.Email != "" && strings.EqualFold(u.Email, filter.Email) {
				usr, err = u, nil
				return
			}
		}
	})
	return usr, err
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := user.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.users[usr.ID]; ok {
			t.users[usr.ID] = usr
			err = nil
		}
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, exec ...core.DBExecutor) (n int, err error) {
	repo.db.write(exec, func(t *tables) {
		for _, id := range ids {
			if _, ok := t.users[id]; ok {
				delete(t.users, id)
				n++
			}
		}
	})
	return n, nil
}

func (repo *userRepository) CountUsers(_ context.Context, companyID string, _ ...core.DBExecutor) (n int, err error) {
	repo.db.read(func(t *tables) {
		for _, usr := range t.users {
			if usr.CompanyID == companyID {
				n++
			}
		}
	})
	return n, nil
}
