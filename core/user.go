package core

import (
	"context"
	"errors"
)

// DBUser is the identity of a moderator or submitter. The core treats it as opaque, apart from the staff flag.
type DBUser interface {
	ID() int
	Name() string
	IsStaff() bool
}

type UserDB interface {
	GetUser(ctx context.Context, id int) (DBUser, error)
	GetUserByName(ctx context.Context, name string) (DBUser, error)
	InsertUser(ctx context.Context, name string) (DBUser, error)
	LoginUser(ctx context.Context, name, password string) (DBUser, error)
	SetPassword(ctx context.Context, u DBUser, password string) error
	SetStaff(ctx context.Context, u DBUser, staff bool) error
}

var ErrEmptyPassword = errors.New("refusing to set empty password")

// SetPassword shadows UserDB.SetPassword.
func (c *CoreDB) SetPassword(ctx context.Context, u DBUser, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return c.UserDB.SetPassword(ctx, u, password)
}
