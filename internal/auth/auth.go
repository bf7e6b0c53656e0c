package auth

import (
	"errors"
	"fmt"
)

type Authenticator struct {
	store Store
}

func NewAuthenticator(store Store) *Authenticator {
	return &Authenticator{store: store}
}

func (a *Authenticator) Store() Store {
	return a.store
}

// Authenticate never tells an unknown user apart from a wrong password
func (a *Authenticator) Authenticate(username, password string) (*User, error) {
	u, err := a.store.GetUser(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !CheckPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// CreateUser adds a new user to the catalogue
func (a *Authenticator) CreateUser(username, password string, role Role) error {
	if _, err := a.store.GetUser(username); err == nil {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	u, err := NewUser(username, password, role)
	if err != nil {
		return err
	}
	return a.store.SaveUser(u)
}

func (a *Authenticator) DeleteUser(username string) error {
	if _, err := a.store.GetUser(username); err != nil {
		return err
	}
	return a.store.DeleteUser(username)
}

func (a *Authenticator) Grant(username, db string) error {
	u, err := a.store.GetUser(username)
	if err != nil {
		return err
	}
	if !u.Grant(db) {
		return nil
	}
	return a.store.SaveUser(u)
}

func (a *Authenticator) Revoke(username, db string) error {
	u, err := a.store.GetUser(username)
	if err != nil {
		return err
	}
	if !u.Revoke(db) {
		return nil
	}
	return a.store.SaveUser(u)
}

// RevokeAll removes db from every user, used when a database is dropped
func (a *Authenticator) RevokeAll(db string) error {
	users, err := a.store.ListUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Revoke(db) {
			if err := a.store.SaveUser(u); err != nil {
				return err
			}
		}
	}
	return nil
}
