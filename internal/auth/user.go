package auth

import (
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	// Create and drop databases, manage users
	RoleSuperuser Role = "superuser"
	// Read / write pages on granted databases
	RoleUser Role = "user"
	// Read only on granted databases
	RoleGuest Role = "guest"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSuperuser, RoleUser, RoleGuest:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

type User struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     Role     `json:"role"`
	AccessDB []string `json:"access_db"`
}

// NewUser hashes the password and returns a user with no database grants
func NewUser(username, password string, role Role) (*User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password must not be empty")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		Username: username,
		Password: string(hash),
		Role:     role,
		AccessDB: []string{},
	}, nil
}

func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func (u *User) IsSuperuser() bool {
	return u.Role == RoleSuperuser
}

func (u *User) IsGuest() bool {
	return u.Role == RoleGuest
}

func (u *User) CanOpenDB(db string) bool {
	return u.IsSuperuser() || slices.Contains(u.AccessDB, db)
}

// CanWrite reports whether u may change pages of an open database
func (u *User) CanWrite() bool {
	return !u.IsGuest()
}

// Grant adds db to the user's databases. It reports false if the grant
// was already there.
func (u *User) Grant(db string) bool {
	if slices.Contains(u.AccessDB, db) {
		return false
	}
	u.AccessDB = append(u.AccessDB, db)
	return true
}

func (u *User) Revoke(db string) bool {
	i := slices.Index(u.AccessDB, db)
	if i == -1 {
		return false
	}
	u.AccessDB = slices.Delete(u.AccessDB, i, i+1)
	return true
}

func (u *User) clone() *User {
	c := *u
	c.AccessDB = append([]string(nil), u.AccessDB...)
	return &c
}
