package server

import (
	"github.com/google/uuid"

	"go.zipstore/internal/auth"
	"go.zipstore/internal/engine"
)

type Session struct {
	id       uuid.UUID
	user     *auth.User
	database *engine.Database
	dbName   string
}

func newSession() *Session {
	return &Session{id: uuid.New()}
}

func (s *Session) IsAuth() bool {
	return s.user != nil
}

func (s *Session) ID() string {
	return s.id.String()
}
