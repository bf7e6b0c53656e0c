package server

import (
	"strings"

	"go.zipstore/internal/auth"
	"go.zipstore/internal/engine"
)

func needSuperuser(sess *Session) (Response, bool) {
	if !sess.IsAuth() {
		return Err(NoAuth), false
	}
	if !sess.user.IsSuperuser() {
		return Err(NoPerm), false
	}
	return Response{}, true
}

func (s *Server) createUserCommand(sess *Session, parts []string) Response {
	if r, ok := needSuperuser(sess); !ok {
		return r
	}

	if len(parts) != 4 {
		return Usage("CREATEUSER <username> <password> <role>")
	}

	role, err := auth.ParseRole(parts[3])
	if err != nil {
		return Err(err.Error())
	}

	if err := s.auth.CreateUser(parts[1], parts[2], role); err != nil {
		return Err(err.Error())
	}

	s.log.Infof("session %s: created user %s (%s)", sess.ID(), parts[1], role)
	return Respond("")
}

func (s *Server) delUserCommand(sess *Session, parts []string) Response {
	if r, ok := needSuperuser(sess); !ok {
		return r
	}

	if len(parts) != 2 {
		return Usage("DELUSER <username>")
	}

	if err := s.auth.DeleteUser(parts[1]); err != nil {
		return Err(err.Error())
	}

	s.log.Infof("session %s: deleted user %s", sess.ID(), parts[1])
	return Respond("")
}

func (s *Server) grantDBCommand(sess *Session, parts []string) Response {
	if r, ok := needSuperuser(sess); !ok {
		return r
	}

	if len(parts) != 3 {
		return Usage("GRANTDB <user> <dbname>")
	}

	if err := s.auth.Grant(parts[1], parts[2]); err != nil {
		return Err(err.Error())
	}
	return Respond("")
}

func (s *Server) revokeDBCommand(sess *Session, parts []string) Response {
	if r, ok := needSuperuser(sess); !ok {
		return r
	}

	if len(parts) != 3 {
		return Usage("REVOKEDB <user> <dbname>")
	}

	if err := s.auth.Revoke(parts[1], parts[2]); err != nil {
		return Err(err.Error())
	}
	return Respond("")
}

func (s *Server) createDBCommand(sess *Session, parts []string) Response {
	if r, ok := needSuperuser(sess); !ok {
		return r
	}

	if len(parts) != 2 {
		return Usage("CREATEDB <dbname>")
	}

	if err := engine.Create(parts[1], s.cfg); err != nil {
		return Err(err.Error())
	}

	s.log.Infof("session %s: created database %s", sess.ID(), parts[1])
	return Respond("")
}

func (s *Server) dropDBCommand(sess *Session, parts []string) Response {
	if r, ok := needSuperuser(sess); !ok {
		return r
	}

	if len(parts) != 2 {
		return Usage("DROPDB <dbname>")
	}

	dbname := parts[1]
	if sess.dbName == dbname {
		s.closeDB(sess)
	}

	if err := s.dbs.drop(dbname); err != nil {
		return Err(err.Error())
	}
	if err := s.auth.RevokeAll(dbname); err != nil {
		s.log.Errorf("session %s: revoking grants on %s: %v", sess.ID(), dbname, err)
	}

	s.log.Infof("session %s: dropped database %s", sess.ID(), dbname)
	return Respond("")
}

func (s *Server) listDBCommand(sess *Session, parts []string) Response {
	if !sess.IsAuth() {
		return Err(NoAuth)
	}

	names, err := engine.List(s.cfg)
	if err != nil {
		return Err(err.Error())
	}

	visible := names[:0]
	for _, name := range names {
		if sess.user.CanOpenDB(name) {
			visible = append(visible, name)
		}
	}
	return Respond(strings.Join(visible, " "))
}
