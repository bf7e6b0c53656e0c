package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"go.zipstore/internal/storage"
)

func (s *Server) authCommand(sess *Session, parts []string) Response {
	if len(parts) != 3 {
		return Usage("AUTH <username> <password>")
	}

	u, err := s.auth.Authenticate(parts[1], parts[2])
	if err != nil {
		s.log.Warnf("session %s: AUTH %s: %v", sess.ID(), parts[1], err)
		return Err(err.Error())
	}

	sess.user = u
	s.log.Infof("session %s: authenticated as %s (%s)", sess.ID(), u.Username, u.Role)
	return Respond(sess.ID())
}

func (s *Server) openDBCommand(sess *Session, parts []string) Response {
	if !sess.IsAuth() {
		return Err(NoAuth)
	}

	if len(parts) != 2 {
		return Usage("OPEN <dbname>")
	}

	name := parts[1]
	if !sess.user.CanOpenDB(name) {
		return Err(NoPerm)
	}

	s.closeDB(sess)

	db, err := s.dbs.acquire(name)
	if err != nil {
		return Err("failed to open db: " + err.Error())
	}

	sess.database = db
	sess.dbName = name
	return Respond(strconv.Itoa(db.PageSize()))
}

// needDB checks a session can run a command against its open database
func needDB(sess *Session, write bool) (Response, bool) {
	if !sess.IsAuth() {
		return Err(NoAuth), false
	}
	if sess.database == nil {
		return Err(NoDB), false
	}
	if write && !sess.user.CanWrite() {
		return Err(NoPerm), false
	}
	return Response{}, true
}

func parsePage(s string) (uint32, error) {
	pg, err := strconv.ParseUint(s, 10, 32)
	if err != nil || pg == 0 {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	return uint32(pg), nil
}

func readCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, false); !ok {
		return r
	}
	if len(parts) != 2 {
		return Usage("READ <page>")
	}

	pg, err := parsePage(parts[1])
	if err != nil {
		return Err(err.Error())
	}

	data, err := sess.database.ReadPage(pg)
	if err != nil {
		return Err(err.Error())
	}
	return Respond(base64.StdEncoding.EncodeToString(data))
}

func writeCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, true); !ok {
		return r
	}
	if len(parts) != 3 {
		return Usage("WRITE <page> <base64>")
	}

	pg, err := parsePage(parts[1])
	if err != nil {
		return Err(err.Error())
	}

	data, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return Err("invalid base64: " + err.Error())
	}
	if len(data) != sess.database.PageSize() {
		return Errf("page must be %d bytes, got %d", sess.database.PageSize(), len(data))
	}

	if err := sess.database.WritePage(pg, data); err != nil {
		return Err(err.Error())
	}
	return Respond("")
}

func truncateCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, true); !ok {
		return r
	}
	if len(parts) != 2 {
		return Usage("TRUNCATE <pages>")
	}

	n, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Errf("invalid page count %q", parts[1])
	}

	if err := sess.database.Truncate(uint32(n)); err != nil {
		return Err(err.Error())
	}
	return Respond("")
}

func compactCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, true); !ok {
		return r
	}
	if len(parts) > 2 {
		return Usage("COMPACT [max-bytes]")
	}

	var maxBytes int64
	if len(parts) == 2 {
		n, err := humanize.ParseBytes(parts[1])
		if err != nil {
			return Errf("invalid byte count %q", parts[1])
		}
		maxBytes = int64(n)
	}

	remaining, err := sess.database.Compact(context.Background(), maxBytes)
	if err != nil {
		return Err(err.Error())
	}
	return Respond(strconv.FormatInt(remaining, 10))
}

func statsCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, false); !ok {
		return r
	}

	st, err := sess.database.Stats()
	if err != nil {
		return Err(err.Error())
	}
	return Respond(FormatStats(st))
}

// FormatStats renders a Stat on one line with human readable sizes
func FormatStats(st storage.Stat) string {
	return fmt.Sprintf("pages=%s page_size=%s codec=%s free_slots=%s free=%s frag=%s gap=%s file=%s content=%s",
		humanize.Comma(int64(st.Pages)),
		humanize.IBytes(uint64(st.PageSize)),
		st.Codec,
		humanize.Comma(st.FreeSlots),
		humanize.IBytes(uint64(st.FreeBytes)),
		humanize.IBytes(uint64(max(st.FragmentBytes, 0))),
		humanize.IBytes(uint64(st.GapBytes)),
		humanize.IBytes(uint64(st.FileBytes)),
		humanize.IBytes(uint64(max(st.ContentBytes, 0))),
	)
}

func checkCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, false); !ok {
		return r
	}
	if err := sess.database.Check(); err != nil {
		return Err(err.Error())
	}
	return Respond("")
}

func digestCommand(sess *Session, parts []string) Response {
	if r, ok := needDB(sess, false); !ok {
		return r
	}
	sum, err := sess.database.DigestHex()
	if err != nil {
		return Err(err.Error())
	}
	return Respond(sum)
}
