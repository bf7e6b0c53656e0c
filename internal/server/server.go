package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.zipstore/internal/auth"
	"go.zipstore/internal/config"
	"go.zipstore/internal/logger"
)

// Lines carry whole base64 pages
const maxLine = 1 << 20

type Server struct {
	cfg      *config.Config
	auth     *auth.Authenticator
	log      *logger.Logger
	dbs      *pool
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	mu sync.Mutex
	ln net.Listener
}

func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Discard()
	}

	store, err := auth.NewFileStore(cfg.UserFile)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		auth:     auth.NewAuthenticator(store),
		log:      log,
		dbs:      newPool(cfg),
		shutdown: make(chan struct{}),
	}, nil
}

// Listen opens the configured address and serves until SIGINT or SIGTERM
func (s *Server) Listen() error {
	var l net.Listener
	var err error

	if s.cfg.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}

		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}

		l, err = tls.Listen("tcp", s.cfg.Addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("failed to start TLS listener: %w", err)
		}

		s.log.Infof("TLS enabled")
	} else {
		l, err = net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to start TCP listener: %w", err)
		}
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
			s.log.Infof("Server shutting down...")
			s.Shutdown()
		case <-s.shutdown:
		}
	}()

	s.log.Infof("Server started on %s", l.Addr())
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.ln = l
	s.mu.Unlock()

	select {
	case <-s.shutdown:
		l.Close()
	default:
	}

	for {
		conn, err := l.Accept()

		select {
		case <-s.shutdown:
			if conn != nil {
				conn.Close()
			}
			s.wg.Wait()
			s.dbs.closeAll()
			return nil
		default:
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				s.dbs.closeAll()
				return err
			}
			s.log.Warnf("accept: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ln != nil {
			s.ln.Close()
		}
	})
}

func (s *Server) handleConn(conn net.Conn) {
	sess := newSession()
	defer conn.Close()
	defer s.closeDB(sess)

	s.log.Infof("session %s: connected from %s", sess.ID(), conn.RemoteAddr())

	// Unblock the read below on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.shutdown:
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		resp := s.exec(sess, scanner.Text())

		w.WriteString(resp.Msg + "\n")
		if err := w.Flush(); err != nil {
			s.log.Warnf("session %s: write: %v", sess.ID(), err)
			return
		}

		if resp.Close {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warnf("session %s: read: %v", sess.ID(), err)
	}
	s.log.Infof("session %s: closed", sess.ID())
}

func (s *Server) exec(sess *Session, line string) Response {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Respond("")
	}

	switch strings.ToUpper(parts[0]) {
	case "AUTH":
		return s.authCommand(sess, parts)
	case "OPEN":
		return s.openDBCommand(sess, parts)
	case "READ":
		return readCommand(sess, parts)
	case "WRITE":
		return writeCommand(sess, parts)
	case "TRUNCATE":
		return truncateCommand(sess, parts)
	case "COMPACT":
		return compactCommand(sess, parts)
	case "STATS":
		return statsCommand(sess, parts)
	case "CHECK":
		return checkCommand(sess, parts)
	case "DIGEST":
		return digestCommand(sess, parts)
	case "CLOSE":
		s.closeDB(sess)
		return Respond("")
	case "EXIT":
		return Response{Msg: OK, Close: true}
	case "CREATEUSER":
		return s.createUserCommand(sess, parts)
	case "DELUSER":
		return s.delUserCommand(sess, parts)
	case "GRANTDB":
		return s.grantDBCommand(sess, parts)
	case "REVOKEDB":
		return s.revokeDBCommand(sess, parts)
	case "CREATEDB":
		return s.createDBCommand(sess, parts)
	case "DROPDB":
		return s.dropDBCommand(sess, parts)
	case "LISTDB":
		return s.listDBCommand(sess, parts)
	default:
		return Errf("unknown command %q", parts[0])
	}
}

func (s *Server) closeDB(sess *Session) {
	if sess.database == nil {
		return
	}
	if err := s.dbs.release(sess.dbName); err != nil {
		s.log.Errorf("session %s: closing %s: %v", sess.ID(), sess.dbName, err)
	}
	sess.database = nil
	sess.dbName = ""
}
