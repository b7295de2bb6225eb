package net

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"bourse/internal/utils"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	MAX_FRAME_SIZE      = 64 * 1024
	defaultReadTimeout  = 50 * time.Millisecond
	defaultWriteTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// Handler receives every frame read from a client along with the address it
// came from. It runs on a pool worker and must not block for long.
type Handler func(address string, message NetworkMessage)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	address string
	conn    net.Conn
	reader  *bufio.Reader
	pending []byte // partial frame carried over a read timeout

	writeLock sync.Mutex
}

type Server struct {
	address string
	port    int
	pool    *utils.WorkerPool
	handler Handler

	lock     sync.Mutex
	cancel   context.CancelFunc
	listener net.Listener
	ready    chan struct{}

	clientSessions     map[string]*ClientSession
	clientSessionsLock sync.Mutex
}

func New(address string, port int, workers uint, handler Handler) *Server {
	return &Server{
		address:        address,
		port:           port,
		pool:           utils.NewWorkerPool(workers),
		handler:        handler,
		ready:          make(chan struct{}),
		clientSessions: make(map[string]*ClientSession),
	}
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr is the address the server listens on, nil before it is ready.
func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Shutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cancel != nil {
		log.Info().Msg("transport shutting down")
		s.cancel()
	}
}

// Run accepts clients until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.address, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}

	s.lock.Lock()
	s.cancel = cancel
	s.listener = listener
	s.lock.Unlock()
	close(s.ready)

	s.pool.Setup(t, s.handleConnection)

	// Unblock Accept and every pending read once the tomb is dying.
	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		s.closeClientSessions()
		return nil
	})

	t.Go(func() error {
		return s.acceptLoop(t, listener)
	})

	log.Info().
		Str("address", listener.Addr().String()).
		Int("workers", s.pool.Size()).
		Msg("transport running")

	err = t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(t *tomb.Tomb, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		session := s.addClientSession(conn)
		log.Info().
			Str("address", session.address).
			Msg("new client added")

		// Pass over the session to be read from.
		if !s.pool.AddTask(t, session) {
			return nil
		}
	}
}

// Send writes a single frame to a connected client. A client that cannot be
// written to is disconnected.
func (s *Server) Send(address string, message NetworkMessage) error {
	frame, err := message.Encode()
	if err != nil {
		return err
	}

	s.clientSessionsLock.Lock()
	session, ok := s.clientSessions[address]
	s.clientSessionsLock.Unlock()
	if !ok {
		return ErrClientDoesNotExist
	}

	session.writeLock.Lock()
	defer session.writeLock.Unlock()

	if err := session.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		s.deleteClientSession(address)
		return fmt.Errorf("unable to send message: %w", err)
	}
	if _, err := session.conn.Write(frame); err != nil {
		s.deleteClientSession(address)
		return fmt.Errorf("unable to send message: %w", err)
	}
	return nil
}

// handleConnection is a short-lived worker method which reads at most one
// frame off a session, hands it to the handler and re-queues the session. A
// read that times out keeps whatever partial frame arrived for the next
// attempt. Sessions that fail are cleaned up here.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	session, ok := task.(*ClientSession)
	if !ok {
		return ErrImproperConversion
	}

	select {
	case <-t.Dying():
		return nil
	default:
	}

	if err := session.conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
		log.Error().
			Err(err).
			Str("address", session.address).
			Msg("failed setting deadline for connection")
		s.deleteClientSession(session.address)
		return nil
	}

	frame, err := session.readFrame()
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		s.pool.AddTask(t, session)
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Info().Str("address", session.address).Msg("client disconnected")
		s.deleteClientSession(session.address)
		return nil
	case err != nil:
		log.Error().
			Err(err).
			Str("address", session.address).
			Msg("error reading from connection")
		s.deleteClientSession(session.address)
		return nil
	}

	if len(bytes.TrimSpace(frame)) > 0 {
		message, err := DecodeNetworkMessage(frame)
		if err != nil {
			log.Warn().
				Err(err).
				Str("address", session.address).
				Msg("error parsing message")
		} else if s.handler != nil {
			s.handler(session.address, message)
		}
	}

	// Push the session back to handle the next frame.
	s.pool.AddTask(t, session)
	return nil
}

// readFrame reads up to and including the next newline.
func (session *ClientSession) readFrame() ([]byte, error) {
	line, err := session.reader.ReadSlice('\n')
	switch {
	case err == nil:
		frame := append(session.pending, line...)
		session.pending = nil
		return frame, nil
	case errors.Is(err, bufio.ErrBufferFull), errors.Is(err, os.ErrDeadlineExceeded):
		session.pending = append(session.pending, line...)
		if len(session.pending) > MAX_FRAME_SIZE {
			return nil, ErrFrameTooLarge
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			return session.readFrame()
		}
		return nil, err
	}
	return nil, err
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) *ClientSession {
	session := &ClientSession{
		address: conn.RemoteAddr().String(),
		conn:    conn,
		reader:  bufio.NewReader(conn),
	}

	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.clientSessions[session.address] = session
	return session
}

// deleteClientSession is an atomic map remove which also closes the session.
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	session, ok := s.clientSessions[address]
	delete(s.clientSessions, address)
	s.clientSessionsLock.Unlock()

	if !ok {
		return
	}
	if err := session.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Str("address", address).Msg("unable to close connection")
	}
}

func (s *Server) closeClientSessions() {
	s.clientSessionsLock.Lock()
	addresses := make([]string, 0, len(s.clientSessions))
	for address := range s.clientSessions {
		addresses = append(addresses, address)
	}
	s.clientSessionsLock.Unlock()

	for _, address := range addresses {
		s.deleteClientSession(address)
	}
}

// SessionCount is the number of connected clients.
func (s *Server) SessionCount() int {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	return len(s.clientSessions)
}
