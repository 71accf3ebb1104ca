// Package relay is a small development hub speaking the ostruka wire
// protocol. It routes direct messages between online users and fans group
// messages out to members.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tOgg1/ostruka/internal/instance"
	"github.com/tOgg1/ostruka/internal/protocol"
)

const (
	DefaultLoginTimeout = 10 * time.Second
	DefaultMsgsPerSec   = 20
	DefaultBurst        = 40

	writeTimeout = 5 * time.Second
	// peerQueueSize bounds the frames waiting for one peer's writer. A peer
	// that falls this far behind is disconnected.
	peerQueueSize = 256
)

var (
	errPeerGone = errors.New("peer disconnected")
	errSlowPeer = errors.New("peer queue full")
)

// Options configures a Server.
type Options struct {
	LoginTimeout time.Duration
	MsgsPerSec   float64
	Burst        int
	Logger       zerolog.Logger
}

// Server is the relay hub.
type Server struct {
	auth   Authenticator
	opts   Options
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	users     map[string]*peer
	groups    map[string]map[string]struct{}
}

// peer is one connection. After login every frame for it goes through out,
// drained by its own writer, so a stalled reader never holds up the
// goroutine that routes to it.
type peer struct {
	user    string
	conn    net.Conn
	enc     *protocol.Encoder
	limiter *rate.Limiter

	out       chan protocol.Command
	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(conn net.Conn, limiter *rate.Limiter) *peer {
	return &peer{
		conn:    conn,
		enc:     protocol.NewEncoder(conn),
		limiter: limiter,
		out:     make(chan protocol.Command, peerQueueSize),
		done:    make(chan struct{}),
	}
}

// write puts cmd on the wire. Only the login handshake and writeLoop call it.
func (p *peer) write(cmd protocol.Command) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.enc.Encode(cmd)
}

// send queues cmd without blocking. A peer whose queue is full is closed.
func (p *peer) send(cmd protocol.Command) error {
	select {
	case <-p.done:
		return errPeerGone
	default:
	}
	select {
	case p.out <- cmd:
		return nil
	case <-p.done:
		return errPeerGone
	default:
		p.close()
		return errSlowPeer
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *peer) writeLoop(logger zerolog.Logger) {
	for {
		select {
		case <-p.done:
			return
		case cmd := <-p.out:
			if err := p.write(cmd); err != nil {
				logger.Debug().Err(err).Str("cmd", string(cmd.Cmd)).Msg("write failed")
				p.close()
				return
			}
		}
	}
}

// New creates a relay that checks logins with auth.
func New(auth Authenticator, opts Options) *Server {
	if auth == nil {
		auth = AllowAll()
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = DefaultLoginTimeout
	}
	if opts.MsgsPerSec <= 0 {
		opts.MsgsPerSec = DefaultMsgsPerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		auth:      auth,
		opts:      opts,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
		users:     make(map[string]*peer),
		groups:    make(map[string]map[string]struct{}),
	}
}

// Serve accepts connections on ln until the listener fails or the server is
// closed. It returns nil after Close.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("relay listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn().Err(err).Msg("accept error (continuing)")
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go s.handle(conn)
	}
}

// Close stops every listener and connection and waits for handlers to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for ln := range s.listeners {
		_ = ln.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// Online returns the logged in users, sorted.
func (s *Server) Online() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.users))
	for user := range s.users {
		users = append(users, user)
	}
	slices.Sort(users)
	return users
}

// Members returns the members of group, sorted.
func (s *Server) Members(group string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.membersLocked(group)
}

// track registers conn and its handler goroutine with the wait group.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	logger := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	dec := protocol.NewDecoder(conn)
	p, err := s.login(conn, dec)
	if err != nil {
		logger.Warn().Err(err).Msg("login failed")
		return
	}
	logger = logger.With().Str("user", p.user).Logger()
	logger.Info().Msg("user connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writeLoop(logger)
	}()
	defer func() {
		s.disconnect(p)
		p.close()
		<-writerDone
		logger.Info().Msg("user disconnected")
	}()

	for {
		cmd, err := dec.Decode()
		if err != nil {
			if !s.isClosed() {
				logger.Debug().Err(err).Msg("read ended")
			}
			return
		}
		if !p.limiter.Allow() {
			s.reply(p, protocol.Errorf("rate_limited", "slow down"))
			continue
		}
		s.dispatch(p, cmd, logger)
	}
}

func (s *Server) login(conn net.Conn, dec *protocol.Decoder) (*peer, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.LoginTimeout))
	defer conn.SetReadDeadline(time.Time{})

	p := newPeer(conn, rate.NewLimiter(rate.Limit(s.opts.MsgsPerSec), s.opts.Burst))
	cmd, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("read login: %w", err)
	}
	reject := func(code, message string) error {
		_ = p.write(protocol.Reject(cmd.ReqID, code, message))
		return fmt.Errorf("%s: %s", code, message)
	}

	if cmd.Cmd != protocol.KindLogin {
		return nil, reject("bad_request", "login required")
	}
	if err := protocol.ValidateUser(cmd.Sender); err != nil {
		return nil, reject("bad_request", err.Error())
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.LoginTimeout)
	err = s.auth.Authenticate(ctx, cmd.Sender, cmd.Password)
	cancel()
	if err != nil {
		return nil, reject("auth", err.Error())
	}

	p.user = cmd.Sender
	if !s.addUser(p) {
		return nil, reject("conflict", cmd.Sender+" is already logged in")
	}
	if err := p.write(protocol.Ack(cmd.ReqID)); err != nil {
		s.disconnect(p)
		return nil, fmt.Errorf("send ack: %w", err)
	}
	return p, nil
}

func (s *Server) dispatch(p *peer, cmd protocol.Command, logger zerolog.Logger) {
	switch cmd.Cmd {
	case protocol.KindMsg:
		s.route(p, cmd)
	case protocol.KindJoin:
		s.join(p, cmd.Target)
	case protocol.KindLeave:
		s.leave(p, cmd.Target)
	case protocol.KindListUsr:
		if !instance.IsGroup(cmd.Target) {
			s.reply(p, protocol.Errorf("bad_request", "%s is not a group", cmd.Target))
			return
		}
		s.reply(p, protocol.ListUsr(cmd.Target, protocol.OpAdd, s.Members(cmd.Target)))
	case protocol.KindLogin:
		s.reply(p, protocol.Errorf("bad_request", "already logged in as %s", p.user))
	default:
		logger.Debug().Str("cmd", string(cmd.Cmd)).Msg("unknown command")
		s.reply(p, protocol.Errorf("bad_request", "unknown command %q", cmd.Cmd))
	}
}

func (s *Server) route(p *peer, cmd protocol.Command) {
	if err := protocol.ValidateTarget(cmd.Target); err != nil {
		s.reply(p, protocol.Errorf("bad_request", "%v: %q", err, cmd.Target))
		return
	}
	out := protocol.Msg(p.user, cmd.Target, cmd.Body)

	if instance.IsGroup(cmd.Target) {
		s.mu.RLock()
		_, member := s.groups[cmd.Target][p.user]
		recipients := s.peersLocked(cmd.Target, p.user)
		s.mu.RUnlock()
		if !member {
			s.reply(p, protocol.Errorf("not_member", "you are not in %s", cmd.Target))
			return
		}
		s.broadcast(recipients, out)
		return
	}

	s.mu.RLock()
	target := s.users[cmd.Target]
	s.mu.RUnlock()
	if target == nil {
		s.reply(p, protocol.Errorf("offline", "%s is not online", cmd.Target))
		return
	}
	if err := target.send(out); err != nil {
		s.logger.Warn().Err(err).Str("user", cmd.Target).Msg("deliver failed")
		s.reply(p, protocol.Errorf("offline", "%s is not reachable", cmd.Target))
	}
}

func (s *Server) join(p *peer, target string) {
	if err := protocol.ValidateTarget(target); err != nil {
		s.reply(p, protocol.Errorf("bad_request", "%v: %q", err, target))
		return
	}
	if !instance.IsGroup(target) {
		s.mu.RLock()
		_, online := s.users[target]
		s.mu.RUnlock()
		if online {
			s.reply(p, protocol.Info("%s is online", target))
		} else {
			s.reply(p, protocol.Info("%s is offline", target))
		}
		return
	}

	s.mu.Lock()
	members, ok := s.groups[target]
	if !ok {
		members = make(map[string]struct{})
		s.groups[target] = members
	}
	_, already := members[p.user]
	members[p.user] = struct{}{}
	recipients := s.peersLocked(target, p.user)
	s.mu.Unlock()

	if !already {
		s.broadcast(recipients, protocol.ListUsr(target, protocol.OpAdd, []string{p.user}))
	}
}

func (s *Server) leave(p *peer, target string) {
	if !instance.IsGroup(target) {
		return
	}
	s.mu.Lock()
	recipients, left := s.leaveLocked(p.user, target)
	s.mu.Unlock()
	if left {
		s.broadcast(recipients, protocol.ListUsr(target, protocol.OpRemove, []string{p.user}))
	}
}

func (s *Server) addUser(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[p.user]; exists || s.closed {
		return false
	}
	s.users[p.user] = p
	return true
}

func (s *Server) disconnect(p *peer) {
	type notice struct {
		group      string
		recipients []*peer
	}
	var notices []notice

	s.mu.Lock()
	if existing, ok := s.users[p.user]; ok && existing == p {
		delete(s.users, p.user)
		for group := range s.groups {
			if recipients, left := s.leaveLocked(p.user, group); left {
				notices = append(notices, notice{group: group, recipients: recipients})
			}
		}
	}
	s.mu.Unlock()

	for _, n := range notices {
		s.broadcast(n.recipients, protocol.ListUsr(n.group, protocol.OpRemove, []string{p.user}))
	}
}

// leaveLocked removes user from group, dropping empty groups, and returns
// the remaining online members to notify.
func (s *Server) leaveLocked(user, group string) ([]*peer, bool) {
	members, ok := s.groups[group]
	if !ok {
		return nil, false
	}
	if _, member := members[user]; !member {
		return nil, false
	}
	delete(members, user)
	if len(members) == 0 {
		delete(s.groups, group)
		return nil, true
	}
	return s.peersLocked(group, user), true
}

func (s *Server) membersLocked(group string) []string {
	members := make([]string, 0, len(s.groups[group]))
	for user := range s.groups[group] {
		members = append(members, user)
	}
	slices.Sort(members)
	return members
}

// peersLocked returns the online members of group other than except.
func (s *Server) peersLocked(group, except string) []*peer {
	var peers []*peer
	for _, user := range s.membersLocked(group) {
		if user == except {
			continue
		}
		if p := s.users[user]; p != nil {
			peers = append(peers, p)
		}
	}
	return peers
}

func (s *Server) broadcast(recipients []*peer, cmd protocol.Command) {
	for _, p := range recipients {
		if err := p.send(cmd); err != nil {
			s.logger.Warn().Err(err).Str("user", p.user).Str("cmd", string(cmd.Cmd)).Msg("broadcast failed")
		}
	}
}

func (s *Server) reply(p *peer, cmd protocol.Command) {
	if err := p.send(cmd); err != nil {
		s.logger.Debug().Err(err).Str("user", p.user).Msg("reply failed")
	}
}
