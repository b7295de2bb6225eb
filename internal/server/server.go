package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/feed"
	bourseNet "bourse/internal/net"
	"bourse/internal/queue"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Server wires the exchange to its clients. Network commands run on the
// transport's workers and only ever queue work or register traders; every
// order is resolved by the single poller goroutine in arrival order.
type Server struct {
	cfg      config.Config
	exchange *engine.Exchange
	queue    *queue.OrderedQueue

	transport *bourseNet.Server
	feed      *feed.Feed
	updater   *PeriodicUpdater

	networkCommands  *CommandHandler
	exchangeCommands *CommandHandler

	lock   sync.Mutex
	cancel context.CancelFunc
}

func Create(cfg config.Config, exchange *engine.Exchange) (*Server, error) {
	s := &Server{
		cfg:              cfg,
		exchange:         exchange,
		queue:            queue.NewOrderedQueue(),
		networkCommands:  NewCommandHandler(),
		exchangeCommands: NewCommandHandler(),
	}

	s.transport = bourseNet.New(cfg.Exchange.Address, cfg.Exchange.Port, cfg.Exchange.Workers, s.handleMessage)

	var publisher Publisher
	if cfg.Feed.Address != "" {
		s.feed = feed.New(exchange)
		publisher = s.feed
	}
	s.updater = NewPeriodicUpdater(exchange, s.transport, publisher, cfg.Updater.Interval)

	for header, command := range map[string]Command{
		bourseNet.HeaderMqPut:          s.mqPut,
		bourseNet.HeaderRegisterTrader: s.registerTrader,
	} {
		if err := s.networkCommands.Register(header, command); err != nil {
			return nil, fmt.Errorf("unable to register %s: %w", header, err)
		}
	}
	if err := s.exchangeCommands.Register(HeaderResolveOrder, s.resolveOrder); err != nil {
		return nil, fmt.Errorf("unable to register %s: %w", HeaderResolveOrder, err)
	}

	return s, nil
}

// Transport exposes the client listener, mainly to find its address.
func (s *Server) Transport() *bourseNet.Server { return s.transport }

// Destroys the server context, and signals to running routines to issue a cleanup.
func (s *Server) Shutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Run blocks until ctx is cancelled, Shutdown is called or a component fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.lock.Lock()
	s.cancel = cancel
	s.lock.Unlock()

	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		return s.transport.Run(ctx)
	})
	t.Go(func() error {
		return s.poll(ctx)
	})
	t.Go(func() error {
		return s.updater.Run(t)
	})
	if s.feed != nil {
		t.Go(func() error {
			return s.feed.Run(ctx, s.cfg.Feed.Address)
		})
	}

	log.Info().Msg("exchange running")
	err := t.Wait()
	log.Info().Msg("exchange stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleMessage runs network commands for frames read off the transport.
func (s *Server) handleMessage(address string, message bourseNet.NetworkMessage) {
	err := s.networkCommands.Execute(message.Header, Request{Address: address, Body: message.Body})
	if err != nil {
		log.Warn().
			Err(err).
			Str("address", address).
			Str("header", message.Header).
			Msg("unable to handle message")
	}
}

// poll is the only goroutine that resolves orders.
func (s *Server) poll(ctx context.Context) error {
	for {
		message, err := s.queue.Wait(ctx)
		if err != nil {
			return nil
		}
		if err := s.exchangeCommands.Execute(message.Header, Request{Body: message.Body}); err != nil {
			log.Warn().
				Err(err).
				Str("header", message.Header).
				Msg("unable to execute queued command")
		}
	}
}
