package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	. "bourse/internal/common"
	"bourse/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidOrder   = errors.New("invalid order")
)

// Headers of commands run by the order poller.
const (
	HeaderResolveOrder = "resolveOrder"
)

// Request carries a command's argument. Address is the client that sent it,
// empty for commands taken off the queue.
type Request struct {
	Address string
	Body    string
}

type Command func(req Request) error

// CommandHandler dispatches requests by header.
type CommandHandler struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewCommandHandler() *CommandHandler {
	return &CommandHandler{commands: make(map[string]Command)}
}

// Register binds a command to a header, replacing any earlier binding.
func (h *CommandHandler) Register(header string, command Command) error {
	if header == "" || command == nil {
		return ErrInvalidCommand
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[header] = command
	return nil
}

func (h *CommandHandler) Execute(header string, req Request) error {
	h.mu.RLock()
	command, ok := h.commands[header]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, header)
	}
	return command(req)
}

// mqPut queues a message for the order poller.
func (s *Server) mqPut(req Request) error {
	message, err := queue.DecodeMessage(req.Body)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(message)
}

// registerTrader subscribes the sending client to updates for a trader.
func (s *Server) registerTrader(req Request) error {
	traderID := strings.TrimSpace(req.Body)
	if traderID == "" {
		return fmt.Errorf("%w: empty trader id", ErrInvalidCommand)
	}
	s.updater.Register(traderID, req.Address)
	return nil
}

// resolveOrder decodes an order and hands it to the exchange. Orders without
// a kind are limit orders and orders without an id are given one.
func (s *Server) resolveOrder(req Request) error {
	var order Order
	if err := json.Unmarshal([]byte(req.Body), &order); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	if order.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidOrder, order.Quantity)
	}
	if order.LimitPrice < 0 {
		return fmt.Errorf("%w: limit price %d", ErrInvalidOrder, order.LimitPrice)
	}
	if order.Kind == "" {
		order.Kind = LimitOrder
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	log.Debug().
		Str("order", order.ID).
		Str("trader", order.TraderID).
		Str("stock", order.StockID).
		Stringer("side", order.Side).
		Msg("resolving order")
	return s.exchange.Resolve(&order)
}
