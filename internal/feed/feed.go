package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	. "bourse/internal/common"
	"bourse/internal/engine"
	"bourse/internal/ledger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only and public.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Source is the read side of the exchange the feed serves from.
type Source interface {
	Stocks() []ledger.Stock
	Stock(symbol string) (ledger.Stock, bool)
	Trader(id string) (ledger.Trader, bool)
	Book(stockID string, side Side) ([]Order, error)
}

type BookResponse struct {
	Symbol string  `json:"symbol"`
	Bids   []Order `json:"bids"`
	Asks   []Order `json:"asks"`
}

// Feed serves exchange state over HTTP and streams published snapshots over
// a websocket. Nothing it exposes can change the exchange.
type Feed struct {
	source Source
	router *mux.Router
	hub    *hub[[]byte]

	mu     sync.RWMutex
	latest []byte
}

func New(source Source) *Feed {
	f := &Feed{
		source: source,
		router: mux.NewRouter(),
		hub:    newHub[[]byte](),
	}
	f.setupRoutes()
	return f
}

func (f *Feed) setupRoutes() {
	// Subrouters report a method mismatch as 404 unless told otherwise.
	f.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	api := f.router.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = f.router.MethodNotAllowedHandler
	api.HandleFunc("/stocks", f.handleGetStocks).Methods(http.MethodGet)
	api.HandleFunc("/traders/{id}", f.handleGetTrader).Methods(http.MethodGet)
	api.HandleFunc("/book/{symbol}", f.handleGetBook).Methods(http.MethodGet)

	f.router.HandleFunc("/ws", f.handleWebSocket)
	f.router.HandleFunc("/health", f.handleHealth).Methods(http.MethodGet)
}

func (f *Feed) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	}).Handler(f.router)
}

// Publish sends a snapshot to every websocket subscriber and keeps it for
// subscribers that connect later.
func (f *Feed) Publish(snapshot engine.Snapshot) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("unable to encode snapshot")
		return
	}
	f.mu.Lock()
	f.latest = raw
	f.mu.Unlock()
	f.hub.Broadcast(raw)
}

// Run serves the feed on address until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           f.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	t, _ := tomb.WithContext(ctx)

	t.Go(func() error {
		log.Info().Str("address", address).Msg("feed running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	t.Go(func() error {
		<-t.Dying()
		f.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (f *Feed) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": f.hub.Len(),
	})
}

func (f *Feed) handleGetStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.source.Stocks())
}

func (f *Feed) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	trader, ok := f.source.Trader(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown trader")
		return
	}
	writeJSON(w, http.StatusOK, trader)
}

func (f *Feed) handleGetBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if _, ok := f.source.Stock(symbol); !ok {
		writeError(w, http.StatusNotFound, "unknown stock")
		return
	}

	bids, err := f.source.Book(symbol, Buy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	asks, err := f.source.Book(symbol, Sell)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, BookResponse{Symbol: symbol, Bids: bids, Asks: asks})
}

// handleWebSocket streams snapshots, starting with the latest one, until the
// peer goes away or the feed shuts down.
func (f *Feed) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub := f.hub.Subscribe(subscriberBuffer)
	defer f.hub.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain the peer so close frames are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	f.mu.RLock()
	latest := f.latest
	f.mu.RUnlock()
	if latest != nil {
		if err := writeMessage(conn, latest); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case raw, ok := <-sub.ch:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closing"),
					time.Now().Add(writeTimeout),
				)
				return
			}
			if err := writeMessage(conn, raw); err != nil {
				log.Debug().Err(err).Msg("websocket subscriber dropped")
				return
			}
		}
	}
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeMessage(conn *websocket.Conn, raw []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("unable to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
