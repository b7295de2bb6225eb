package server

import (
	"encoding/json"
	"maps"
	"sync"
	"time"

	"bourse/internal/engine"
	bourseNet "bourse/internal/net"
	"bourse/internal/queue"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

type Sender interface {
	Send(address string, message bourseNet.NetworkMessage) error
}

type Publisher interface {
	Publish(snapshot engine.Snapshot)
}

// PeriodicUpdater pushes the stock list and their own account to every
// registered trader on a fixed interval.
type PeriodicUpdater struct {
	source    SnapshotSource
	sender    Sender
	publisher Publisher
	interval  time.Duration

	lock    sync.Mutex
	traders map[string]string // trader id to client address
}

// NewPeriodicUpdater builds an updater. publisher may be nil.
func NewPeriodicUpdater(source SnapshotSource, sender Sender, publisher Publisher, interval time.Duration) *PeriodicUpdater {
	if interval <= 0 {
		interval = time.Second
	}
	return &PeriodicUpdater{
		source:    source,
		sender:    sender,
		publisher: publisher,
		interval:  interval,
		traders:   make(map[string]string),
	}
}

// Register routes a trader's updates to a client, replacing any earlier
// client for the same trader.
func (u *PeriodicUpdater) Register(traderID, address string) {
	u.lock.Lock()
	u.traders[traderID] = address
	u.lock.Unlock()
	log.Info().Str("trader", traderID).Str("address", address).Msg("registered trader")
}

// unregister drops a trader if it is still routed to address.
func (u *PeriodicUpdater) unregister(traderID, address string) {
	u.lock.Lock()
	defer u.lock.Unlock()
	if u.traders[traderID] == address {
		delete(u.traders, traderID)
	}
}

func (u *PeriodicUpdater) Registered() map[string]string {
	u.lock.Lock()
	defer u.lock.Unlock()
	return maps.Clone(u.traders)
}

func (u *PeriodicUpdater) Run(t *tomb.Tomb) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", u.interval).Msg("periodic updater running")
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			u.SendUpdates()
		}
	}
}

// SendUpdates takes one snapshot and sends it out. Traders are only updated
// while there are stocks listed; a trader whose client cannot be reached is
// unregistered.
func (u *PeriodicUpdater) SendUpdates() {
	snapshot := u.source.Snapshot()
	if u.publisher != nil {
		u.publisher.Publish(snapshot)
	}
	if len(snapshot.Stocks) == 0 {
		return
	}

	stocks, err := json.Marshal(snapshot.Stocks)
	if err != nil {
		log.Error().Err(err).Msg("unable to encode stocks")
		return
	}

	for traderID, address := range u.Registered() {
		trader, ok := snapshot.Trader(traderID)
		if !ok {
			continue
		}
		account, err := json.Marshal(trader)
		if err != nil {
			log.Error().Err(err).Str("trader", traderID).Msg("unable to encode trader")
			continue
		}

		updates := []struct {
			header  string
			payload []byte
		}{
			{bourseNet.HeaderUpdateStocks, stocks},
			{bourseNet.HeaderUpdateTrader, account},
		}
		for _, update := range updates {
			body, err := queue.NewMessage(traderID, string(update.payload)).Encode()
			if err != nil {
				log.Error().Err(err).Str("trader", traderID).Msg("unable to encode update")
				break
			}
			if err := u.sender.Send(address, bourseNet.NewNetworkMessage(update.header, body)); err != nil {
				log.Warn().
					Err(err).
					Str("trader", traderID).
					Str("address", address).
					Msg("unregistering unreachable trader")
				u.unregister(traderID, address)
				break
			}
		}
	}
}
