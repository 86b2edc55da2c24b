package dbbadger

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
)

// repoManager holds the badgerhold store backing the order ledger.
type repoManager struct {
	store *badgerhold.Store

	payoutOrderRepository domain.PayoutOrderRepository
}

// NewRepoManager opens (or creates if missing) the badger store on disk and
// returns a RepoManager backed by it. It expects a base data dir and an
// optional logger.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	store, err := createDb(baseDbDir+"/orders", logger)
	if err != nil {
		return nil, fmt.Errorf("opening orders db: %w", err)
	}

	return &repoManager{
		store:                 store,
		payoutOrderRepository: NewPayoutOrderRepositoryImpl(store),
	}, nil
}

func (d *repoManager) PayoutOrderRepository() domain.PayoutOrderRepository {
	return d.payoutOrderRepository
}

func (d *repoManager) Close() {
	if err := d.store.Close(); err != nil {
		panic(err)
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.Compression = 0

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
