package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/drivelab/orgdrive/pkg/store"
	badgerstore "github.com/drivelab/orgdrive/pkg/store/badger"
	memorystore "github.com/drivelab/orgdrive/pkg/store/memory"
)

// OpenBackend constructs the state store backend selected by cfg.
//
// The returned backend is ready for use; the caller owns Close().
func OpenBackend(cfg *StoreConfig) (store.Backend, error) {
	switch cfg.Type {
	case "memory":
		return memorystore.New(), nil
	case "badger":
		return openBadgerBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

func openBadgerBackend(cfg *StoreConfig) (store.Backend, error) {
	// Decode the badger-specific section into the store's own config
	var badgerCfg badgerstore.Config
	if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	backend, err := badgerstore.Open(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return backend, nil
}
