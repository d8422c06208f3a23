// Package storage persists user accounts and the trade journal.
package storage

import (
	"fmt"

	"github.com/raykavin/tonpairs/pkg/core"
)

// Driver names accepted by Open
const (
	DriverBuntDB = "buntdb"
	DriverSQLite = "sqlite"
)

// Storage is the union of the persistence capabilities used by the bot
type Storage interface {
	core.UserStore
	core.TradeStorage
	Close() error
}

// Open creates a storage for the named driver
func Open(driver, path string) (Storage, error) {
	switch driver {
	case DriverBuntDB:
		return FromFile(path)
	case DriverSQLite:
		return FromSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
