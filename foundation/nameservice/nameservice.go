// Package nameservice reads the key folder and creates a name service
// lookup for wallet addresses.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// NameService maintains a map of wallet addresses for name lookup.
type NameService struct {
	addresses map[wallet.Address]string
}

// New constructs a name service from the key files in the specified
// folder. The file name becomes the wallet's name.
func New(root string) (*NameService, error) {
	ns := NameService{
		addresses: make(map[wallet.Address]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		keys, err := wallet.LoadKeys(fileName)
		if err != nil {
			return err
		}

		ns.addresses[keys.Address()] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address.
func (ns *NameService) Lookup(addr wallet.Address) string {
	name, exists := ns.addresses[addr]
	if !exists {
		return string(addr)
	}
	return name
}

// Copy returns a copy of the map of names and addresses.
func (ns *NameService) Copy() map[wallet.Address]string {
	cpy := make(map[wallet.Address]string, len(ns.addresses))
	for addr, name := range ns.addresses {
		cpy[addr] = name
	}
	return cpy
}
