// Package store implements the content addressed block store. Blocks are
// persisted under their indep hash and transactions under their ids, each
// in its own file, with the most recent blocks kept hot in memory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
)

// ErrNotFound is returned when the requested block or transaction is not
// in the store.
var ErrNotFound = errors.New("not found")

// Store manages reading and writing blocks and transactions to disk.
// Writes are not deduplicated: writing a block that is already stored
// writes its files again with the same content.
type Store struct {
	mu        sync.RWMutex
	dbPath    string
	hot       map[string]block.Block
	hotOrder  []string
	keepLast  int
}

// New constructs a store rooted at the specified path, creating the
// block and transaction directories as needed.
func New(dbPath string) (*Store, error) {
	for _, dir := range []string{blocksDir(dbPath), txsDir(dbPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage path: %w", err)
		}
	}

	return &Store{
		dbPath:   dbPath,
		hot:      make(map[string]block.Block),
		keepLast: genesis.KeepLastBlocks,
	}, nil
}

// KeepLast returns the size of the hot block window.
func (s *Store) KeepLast() int {
	return s.keepLast
}

// Close releases the store. Files are closed per operation so there is
// nothing to flush.
func (s *Store) Close() error {
	return nil
}

// WriteBlock persists a block under its indep hash and each of its
// transactions under their ids. An already stored block is written again,
// with the same content since the content under a hash never changes.
func (s *Store) WriteBlock(b block.Block) error {
	if err := writeJSON(s.blockPath(b.IndepHash), b); err != nil {
		return fmt.Errorf("write block: %w", err)
	}

	if err := s.WriteTxs(b.Txs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache(b)

	return nil
}

// WriteTxs persists a set of transactions under their ids, independent of
// any block. Fork recovery stores recall transactions this way before the
// surrounding block is accepted.
func (s *Store) WriteTxs(txs []tx.Tx) error {
	for _, t := range txs {
		if err := writeJSON(s.txPath(t.ID), t); err != nil {
			return fmt.Errorf("write tx: %w", err)
		}
	}

	return nil
}

// GetBlock returns the block stored under the specified indep hash,
// serving from the hot cache when possible.
func (s *Store) GetBlock(indepHash []byte) (block.Block, error) {
	s.mu.RLock()
	b, exists := s.hot[signature.Hex(indepHash)]
	s.mu.RUnlock()
	if exists {
		return b, nil
	}

	var blk block.Block
	if err := readJSON(s.blockPath(indepHash), &blk); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return block.Block{}, ErrNotFound
		}
		return block.Block{}, err
	}

	return blk, nil
}

// GetTx returns the transaction stored under the specified id.
func (s *Store) GetTx(id []byte) (tx.Tx, error) {
	var t tx.Tx
	if err := readJSON(s.txPath(id), &t); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tx.Tx{}, ErrNotFound
		}
		return tx.Tx{}, err
	}

	return t, nil
}

// ForEach walks a hash list oldest first, yielding each stored block.
// The walk stops at the first block the store does not hold.
func (s *Store) ForEach(hashList [][]byte) Iterator {
	return Iterator{store: s, hashList: hashList, next: len(hashList) - 1}
}

// =============================================================================

// Iterator walks the blocks of a hash list from the store.
type Iterator struct {
	store    *Store
	hashList [][]byte
	next     int
	done     bool
}

// Next returns the next block in the walk.
func (it *Iterator) Next() (block.Block, error) {
	if it.done || it.next < 0 {
		it.done = true
		return block.Block{}, ErrNotFound
	}

	b, err := it.store.GetBlock(it.hashList[it.next])
	if err != nil {
		it.done = true
		return block.Block{}, err
	}

	it.next--
	return b, nil
}

// Done reports whether the walk is over.
func (it *Iterator) Done() bool {
	return it.done || it.next < 0
}

// =============================================================================

// cache keeps the block hot and evicts the oldest once the hot set
// exceeds the keep last bound. Callers must hold the write lock.
func (s *Store) cache(b block.Block) {
	key := signature.Hex(b.IndepHash)
	if _, exists := s.hot[key]; exists {
		return
	}

	s.hot[key] = b
	s.hotOrder = append(s.hotOrder, key)

	for len(s.hotOrder) > s.keepLast {
		delete(s.hot, s.hotOrder[0])
		s.hotOrder = s.hotOrder[1:]
	}
}

func (s *Store) blockPath(indepHash []byte) string {
	return filepath.Join(blocksDir(s.dbPath), signature.Hex(indepHash)+".json")
}

func (s *Store) txPath(id []byte) string {
	return filepath.Join(txsDir(s.dbPath), signature.Hex(id)+".json")
}

func blocksDir(dbPath string) string {
	return filepath.Join(dbPath, "blocks")
}

func txsDir(dbPath string) string {
	return filepath.Join(dbPath, "txs")
}

// writeJSON writes a value to its own file in a human readable format.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}

	return nil
}

// readJSON decodes the contents of a single value file.
func readJSON(path string, v any) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(v)
}
