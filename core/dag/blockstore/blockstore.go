package blockstore

import (
	"fmt"
	"iter"
	"sync"

	"github.com/candorlabs/go-ucankit/core/ipld"
)

type BlockReader interface {
	Get(link ipld.Link) (ipld.Block, bool, error)
	Iterator() iter.Seq2[ipld.Block, error]
}

type BlockWriter interface {
	Put(block ipld.Block) error
}

type BlockStore interface {
	BlockReader
	BlockWriter
}

// blockreader indexes blocks by their canonical link string. Link values
// from different codecs are not comparable so the string form is the map key.
type blockreader struct {
	keys []string
	blks map[string]ipld.Block
}

func (br *blockreader) Get(link ipld.Link) (ipld.Block, bool, error) {
	b, ok := br.blks[link.String()]
	return b, ok, nil
}

func (br *blockreader) Iterator() iter.Seq2[ipld.Block, error] {
	return func(yield func(ipld.Block, error) bool) {
		for _, k := range br.keys {
			v, ok := br.blks[k]
			var err error
			if !ok {
				err = fmt.Errorf("missing block for key: %s", k)
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

type blockstore struct {
	mutex sync.RWMutex
	blockreader
}

func (bs *blockstore) Put(block ipld.Block) error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	key := block.Link().String()
	if _, ok := bs.blks[key]; ok {
		return nil
	}

	bs.blks[key] = block
	bs.keys = append(bs.keys, key)

	return nil
}

func (bs *blockstore) Get(link ipld.Link) (ipld.Block, bool, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	return bs.blockreader.Get(link)
}

func (bs *blockstore) Iterator() iter.Seq2[ipld.Block, error] {
	return func(yield func(ipld.Block, error) bool) {
		bs.mutex.RLock()
		keys := make([]string, len(bs.keys))
		copy(keys, bs.keys)
		bs.mutex.RUnlock()

		for _, k := range keys {
			bs.mutex.RLock()
			v, ok := bs.blks[k]
			bs.mutex.RUnlock()
			var err error
			if !ok {
				err = fmt.Errorf("missing block for key: %s", k)
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

// Option is an option configuring a block reader/writer.
type Option func(cfg *bsConfig) error

type bsConfig struct {
	blks     []ipld.Block
	blksiter iter.Seq2[ipld.Block, error]
}

// WithBlocks configures the blocks the blockstore should contain.
func WithBlocks(blks []ipld.Block) Option {
	return func(cfg *bsConfig) error {
		cfg.blks = blks
		return nil
	}
}

// WithBlocksIterator configures the blocks the blockstore should contain.
func WithBlocksIterator(blks iter.Seq2[ipld.Block, error]) Option {
	return func(cfg *bsConfig) error {
		cfg.blksiter = blks
		return nil
	}
}

func NewBlockStore(options ...Option) (BlockStore, error) {
	cfg := bsConfig{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	bs := &blockstore{
		blockreader: blockreader{
			keys: []string{},
			blks: map[string]ipld.Block{},
		},
	}
	for _, b := range cfg.blks {
		if err := bs.Put(b); err != nil {
			return nil, err
		}
	}
	if cfg.blksiter != nil {
		for b, err := range cfg.blksiter {
			if err != nil {
				return nil, err
			}
			if err := bs.Put(b); err != nil {
				return nil, err
			}
		}
	}
	return bs, nil
}

func NewBlockReader(options ...Option) (BlockReader, error) {
	cfg := bsConfig{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	keys := []string{}
	blks := map[string]ipld.Block{}

	add := func(b ipld.Block) {
		key := b.Link().String()
		if _, ok := blks[key]; ok {
			return
		}
		blks[key] = b
		keys = append(keys, key)
	}

	for _, b := range cfg.blks {
		add(b)
	}
	if cfg.blksiter != nil {
		for b, err := range cfg.blksiter {
			if err != nil {
				return nil, err
			}
			add(b)
		}
	}

	return &blockreader{keys, blks}, nil
}

// WriteInto writes all blocks of a DAG view into a block writer.
func WriteInto(view ipld.View, bs BlockWriter) error {
	for b, err := range view.Blocks() {
		if err != nil {
			return fmt.Errorf("iterating view blocks: %w", err)
		}
		if err := bs.Put(b); err != nil {
			return fmt.Errorf("putting view block: %w", err)
		}
	}
	return nil
}
