package datamodel

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/schema"
)

//go:embed archive.ipldsch
var archivesch []byte

var (
	once sync.Once
	ts   *schema.TypeSystem
	err  error
)

func mustLoadSchema() *schema.TypeSystem {
	once.Do(func() {
		ts, err = ipld.LoadSchemaBytes(archivesch)
	})
	if err != nil {
		panic(fmt.Errorf("failed to load IPLD schema: %s", err))
	}
	return ts
}

func Type() schema.Type {
	return mustLoadSchema().TypeByName("Archive")
}

// ArchiveModel is the descriptor block placed at the root of a delegation
// archive. The single populated field names the UCAN version of the root
// block it links to, allowing the container shape to survive future version
// changes.
type ArchiveModel struct {
	Ucan0_9_1 ipld.Link
}
