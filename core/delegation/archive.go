package delegation

import (
	"bytes"
	"fmt"
	"io"

	"github.com/candorlabs/go-ucankit/core/car"
	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	adm "github.com/candorlabs/go-ucankit/core/delegation/datamodel"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
	"github.com/candorlabs/go-ucankit/core/ipld/codec/cbor"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"
	"github.com/candorlabs/go-ucankit/core/result/failure"
)

type decodeFailure struct {
	failure.NamedWithStackTrace
	cause error
}

func (d decodeFailure) Error() string {
	return d.cause.Error()
}

func (d decodeFailure) Unwrap() error {
	return d.cause
}

// NewCARDecodeError is a failure reading the archive container.
func NewCARDecodeError(cause error) failure.Failure {
	return decodeFailure{failure.NamedWithCurrentStackTrace("CARDecodeError"), cause}
}

// NewUnknownArchiveVersionError is a failure matching the archive descriptor
// against the supported version set.
func NewUnknownArchiveVersionError(cause error) failure.Failure {
	return decodeFailure{failure.NamedWithCurrentStackTrace("UnknownArchiveVersion"), cause}
}

// Archive writes a delegation and all blocks reachable from it into a CARv1
// stream. The single root of the CAR is a descriptor block whose
// "ucan@<version>" key links to the delegation root, so the container shape
// survives future version changes.
func Archive(d Delegation) io.Reader {
	// We create a descriptor block to describe what this DAG represents
	variant, err := block.Encode(
		&adm.ArchiveModel{Ucan0_9_1: d.Link()},
		adm.Type(),
		cbor.Codec,
		sha256.Hasher,
	)
	if err != nil {
		reader, _ := io.Pipe()
		reader.CloseWithError(fmt.Errorf("encoding archive variant block: %w", err))
		return reader
	}
	// Create a new reader that contains the new block as well as the others.
	blks, err := blockstore.NewBlockReader(
		blockstore.WithBlocks([]ipld.Block{variant}),
		blockstore.WithBlocksIterator(d.Blocks()),
	)
	if err != nil {
		reader, _ := io.Pipe()
		reader.CloseWithError(fmt.Errorf("creating archive block reader: %w", err))
		return reader
	}
	return car.Encode([]ipld.Link{variant.Link()}, blks.Iterator())
}

// Extract reads a delegation from archive bytes produced by Archive.
func Extract(b []byte) (Delegation, failure.Failure) {
	roots, blocks, err := car.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, NewCARDecodeError(err)
	}
	if len(roots) != 1 {
		return nil, NewCARDecodeError(fmt.Errorf("expected exactly one root, got: %d", len(roots)))
	}

	br, err := blockstore.NewBlockReader(blockstore.WithBlocksIterator(blocks))
	if err != nil {
		return nil, NewCARDecodeError(err)
	}

	variant, ok, err := br.Get(roots[0])
	if err != nil {
		return nil, NewCARDecodeError(err)
	}
	if !ok {
		return nil, NewCARDecodeError(fmt.Errorf("missing archive variant block: %s", roots[0]))
	}

	model := adm.ArchiveModel{}
	if err := block.Decode(variant, &model, adm.Type(), cbor.Codec, sha256.Hasher); err != nil {
		return nil, NewUnknownArchiveVersionError(fmt.Errorf("decoding archive variant: %w", err))
	}
	if model.Ucan0_9_1 == nil {
		return nil, NewUnknownArchiveVersionError(fmt.Errorf("archive variant has no recognized version key"))
	}

	dlg, err := NewDelegationView(model.Ucan0_9_1, br)
	if err != nil {
		return nil, NewCARDecodeError(err)
	}
	return dlg, nil
}
