package model

import "github.com/ethereum/go-ethereum/common"

// At selects the chain state a query reads: the live head or a pinned block.
// The zero value is Live. At is comparable and usable as a map key.
type At struct {
	hash   common.Hash
	pinned bool
}

// Live selects the continuously updating current state.
func Live() At {
	return At{}
}

// AtBlock pins a query to the state at hash.
func AtBlock(hash common.Hash) At {
	return At{hash: hash, pinned: true}
}

// Block returns the pinned block hash, and false for live queries.
func (a At) Block() (common.Hash, bool) {
	return a.hash, a.pinned
}

func (a At) String() string {
	if !a.pinned {
		return "live"
	}
	return a.hash.Hex()
}
