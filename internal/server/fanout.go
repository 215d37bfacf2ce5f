package server

import (
	"github.com/mintora/mintora/internal/catalog"
	"github.com/mintora/mintora/internal/p2p"
)

// transferEventFanout delivers a transfer update to every attached emitter.
type transferEventFanout []p2p.EventEmitter

func (f transferEventFanout) EmitTransferUpdate(t *p2p.Transfer) {
	for _, e := range f {
		e.EmitTransferUpdate(t)
	}
}

// listingFanout delivers listing announcements to every attached announcer.
type listingFanout []catalog.Announcer

func (f listingFanout) EmitNFTListed(nftID, ownerAddr, price string) {
	for _, a := range f {
		a.EmitNFTListed(nftID, ownerAddr, price)
	}
}
