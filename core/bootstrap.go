package core

import (
	"context"
	"errors"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/mac"
	"github.com/unet-mesh/unet/nwk"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/storage"
	"github.com/unet-mesh/unet/wire"
)

// Bootstrap runs the association join (spec §4.3.7) once, before a Core
// exists: it loads a persisted storage.Identity if one exists, and
// otherwise drives an nwk.AssocClient directly against r until it joins
// a PAN or exhausts its attempts, then persists the result. Coordinators
// never call this; their Config.SelfShort/SelfPAN are fixed at 0x0000
// and whatever PAN id the deployment assigns.
//
// It runs its own minimal receive loop rather than reusing a Core,
// since a Core's mac.Parser needs the SelfShort/SelfPAN this function
// is the one discovering.
func Bootstrap(ctx context.Context, r radio.Radio, store storage.Store, log netlog.Logger, eui uint64) (storage.Identity, error) {
	log = netlog.OrNop(log)

	id, err := store.Load()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Identity{}, err
	}

	if err := r.Reset(ctx); err != nil {
		return storage.Identity{}, err
	}

	client := nwk.NewAssocClient(r, store, eui)

	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go bootstrapRecvLoop(recvCtx, r, client, log)

	return client.Run(ctx, 4)
}

// bootstrapRecvLoop is a stripped-down stand-in for reactor.Reactor +
// mac.Parser, scoped to the two frame types an associating node needs
// (Beacon, AssociationResponse); everything else is dropped, since no
// Responder or Router exists yet to act on it.
func bootstrapRecvLoop(ctx context.Context, r radio.Radio, client *nwk.AssocClient, log netlog.Logger) {
	for {
		status, err := r.WaitForInterrupt(ctx)
		if err != nil {
			return
		}
		if !status.RxReady {
			continue
		}
		raw, ok, err := r.Receive()
		if err != nil || !ok {
			continue
		}
		res, err := wire.Decode(raw)
		if err != nil || !res.CRCOk {
			continue
		}
		switch res.Frame.Control.Type {
		case wire.FrameTypeBeacon:
			beacon, err := wire.DecodeBeacon(res.Frame.Payload)
			if err != nil {
				continue
			}
			client.Beacon(beacon, r.RSSI())
		case wire.FrameTypeMACCommand:
			if len(res.Frame.Payload) > 0 && res.Frame.Payload[0] == mac.CmdAssociationResponse {
				client.AssociationResponse(res.Frame)
			}
		}
	}
}
