// Package filestore implements storage.Store as a flat file, laid out
// byte-for-byte the way spec §6 describes NVRAM: a 4-byte short address
// (0xFFFFFFFF sentinel = unassigned), a 4-byte PAN id, an 8-byte EUI.
// Keeping the on-disk layout identical to the real NVRAM format means
// this file could be byte-inspected against a flash dump, or the
// format ported to a real flash driver later without a rewrite.
package filestore

import (
	"encoding/binary"
	"os"

	"github.com/unet-mesh/unet/storage"
)

const recordLen = 4 + 4 + 8

// Store is a storage.Store backed by a single flat file at Path.
type Store struct {
	Path string
}

// New returns a Store persisting to path.
func New(path string) *Store {
	return &Store{Path: path}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) Load() (storage.Identity, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.Identity{}, storage.ErrNotFound
		}
		return storage.Identity{}, err
	}
	if len(data) < recordLen {
		return storage.Identity{}, storage.ErrNotFound
	}

	shortRaw := binary.LittleEndian.Uint32(data[0:4])
	panRaw := binary.LittleEndian.Uint32(data[4:8])
	eui := binary.LittleEndian.Uint64(data[8:16])

	id := storage.Identity{EUI: eui}
	if shortRaw == 0xFFFFFFFF {
		id.ShortAddr = storage.ShortAddrUnassigned
	} else {
		id.ShortAddr = uint16(shortRaw)
	}
	if panRaw == 0xFFFFFFFF {
		id.PANID = 0xFFFF
	} else {
		id.PANID = uint16(panRaw)
	}
	return id, nil
}

func (s *Store) Store(id storage.Identity) error {
	var buf [recordLen]byte

	shortRaw := uint32(id.ShortAddr)
	if id.ShortAddr == storage.ShortAddrUnassigned {
		shortRaw = 0xFFFFFFFF
	}
	panRaw := uint32(id.PANID)
	if id.PANID == 0xFFFF {
		panRaw = 0xFFFFFFFF
	}

	binary.LittleEndian.PutUint32(buf[0:4], shortRaw)
	binary.LittleEndian.PutUint32(buf[4:8], panRaw)
	binary.LittleEndian.PutUint64(buf[8:16], id.EUI)

	return os.WriteFile(s.Path, buf[:], 0o600)
}
