package wire

// AppHeader is the 4-byte application-layer header carried inside the
// NWK payload: which task on the destination node owns the message, a
// profile id scoping Command/Attribute, and the command/attribute pair
// itself.
type AppHeader struct {
	TaskID    byte
	Profile   byte
	Command   byte
	Attribute byte
}

const AppHeaderLen = 4

// Encode writes h as 4 bytes.
func (h AppHeader) Encode() [AppHeaderLen]byte {
	return [AppHeaderLen]byte{h.TaskID, h.Profile, h.Command, h.Attribute}
}

// DecodeAppHeader parses the first AppHeaderLen bytes of buf.
func DecodeAppHeader(buf []byte) (AppHeader, []byte, error) {
	if len(buf) < AppHeaderLen {
		return AppHeader{}, nil, ErrFrameTooShort
	}
	h := AppHeader{
		TaskID:    buf[0],
		Profile:   buf[1],
		Command:   buf[2],
		Attribute: buf[3],
	}
	return h, buf[AppHeaderLen:], nil
}
