package session

import (
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const recordVersion = 1

// record is the stored layout. Integer keys keep entries compact; times are
// Unix milliseconds so they round-trip exactly.
type record struct {
	Version        uint8  `cbor:"1,keyasint"`
	UserID         string `cbor:"2,keyasint"`
	CreatedAt      int64  `cbor:"3,keyasint"`
	LastActivityAt int64  `cbor:"4,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes s. The session id is the storage key and is not stored.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.UserID == "" {
		return nil, errors.New("session user id required")
	}
	return encMode.Marshal(record{
		Version:        recordVersion,
		UserID:         s.UserID,
		CreatedAt:      s.CreatedAt.UnixMilli(),
		LastActivityAt: s.LastActivityAt.UnixMilli(),
	})
}

// Decode parses a stored record. SessionID is left empty for the caller.
func Decode(data []byte) (*Session, error) {
	var r record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Version != recordVersion {
		return nil, errors.New("unsupported session record version")
	}
	if r.UserID == "" {
		return nil, errors.New("session record missing user id")
	}
	return &Session{
		UserID:         r.UserID,
		CreatedAt:      time.UnixMilli(r.CreatedAt),
		LastActivityAt: time.UnixMilli(r.LastActivityAt),
	}, nil
}
