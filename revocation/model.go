package revocation

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrCacheMiss is returned by CachedAccount when no snapshot is stored.
var ErrCacheMiss = errors.New("account cache miss")

// ErrCacheCorrupt is returned when a stored snapshot cannot be decoded.
var ErrCacheCorrupt = errors.New("account cache corrupt")

// Account is the cached view of an account used on the refresh path.
type Account struct {
	ID       string `cbor:"1,keyasint"`
	Identity string `cbor:"2,keyasint"`
	Active   bool   `cbor:"3,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("revocation: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("revocation: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes an account snapshot.
func Encode(a *Account) ([]byte, error) {
	if a == nil || a.ID == "" {
		return nil, errors.New("account snapshot requires an id")
	}
	return encMode.Marshal(a)
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*Account, error) {
	var a Account
	if err := decMode.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	if a.ID == "" {
		return nil, ErrCacheCorrupt
	}
	return &a, nil
}
