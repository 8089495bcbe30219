package signaling

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// OfferType tags the only offer kind understood here.
const OfferType = "tcp-offer"

// ErrInvalidOffer is returned by ParseOffer for anything that is not a
// well-formed TCP offer.
var ErrInvalidOffer = errors.New("invalid offer")

// Offer announces a file and the address where the sender waits for exactly
// one connection.
type Offer struct {
	Type   string `json:"type"`
	IP     string `json:"ip"`
	Port   uint16 `json:"port"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
	Chunk  int32  `json:"chunk"`
}

// Addr returns the host:port to dial.
func (o Offer) Addr() string {
	return net.JoinHostPort(o.IP, strconv.Itoa(int(o.Port)))
}

// Validate checks the offer invariants.
func (o Offer) Validate() error {
	switch {
	case o.Type != OfferType:
		return fmt.Errorf("%w: type %q", ErrInvalidOffer, o.Type)
	case o.Size < 0:
		return fmt.Errorf("%w: negative size %d", ErrInvalidOffer, o.Size)
	case o.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidOffer)
	case net.ParseIP(o.IP) == nil:
		return fmt.Errorf("%w: ip %q", ErrInvalidOffer, o.IP)
	case o.Port == 0:
		return fmt.Errorf("%w: missing port", ErrInvalidOffer)
	}
	if o.SHA256 != "" {
		if b, err := hex.DecodeString(o.SHA256); err != nil || len(b) != 32 {
			return fmt.Errorf("%w: sha256 %q", ErrInvalidOffer, o.SHA256)
		}
	}
	return nil
}

// Encode returns the JSON form carried in Message.SDP. The digest is
// written in uppercase.
func (o Offer) Encode() (string, error) {
	o.SHA256 = strings.ToUpper(o.SHA256)
	if err := o.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseOffer decodes and validates an offer. The digest is normalised to
// uppercase hex.
func ParseOffer(s string) (Offer, error) {
	var o Offer
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return Offer{}, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	o.SHA256 = strings.ToUpper(o.SHA256)
	if err := o.Validate(); err != nil {
		return Offer{}, err
	}
	return o, nil
}
