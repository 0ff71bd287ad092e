package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	hashids "github.com/speps/go-hashids/v2"
)

// ErrInvalidReference is returned when a merchant reference cannot be decoded.
var ErrInvalidReference = errors.New("payment: invalid merchant reference")

// ReferenceCodec obfuscates order ids sent to the processor. The second encoded
// number is a time salt that is discarded on decode. It is not a security boundary:
// anyone who knows the alphabet and salt can decode or forge references.
type ReferenceCodec struct {
	// Salt is the hashids salt. Empty keeps references compatible with the
	// default configuration used by existing merchant integrations.
	Salt  string
	Clock func() time.Time
}

func (c ReferenceCodec) hasher() (*hashids.HashID, error) {
	data := hashids.NewData()
	data.Salt = c.Salt
	return hashids.NewWithData(data)
}

func (c ReferenceCodec) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Encode produces the merchant reference for orderID.
func (c ReferenceCodec) Encode(orderID int64) (string, error) {
	if orderID < 0 {
		return "", fmt.Errorf("encode reference: negative order id %d", orderID)
	}
	h, err := c.hasher()
	if err != nil {
		return "", fmt.Errorf("encode reference: %w", err)
	}
	salt := c.now().Unix()
	if salt < 0 {
		salt = 0
	}
	ref, err := h.EncodeInt64([]int64{orderID, salt})
	if err != nil {
		return "", fmt.Errorf("encode reference: %w", err)
	}
	return ref, nil
}

// Decode returns the order id carried by ref.
func (c ReferenceCodec) Decode(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, ErrInvalidReference
	}
	h, err := c.hasher()
	if err != nil {
		return 0, fmt.Errorf("decode reference: %w", err)
	}
	numbers, err := h.DecodeInt64WithError(ref)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if len(numbers) == 0 {
		return 0, ErrInvalidReference
	}
	return numbers[0], nil
}
