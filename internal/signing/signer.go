// Package signing builds the canonical key-issuance request body and the
// keyed authentication tag attached to it. The receiving endpoint verifies
// the tag against the exact bytes it received, so Build must be byte-for-byte
// deterministic: no randomness, no timestamps, stable field order.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Header is the HTTP header carrying the request tag.
const Header = "X-Nexus-Signature"

// Request is the canonical issuance request shape. Field order is fixed by
// the struct definition; encoding/json preserves it.
type Request struct {
	Item struct {
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
		Quantity int `json:"quantity"`
	} `json:"item"`
	User struct {
		ID      string `json:"id"`
		Discord string `json:"discord"`
	} `json:"user"`
	Meta struct {
		Service string `json:"service"`
		Hours   int    `json:"hours"`
	} `json:"meta"`
}

// Signer produces signed issuance request bodies using a process-wide shared
// secret. The zero value is unusable; construct with a non-empty secret.
type Signer struct {
	secret []byte
	tier   string
}

// New returns a Signer using the given shared secret and product tier label.
func New(secret []byte, tier string) *Signer {
	return &Signer{secret: secret, tier: tier}
}

// Build serializes the canonical request body for a requester and service and
// computes the lowercase-hex HMAC-SHA256 tag over the exact body bytes.
// Identical inputs always yield identical body bytes and tag.
func (s *Signer) Build(requesterID, requesterTag, service string, hours int) (body []byte, tag string, err error) {
	var req Request
	req.Item.Product.Name = s.tier + " Key"
	req.Item.Quantity = 1
	req.User.ID = requesterID
	req.User.Discord = requesterTag
	req.Meta.Service = service
	req.Meta.Hours = hours

	body, err = json.Marshal(req)
	if err != nil {
		return nil, "", err
	}
	return body, s.Tag(body), nil
}

// Tag computes the lowercase-hex HMAC-SHA256 tag over body.
func (s *Signer) Tag(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether tag is a valid tag for body, in constant time.
func (s *Signer) Verify(body []byte, tag string) bool {
	want, err := hex.DecodeString(tag)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
