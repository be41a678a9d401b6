// Package encoding seals component props for transport in reload URLs.
//
// Props are serialized with msgpack and either signed (visible but
// tamper-proof) or encrypted (opaque). Every payload is bound to a purpose,
// normally the component name, so props sealed for one component cannot be
// replayed against another.
package encoding

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Decode.
var (
	ErrFormat    = errors.New("encoding: malformed payload")
	ErrSignature = errors.New("encoding: signature verification failed")
	ErrDecrypt   = errors.New("encoding: decryption failed")
)

// Encoder seals and opens props.
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates an encoder. Keys shorter than 32 bytes are stretched
// with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encoder{key: key, gcm: gcm}, nil
}

// Encodable is implemented by props that choose their own wire form.
// Props types may implement it; other values are marshalled as they are.
type Encodable interface {
	HXEncode() map[string]any
}

// Decodable is the counterpart of Encodable.
type Decodable interface {
	HXDecode(map[string]any) error
}

// Encode serializes v for purpose. If sensitive is true the payload is
// encrypted; otherwise it is signed.
func (e *Encoder) Encode(purpose string, v any, sensitive bool) (string, error) {
	if enc, ok := v.(Encodable); ok {
		v = enc.HXEncode()
	}
	packed, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding: marshal %T: %w", v, err)
	}

	if sensitive {
		return e.encrypt(purpose, packed)
	}
	return e.sign(purpose, packed), nil
}

// Decode opens a payload produced by Encode for the same purpose and
// sensitivity and unmarshals it into v.
func (e *Encoder) Decode(purpose, encoded string, sensitive bool, v any) error {
	var packed []byte
	var err error
	if sensitive {
		packed, err = e.decrypt(purpose, encoded)
	} else {
		packed, err = e.verify(purpose, encoded)
	}
	if err != nil {
		return err
	}

	if dec, ok := v.(Decodable); ok {
		var data map[string]any
		if err := msgpack.Unmarshal(packed, &data); err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return dec.HXDecode(data)
	}
	if err := msgpack.Unmarshal(packed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return nil
}

func (e *Encoder) mac(purpose string, data []byte) []byte {
	mac := hmac.New(sha256.New, e.key)
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write(data)
	return mac.Sum(nil)[:16]
}

// sign returns base64(data) "." base64(mac).
func (e *Encoder) sign(purpose string, data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(e.mac(purpose, data))
}

func (e *Encoder) verify(purpose, encoded string) ([]byte, error) {
	body, sig, ok := strings.Cut(encoded, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrFormat)
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if !hmac.Equal(got, e.mac(purpose, data)) {
		return nil, ErrSignature
	}
	return data, nil
}

// encrypt seals data with AES-256-GCM, using purpose as additional data.
func (e *Encoder) encrypt(purpose string, data []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := e.gcm.Seal(nonce, nonce, data, []byte(purpose))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Encoder) decrypt(purpose, encoded string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(sealed) < e.gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrFormat)
	}
	nonce, ciphertext := sealed[:e.gcm.NonceSize()], sealed[e.gcm.NonceSize():]
	data, err := e.gcm.Open(nil, nonce, ciphertext, []byte(purpose))
	if err != nil {
		return nil, ErrDecrypt
	}
	return data, nil
}
