package feed

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/classifieds/backend/internal/repository"
)

const cursorDelimiter = "::"

// Cursor marks where the previous page stopped
type Cursor struct {
	Sort      SortMode
	Key       float64
	CreatedAt time.Time
	ID        string
	Filter    string
}

// Keyset returns the repository position for the cursor
func (c Cursor) Keyset() repository.Keyset {
	return repository.Keyset{Key: c.Key, CreatedAt: c.CreatedAt, ID: c.ID}
}

// CursorCodec signs and verifies cursors with HMAC-SHA256
type CursorCodec struct {
	secret []byte
}

// NewCursorCodec creates a codec for secret
func NewCursorCodec(secret string) *CursorCodec {
	return &CursorCodec{secret: []byte(secret)}
}

// Encode serializes c as base64url(payload::signature)
func (cc *CursorCodec) Encode(c Cursor) string {
	payload := strings.Join([]string{
		string(c.Sort),
		strconv.FormatFloat(c.Key, 'g', -1, 64),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.ID,
		c.Filter,
	}, cursorDelimiter)

	token := payload + cursorDelimiter + cc.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token))
}

// Decode parses and verifies token. It returns false for anything malformed,
// tampered with, or issued for a different sort or filter set.
func (cc *CursorCodec) Decode(token string, sort SortMode, filterHash string) (Cursor, bool) {
	if token == "" {
		return Cursor{}, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false
	}

	decoded := string(raw)
	idx := strings.LastIndex(decoded, cursorDelimiter)
	if idx < 0 {
		return Cursor{}, false
	}
	payload, signature := decoded[:idx], decoded[idx+len(cursorDelimiter):]
	if !hmac.Equal([]byte(signature), []byte(cc.sign(payload))) {
		return Cursor{}, false
	}

	parts := strings.Split(payload, cursorDelimiter)
	if len(parts) != 5 {
		return Cursor{}, false
	}

	c := Cursor{Sort: SortMode(parts[0]), ID: parts[3], Filter: parts[4]}
	if c.Sort != sort || c.Filter != filterHash || c.ID == "" {
		return Cursor{}, false
	}
	if c.Key, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return Cursor{}, false
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, parts[2]); err != nil {
		return Cursor{}, false
	}
	return c, true
}

func (cc *CursorCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, cc.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
