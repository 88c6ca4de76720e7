package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/MrEthical07/selfauth"
)

const sessionFormatVersionCurrent = 1

// ErrCorruptSession is returned by Decode for blobs it cannot parse.
var ErrCorruptSession = errors.New("session blob corrupt")

// Encode serializes s into the compact stored form:
//
//	version | id | user id | ip | user agent | created ms | expires ms
//
// Strings are uint16 length-prefixed; times are big-endian Unix milliseconds.
// The token digest is the Redis key and is not repeated in the value.
func Encode(s selfauth.Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(sessionFormatVersionCurrent)

	for _, field := range []string{s.ID, s.UserID, s.ClientIP, s.UserAgent} {
		if len(field) > 0xFFFF {
			return nil, errors.New("session field too long")
		}
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(field)))
		buf.WriteString(field)
	}
	_ = binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, s.ExpiresAt.UnixMilli())
	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. TokenHash is left empty.
func Decode(data []byte) (selfauth.Session, error) {
	if len(data) == 0 || data[0] != sessionFormatVersionCurrent {
		return selfauth.Session{}, ErrCorruptSession
	}
	r := bytes.NewReader(data[1:])

	var fields [4]string
	for i := range fields {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return selfauth.Session{}, ErrCorruptSession
		}
		if int(n) > r.Len() {
			return selfauth.Session{}, ErrCorruptSession
		}
		b := make([]byte, n)
		_, _ = r.Read(b)
		fields[i] = string(b)
	}

	var created, expires int64
	if err := binary.Read(r, binary.BigEndian, &created); err != nil {
		return selfauth.Session{}, ErrCorruptSession
	}
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return selfauth.Session{}, ErrCorruptSession
	}
	if r.Len() != 0 {
		return selfauth.Session{}, ErrCorruptSession
	}

	return selfauth.Session{
		ID:        fields[0],
		UserID:    fields[1],
		ClientIP:  fields[2],
		UserAgent: fields[3],
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}
