package cnotes

import (
	"encoding/binary"
	"errors"
)

func appendLength(buf []byte, n int) []byte {
	var tmpbuf [8]byte
	len := binary.PutUvarint(tmpbuf[:], uint64(n))
	return append(buf, tmpbuf[:len]...)
}

func appendBytes(buf, body []byte) []byte {
	buf = appendLength(buf, len(body))
	return append(buf, body...)
}

func decodeLength(buf []byte, n *int) ([]byte, error) {
	k, len := binary.Uvarint(buf)
	if len <= 0 {
		return nil, errors.New("bad length")
	}
	*n = int(k)
	return buf[len:], nil
}

func decodeBytes(buf []byte, body *[]byte) ([]byte, error) {
	var err error
	var n int
	buf, err = decodeLength(buf, &n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		*body = nil
		return buf, nil
	}
	if len(buf) < n {
		return nil, errors.New("bad body length")
	}
	*body = buf[:n]
	return buf[n:], nil
}

func decodeHash(buf []byte, hash *[32]byte) ([]byte, error) {
	if len(buf) < 32 {
		return nil, errors.New("bad hash length")
	}
	copy(hash[:], buf[:32])
	return buf[32:], nil
}

// packFrames concatenates candidate frames into one trace blob, each
// with a uvarint length prefix, so a trace entry stays a flat byte
// sequence the reader can re-split.
func packFrames(frames [][]byte) []byte {
	var buf []byte
	buf = appendLength(buf, len(frames))
	for _, f := range frames {
		buf = appendBytes(buf, f)
	}
	return buf
}

func unpackFrames(buf []byte) ([][]byte, error) {
	var err error
	var total int
	buf, err = decodeLength(buf, &total)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, total)
	for i := 0; i < total; i++ {
		var body []byte
		buf, err = decodeBytes(buf, &body)
		if err != nil {
			return nil, err
		}
		out[i] = body
	}
	if len(buf) != 0 {
		return nil, errors.New("trailing bytes after frames")
	}
	return out, nil
}
