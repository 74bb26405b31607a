package utils

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// HashingReader feeds everything it reads into a hash.
type HashingReader struct {
	reader io.Reader
	hash   hash.Hash
}

func (hr *HashingReader) Read(p []byte) (n int, err error) {
	n, err = hr.reader.Read(p)
	if n > 0 {
		hr.hash.Write(p[:n])
	}
	return
}

// Sum returns the digest of the bytes read so far.
func (hr *HashingReader) Sum() []byte {
	return hr.hash.Sum(nil)
}

func NewMD5Reader(reader io.Reader) *HashingReader {
	return &HashingReader{reader: reader, hash: md5.New()}
}

// MD5 returns the digest of data as hex and as base64.
func MD5(data []byte) (hexSum, base64Sum string) {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), base64.StdEncoding.EncodeToString(sum[:])
}

// DecodeMD5 accepts a checksum as 32 hex characters or standard base64 and
// returns the raw 16-byte digest.
func DecodeMD5(checksum string) ([]byte, error) {
	checksum = strings.TrimSpace(checksum)
	if len(checksum) == hex.EncodedLen(md5.Size) {
		if raw, err := hex.DecodeString(checksum); err == nil {
			return raw, nil
		}
	}
	raw, err := base64.StdEncoding.DecodeString(checksum)
	if err != nil || len(raw) != md5.Size {
		return nil, fmt.Errorf("checksum %q is neither hex nor base64 MD5", checksum)
	}
	return raw, nil
}
