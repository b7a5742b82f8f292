// Package crx reads signed extension packages fetched from the CDN. A
// package is a fixed-offset binary header (magic, format version, public key
// length, signature length) followed by the DER public key, an RSA-SHA1
// signature, and the zip payload. The extension id is derived from the
// public key, so a package is self-identifying.
package crx

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	// magic is the four-byte tag at offset 0 of every package.
	magic = "Cr24"

	// formatVersion is the only supported header format.
	formatVersion = 2

	// headerSize is the fixed portion: magic + version + two length fields.
	headerSize = 16

	// maxKeyLen and maxSigLen bound the variable header sections so a
	// corrupt length field cannot make us allocate the whole file.
	maxKeyLen = 1 << 14
	maxSigLen = 1 << 14
)

// Header is the decoded package header plus the zip payload that follows it.
type Header struct {
	PublicKey []byte // DER-encoded SubjectPublicKeyInfo
	Signature []byte // RSA-SHA1 signature over Payload
	Payload   []byte // zip archive of the extension directory
}

// ParseHeader decodes the fixed-offset header of a package.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("package truncated: %d bytes, want at least %d", len(data), headerSize)
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("bad package magic %q", string(data[0:4]))
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return nil, fmt.Errorf("unsupported package format version %d", v)
	}

	keyLen := binary.LittleEndian.Uint32(data[8:12])
	sigLen := binary.LittleEndian.Uint32(data[12:16])
	if keyLen == 0 || keyLen > maxKeyLen {
		return nil, fmt.Errorf("implausible public key length %d", keyLen)
	}
	if sigLen == 0 || sigLen > maxSigLen {
		return nil, fmt.Errorf("implausible signature length %d", sigLen)
	}

	end := headerSize + int(keyLen) + int(sigLen)
	if len(data) < end {
		return nil, fmt.Errorf("package truncated: %d bytes, header declares %d", len(data), end)
	}

	return &Header{
		PublicKey: data[headerSize : headerSize+int(keyLen)],
		Signature: data[headerSize+int(keyLen) : end],
		Payload:   data[end:],
	}, nil
}

// ParseFile reads and decodes a package file.
func ParseFile(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading package %s: %w", path, err)
	}
	h, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("parsing package %s: %w", path, err)
	}
	return h, nil
}

// Verify checks the RSA-SHA1 signature over the zip payload against the
// public key embedded in the header.
func (h *Header) Verify() error {
	pub, err := x509.ParsePKIXPublicKey(h.PublicKey)
	if err != nil {
		return fmt.Errorf("parsing package public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("package public key is %T, want RSA", pub)
	}

	digest := sha1.Sum(h.Payload)
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA1, digest[:], h.Signature); err != nil {
		return fmt.Errorf("package signature verification failed: %w", err)
	}
	return nil
}

// ID derives the extension id from a DER-encoded public key: the first 16
// bytes of SHA-256(key), hex-encoded with digits remapped to the a-p
// alphabet. Matches the id the host runtime computes for the same key.
func ID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	id := make([]byte, 32)
	for i, b := range sum[:16] {
		id[2*i] = 'a' + (b >> 4)
		id[2*i+1] = 'a' + (b & 0x0f)
	}
	return string(id)
}

// ValidID reports whether s has the shape of a derived extension id:
// 32 characters, all in the a-p alphabet.
func ValidID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'p' {
			return false
		}
	}
	return true
}
