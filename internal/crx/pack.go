package crx

import (
	"archive/zip"
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Pack builds a signed package from an unpacked extension directory. It is
// the inverse of Unpack and exists for the development workflow: packaging
// a local extension so it can be pushed through the same install path as a
// CDN download.
func Pack(dir string, key *rsa.PrivateKey) ([]byte, error) {
	payload, err := zipDir(dir)
	if err != nil {
		return nil, fmt.Errorf("zipping %s: %w", dir, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	digest := sha1.Sum(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signing payload: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.LittleEndian, uint32(formatVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(len(pubDER)))
	binary.Write(&buf, binary.LittleEndian, uint32(len(sig)))
	buf.Write(pubDER)
	buf.Write(sig)
	buf.Write(payload)

	return buf.Bytes(), nil
}

// PackFile writes a signed package for dir to outPath.
func PackFile(dir, outPath string, key *rsa.PrivateKey) error {
	data, err := Pack(dir, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("writing package %s: %w", outPath, err)
	}
	return nil
}

// zipDir builds an in-memory zip of dir with slash-separated relative paths.
func zipDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
