package canon

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFunctionVersion = "driftless/function-version/v1"
	DomainLayer           = "driftless/layer/v1"
)

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) digest.Digest {
	return digest.SHA256.FromBytes(data)
}

// HashWithDomain computes a SHA-256 digest with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) digest.Digest {
	d := digest.SHA256.Digester()
	h := d.Hash()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return d.Digest()
}

// HashContent normalizes, marshals and hashes content under a domain.
func HashContent(domain string, content any, rules ...Rule) (digest.Digest, error) {
	data, err := MarshalContent(content, rules...)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, data), nil
}

// FileSHA256 returns the base64 SHA-256 of everything read from r.
// This is the form stored in the "filesha256" object metadata entry, so
// local and remote artifact hashes compare as plain strings.
func FileSHA256(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// BytesSHA256 is FileSHA256 over an in-memory buffer.
func BytesSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
