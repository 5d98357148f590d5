package macsign

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"go.mozilla.org/pkcs7"
	gop12 "software.sslmate.com/src/go-pkcs12"
)

// SigningCredentials holds everything required to establish a signing
// context: the identity to sign as, the certificate material (inline base64
// or a path to a file containing it), and the certificate passphrase.
type SigningCredentials struct {
	Identity     string
	Certificate  string
	Passphrase   string
	Entitlements string // optional path to an entitlements plist
	Digest       string // digest algorithm, defaults to sha256
}

// DefaultDigest is used when no digest algorithm is configured.
const DefaultDigest = "sha256"

// Validate checks the required credential fields and the optional
// entitlements reference before any filesystem mutation happens.
func (c *SigningCredentials) Validate() error {
	if c.Identity == "" {
		return &ConfigurationError{Reason: "signing identity is required"}
	}
	if c.Certificate == "" {
		return &ConfigurationError{Reason: "certificate material is required"}
	}
	if c.Passphrase == "" {
		return &ConfigurationError{Reason: "certificate passphrase is required"}
	}
	if c.Entitlements != "" {
		if _, err := os.Stat(c.Entitlements); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("entitlements file %s does not exist", c.Entitlements)}
		}
	}
	return nil
}

// NotaryCredentials holds the all-or-nothing notarization configuration.
type NotaryCredentials struct {
	AppleID  string
	TeamID   string
	Password string
}

// Complete reports whether all three notarization fields are present. An
// incomplete set means the notarization stage is skipped, not an error.
func (c NotaryCredentials) Complete() bool {
	return c.AppleID != "" && c.TeamID != "" && c.Password != ""
}

// LoadCertificateMaterial resolves certificate material to raw PKCS#12
// bytes. The material is either a path to a file or inline base64. A single
// level of double-encoding is auto-corrected; material that never decodes to
// a recognized certificate container is rejected.
func LoadCertificateMaterial(material, passphrase string) ([]byte, error) {
	var data []byte
	if _, err := os.Stat(material); err == nil {
		data, err = os.ReadFile(material)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate file: %w", err)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(material))
		if err != nil {
			return nil, &InvalidCredentialError{Reason: "certificate material is neither a file nor valid base64"}
		}
		data = decoded
	}

	if decodesAsCertificate(data, passphrase) {
		return data, nil
	}

	// CI secrets sometimes arrive base64-encoded a second time. Correct
	// exactly one extra level before giving up.
	if redecoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data))); err == nil {
		if decodesAsCertificate(redecoded, passphrase) {
			return redecoded, nil
		}
	}

	return nil, &InvalidCredentialError{Reason: "certificate material does not decode to a recognized certificate container"}
}

// decodesAsCertificate checks the bytes against the recognized certificate
// container formats: PKCS#12, PEM, or a PKCS#7 certificate bundle.
func decodesAsCertificate(data []byte, passphrase string) bool {
	if _, _, _, err := gop12.DecodeChain(data, passphrase); err == nil {
		return true
	}
	if bytes.HasPrefix(data, []byte("-----BEGIN")) {
		// PEM armor alone is not enough: the block must hold a parseable
		// certificate.
		for rest := data; len(rest) > 0; {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			if _, err := x509.ParseCertificate(block.Bytes); err == nil {
				return true
			}
		}
		return false
	}
	if p7, err := pkcs7.Parse(data); err == nil && len(p7.Certificates) > 0 {
		return true
	}
	return false
}

// WriteTempCertificate writes certificate bytes to an owner-only temp file
// for import into the trust store. The returned cleanup overwrites the file
// before removing it and must run on every exit path.
func WriteTempCertificate(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "macsign-cert-*.p12")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp certificate file: %w", err)
	}
	path := f.Name()

	if err := f.Chmod(0600); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to restrict temp certificate file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to write temp certificate file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to close temp certificate file: %w", err)
	}

	cleanup := func() {
		os.WriteFile(path, make([]byte, len(data)), 0600)
		os.Remove(path)
	}
	return path, cleanup, nil
}
