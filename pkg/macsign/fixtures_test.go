package macsign

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"howett.net/plist"
	gop12 "software.sslmate.com/src/go-pkcs12"
)

// machO64Magic is MH_MAGIC_64 in on-disk (little-endian) byte order.
var machO64Magic = []byte{0xcf, 0xfa, 0xed, 0xfe}

// writeMachO writes a minimal file carrying the Mach-O 64-bit magic so the
// classifier recognizes it as a native binary.
func writeMachO(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	data := append(append([]byte{}, machO64Magic...), make([]byte, 28)...)
	writeFile(t, path, data, mode)
}

func writeFile(t *testing.T, path string, data []byte, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// makeAppBundle creates a minimal .app bundle with an Info.plist and a
// Mach-O main executable, returning the bundle path.
func makeAppBundle(t *testing.T, dir, name, bundleID string) string {
	t.Helper()
	appPath := filepath.Join(dir, name)

	info := map[string]interface{}{
		"CFBundleIdentifier": bundleID,
		"CFBundleExecutable": "main",
	}
	infoData, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatalf("Failed to marshal Info.plist: %v", err)
	}
	writeFile(t, filepath.Join(appPath, "Contents", "Info.plist"), infoData, 0644)
	writeMachO(t, filepath.Join(appPath, "Contents", "MacOS", "main"), 0755)
	return appPath
}

// makeCertificate generates a self-signed certificate and its key.
func makeCertificate(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:         "Developer ID Application: Test Corp",
			OrganizationalUnit: []string{"TESTTEAMID"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return key, cert
}

// makeP12 builds a self-signed certificate and wraps it with its key in a
// PKCS#12 container protected by password.
func makeP12(t *testing.T, password string) []byte {
	t.Helper()

	key, cert := makeCertificate(t)
	p12, err := gop12.Modern.Encode(key, cert, nil, password)
	if err != nil {
		t.Fatalf("Failed to encode P12: %v", err)
	}
	return p12
}

// makePEMCertificate returns a self-signed certificate in PEM armor.
func makePEMCertificate(t *testing.T) []byte {
	t.Helper()

	_, cert := makeCertificate(t)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}
