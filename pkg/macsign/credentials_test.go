package macsign

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		creds SigningCredentials
	}{
		{"missing identity", SigningCredentials{Certificate: "cert", Passphrase: "pw"}},
		{"missing certificate", SigningCredentials{Identity: "id", Passphrase: "pw"}},
		{"missing passphrase", SigningCredentials{Identity: "id", Certificate: "cert"}},
	}

	for _, tc := range cases {
		err := tc.creds.Validate()
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Errorf("%s: expected ConfigurationError, got %v", tc.name, err)
		}
	}
}

func TestValidateMissingEntitlementsFile(t *testing.T) {
	creds := SigningCredentials{
		Identity:     "id",
		Certificate:  "cert",
		Passphrase:   "pw",
		Entitlements: filepath.Join(t.TempDir(), "missing.plist"),
	}

	var confErr *ConfigurationError
	if err := creds.Validate(); !errors.As(err, &confErr) {
		t.Errorf("Configured-but-missing entitlements file should be a ConfigurationError, got %v", err)
	}
}

func TestLoadCertificateMaterialInline(t *testing.T) {
	p12 := makeP12(t, "secret")
	material := base64.StdEncoding.EncodeToString(p12)

	data, err := LoadCertificateMaterial(material, "secret")
	if err != nil {
		t.Fatalf("LoadCertificateMaterial failed: %v", err)
	}
	if !bytes.Equal(data, p12) {
		t.Error("Decoded material does not match original P12")
	}
}

func TestLoadCertificateMaterialDoubleEncoded(t *testing.T) {
	p12 := makeP12(t, "secret")
	once := base64.StdEncoding.EncodeToString(p12)
	twice := base64.StdEncoding.EncodeToString([]byte(once))

	// CI secret stores sometimes add a second base64 layer; exactly one
	// extra level must be corrected automatically.
	data, err := LoadCertificateMaterial(twice, "secret")
	if err != nil {
		t.Fatalf("LoadCertificateMaterial failed on double-encoded input: %v", err)
	}
	if !bytes.Equal(data, p12) {
		t.Error("Double-encoded material did not decode to original P12")
	}
}

func TestLoadCertificateMaterialFromFile(t *testing.T) {
	p12 := makeP12(t, "secret")
	path := filepath.Join(t.TempDir(), "cert.p12")
	writeFile(t, path, p12, 0600)

	data, err := LoadCertificateMaterial(path, "secret")
	if err != nil {
		t.Fatalf("LoadCertificateMaterial failed for file input: %v", err)
	}
	if !bytes.Equal(data, p12) {
		t.Error("File material does not match original P12")
	}
}

func TestLoadCertificateMaterialPEMCertificate(t *testing.T) {
	pemCert := makePEMCertificate(t)
	path := filepath.Join(t.TempDir(), "cert.pem")
	writeFile(t, path, pemCert, 0600)

	data, err := LoadCertificateMaterial(path, "secret")
	if err != nil {
		t.Fatalf("LoadCertificateMaterial failed for PEM certificate: %v", err)
	}
	if !bytes.Equal(data, pemCert) {
		t.Error("PEM material does not match original certificate")
	}
}

func TestLoadCertificateMaterialPEMGarbage(t *testing.T) {
	// PEM armor around a non-certificate payload must not pass the decode
	// check.
	garbage := pem.EncodeToMemory(&pem.Block{Type: "GARBAGE", Bytes: []byte("not a certificate")})
	path := filepath.Join(t.TempDir(), "garbage.pem")
	writeFile(t, path, garbage, 0600)

	_, err := LoadCertificateMaterial(path, "secret")
	var credErr *InvalidCredentialError
	if !errors.As(err, &credErr) {
		t.Errorf("Expected InvalidCredentialError for non-certificate PEM, got %v", err)
	}
}

func TestLoadCertificateMaterialPEMCorruptCertificate(t *testing.T) {
	// A CERTIFICATE-typed block whose body does not parse is rejected too.
	corrupt := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("truncated DER")})
	path := filepath.Join(t.TempDir(), "corrupt.pem")
	writeFile(t, path, corrupt, 0600)

	_, err := LoadCertificateMaterial(path, "secret")
	var credErr *InvalidCredentialError
	if !errors.As(err, &credErr) {
		t.Errorf("Expected InvalidCredentialError for corrupt PEM certificate, got %v", err)
	}
}

func TestLoadCertificateMaterialGarbage(t *testing.T) {
	garbage := base64.StdEncoding.EncodeToString([]byte("definitely not a certificate container"))

	_, err := LoadCertificateMaterial(garbage, "secret")
	var credErr *InvalidCredentialError
	if !errors.As(err, &credErr) {
		t.Errorf("Expected InvalidCredentialError, got %v", err)
	}
}

func TestLoadCertificateMaterialNotBase64(t *testing.T) {
	_, err := LoadCertificateMaterial("!!! not base64 and not a file !!!", "secret")
	var credErr *InvalidCredentialError
	if !errors.As(err, &credErr) {
		t.Errorf("Expected InvalidCredentialError, got %v", err)
	}
}

func TestWriteTempCertificateRestrictedAndCleaned(t *testing.T) {
	path, cleanup, err := WriteTempCertificate([]byte("certificate bytes"))
	if err != nil {
		t.Fatalf("WriteTempCertificate failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Temp certificate file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %o", info.Mode().Perm())
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Cleanup should remove the temp certificate file")
	}
}

func TestNotaryCredentialsComplete(t *testing.T) {
	complete := NotaryCredentials{AppleID: "dev@example.com", TeamID: "TEAM123456", Password: "pw"}
	if !complete.Complete() {
		t.Error("All three fields present should be complete")
	}

	partial := []NotaryCredentials{
		{TeamID: "TEAM123456", Password: "pw"},
		{AppleID: "dev@example.com", Password: "pw"},
		{AppleID: "dev@example.com", TeamID: "TEAM123456"},
		{},
	}
	for i, c := range partial {
		if c.Complete() {
			t.Errorf("Partial credentials %d should not be complete", i)
		}
	}
}
