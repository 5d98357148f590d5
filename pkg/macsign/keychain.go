package macsign

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// Keychain is the scoped trust-store context a signing run imports its
// certificate into. It is exclusively owned by the run for its duration.
type Keychain interface {
	Path() string
	// EnsureCreated creates the keychain, or reuses one a previous run
	// left behind at the same path.
	EnsureCreated(password string) error
	// ImportCertificate imports a PKCS#12 file into the keychain and makes
	// it usable by the signing tool without UI prompts.
	ImportCertificate(p12Path, passphrase, keychainPassword string) error
	// Teardown deletes the keychain.
	Teardown() error
}

// SecurityKeychain is the real Keychain backed by the security(1) tool.
type SecurityKeychain struct {
	KeychainPath string
}

func (k *SecurityKeychain) Path() string { return k.KeychainPath }

func (k *SecurityKeychain) EnsureCreated(password string) error {
	if _, err := os.Stat(k.KeychainPath); err == nil {
		// A keychain left behind by a previous run is reused, not
		// recreated.
		return k.unlock(password)
	}

	if err := runSecurity("create-keychain", "-p", password, k.KeychainPath); err != nil {
		return err
	}
	// Prevent auto-lock from interrupting long signing runs.
	if err := runSecurity("set-keychain-settings", k.KeychainPath); err != nil {
		return err
	}
	return k.unlock(password)
}

func (k *SecurityKeychain) unlock(password string) error {
	return runSecurity("unlock-keychain", "-p", password, k.KeychainPath)
}

func (k *SecurityKeychain) ImportCertificate(p12Path, passphrase, keychainPassword string) error {
	err := runSecurity("import", p12Path,
		"-k", k.KeychainPath,
		"-P", passphrase,
		"-T", "/usr/bin/codesign",
		"-T", "/usr/bin/security")
	if err != nil {
		return &ImportError{Keychain: k.KeychainPath, Err: err}
	}

	// Allow codesign to use the imported key non-interactively.
	err = runSecurity("set-key-partition-list",
		"-S", "apple-tool:,apple:",
		"-s", "-k", keychainPassword, k.KeychainPath)
	if err != nil {
		return &ImportError{Keychain: k.KeychainPath, Err: err}
	}
	return nil
}

func (k *SecurityKeychain) Teardown() error {
	return runSecurity("delete-keychain", k.KeychainPath)
}

func runSecurity(args ...string) error {
	cmd := exec.Command("security", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("security %s failed: %w\n%s", args[0], err, stderr.String())
	}
	return nil
}
