package macsign

import "fmt"

// ConfigurationError indicates missing or invalid required input, detected
// before any external side effect has happened.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// InvalidCredentialError indicates certificate material that does not decode
// to a recognized certificate-container format.
type InvalidCredentialError struct {
	Reason string
}

func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("invalid credential: %s", e.Reason)
}

// ImportError indicates the trust store rejected the credential, for example
// because the passphrase was wrong.
type ImportError struct {
	Keychain string
	Err      error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("failed to import certificate into %s: %v", e.Keychain, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// VerificationError indicates an artifact's signature failed independent
// verification immediately after signing.
type VerificationError struct {
	Artifact string
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("signature verification failed for %s: %v", e.Artifact, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// NotarizationError indicates the external notarization service returned a
// non-success verdict. ExitCode carries the service tool's own exit status so
// the process can propagate it verbatim.
type NotarizationError struct {
	Artifact string
	Status   string
	ExitCode int
	Err      error
}

func (e *NotarizationError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("notarization failed for %s: status %q", e.Artifact, e.Status)
	}
	return fmt.Sprintf("notarization failed for %s: %v", e.Artifact, e.Err)
}

func (e *NotarizationError) Unwrap() error { return e.Err }
