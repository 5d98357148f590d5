package macsign

import (
	"fmt"
	"io"
	"os"
)

// SignedSet is the list of top-level artifacts that completed signing and
// verification in one run. It is the notarization worklist and is never
// mutated after notarization begins.
type SignedSet []Artifact

// Orchestrator drives classification and traversal over a root path, signs
// every discovered artifact in inside-out order, and verifies each result.
type Orchestrator struct {
	Signer   Signer
	Verifier Verifier
	Keychain Keychain

	// KeychainPassword protects the scoped keychain for the duration of
	// the run. It is not the certificate passphrase.
	KeychainPassword string

	// Out receives human-readable progress; defaults to os.Stdout.
	Out io.Writer
}

// Run validates credentials, establishes the trust-store context, and signs
// every artifact under rootPath in dependency order. An empty tree is a
// benign outcome: the returned set is empty and the error nil.
func (o *Orchestrator) Run(rootPath string, creds SigningCredentials) (SignedSet, error) {
	out := o.Out
	if out == nil {
		out = os.Stdout
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(rootPath); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("root path %s does not exist", rootPath)}
	}
	if creds.Entitlements != "" {
		if err := ValidateEntitlements(creds.Entitlements); err != nil {
			return nil, err
		}
	}

	certData, err := LoadCertificateMaterial(creds.Certificate, creds.Passphrase)
	if err != nil {
		return nil, err
	}

	certPath, cleanup, err := WriteTempCertificate(certData)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := o.Keychain.EnsureCreated(o.KeychainPassword); err != nil {
		return nil, err
	}
	if err := o.Keychain.ImportCertificate(certPath, creds.Passphrase, o.KeychainPassword); err != nil {
		return nil, err
	}

	order, err := Discover(rootPath)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		fmt.Fprintf(out, "No signable artifacts found under %s\n", rootPath)
		return SignedSet{}, nil
	}

	opts := SignOptions{
		Identity:     creds.Identity,
		KeychainPath: o.Keychain.Path(),
		Entitlements: creds.Entitlements,
		Digest:       creds.Digest,
	}

	for _, artifact := range order {
		fmt.Fprintf(out, "Signing %s (%s)\n", artifact.Path, artifact.Kind)
		if err := o.Signer.Sign(artifact, opts); err != nil {
			return nil, err
		}
		if err := o.Verifier.Verify(artifact); err != nil {
			return nil, &VerificationError{Artifact: artifact.Path, Err: err}
		}
	}

	signed := SignedSet(TopLevel(order))
	fmt.Fprintf(out, "Signed %d artifact(s), %d top-level\n", len(order), len(signed))
	return signed, nil
}
