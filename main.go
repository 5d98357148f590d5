package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluedeke/go-macsign/pkg/macsign"
	"github.com/docopt/docopt-go"
)

const version = "1.0.0"

const usage = `go-macsign - macOS Code Signing and Notarization Tool

A command-line tool for signing macOS app bundles, installers, disk images,
and loose binaries, with optional notarization and stapling. Nested bundles
are discovered automatically and signed inside-out.

Usage:
  go-macsign sign <path> [--identity=<id>] [--p12=<cert>] [--password=<password>] [--entitlements=<path>] [--digest=<algo>] [--keychain=<path>]
  go-macsign -h | --help
  go-macsign --version

Commands:
  sign      Sign all signable artifacts under <path>, notarize if configured

Options:
  --identity=<id>        Signing identity (or MACSIGN_IDENTITY env var)
  --p12=<cert>           P12 certificate file path or inline base64 (or MACSIGN_P12 env var)
  --password=<password>  Password for the P12 certificate (or MACSIGN_P12_PASSWORD env var)
  --entitlements=<path>  Entitlements plist to apply (or MACSIGN_ENTITLEMENTS env var)
  --digest=<algo>        Digest algorithm [default: sha256]
  --keychain=<path>      Path for the scoped signing keychain
  -h --help              Show this help message
  --version              Show version

Environment Variables:
  MACSIGN_IDENTITY           Signing identity (overridden by --identity)
  MACSIGN_P12                P12 certificate path or base64 (overridden by --p12)
  MACSIGN_P12_PASSWORD       P12 certificate password (overridden by --password)
  MACSIGN_ENTITLEMENTS       Entitlements plist path (overridden by --entitlements)
  MACSIGN_NOTARY_APPLE_ID    Apple ID for notarization
  MACSIGN_NOTARY_TEAM_ID     Team ID for notarization
  MACSIGN_NOTARY_PASSWORD    App-specific password for notarization

Notarization runs only when all three MACSIGN_NOTARY_* variables are set;
otherwise it is skipped after signing.

Examples:
  # Sign an app bundle and everything nested in it
  go-macsign sign MyApp.app --identity="Developer ID Application: Example Corp" --p12=cert.p12 --password=secret

  # Sign using environment variables (useful for CI/CD)
  export MACSIGN_IDENTITY="Developer ID Application: Example Corp"
  export MACSIGN_P12=/path/to/cert.p12
  export MACSIGN_P12_PASSWORD=secret
  go-macsign sign dist/

  # Sign and notarize
  export MACSIGN_NOTARY_APPLE_ID=dev@example.com
  export MACSIGN_NOTARY_TEAM_ID=ABCD123456
  export MACSIGN_NOTARY_PASSWORD=app-specific-password
  go-macsign sign MyApp.dmg --identity="Developer ID Application: Example Corp" --p12=cert.p12 --password=secret
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if sign, _ := opts.Bool("sign"); sign {
		if err := runSign(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCodeFor(err))
		}
	}
}

func runSign(opts docopt.Opts) error {
	rootPath, _ := opts.String("<path>")
	identity, _ := opts.String("--identity")
	certificate, _ := opts.String("--p12")
	password, _ := opts.String("--password")
	entitlements, _ := opts.String("--entitlements")
	digest, _ := opts.String("--digest")
	keychainPath, _ := opts.String("--keychain")

	// Get values from environment if not provided via flags
	if identity == "" {
		identity = os.Getenv("MACSIGN_IDENTITY")
	}
	if certificate == "" {
		certificate = os.Getenv("MACSIGN_P12")
	}
	if password == "" {
		password = os.Getenv("MACSIGN_P12_PASSWORD")
	}
	if entitlements == "" {
		entitlements = os.Getenv("MACSIGN_ENTITLEMENTS")
	}
	if keychainPath == "" {
		keychainPath = filepath.Join(os.TempDir(), "macsign.keychain-db")
	}

	creds := macsign.SigningCredentials{
		Identity:     identity,
		Certificate:  certificate,
		Passphrase:   password,
		Entitlements: entitlements,
		Digest:       digest,
	}

	signed, err := newOrchestrator(keychainPath, password).Run(rootPath, creds)
	if err != nil {
		return err
	}

	notary := macsign.NotaryCredentials{
		AppleID:  os.Getenv("MACSIGN_NOTARY_APPLE_ID"),
		TeamID:   os.Getenv("MACSIGN_NOTARY_TEAM_ID"),
		Password: os.Getenv("MACSIGN_NOTARY_PASSWORD"),
	}
	return newCoordinator(password).Run(signed, notary)
}

func newOrchestrator(keychainPath, keychainPassword string) *macsign.Orchestrator {
	return &macsign.Orchestrator{
		Signer:           macsign.CodesignTool{},
		Verifier:         macsign.CodesignTool{},
		Keychain:         &macsign.SecurityKeychain{KeychainPath: keychainPath},
		KeychainPassword: keychainPassword,
		Out:              os.Stdout,
	}
}

// newCoordinator wires the notarization stage. Its keychain is a separate
// context from the signing keychain: the Coordinator creates it fresh and
// tears it down within the same run.
func newCoordinator(keychainPassword string) *macsign.Coordinator {
	return &macsign.Coordinator{
		Notarizer:        macsign.NotarytoolClient{},
		Stapler:          macsign.StaplerTool{},
		Keychain:         &macsign.SecurityKeychain{KeychainPath: notaryKeychainPath()},
		KeychainPassword: keychainPassword,
		Out:              os.Stdout,
	}
}

func notaryKeychainPath() string {
	return filepath.Join(os.TempDir(), "macsign-notary.keychain-db")
}

// exitCodeFor maps a failed run to the process exit status. Notarization
// failures propagate the external service's own status verbatim; everything
// else exits 1.
func exitCodeFor(err error) int {
	var notaryErr *macsign.NotarizationError
	if errors.As(err, &notaryErr) {
		return notaryErr.ExitCode
	}
	return 1
}
