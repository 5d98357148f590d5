// Package macsign orchestrates macOS code signing and notarization over the
// platform's external tools.
//
// The package walks a file tree, classifies signable artifacts (bundles,
// installers, disk images, Mach-O binaries, dylibs), and computes an
// inside-out signing order: every nested helper, framework, or sub-bundle is
// signed before the container whose seal depends on its contents being
// immutable. Signing, verification, notarization, and stapling are delegated
// to codesign, security, notarytool, and stapler through narrow interfaces
// that can be faked in tests.
//
// # Basic Usage
//
// To sign and notarize a path:
//
//	orch := &macsign.Orchestrator{
//	    Signer:   macsign.CodesignTool{},
//	    Verifier: macsign.CodesignTool{},
//	    Keychain: &macsign.SecurityKeychain{KeychainPath: keychainPath},
//	}
//	signed, err := orch.Run(path, creds)
package macsign
