package macsign

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"howett.net/plist"
)

// The external signing, verification, notarization, and stapling tools are
// modeled as narrow interfaces so the ordering and classification logic can
// be exercised with fakes, independent of any real tool being installed.

// SignOptions carries the per-invocation inputs for the external signer.
type SignOptions struct {
	Identity     string
	KeychainPath string
	Entitlements string
	Digest       string
}

// Signer invokes the external signing capability on one artifact.
type Signer interface {
	Sign(artifact Artifact, opts SignOptions) error
}

// Verifier runs the external capability's own independent verification check.
type Verifier interface {
	Verify(artifact Artifact) error
}

// Verdict is the terminal result of a notarization submission.
type Verdict struct {
	ID       string `plist:"id"`
	Status   string `plist:"status"`
	Message  string `plist:"message"`
	ExitCode int    `plist:"-"`
}

// Accepted reports whether the notarization service accepted the submission.
func (v Verdict) Accepted() bool {
	return v.Status == "Accepted"
}

// Notarizer submits a file to the external notarization service and blocks
// until a terminal verdict.
type Notarizer interface {
	Submit(path string, creds NotaryCredentials) (Verdict, error)
}

// Stapler attaches a notarization ticket to an artifact in place.
type Stapler interface {
	Staple(path string) error
}

// CodesignTool is the real Signer/Verifier backed by codesign(1).
type CodesignTool struct{}

func (CodesignTool) Sign(artifact Artifact, opts SignOptions) error {
	args := []string{"--force", "--options=runtime", "--timestamp"}
	digest := opts.Digest
	if digest == "" {
		digest = DefaultDigest
	}
	args = append(args, "--digest-algorithm="+digest)
	if opts.KeychainPath != "" {
		args = append(args, "--keychain", opts.KeychainPath)
	}
	if opts.Entitlements != "" {
		args = append(args, "--entitlements", opts.Entitlements)
	}
	args = append(args, "--sign", opts.Identity, artifact.Path)

	cmd := exec.Command("codesign", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("codesign failed for %s: %w\n%s", artifact.Path, err, stderr.String())
	}
	return nil
}

func (CodesignTool) Verify(artifact Artifact) error {
	args := []string{"--verify", "--strict", "--verbose=2"}
	if artifact.Kind.IsBundle() {
		args = append(args, "--deep")
	}
	args = append(args, artifact.Path)

	cmd := exec.Command("codesign", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("codesign --verify failed: %w\n%s", err, stderr.String())
	}
	return nil
}

// notarySecretEnv is the environment variable the notarization password is
// handed to the external tool through, so it never appears in an argument
// list another process could read.
const notarySecretEnv = "MACSIGN_NOTARY_SECRET"

// NotarytoolClient is the real Notarizer backed by `xcrun notarytool`. It
// waits for the service's terminal verdict and parses the tool's plist
// output.
type NotarytoolClient struct{}

func (NotarytoolClient) Submit(path string, creds NotaryCredentials) (Verdict, error) {
	verdict, err := runNotarytool(path, creds, "@env:"+notarySecretEnv)
	if err == nil || !rejectsEnvReference(err) {
		return verdict, err
	}
	// Fallback for tool versions without @env: support. The secret then
	// appears in the argument list, which is why the env channel is tried
	// first.
	return runNotarytool(path, creds, creds.Password)
}

func runNotarytool(path string, creds NotaryCredentials, password string) (Verdict, error) {
	cmd := exec.Command("xcrun", "notarytool", "submit", path,
		"--apple-id", creds.AppleID,
		"--team-id", creds.TeamID,
		"--password", password,
		"--wait",
		"--output-format", "plist")
	cmd.Env = append(os.Environ(), notarySecretEnv+"="+creds.Password)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	var verdict Verdict
	if stdout.Len() > 0 {
		if _, err := plist.Unmarshal(stdout.Bytes(), &verdict); err != nil && runErr == nil {
			return Verdict{}, fmt.Errorf("failed to parse notarytool output: %w", err)
		}
	}

	if runErr != nil {
		verdict.ExitCode = exitCode(runErr)
		if verdict.Status == "" {
			return verdict, fmt.Errorf("notarytool failed: %w\n%s", runErr, stderr.String())
		}
	}
	return verdict, nil
}

func rejectsEnvReference(err error) bool {
	return err != nil && strings.Contains(err.Error(), "@env")
}

// StaplerTool is the real Stapler backed by `xcrun stapler`.
type StaplerTool struct{}

func (StaplerTool) Staple(path string) error {
	cmd := exec.Command("xcrun", "stapler", "staple", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("stapler failed for %s: %w\n%s", path, err, stderr.String())
	}
	return nil
}

func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
