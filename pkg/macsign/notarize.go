package macsign

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Coordinator submits signed top-level artifacts to the external
// notarization service and staples tickets back onto them.
type Coordinator struct {
	Notarizer Notarizer
	Stapler   Stapler

	// Keychain, when set, is the notarization-only trust-store context.
	// Unlike the signing keychain it is never reused: any leftover from a
	// previous run is discarded, a fresh one is created, and it is torn
	// down before Run returns.
	Keychain Keychain

	// KeychainPassword protects the notarization keychain.
	KeychainPassword string

	// Out receives human-readable progress; defaults to os.Stdout.
	Out io.Writer
}

// Run notarizes every artifact in the signed set. The stage only runs when
// all three notarization credential fields are present; an incomplete set
// skips the stage without error. The first non-success verdict aborts the
// run with a NotarizationError carrying the service's exit status.
func (c *Coordinator) Run(signed SignedSet, creds NotaryCredentials) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	if !creds.Complete() {
		fmt.Fprintln(out, "Notarization credentials not configured, skipping notarization")
		return nil
	}

	if c.Keychain != nil {
		// Discard any leftover context so this run starts fresh.
		c.Keychain.Teardown()
		if err := c.Keychain.EnsureCreated(c.KeychainPassword); err != nil {
			return err
		}
		defer c.Keychain.Teardown()
	}

	for _, artifact := range signed {
		if err := c.notarizeOne(out, artifact, creds); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) notarizeOne(out io.Writer, artifact Artifact, creds NotaryCredentials) error {
	submitPath := artifact.Path

	// Bundles, installers, and disk images go to the service as-is.
	// Everything else is wrapped in a temporary archive first.
	if !artifact.Kind.Submittable() {
		archive, err := os.CreateTemp("", "macsign-notarize-*.zip")
		if err != nil {
			return fmt.Errorf("failed to create archive for %s: %w", artifact.Path, err)
		}
		archivePath := archive.Name()
		archive.Close()
		defer os.Remove(archivePath)

		if err := ZipArtifact(artifact.Path, archivePath); err != nil {
			return fmt.Errorf("failed to archive %s: %w", artifact.Path, err)
		}
		submitPath = archivePath
	}

	name := filepath.Base(artifact.Path)
	if artifact.Kind.IsBundle() {
		if id, err := GetBundleID(artifact.Path); err == nil {
			name = id
		}
	}
	fmt.Fprintf(out, "Submitting %s for notarization\n", name)

	verdict, err := c.Notarizer.Submit(submitPath, creds)
	if err != nil {
		return &NotarizationError{Artifact: artifact.Path, ExitCode: nonZeroExit(verdict.ExitCode), Err: err}
	}
	if !verdict.Accepted() {
		return &NotarizationError{Artifact: artifact.Path, Status: verdict.Status, ExitCode: nonZeroExit(verdict.ExitCode)}
	}

	fmt.Fprintf(out, "Notarization accepted for %s (submission %s)\n", name, verdict.ID)

	if artifact.Kind.Submittable() {
		if err := c.Stapler.Staple(artifact.Path); err != nil {
			return &NotarizationError{Artifact: artifact.Path, ExitCode: 1, Err: err}
		}
		fmt.Fprintf(out, "Stapled ticket to %s\n", artifact.Path)
	}
	return nil
}

func nonZeroExit(code int) int {
	if code == 0 {
		return 1
	}
	return code
}
