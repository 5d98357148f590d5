package macsign

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/blacktop/go-macho/types"
)

// Kind classifies a filesystem path as a signable artifact.
type Kind int

const (
	KindNone Kind = iota
	KindApplicationBundle
	KindFramework
	KindPluginBundle
	KindExtensionBundle
	KindDiskImage
	KindInstallerPackage
	KindExecutableBinary
	KindSharedLibrary
)

func (k Kind) String() string {
	switch k {
	case KindApplicationBundle:
		return "application-bundle"
	case KindFramework:
		return "framework"
	case KindPluginBundle:
		return "plugin-bundle"
	case KindExtensionBundle:
		return "extension-bundle"
	case KindDiskImage:
		return "disk-image"
	case KindInstallerPackage:
		return "installer-package"
	case KindExecutableBinary:
		return "executable-binary"
	case KindSharedLibrary:
		return "shared-library"
	}
	return "none"
}

// IsBundle reports whether the kind is a directory-structured bundle that is
// signed as a unit but contains independently-signed nested components.
func (k Kind) IsBundle() bool {
	switch k {
	case KindApplicationBundle, KindFramework, KindPluginBundle, KindExtensionBundle:
		return true
	}
	return false
}

// Submittable reports whether an artifact of this kind can be handed to the
// notarization service directly, without wrapping it in an archive first.
func (k Kind) Submittable() bool {
	return k.IsBundle() || k == KindDiskImage || k == KindInstallerPackage
}

// Artifact is a filesystem path plus its classification. Paths are enumerated
// from a live filesystem walk, never cached across runs.
type Artifact struct {
	Path string
	Kind Kind
}

// Classify determines whether path is a signable artifact and of which kind.
// Unrecognized input classifies to KindNone; it is never an error to
// encounter a non-artifact file.
func Classify(path string) Kind {
	info, err := os.Stat(path)
	if err != nil {
		return KindNone
	}

	if info.IsDir() {
		return classifyDir(path)
	}
	return classifyFile(path, info)
}

func classifyDir(path string) Kind {
	name := strings.ToLower(path)
	switch {
	case strings.HasSuffix(name, ".app"):
		return KindApplicationBundle
	case strings.HasSuffix(name, ".framework"):
		return KindFramework
	case strings.HasSuffix(name, ".plugin"):
		return KindPluginBundle
	case strings.HasSuffix(name, ".appex"), strings.HasSuffix(name, ".xpc"):
		return KindExtensionBundle
	}
	return KindNone
}

func classifyFile(path string, info os.FileInfo) Kind {
	if !info.Mode().IsRegular() {
		return KindNone
	}

	name := strings.ToLower(path)
	switch {
	case strings.HasSuffix(name, ".pkg"):
		return KindInstallerPackage
	case strings.HasSuffix(name, ".dmg"):
		return KindDiskImage
	case strings.HasSuffix(name, ".dylib"):
		return KindSharedLibrary
	}

	if isMachO(path) {
		return KindExecutableBinary
	}
	return KindNone
}

// isMachO checks the file's leading magic for the Mach-O executable format
// (thin 32/64-bit before fat/universal).
func isMachO(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	raw := make([]byte, 4)
	if _, err := io.ReadFull(f, raw); err != nil {
		return false
	}

	// Thin Mach-O magic is little-endian on disk, fat magic big-endian.
	le := binary.LittleEndian.Uint32(raw)
	be := binary.BigEndian.Uint32(raw)

	switch {
	case le == uint32(types.Magic32), le == uint32(types.Magic64):
		return true
	case be == uint32(types.MagicFat), be == uint32(types.MagicFat)+1: // FAT_MAGIC_64
		return true
	}
	return false
}
