package macsign

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SigningOrder is an ordered sequence of artifacts such that any artifact
// nested inside another always precedes it. Signing a container before its
// nested components would invalidate the container's seal once those
// components are modified by their own signing pass.
type SigningOrder []Artifact

// Discover walks rootPath and computes the signing order for it.
//
// For a bundle root, the result is every nested signable component sorted
// deepest-first, followed by the bundle itself. For a non-bundle file the
// result is just that file. For a plain directory the result is every bundle
// in the tree (each inside-out ordered), every installer and disk image, and
// every loose Mach-O binary that is not covered by a bundle's own seal.
func Discover(rootPath string) (SigningOrder, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rootPath, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	kind := Classify(root)
	if kind.IsBundle() {
		return discoverBundle(root, kind)
	}

	if !info.IsDir() {
		if kind == KindNone {
			return nil, nil
		}
		return SigningOrder{{Path: root, Kind: kind}}, nil
	}

	return discoverTree(root)
}

// discoverBundle enumerates the nested signable components of a bundle and
// orders them deepest-first, with the bundle itself last.
func discoverBundle(bundlePath string, bundleKind Kind) (SigningOrder, error) {
	var candidates []Artifact
	seen := make(map[string]bool)

	err := filepath.Walk(bundlePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == bundlePath {
			return nil
		}

		a, ok := nestedCandidate(path, info)
		if !ok {
			return nil
		}

		canonical := filepath.Clean(path)
		if seen[canonical] {
			return nil
		}
		seen[canonical] = true
		candidates = append(candidates, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", bundlePath, err)
	}

	sortByDepth(candidates)

	order := append(SigningOrder{}, candidates...)
	order = append(order, Artifact{Path: bundlePath, Kind: bundleKind})
	return order, nil
}

// nestedCandidate decides whether an entry inside a bundle must be signed
// before the bundle itself. The candidate set is wider than the top-level
// artifact kinds: helper binaries and libraries inside a bundle need their
// own signature even though they are not independently signable artifacts.
func nestedCandidate(path string, info os.FileInfo) (Artifact, bool) {
	if info.IsDir() {
		if kind := classifyDir(path); kind.IsBundle() {
			return Artifact{Path: path, Kind: kind}, true
		}
		return Artifact{}, false
	}

	if !info.Mode().IsRegular() {
		return Artifact{}, false
	}
	if strings.HasSuffix(strings.ToLower(path), ".dylib") {
		return Artifact{Path: path, Kind: KindSharedLibrary}, true
	}
	if info.Mode()&0111 != 0 {
		return Artifact{Path: path, Kind: KindExecutableBinary}, true
	}
	return Artifact{}, false
}

// discoverTree handles a directory root that is not itself a bundle. Each
// bundle found anywhere in the tree gets its own inside-out sub-order, and
// loose installers, disk images, and Mach-O binaries outside any bundle are
// appended as independent single items.
func discoverTree(root string) (SigningOrder, error) {
	var order SigningOrder

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		kind := Classify(path)

		if info.IsDir() {
			if !kind.IsBundle() {
				return nil
			}
			sub, err := discoverBundle(path, kind)
			if err != nil {
				return err
			}
			order = append(order, sub...)
			// The bundle's contents are covered by its own seal; do not
			// rediscover them as loose binaries.
			return filepath.SkipDir
		}

		switch kind {
		case KindInstallerPackage, KindDiskImage, KindExecutableBinary:
			order = append(order, Artifact{Path: path, Kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return order, nil
}

// sortByDepth orders candidates by path nesting depth, deepest first. The
// sort is stable: equal-depth entries keep their discovery order, which
// filepath.Walk guarantees is lexical and therefore deterministic.
func sortByDepth(artifacts []Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		depthI := strings.Count(artifacts[i].Path, string(os.PathSeparator))
		depthJ := strings.Count(artifacts[j].Path, string(os.PathSeparator))
		return depthI > depthJ
	})
}

// TopLevel filters a signing order down to the artifacts not nested inside
// another artifact of the same order. These are the independent items of a
// run and form the notarization worklist.
func TopLevel(order SigningOrder) []Artifact {
	var top []Artifact
	for _, a := range order {
		nested := false
		for _, b := range order {
			if a.Path == b.Path {
				continue
			}
			if strings.HasPrefix(a.Path, b.Path+string(os.PathSeparator)) {
				nested = true
				break
			}
		}
		if !nested {
			top = append(top, a)
		}
	}
	return top
}
