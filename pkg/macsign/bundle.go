package macsign

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// GetBundleID reads the CFBundleIdentifier from a bundle's Info.plist.
// macOS bundles keep it under Contents/, frameworks at Resources/ or the
// bundle root.
func GetBundleID(bundlePath string) (string, error) {
	candidates := []string{
		filepath.Join(bundlePath, "Contents", "Info.plist"),
		filepath.Join(bundlePath, "Resources", "Info.plist"),
		filepath.Join(bundlePath, "Info.plist"),
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		info, err := parseInfoPlist(data)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", p, err)
		}
		if id, ok := info["CFBundleIdentifier"].(string); ok {
			return id, nil
		}
	}

	return "", fmt.Errorf("no Info.plist with CFBundleIdentifier found in %s", bundlePath)
}

// ValidateEntitlements checks that an entitlements file parses as a plist
// dictionary before it is handed to the signing tool.
func ValidateEntitlements(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("failed to read entitlements file %s: %v", path, err)}
	}
	if _, err := parseInfoPlist(data); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("entitlements file %s is not a valid plist: %v", path, err)}
	}
	return nil
}

func parseInfoPlist(data []byte) (map[string]interface{}, error) {
	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse plist: %w", err)
	}
	return info, nil
}
