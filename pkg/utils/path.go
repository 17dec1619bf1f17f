package utils

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ValidateObjectKey checks that an object key can be mirrored below a local
// directory without escaping it.
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("key contains directory traversal: %s", key)
		}
	}
	return nil
}

// SecureJoin safely joins path elements and ensures the result stays within the base directory.
//
// Example usage:
//
//	local, err := SecureJoin(stagingDir, "S3A_OL_1_EFR.SEN3", "Oa01_radiance.nc")
//	if err != nil {
//		return fmt.Errorf("invalid path combination: %w", err)
//	}
func SecureJoin(base string, elements ...string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}

	cleanBase := filepath.Clean(base)
	fullPath := filepath.Join(append([]string{cleanBase}, elements...)...)

	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) &&
		fullPath != cleanBase {
		return "", fmt.Errorf("path escapes base directory")
	}

	return fullPath, nil
}

// ProductDirName returns the name of the product container a path refers to.
// Product containers are directories such as "<name>.SEN3" or "<name>.SAFE";
// a path to a file inside one (a manifest, a band file) yields the directory's
// name. Trailing separators and s3:// prefixes are accepted. Paths that are not
// inside a recognised container yield their last element.
func ProductDirName(p string) string {
	p = strings.TrimPrefix(p, "s3://")
	p = strings.TrimRight(filepath.ToSlash(p), "/")
	if p == "" {
		return ""
	}

	base := path.Base(p)
	if IsContainerName(base) {
		return base
	}
	parent := path.Base(path.Dir(p))
	if IsContainerName(parent) {
		return parent
	}
	return base
}

// IsContainerName reports whether name is a product container directory name.
func IsContainerName(name string) bool {
	upper := strings.ToUpper(name)
	return strings.HasSuffix(upper, ".SEN3") || strings.HasSuffix(upper, ".SAFE")
}
