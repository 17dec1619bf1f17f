package s3

import (
	"path"
	"strings"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Scheme prefixes object storage locations.
const Scheme = "s3://"

// URI is a parsed s3://bucket/key location.
type URI struct {
	Bucket string
	Key    string
}

// IsURI reports whether s names an object storage location.
func IsURI(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseURI splits an s3:// location into bucket and key. Trailing slashes
// are dropped from the key.
func ParseURI(s string) (URI, error) {
	if !IsURI(s) {
		return URI{}, errors.Errorf(errors.ErrCodePathInvalid, "not an s3 URI: %s", s).
			WithComponent("s3")
	}
	rest := strings.TrimPrefix(s, Scheme)
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return URI{}, errors.Errorf(errors.ErrCodePathInvalid, "missing bucket in %s", s).
			WithComponent("s3")
	}
	key = strings.Trim(key, "/")
	if key != "" {
		if err := utils.ValidateObjectKey(key); err != nil {
			return URI{}, errors.Errorf(errors.ErrCodePathInvalid, "invalid key in %s", s).
				WithCause(err).WithComponent("s3")
		}
	}
	return URI{Bucket: bucket, Key: key}, nil
}

// String returns the s3:// form of u.
func (u URI) String() string {
	if u.Key == "" {
		return Scheme + u.Bucket
	}
	return Scheme + u.Bucket + "/" + u.Key
}

// ProductRoot splits the key at the product container (a .SEN3 or .SAFE
// element). root is the container key and inside the remainder. A key with
// no container element is its own root.
func (u URI) ProductRoot() (root, inside string) {
	parts := strings.Split(u.Key, "/")
	for i, p := range parts {
		if utils.IsContainerName(p) {
			return path.Join(parts[:i+1]...), path.Join(parts[i+1:]...)
		}
	}
	return u.Key, ""
}
