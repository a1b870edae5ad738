// Package iosource resolves a CLI-supplied file specification into an
// openable local path.
//
// It understands the same handful of spec shapes the engine's CLI tools
// accept: a bare filesystem path, a "file://" URL (hierarchical or
// opaque), a Windows drive path, a Windows UNC path, and the special
// spec "-" meaning standard input or standard output.
package iosource

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Stdio is the spec recognized as "use standard input/output".
const Stdio = "-"

// Resolve normalizes spec into a local filesystem path.
//
// It does not touch the filesystem: it performs no existence check and
// opens nothing. Callers open the returned path themselves (or, if
// spec == Stdio, use os.Stdin/os.Stdout directly instead of calling
// Resolve at all).
func Resolve(spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", fmt.Errorf("iosource: empty source specification")
	}
	if spec == Stdio {
		return Stdio, nil
	}

	if scheme, ok := hasSchemeOtherThanFile(spec); ok {
		return "", fmt.Errorf("iosource: unsupported scheme %q in %q", scheme, spec)
	}
	if len(spec) >= 5 && strings.EqualFold(spec[:5], "file:") {
		return normalizeFileURL(spec)
	}
	return spec, nil
}

// hasSchemeOtherThanFile reports whether spec begins with a URL scheme
// other than "file", while not mistaking a Windows drive path (C:\...)
// for a scheme.
func hasSchemeOtherThanFile(spec string) (string, bool) {
	if u, err := url.Parse(spec); err == nil && u.Scheme != "" && !strings.EqualFold(u.Scheme, "file") && !isWindowsDrivePath(spec) {
		return u.Scheme, true
	}
	return "", false
}

// normalizeFileURL turns a file: URL into a filesystem path.
//
// Supports file:///abs/path, file:/opaque/path and file://host/share/path
// (UNC). Percent-encoded sequences are decoded, and a URL-style leading
// slash in front of a Windows drive letter (/C:/...) is stripped.
func normalizeFileURL(spec string) (string, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return "", fmt.Errorf("iosource: %w", err)
	}
	path := u.Path
	if u.Path == "" && u.Opaque != "" {
		path = u.Opaque
	} else if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		path = "//" + u.Host + u.Path
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	if path == "" {
		return "", fmt.Errorf("iosource: empty file URI: %q", spec)
	}
	return filepath.FromSlash(path), nil
}

// isWindowsDrivePath reports whether spec looks like "C:\dir" or "C:/dir".
func isWindowsDrivePath(spec string) bool {
	if len(spec) < 2 {
		return false
	}
	c := spec[0]
	if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
		return false
	}
	if spec[1] != ':' {
		return false
	}
	return len(spec) == 2 || (len(spec) >= 3 && (spec[2] == '\\' || spec[2] == '/'))
}
