package fileserver

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/crc64nvme"
)

// etagHandler tags regular files with a strong ETag computed over their
// contents and answers conditional requests with 304 Not Modified.
func etagHandler(root string, next http.Handler) http.Handler {
	dir := http.Dir(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag, ok := fileETag(dir, r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("ETag", tag)

		if matchesETag(r.Header.Get("If-None-Match"), tag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// fileETag hashes a regular file under the served root with CRC-64/NVME.
// Directories and anything that fails to open fall through untagged.
func fileETag(dir http.Dir, upath string) (string, bool) {
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}

	f, err := dir.Open(path.Clean(upath))
	if err != nil {
		return "", false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	h := crc64nvme.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", false
	}

	return fmt.Sprintf(`"%016x"`, h.Sum64()), true
}

// matchesETag reports whether an If-None-Match header matches tag, tolerating
// weak validators and comma-separated lists.
func matchesETag(header, tag string) bool {
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag {
			return true
		}
	}

	return false
}
