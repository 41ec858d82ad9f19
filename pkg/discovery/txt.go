package discovery

import "strings"

// TXT keys advertised by CoAP endpoints (RFC 6763 Section 6,
// CoRE resource directory conventions).
const (
	// TXTKeyPath is the base path of the service's resources.
	TXTKeyPath = "path"

	// TXTKeyResourceType is the rt= attribute of the main resource.
	TXTKeyResourceType = "rt"

	// TXTKeyInterface is the if= attribute of the main resource.
	TXTKeyInterface = "if"

	// TXTKeyContentFormat is the ct= attribute of the main resource.
	TXTKeyContentFormat = "ct"
)

// ParseTXT parses raw "key=value" TXT records into a map.
// Records without '=' or with an empty key are skipped; the first value of a
// repeated key wins (RFC 6763 Section 6.4).
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		idx := strings.IndexByte(record, '=')
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(record[:idx])
		if _, dup := result[key]; dup {
			continue
		}
		result[key] = record[idx+1:]
	}
	return result
}

// ServicePath returns the base path from TXT records, defaulting to "/".
func ServicePath(txt map[string]string) string {
	path := txt[TXTKeyPath]
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
