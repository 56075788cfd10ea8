package session

import (
	"crypto/sha256"
	"fmt"
	"net"
)

// PrivacyFilter masks session details before they leave the process, in
// logs and in the session listing. The zero value is a no-op filter.
type PrivacyFilter struct {
	MaskRemoteAddrs bool
	MaskSessionIDs  bool
}

// Apply returns a copy of info with sensitive fields masked.
func (f *PrivacyFilter) Apply(info Info) Info {
	if f.MaskRemoteAddrs && info.RemoteAddr != "" {
		info.RemoteAddr = maskAddr(info.RemoteAddr)
	}
	if f.MaskSessionIDs && info.ID != "" {
		info.ID = shortHash(info.ID)
	}
	return info
}

// FilterSlice returns masked copies of infos. The input is not modified.
func (f *PrivacyFilter) FilterSlice(infos []Info) []Info {
	result := make([]Info, 0, len(infos))
	for _, info := range infos {
		result = append(result, f.Apply(info))
	}
	return result
}

func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskRemoteAddrs && !f.MaskSessionIDs
}

// maskAddr replaces the host part of addr with a short hash and keeps the
// port, so concurrent sessions from one phone remain distinguishable.
func maskAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return shortHash(addr)
	}
	return net.JoinHostPort(shortHash(host), port)
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
