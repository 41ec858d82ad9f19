package discovery

import (
	"net"
	"sort"
)

// SortIPsByPreference orders addresses for dialing, best first:
//  1. Global unicast
//  2. Unique local (fc00::/7)
//  3. Link-local (fe80::/10)
//  4. IPv4
//  5. Loopback and multicast
//
// The input slice is not modified.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})

	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	ip = ip.To16()
	if ip == nil {
		return 99
	}

	if ip.IsLoopback() {
		return 80
	}
	if ip.IsMulticast() {
		return 90
	}

	if ip.To4() != nil {
		return 50
	}

	if isGlobalUnicast(ip) {
		return 0
	}
	if isUniqueLocal(ip) {
		return 1
	}
	if ip.IsLinkLocalUnicast() {
		return 2
	}

	return 10
}

// isGlobalUnicast reports globally routable IPv6 addresses, excluding ULAs.
func isGlobalUnicast(ip net.IP) bool {
	return ip.IsGlobalUnicast() && !isUniqueLocal(ip)
}

// isUniqueLocal returns true for fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	if ip == nil || ip.To4() != nil {
		return false
	}
	return ip[0] == 0xfc || ip[0] == 0xfd
}

// FilterIPv6 returns only IPv6 addresses from the slice.
func FilterIPv6(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// FilterIPv4 returns only IPv4 addresses from the slice.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}
