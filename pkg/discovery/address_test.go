package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortIPsByPreference(t *testing.T) {
	in := []net.IP{
		net.ParseIP("127.0.0.1"),
		net.ParseIP("192.168.1.10"),
		net.ParseIP("fe80::1"),
		net.ParseIP("fd00::1"),
		net.ParseIP("2001:db8::1"),
		net.ParseIP("ff02::fd"),
	}
	want := []string{"2001:db8::1", "fd00::1", "fe80::1", "192.168.1.10", "127.0.0.1", "ff02::fd"}

	got := SortIPsByPreference(in)
	var gotStr []string
	for _, ip := range got {
		gotStr = append(gotStr, ip.String())
	}
	assert.Equal(t, want, gotStr)
	assert.Equal(t, "127.0.0.1", in[0].String(), "input must not be reordered")
}

func TestFilterIPs(t *testing.T) {
	ips := []net.IP{net.ParseIP("10.0.0.1"), net.ParseIP("fe80::1"), net.ParseIP("2001:db8::2")}
	assert.Len(t, FilterIPv4(ips), 1)
	assert.Len(t, FilterIPv6(ips), 2)
}

func TestParseTXT(t *testing.T) {
	txt := ParseTXT([]string{"path=/sensors", "rt=temperature", "noequals", "=empty", "PATH=/ignored", "ct=60"})

	assert.Equal(t, map[string]string{"path": "/sensors", "rt": "temperature", "ct": "60"}, txt)
	assert.Equal(t, "/sensors", ServicePath(txt))
	assert.Equal(t, "/", ServicePath(map[string]string{}))
	assert.Equal(t, "/x", ServicePath(map[string]string{TXTKeyPath: "x"}))
}
