package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, mock *MockMDNSResolver) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverConfig{
		MDNSResolver:  mock,
		BrowseTimeout: time.Second,
		LookupTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	return r
}

func TestNewResolverDefaults(t *testing.T) {
	r, err := NewResolver(ResolverConfig{MDNSResolver: NewMockMDNSResolver()})
	require.NoError(t, err)
	assert.Equal(t, DefaultBrowseTimeout, r.config.BrowseTimeout)
	assert.Equal(t, DefaultLookupTimeout, r.config.LookupTimeout)
}

func TestResolverBrowse(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceCoAP, MockCoAPService("lamp", 5683, "/light",
		net.ParseIP("192.168.1.20"), net.ParseIP("fe80::1")))
	mock.RegisterService(ServiceCoAP, MockCoAPService("thermo", 5684, "", net.ParseIP("2001:db8::5")))
	mock.RegisterService(ServiceCoAPSecure, MockCoAPService("vault", 5684, "", net.ParseIP("10.0.0.9")))

	r := newTestResolver(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results, err := r.Browse(ctx, ServiceTypeCoAP)
	require.NoError(t, err)

	found := map[string]ResolvedService{}
	for svc := range results {
		found[svc.InstanceName] = svc
	}
	require.Len(t, found, 2)

	lamp := found["lamp"]
	assert.Equal(t, ServiceTypeCoAP, lamp.ServiceType)
	assert.Equal(t, 5683, lamp.Port)
	require.Len(t, lamp.IPs, 2)
	assert.True(t, lamp.IPs[0].Equal(net.ParseIP("fe80::1")), "link-local IPv6 should sort before IPv4")
	assert.Equal(t, "coap://[fe80::1]:5683/light", lamp.URI())

	thermo := found["thermo"]
	host, port, err := thermo.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::5", host)
	assert.Equal(t, 5684, port)
}

func TestResolverBrowseInvalidType(t *testing.T) {
	r := newTestResolver(t, NewMockMDNSResolver())
	_, err := r.Browse(context.Background(), ServiceType(9))
	require.ErrorIs(t, err, ErrInvalidServiceType)
}

func TestResolverBrowseCancel(t *testing.T) {
	mock := NewMockMDNSResolver()
	for _, name := range []string{"a", "b", "c"} {
		mock.RegisterService(ServiceCoAP, MockCoAPService(name, 5683, "", net.ParseIP("10.0.0.1")))
	}
	r := newTestResolver(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	results, err := r.Browse(ctx, ServiceTypeCoAP)
	require.NoError(t, err)

	<-results
	cancel()

	select {
	case <-drain(results):
	case <-time.After(time.Second):
		t.Fatal("results channel not closed after cancel")
	}
}

func drain(results <-chan ResolvedService) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range results {
		}
		close(done)
	}()
	return done
}

func TestResolverLookup(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceCoAP, MockCoAPService("lamp", 5683, "light", net.ParseIP("192.168.1.20")))
	r := newTestResolver(t, mock)

	svc, err := r.Lookup(context.Background(), ServiceTypeCoAP, "lamp")
	require.NoError(t, err)
	assert.Equal(t, "lamp.local.", svc.HostName)
	assert.Equal(t, "/light", ServicePath(svc.Text))

	_, err = r.Lookup(context.Background(), ServiceTypeCoAP, "missing")
	require.ErrorIs(t, err, ErrServiceNotFound)

	_, err = r.Lookup(context.Background(), ServiceType(-1), "lamp")
	require.ErrorIs(t, err, ErrInvalidServiceType)
}

func TestResolvedServiceNoAddresses(t *testing.T) {
	svc := ResolvedService{HostName: "bare.local.", Port: 5683}
	_, _, err := svc.Endpoint()
	require.ErrorIs(t, err, ErrNoAddresses)
	assert.Nil(t, svc.PreferredIP())
	assert.Equal(t, "coap://bare.local.:5683/", svc.URI())
}

func TestServiceType(t *testing.T) {
	tests := []struct {
		in      string
		want    ServiceType
		service string
		wantErr bool
	}{
		{"coap", ServiceTypeCoAP, ServiceCoAP, false},
		{"_coap._udp", ServiceTypeCoAP, ServiceCoAP, false},
		{"coaps", ServiceTypeCoAPSecure, ServiceCoAPSecure, false},
		{"http", 0, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseServiceType(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidServiceType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.service, got.ServiceString())
			assert.True(t, got.IsValid())
		})
	}
	assert.Equal(t, "unknown", ServiceType(7).String())
}
