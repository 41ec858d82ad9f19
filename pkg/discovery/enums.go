package discovery

// DefaultDomain is the mDNS domain.
const DefaultDomain = "local."

// DNS-SD service names for CoAP endpoints (RFC 7252 Section 12.8).
const (
	ServiceCoAP       = "_coap._udp"
	ServiceCoAPSecure = "_coaps._udp"
)

// ServiceType identifies which CoAP service is browsed.
type ServiceType int

const (
	// ServiceTypeCoAP is plain CoAP over UDP.
	ServiceTypeCoAP ServiceType = iota

	// ServiceTypeCoAPSecure is CoAP over DTLS. Listed only; this module
	// does not dial it.
	ServiceTypeCoAPSecure
)

// String returns a human-readable name.
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeCoAP:
		return "coap"
	case ServiceTypeCoAPSecure:
		return "coaps"
	default:
		return "unknown"
	}
}

// IsValid returns true if the service type is defined.
func (s ServiceType) IsValid() bool {
	return s == ServiceTypeCoAP || s == ServiceTypeCoAPSecure
}

// ServiceString returns the DNS-SD service name, or "" for invalid types.
func (s ServiceType) ServiceString() string {
	switch s {
	case ServiceTypeCoAP:
		return ServiceCoAP
	case ServiceTypeCoAPSecure:
		return ServiceCoAPSecure
	default:
		return ""
	}
}

// ParseServiceType maps "coap" and "coaps" to a ServiceType.
func ParseServiceType(s string) (ServiceType, error) {
	switch s {
	case "coap", ServiceCoAP:
		return ServiceTypeCoAP, nil
	case "coaps", ServiceCoAPSecure:
		return ServiceTypeCoAPSecure, nil
	default:
		return 0, ErrInvalidServiceType
	}
}
