package entities

// Entitlement is the resolver's verdict for one generation request.
// The zero value is Denied so an unset decision never charges anything.
type Entitlement int

const (
	EntitlementDenied Entitlement = iota
	EntitlementFree
	EntitlementPaid
)

func (e Entitlement) String() string {
	switch e {
	case EntitlementDenied:
		return "denied"
	case EntitlementFree:
		return "free"
	case EntitlementPaid:
		return "paid"
	default:
		return "unknown"
	}
}

// Chargeable reports whether the entitlement can be committed.
func (e Entitlement) Chargeable() bool {
	return e == EntitlementFree || e == EntitlementPaid
}
