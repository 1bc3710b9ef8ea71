package reconcile

import "strings"

// ---------------------------------------------------------------------------
// Address
// ---------------------------------------------------------------------------

// Address is a postal address as exchanged with any of the three systems.
// Optional fields are plain strings; a missing field is the empty string.
type Address struct {
	CompanyName string
	FirstName   string
	LastName    string
	Name        string
	Line1       string
	Line2       string
	PostalCode  string
	City        string
	CountryCode string
	Phone       string
}

// Normalize returns the address reduced to its equality-relevant fields,
// lower-cased, with missing optionals mapped to "". Normalization is
// idempotent.
func (a Address) Normalize() Address {
	name := a.FirstName
	if name == "" {
		name = a.Name
	}
	return Address{
		Name:        strings.ToLower(name),
		Line1:       strings.ToLower(a.Line1),
		PostalCode:  a.PostalCode,
		City:        strings.ToLower(a.City),
		CountryCode: strings.ToLower(a.CountryCode),
	}
}

// AddressesEqual reports whether two addresses are the same under
// normalization. Equality, not full-field identity, is the dedup key.
func AddressesEqual(a, b Address) bool {
	return a.Normalize() == b.Normalize()
}

// ---------------------------------------------------------------------------
// AddressRole
// ---------------------------------------------------------------------------

// AddressRole is the CRM slot an address occupies. The names mirror the
// CRM's own slot labels.
type AddressRole string

const (
	RoleBilling  AddressRole = "Facturation"
	RoleShipping AddressRole = "Livraison"
	RoleBoth     AddressRole = "Both"
)

// String returns the string representation of AddressRole
func (r AddressRole) String() string {
	return string(r)
}

// Invoicing reports whether the role covers the invoicing slot.
func (r AddressRole) Invoicing() bool {
	return r == RoleBilling || r == RoleBoth
}

// Delivery reports whether the role covers the delivery slot.
func (r AddressRole) Delivery() bool {
	return r == RoleShipping || r == RoleBoth
}

// CRMAddress is an address record already present on the CRM company.
type CRMAddress struct {
	ID          int64
	Address     Address
	IsInvoicing bool
	IsDelivery  bool
}

// role classifies an existing CRM address into a slot, or "" for none.
func (a CRMAddress) role() AddressRole {
	switch {
	case a.IsInvoicing && a.IsDelivery:
		return RoleBoth
	case a.IsInvoicing:
		return RoleBilling
	case a.IsDelivery:
		return RoleShipping
	default:
		return AddressRole("")
	}
}

// ---------------------------------------------------------------------------
// Address reconciliation plan
// ---------------------------------------------------------------------------

// AddressCreate is a planned address creation in a given slot.
type AddressCreate struct {
	Address Address
	Role    AddressRole
}

// AddressUpdate is a planned in-place update of an existing CRM address.
type AddressUpdate struct {
	AddressID int64
	Address   Address
	Role      AddressRole
}

// AddressPlan is the minimal set of operations that brings the CRM company's
// addresses in line with the incoming billing and shipping addresses. After
// applying a plan the company holds either one "Both" address or at most one
// each of pure billing and pure shipping, and no role-less address survives.
type AddressPlan struct {
	Creates []AddressCreate
	Updates []AddressUpdate
	Deletes []int64
}

// IsEmpty reports whether the plan contains no operations.
func (p AddressPlan) IsEmpty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// PlanAddresses computes the reconciliation plan for a company. The first
// shipping address is the canonical one; an empty shipping list fails with
// ErrNoShippingAddress rather than dereferencing a missing element.
//
// This engine owns exactly the in-use slots: any existing address that does
// not end up holding a slot is garbage-collected, including role-less
// addresses and duplicates of an occupied slot.
func PlanAddresses(existing []CRMAddress, billing Address, shipping []Address) (AddressPlan, error) {
	if len(shipping) == 0 {
		return AddressPlan{}, ErrNoShippingAddress
	}

	var plan AddressPlan
	kept := make(map[int64]bool)

	if AddressesEqual(billing, shipping[0]) {
		planSlot(&plan, kept, existing, RoleBoth, billing)
	} else {
		planSlot(&plan, kept, existing, RoleBilling, billing)
		planSlot(&plan, kept, existing, RoleShipping, shipping[0])
	}

	for _, addr := range existing {
		if !kept[addr.ID] {
			plan.Deletes = append(plan.Deletes, addr.ID)
		}
	}
	return plan, nil
}

// planSlot reconciles one slot: find the first existing holder, compare, then
// no-op, update or create. The holder (if any) is marked as kept.
func planSlot(plan *AddressPlan, kept map[int64]bool, existing []CRMAddress, role AddressRole, addr Address) {
	for _, e := range existing {
		if e.role() != role {
			continue
		}
		kept[e.ID] = true
		if !AddressesEqual(e.Address, addr) {
			plan.Updates = append(plan.Updates, AddressUpdate{AddressID: e.ID, Address: addr, Role: role})
		}
		return
	}
	plan.Creates = append(plan.Creates, AddressCreate{Address: addr, Role: role})
}
