package reconcile

// ---------------------------------------------------------------------------
// CompanyEvent represents an inbound catalog company webhook event
// ---------------------------------------------------------------------------

// CompanyEvent represents an inbound catalog company webhook event
type CompanyEvent string

const (
	CompanyEventCreated CompanyEvent = "company.created"
	CompanyEventUpdated CompanyEvent = "company.updated"
	CompanyEventUnknown CompanyEvent = ""
)

// ParseCompanyEvent maps a webhook event name to a known company event.
func ParseCompanyEvent(name string) CompanyEvent {
	switch CompanyEvent(name) {
	case CompanyEventCreated, CompanyEventUpdated:
		return CompanyEvent(name)
	default:
		return CompanyEventUnknown
	}
}

// String returns the string representation of CompanyEvent
func (e CompanyEvent) String() string {
	return string(e)
}

// ---------------------------------------------------------------------------
// CompanyKind
// ---------------------------------------------------------------------------

// CompanyKind is the two-variant prospect/customer classification. It is
// derived exactly once at the system boundary and switched on exhaustively
// thereafter; no code downstream inspects catalog classification tags.
type CompanyKind string

const (
	KindProspect CompanyKind = "prospect"
	KindCustomer CompanyKind = "customer"
)

// String returns the string representation of CompanyKind
func (k CompanyKind) String() string {
	return string(k)
}

// DeriveCompanyKind derives the company kind from catalog classification
// tags: a company tagged "prospect" is a prospect, anything else a customer.
func DeriveCompanyKind(catalogNames []string) CompanyKind {
	for _, name := range catalogNames {
		if name == "prospect" {
			return KindProspect
		}
	}
	return KindCustomer
}

// ParseCRMCompanyType maps the CRM's "type" field on a company search result
// to a CompanyKind. The CRM reports "prospect" or "client".
func ParseCRMCompanyType(crmType string) CompanyKind {
	if crmType == "prospect" {
		return KindProspect
	}
	return KindCustomer
}

// ---------------------------------------------------------------------------
// Company
// ---------------------------------------------------------------------------

// Company is the catalog's company representation as carried by webhooks.
// Code holds the CRM counterpart's id once it has been persisted back.
type Company struct {
	ID                 string
	Name               string
	Code               string
	RegistrationNumber string
	VATNumber          string
	Website            string
	Contacts           []Contact
	BillingAddress     *Address
	ShippingAddresses  []Address
	CatalogNames       []string
}

// Kind derives the prospect/customer classification for this company.
func (c Company) Kind() CompanyKind {
	return DeriveCompanyKind(c.CatalogNames)
}

// CRMCompany is the CRM-side view of a company resolved by name lookup.
type CRMCompany struct {
	ID   int64
	Kind CompanyKind
}
