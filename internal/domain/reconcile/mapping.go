package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// crmDateLayout is the date representation the CRM expects on documents.
const crmDateLayout = "2006-01-02"

// MappingConfig carries the CRM-side constants every mapped document needs:
// the staff owner and the document model the orders are instantiated from.
type MappingConfig struct {
	OwnerID       int64
	ParentModelID int64
}

// ---------------------------------------------------------------------------
// CRM order / invoice payloads
// ---------------------------------------------------------------------------

// CRMParent links a CRM document to its parent (a document model for orders,
// the originating order for invoices).
type CRMParent struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// CRMRelated links a CRM document to a related entity, typically the company.
type CRMRelated struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CRMOrderRow is a single document row. Quantity and unit amount travel as
// strings on the wire.
type CRMOrderRow struct {
	Type        string `json:"type"`
	UnitAmount  string `json:"unit_amount"`
	TaxID       int64  `json:"tax_id"`
	Quantity    string `json:"quantity"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

// CRMOrderPayload is the CRM's sales document shape, shared by orders and
// invoices.
type CRMOrderPayload struct {
	Date     string        `json:"date"`
	DueDate  string        `json:"due_date"`
	Created  string        `json:"created"`
	Subject  string        `json:"subject"`
	Currency string        `json:"currency"`
	OwnerID  int64         `json:"owner_id"`
	Related  []CRMRelated  `json:"related"`
	Note     string        `json:"note"`
	Parent   CRMParent     `json:"parent"`
	Rows     []CRMOrderRow `json:"rows"`
}

// MapOrderToCRMOrder translates a catalog order into a CRM order document.
// The item collection must be present; a missing collection is a typed
// mapping failure, never partial output.
func MapOrderToCRMOrder(o Order, cfg MappingConfig) (CRMOrderPayload, error) {
	if o.Items == nil {
		return CRMOrderPayload{}, fmt.Errorf("%w: order %s", ErrNoItems, o.OrderID)
	}

	companyID, err := strconv.ParseInt(o.CompanyExternalID, 10, 64)
	if err != nil {
		return CRMOrderPayload{}, fmt.Errorf("%w: %q", ErrInvalidCompanyRef, o.CompanyExternalID)
	}

	rows := make([]CRMOrderRow, 0, len(o.Items))
	for _, item := range o.Items {
		rows = append(rows, CRMOrderRow{
			Type:        "single",
			UnitAmount:  item.UnitPrice.String(),
			TaxID:       item.TaxID,
			Quantity:    strconv.Itoa(item.Quantity),
			Reference:   item.SKU,
			Description: item.Title,
		})
	}

	return CRMOrderPayload{
		Date:     o.CreationDate.Format(crmDateLayout),
		DueDate:  o.DeliveryDate.Format(crmDateLayout),
		Created:  o.CreationDate.Format(time.RFC3339),
		Subject:  "Order for " + o.CompanyName,
		Currency: strings.ToUpper(o.CurrencyCode),
		OwnerID:  cfg.OwnerID,
		Related:  []CRMRelated{{ID: companyID, Type: "company"}},
		Note:     "Commande générée depuis Catalog",
		Parent:   CRMParent{Type: "model", ID: cfg.ParentModelID},
		Rows:     rows,
	}, nil
}

// MapOrderToCRMInvoice translates a catalog order into a CRM invoice. An
// invoice is the order mapping with the date and created fields overridden to
// now and the parent re-pointed at the originating CRM order.
func MapOrderToCRMInvoice(o Order, cfg MappingConfig, crmOrderID int64, now time.Time) (CRMOrderPayload, error) {
	payload, err := MapOrderToCRMOrder(o, cfg)
	if err != nil {
		return CRMOrderPayload{}, err
	}
	payload.Date = now.Format(crmDateLayout)
	payload.Created = now.Format(time.RFC3339)
	payload.Parent = CRMParent{Type: "order", ID: crmOrderID}
	return payload, nil
}

// ---------------------------------------------------------------------------
// Logistics order payload
// ---------------------------------------------------------------------------

// LogisticsArticle is a line item on a logistics order. Field names follow
// the provider's French wire format.
type LogisticsArticle struct {
	RefEcommercant          string          `json:"refEcommercant"`
	Quantite                int             `json:"quantite"`
	PrixVenteUnitaire       decimal.Decimal `json:"prixVenteUnitaire"`
	DevisePrixVenteUnitaire string          `json:"devisePrixVenteUnitaire"`
}

// LogisticsAddress is an address on a logistics order.
type LogisticsAddress struct {
	Societe       string `json:"societe"`
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	Adresse       string `json:"adresse"`
	Adresse2      string `json:"adresse2"`
	CodePostal    string `json:"codePostal"`
	Ville         string `json:"ville"`
	CodePays      string `json:"codePays"`
	TelephoneFixe string `json:"telephoneFixe"`
	Email         string `json:"email"`
}

// LogisticsOrderPayload is the fulfillment provider's order creation shape.
type LogisticsOrderPayload struct {
	Reference               string             `json:"reference"`
	ReferenceClient         string             `json:"referenceClient"`
	CodeServiceTransporteur int                `json:"codeServiceTransporteur"`
	NumeroLogo              int                `json:"numeroLogo"`
	DateCommande            string             `json:"dateCommande"`
	ListeArticles           []LogisticsArticle `json:"listeArticles"`
	AdresseFacturation      LogisticsAddress   `json:"adresseFacturation"`
	AdresseLivraison        LogisticsAddress   `json:"adresseLivraison"`
	MontantHT               decimal.Decimal    `json:"montantHT"`
	MontantAssure           decimal.Decimal    `json:"montantAssure"`
	DeviseMontantAssure     string             `json:"deviseMontantAssure"`
	FraisDePort             decimal.Decimal    `json:"fraisDePort"`
	DeviseFraisDePort       string             `json:"deviseFraisDePort"`
}

// MapOrderToLogisticsOrder translates a catalog order into the logistics
// provider's order shape. Currency codes are upper-cased and the order
// amounts are recomputed from the items rather than trusting any upstream
// total.
func MapOrderToLogisticsOrder(o Order) (LogisticsOrderPayload, error) {
	if o.Items == nil {
		return LogisticsOrderPayload{}, fmt.Errorf("%w: order %s", ErrNoItems, o.OrderID)
	}

	currency := strings.ToUpper(o.CurrencyCode)
	articles := make([]LogisticsArticle, 0, len(o.Items))
	for _, item := range o.Items {
		articles = append(articles, LogisticsArticle{
			RefEcommercant:          item.SKU,
			Quantite:                item.Quantity,
			PrixVenteUnitaire:       item.UnitPrice,
			DevisePrixVenteUnitaire: currency,
		})
	}
	total := OrderTotal(o.Items)

	return LogisticsOrderPayload{
		Reference:               o.OrderID,
		ReferenceClient:         o.CompanyID,
		CodeServiceTransporteur: 1,
		NumeroLogo:              1,
		DateCommande:            o.CreationDate.Format(crmDateLayout),
		ListeArticles:           articles,
		AdresseFacturation:      mapLogisticsAddress(o.BillingAddress, o.Email),
		AdresseLivraison:        mapLogisticsAddress(o.ShippingAddress, o.Email),
		MontantHT:               total,
		MontantAssure:           total,
		DeviseMontantAssure:     currency,
		FraisDePort:             o.ShippingPrice,
		DeviseFraisDePort:       currency,
	}, nil
}

func mapLogisticsAddress(a Address, email string) LogisticsAddress {
	return LogisticsAddress{
		Societe:       a.CompanyName,
		Nom:           a.LastName,
		Prenom:        a.FirstName,
		Adresse:       a.Line1,
		Adresse2:      a.Line2,
		CodePostal:    a.PostalCode,
		Ville:         a.City,
		CodePays:      a.CountryCode,
		TelephoneFixe: a.Phone,
		Email:         email,
	}
}

// ---------------------------------------------------------------------------
// CRM entity (company) payload
// ---------------------------------------------------------------------------

// CRMThird is the company block of a CRM entity payload.
type CRMThird struct {
	Name  string `json:"name"`
	Ident string `json:"ident,omitempty"`
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
	Tel   string `json:"tel,omitempty"`
	Web   string `json:"web,omitempty"`
	Siret string `json:"siret,omitempty"`
	VAT   string `json:"vat,omitempty"`
}

// CRMEntityContact is the contact block of a CRM entity payload.
type CRMEntityContact struct {
	Name     string `json:"name,omitempty"`
	Forename string `json:"forename,omitempty"`
	Email    string `json:"email,omitempty"`
	Tel      string `json:"tel,omitempty"`
	Position string `json:"position,omitempty"`
}

// CRMEntityAddress is the address block of a CRM entity payload.
type CRMEntityAddress struct {
	Name        string `json:"name,omitempty"`
	Part1       string `json:"part1,omitempty"`
	Part2       string `json:"part2,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Town        string `json:"town,omitempty"`
	CountryCode string `json:"countrycode,omitempty"`
}

// CRMEntityPayload is the legacy RPC shape for creating or updating a
// company (prospect or client) in the CRM.
type CRMEntityPayload struct {
	Third   CRMThird         `json:"third"`
	Contact CRMEntityContact `json:"contact"`
	Address CRMEntityAddress `json:"address"`
}

var siretCleaner = strings.NewReplacer(" ", "", "-", "")

// MapCompanyToCRMEntity translates a catalog company into the CRM entity
// payload. Registration and VAT numbers are stripped of whitespace and
// dashes; the first contact and the billing address seed the contact and
// address blocks.
func MapCompanyToCRMEntity(c Company) CRMEntityPayload {
	payload := CRMEntityPayload{
		Third: CRMThird{
			Name:  c.Name,
			Ident: c.Code,
			Type:  "corporation",
			Web:   c.Website,
			Siret: siretCleaner.Replace(c.RegistrationNumber),
			VAT:   strings.Join(strings.Fields(c.VATNumber), ""),
		},
	}
	if len(c.Contacts) > 0 {
		first := c.Contacts[0]
		payload.Third.Email = first.Email
		name := first.LastName
		if name == "" {
			name = c.Name
		}
		payload.Contact = CRMEntityContact{
			Name:     name,
			Forename: first.FirstName,
			Email:    first.Email,
			Tel:      first.Phone,
			Position: first.Position,
		}
	}
	if c.BillingAddress != nil {
		addr := *c.BillingAddress
		payload.Third.Tel = addr.Phone
		name := addr.Name
		if name == "" {
			name = c.Name
		}
		payload.Address = CRMEntityAddress{
			Name:        name,
			Part1:       addr.Line1,
			Part2:       addr.Line2,
			Zip:         addr.PostalCode,
			Town:        addr.City,
			CountryCode: addr.CountryCode,
		}
	}
	return payload
}

// ---------------------------------------------------------------------------
// CRM address payload
// ---------------------------------------------------------------------------

// CRMAddressPayload is the CRM's REST shape for company addresses.
type CRMAddressPayload struct {
	Name               string `json:"name"`
	AddressLine1       string `json:"address_line_1"`
	AddressLine2       string `json:"address_line_2"`
	PostalCode         string `json:"postal_code"`
	City               string `json:"city"`
	CountryCode        string `json:"country_code"`
	IsInvoicingAddress bool   `json:"is_invoicing_address"`
	IsDeliveryAddress  bool   `json:"is_delivery_address"`
}

// MapAddressPayload translates an address and its slot into the CRM address
// shape. An unnamed address takes the slot label as its name.
func MapAddressPayload(a Address, role AddressRole) CRMAddressPayload {
	name := a.Name
	if name == "" {
		name = role.String()
	}
	return CRMAddressPayload{
		Name:               name,
		AddressLine1:       a.Line1,
		AddressLine2:       a.Line2,
		PostalCode:         a.PostalCode,
		City:               a.City,
		CountryCode:        a.CountryCode,
		IsInvoicingAddress: role.Invoicing(),
		IsDeliveryAddress:  role.Delivery(),
	}
}
