package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMapping = MappingConfig{OwnerID: 42, ParentModelID: 7}

func testOrder() Order {
	return Order{
		OrderID:           "ord-123",
		CompanyID:         "cmp-9",
		CompanyName:       "Acme SARL",
		CompanyExternalID: "1001",
		Items: []LineItem{
			{SKU: "A", Title: "Widget", Quantity: 2, UnitPrice: decimal.NewFromInt(10), TaxID: 5},
		},
		BillingAddress:  Address{FirstName: "Marie", LastName: "Dupont", Line1: "12 rue de la Paix", PostalCode: "75002", City: "Paris", CountryCode: "FR"},
		ShippingAddress: Address{FirstName: "Jean", LastName: "Martin", Line1: "3 avenue Foch", PostalCode: "69006", City: "Lyon", CountryCode: "FR"},
		CurrencyCode:    "eur",
		CreationDate:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		DeliveryDate:    time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		ShippingPrice:   decimal.NewFromInt(5),
		Email:           "marie@example.com",
	}
}

func TestOrderTotal(t *testing.T) {
	items := []LineItem{
		{Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		{Quantity: 3, UnitPrice: decimal.RequireFromString("1.50")},
	}
	assert.True(t, OrderTotal(items).Equal(decimal.RequireFromString("24.5")))
	assert.True(t, OrderTotal(nil).IsZero())
}

func TestMapOrderToCRMOrder(t *testing.T) {
	t.Run("maps a full order", func(t *testing.T) {
		payload, err := MapOrderToCRMOrder(testOrder(), testMapping)
		require.NoError(t, err)

		assert.Equal(t, "2026-03-14", payload.Date)
		assert.Equal(t, "2026-03-20", payload.DueDate)
		assert.Equal(t, "2026-03-14T09:30:00Z", payload.Created)
		assert.Equal(t, "Order for Acme SARL", payload.Subject)
		assert.Equal(t, "EUR", payload.Currency)
		assert.Equal(t, int64(42), payload.OwnerID)
		require.Len(t, payload.Related, 1)
		assert.Equal(t, int64(1001), payload.Related[0].ID)
		assert.Equal(t, "company", payload.Related[0].Type)
		assert.Equal(t, CRMParent{Type: "model", ID: 7}, payload.Parent)

		require.Len(t, payload.Rows, 1)
		row := payload.Rows[0]
		assert.Equal(t, "single", row.Type)
		assert.Equal(t, "2", row.Quantity)
		assert.Equal(t, "10", row.UnitAmount)
		assert.Equal(t, int64(5), row.TaxID)
		assert.Equal(t, "A", row.Reference)
	})

	t.Run("missing items is a typed failure", func(t *testing.T) {
		o := testOrder()
		o.Items = nil
		_, err := MapOrderToCRMOrder(o, testMapping)
		require.ErrorIs(t, err, ErrNoItems)
	})

	t.Run("empty item list maps to zero rows", func(t *testing.T) {
		o := testOrder()
		o.Items = []LineItem{}
		payload, err := MapOrderToCRMOrder(o, testMapping)
		require.NoError(t, err)
		assert.Empty(t, payload.Rows)
	})

	t.Run("non-numeric company reference is a typed failure", func(t *testing.T) {
		o := testOrder()
		o.CompanyExternalID = "not-a-number"
		_, err := MapOrderToCRMOrder(o, testMapping)
		require.ErrorIs(t, err, ErrInvalidCompanyRef)
	})
}

func TestMapOrderToCRMInvoice(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("composes over the order mapping", func(t *testing.T) {
		payload, err := MapOrderToCRMInvoice(testOrder(), testMapping, 555, now)
		require.NoError(t, err)

		assert.Equal(t, "2026-04-01", payload.Date)
		assert.Equal(t, "2026-04-01T12:00:00Z", payload.Created)
		assert.Equal(t, CRMParent{Type: "order", ID: 555}, payload.Parent)

		// Everything else matches the order mapping.
		order, err := MapOrderToCRMOrder(testOrder(), testMapping)
		require.NoError(t, err)
		assert.Equal(t, order.Subject, payload.Subject)
		assert.Equal(t, order.Rows, payload.Rows)
		assert.Equal(t, order.DueDate, payload.DueDate)
	})

	t.Run("propagates mapping failures", func(t *testing.T) {
		o := testOrder()
		o.Items = nil
		_, err := MapOrderToCRMInvoice(o, testMapping, 555, now)
		require.ErrorIs(t, err, ErrNoItems)
	})
}

func TestMapOrderToLogisticsOrder(t *testing.T) {
	t.Run("maps articles and recomputes the total", func(t *testing.T) {
		payload, err := MapOrderToLogisticsOrder(testOrder())
		require.NoError(t, err)

		assert.Equal(t, "ord-123", payload.Reference)
		assert.Equal(t, "cmp-9", payload.ReferenceClient)
		assert.Equal(t, "2026-03-14", payload.DateCommande)

		require.Len(t, payload.ListeArticles, 1)
		article := payload.ListeArticles[0]
		assert.Equal(t, "A", article.RefEcommercant)
		assert.Equal(t, 2, article.Quantite)
		assert.Equal(t, "EUR", article.DevisePrixVenteUnitaire)

		// 2 x 10, never the upstream total.
		assert.True(t, payload.MontantHT.Equal(decimal.NewFromInt(20)))
		assert.True(t, payload.MontantAssure.Equal(decimal.NewFromInt(20)))
		assert.True(t, payload.FraisDePort.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, "EUR", payload.DeviseMontantAssure)
	})

	t.Run("maps both addresses with the order email", func(t *testing.T) {
		payload, err := MapOrderToLogisticsOrder(testOrder())
		require.NoError(t, err)

		assert.Equal(t, "Dupont", payload.AdresseFacturation.Nom)
		assert.Equal(t, "Marie", payload.AdresseFacturation.Prenom)
		assert.Equal(t, "Lyon", payload.AdresseLivraison.Ville)
		assert.Equal(t, "marie@example.com", payload.AdresseFacturation.Email)
		assert.Equal(t, "marie@example.com", payload.AdresseLivraison.Email)
	})

	t.Run("missing items is a typed failure", func(t *testing.T) {
		o := testOrder()
		o.Items = nil
		_, err := MapOrderToLogisticsOrder(o)
		require.ErrorIs(t, err, ErrNoItems)
	})
}

func TestMapCompanyToCRMEntity(t *testing.T) {
	company := Company{
		ID:                 "cmp-9",
		Name:               "Acme SARL",
		Code:               "1001",
		RegistrationNumber: "123 456-789 00012",
		VATNumber:          "FR 12 345678900",
		Website:            "https://acme.example.com",
		Contacts: []Contact{
			{LastName: "Dupont", FirstName: "Marie", Email: "marie@example.com", Phone: "0600000000", Position: "CEO"},
			{LastName: "Martin", FirstName: "Jean", Email: "jean@example.com"},
		},
		BillingAddress: &Address{Name: "Siège", Line1: "12 rue de la Paix", Line2: "Bât. B", PostalCode: "75002", City: "Paris", CountryCode: "FR", Phone: "0100000000"},
	}

	payload := MapCompanyToCRMEntity(company)

	t.Run("cleans registration and VAT numbers", func(t *testing.T) {
		assert.Equal(t, "12345678900012", payload.Third.Siret)
		assert.Equal(t, "FR12345678900", payload.Third.VAT)
	})

	t.Run("seeds third from the first contact and billing address", func(t *testing.T) {
		assert.Equal(t, "Acme SARL", payload.Third.Name)
		assert.Equal(t, "corporation", payload.Third.Type)
		assert.Equal(t, "marie@example.com", payload.Third.Email)
		assert.Equal(t, "0100000000", payload.Third.Tel)

		assert.Equal(t, "Dupont", payload.Contact.Name)
		assert.Equal(t, "Marie", payload.Contact.Forename)

		assert.Equal(t, "Siège", payload.Address.Name)
		assert.Equal(t, "12 rue de la Paix", payload.Address.Part1)
		assert.Equal(t, "75002", payload.Address.Zip)
	})

	t.Run("empty company maps to bare third block", func(t *testing.T) {
		p := MapCompanyToCRMEntity(Company{Name: "Bare"})
		assert.Equal(t, "Bare", p.Third.Name)
		assert.Empty(t, p.Contact.Email)
		assert.Empty(t, p.Address.Part1)
	})
}

func TestMapAddressPayload(t *testing.T) {
	addr := Address{Line1: "12 rue de la Paix", PostalCode: "75002", City: "Paris", CountryCode: "FR"}

	t.Run("role drives the slot flags", func(t *testing.T) {
		billing := MapAddressPayload(addr, RoleBilling)
		assert.True(t, billing.IsInvoicingAddress)
		assert.False(t, billing.IsDeliveryAddress)

		both := MapAddressPayload(addr, RoleBoth)
		assert.True(t, both.IsInvoicingAddress)
		assert.True(t, both.IsDeliveryAddress)
	})

	t.Run("unnamed address takes the slot label", func(t *testing.T) {
		payload := MapAddressPayload(addr, RoleShipping)
		assert.Equal(t, "Livraison", payload.Name)

		named := addr
		named.Name = "Entrepôt"
		assert.Equal(t, "Entrepôt", MapAddressPayload(named, RoleShipping).Name)
	})
}

func TestDeriveCompanyKind(t *testing.T) {
	assert.Equal(t, KindProspect, DeriveCompanyKind([]string{"retail", "prospect"}))
	assert.Equal(t, KindCustomer, DeriveCompanyKind([]string{"retail"}))
	assert.Equal(t, KindCustomer, DeriveCompanyKind(nil))
}

func TestParseEvents(t *testing.T) {
	assert.Equal(t, OrderEventPlaced, ParseOrderEvent("order.placed"))
	assert.Equal(t, OrderEventUnknown, ParseOrderEvent("order.deleted"))
	assert.Equal(t, CompanyEventUpdated, ParseCompanyEvent("company.updated"))
	assert.Equal(t, CompanyEventUnknown, ParseCompanyEvent(""))
}
