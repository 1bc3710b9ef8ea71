package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeCRMCompanies struct {
	mu sync.Mutex

	findResult reconcile.CRMCompany
	findErr    error
	createID   int64
	createErr  error

	existingContacts  []reconcile.CRMContact
	existingAddresses []reconcile.CRMAddress

	created         []reconcile.CRMEntityPayload
	updated         []reconcile.CRMEntityPayload
	transforms      []reconcile.CompanyKind
	addedContacts   []reconcile.Contact
	updatedContacts []int64
	deletedContacts []int64
	createdAddrs    []reconcile.CRMAddressPayload
	updatedAddrs    []int64
	deletedAddrs    []int64
}

func (f *fakeCRMCompanies) FindCompanyByName(context.Context, string) (reconcile.CRMCompany, error) {
	return f.findResult, f.findErr
}

func (f *fakeCRMCompanies) CreateEntity(_ context.Context, _ reconcile.CompanyKind, payload reconcile.CRMEntityPayload) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, payload)
	return f.createID, nil
}

func (f *fakeCRMCompanies) UpdateEntity(_ context.Context, _ reconcile.CompanyKind, _ int64, payload reconcile.CRMEntityPayload) error {
	f.updated = append(f.updated, payload)
	return nil
}

func (f *fakeCRMCompanies) TransformKind(_ context.Context, _ int64, to reconcile.CompanyKind) error {
	f.transforms = append(f.transforms, to)
	return nil
}

func (f *fakeCRMCompanies) ListAddresses(context.Context, int64) ([]reconcile.CRMAddress, error) {
	return f.existingAddresses, nil
}

func (f *fakeCRMCompanies) CreateAddress(_ context.Context, _ int64, payload reconcile.CRMAddressPayload) error {
	f.createdAddrs = append(f.createdAddrs, payload)
	return nil
}

func (f *fakeCRMCompanies) UpdateAddress(_ context.Context, _ int64, addressID int64, _ reconcile.CRMAddressPayload) error {
	f.updatedAddrs = append(f.updatedAddrs, addressID)
	return nil
}

func (f *fakeCRMCompanies) DeleteAddress(_ context.Context, _ int64, addressID int64) error {
	f.deletedAddrs = append(f.deletedAddrs, addressID)
	return nil
}

func (f *fakeCRMCompanies) ListContacts(context.Context, int64) ([]reconcile.CRMContact, error) {
	return f.existingContacts, nil
}

func (f *fakeCRMCompanies) AddContact(_ context.Context, _ reconcile.CompanyKind, _ int64, contact reconcile.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedContacts = append(f.addedContacts, contact)
	return nil
}

func (f *fakeCRMCompanies) UpdateContact(_ context.Context, contactID int64, _ reconcile.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedContacts = append(f.updatedContacts, contactID)
	return nil
}

func (f *fakeCRMCompanies) DeleteContact(_ context.Context, contactID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedContacts = append(f.deletedContacts, contactID)
	return nil
}

type fakeCatalogCompanies struct {
	codes map[string]string
	err   error
}

func (f *fakeCatalogCompanies) UpdateCompanyCode(_ context.Context, companyID, _, code string) error {
	if f.err != nil {
		return f.err
	}
	if f.codes == nil {
		f.codes = map[string]string{}
	}
	f.codes[companyID] = code
	return nil
}

// ---------------------------------------------------------------------------

type companyFixture struct {
	crm     *fakeCRMCompanies
	catalog *fakeCatalogCompanies
	guard   *Guard
	service *CompanyService
}

func newCompanyFixture(t *testing.T, forceContactUpdate bool) *companyFixture {
	t.Helper()
	f := &companyFixture{
		crm:     &fakeCRMCompanies{createID: 2001},
		catalog: &fakeCatalogCompanies{},
		guard:   NewGuard(),
	}
	f.service = NewCompanyService(f.crm, f.catalog, f.guard, forceContactUpdate, zap.NewNop())
	return f
}

func customerCompany() reconcile.Company {
	return reconcile.Company{
		ID:   "cmp-9",
		Name: "Acme SARL",
		Contacts: []reconcile.Contact{
			{LastName: "Dupont", FirstName: "Marie", Email: "marie@example.com"},
		},
		BillingAddress:    &reconcile.Address{Line1: "12 rue de la Paix", City: "Paris", CountryCode: "FR"},
		ShippingAddresses: []reconcile.Address{{Line1: "3 avenue Foch", City: "Lyon", CountryCode: "FR"}},
	}
}

func TestCompanyCreated(t *testing.T) {
	f := newCompanyFixture(t, true)

	err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventCreated, customerCompany())
	require.NoError(t, err)

	require.Len(t, f.crm.created, 1)
	assert.Equal(t, "Acme SARL", f.crm.created[0].Third.Name)
	assert.Equal(t, "2001", f.catalog.codes["cmp-9"])
	assert.False(t, f.guard.Busy(EntityCompany))
}

func TestCompanyCreatedReleasesGuardOnFailure(t *testing.T) {
	f := newCompanyFixture(t, true)
	f.crm.createErr = errors.New("upstream down")

	err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventCreated, customerCompany())
	require.Error(t, err)
	assert.False(t, f.guard.Busy(EntityCompany))
	assert.Empty(t, f.catalog.codes)
}

func TestCompanyEventsDroppedWhileBusy(t *testing.T) {
	f := newCompanyFixture(t, true)

	release, ok := f.guard.TryAcquire(EntityCompany)
	require.True(t, ok)
	defer release()

	for _, event := range []reconcile.CompanyEvent{reconcile.CompanyEventCreated, reconcile.CompanyEventUpdated} {
		err := f.service.HandleEvent(context.Background(), event, customerCompany())
		require.NoError(t, err)
	}

	assert.Empty(t, f.crm.created)
	assert.Empty(t, f.crm.updated)
	assert.Empty(t, f.catalog.codes)
}

func TestCompanyUpdatedUnknownCompanyIsNoOp(t *testing.T) {
	f := newCompanyFixture(t, true)
	f.crm.findErr = reconcile.ErrCompanyNotFound

	err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
	require.NoError(t, err)
	assert.Empty(t, f.crm.updated)
	assert.Empty(t, f.crm.transforms)
}

func TestCompanyUpdatedLookupFailurePropagates(t *testing.T) {
	f := newCompanyFixture(t, true)
	f.crm.findErr = errors.New("upstream down")

	err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
	require.Error(t, err)
}

func TestCompanyUpdatedTransformsOnKindMismatch(t *testing.T) {
	t.Run("prospect in CRM, customer in catalog", func(t *testing.T) {
		f := newCompanyFixture(t, true)
		f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindProspect}

		err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
		require.NoError(t, err)
		assert.Equal(t, []reconcile.CompanyKind{reconcile.KindCustomer}, f.crm.transforms)
	})

	t.Run("kinds agree", func(t *testing.T) {
		f := newCompanyFixture(t, true)
		f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindCustomer}

		err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
		require.NoError(t, err)
		assert.Empty(t, f.crm.transforms)
	})
}

func TestCompanyUpdatedContactSync(t *testing.T) {
	existing := []reconcile.CRMContact{
		{ID: 1, Contact: reconcile.Contact{LastName: "Dupont", FirstName: "Marie", Email: "marie@example.com"}},
		{ID: 2, Contact: reconcile.Contact{LastName: "Old", Email: "old@example.com"}},
	}

	t.Run("applies the full diff", func(t *testing.T) {
		f := newCompanyFixture(t, true)
		f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindCustomer}
		f.crm.existingContacts = existing

		company := customerCompany()
		company.Contacts = append(company.Contacts, reconcile.Contact{LastName: "New", Email: "new@example.com"})

		err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, company)
		require.NoError(t, err)

		require.Len(t, f.crm.addedContacts, 1)
		assert.Equal(t, "new@example.com", f.crm.addedContacts[0].Email)
		assert.Equal(t, []int64{1}, f.crm.updatedContacts)
		assert.Equal(t, []int64{2}, f.crm.deletedContacts)
	})

	t.Run("unchanged matches are skipped without force update", func(t *testing.T) {
		f := newCompanyFixture(t, false)
		f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindCustomer}
		f.crm.existingContacts = existing[:1]

		err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
		require.NoError(t, err)
		assert.Empty(t, f.crm.updatedContacts)
	})

	t.Run("changed matches are written without force update", func(t *testing.T) {
		f := newCompanyFixture(t, false)
		f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindCustomer}
		f.crm.existingContacts = []reconcile.CRMContact{
			{ID: 1, Contact: reconcile.Contact{LastName: "Maiden", Email: "marie@example.com"}},
		}

		err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, f.crm.updatedContacts)
	})
}

func TestCompanyUpdatedAddressSync(t *testing.T) {
	f := newCompanyFixture(t, true)
	f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindCustomer}
	f.crm.existingAddresses = []reconcile.CRMAddress{
		{ID: 10, Address: reconcile.Address{Line1: "old billing"}, IsInvoicing: true},
		{ID: 11, Address: reconcile.Address{Line1: "orphan"}},
	}

	err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, customerCompany())
	require.NoError(t, err)

	// Billing slot updated in place, shipping slot created, orphan removed.
	assert.Equal(t, []int64{10}, f.crm.updatedAddrs)
	require.Len(t, f.crm.createdAddrs, 1)
	assert.True(t, f.crm.createdAddrs[0].IsDeliveryAddress)
	assert.Equal(t, []int64{11}, f.crm.deletedAddrs)
}

func TestCompanyUpdatedNoShippingAddressFails(t *testing.T) {
	f := newCompanyFixture(t, true)
	f.crm.findResult = reconcile.CRMCompany{ID: 77, Kind: reconcile.KindCustomer}

	company := customerCompany()
	company.ShippingAddresses = nil

	err := f.service.HandleEvent(context.Background(), reconcile.CompanyEventUpdated, company)
	require.ErrorIs(t, err, reconcile.ErrNoShippingAddress)
	assert.Empty(t, f.crm.createdAddrs)
	assert.Empty(t, f.crm.deletedAddrs)
}

func TestCompanyUnknownEventIgnored(t *testing.T) {
	f := newCompanyFixture(t, true)

	err := f.service.HandleEvent(context.Background(), reconcile.ParseCompanyEvent("company.deleted"), customerCompany())
	require.NoError(t, err)
	assert.Empty(t, f.crm.created)
	assert.Empty(t, f.crm.updated)
}
