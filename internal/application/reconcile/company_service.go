package reconcile

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// CRMCompanyGateway is the CRM surface the company sync needs: entity
// lifecycle over the legacy interface, address and contact CRUD over REST.
type CRMCompanyGateway interface {
	FindCompanyByName(ctx context.Context, name string) (reconcile.CRMCompany, error)
	CreateEntity(ctx context.Context, kind reconcile.CompanyKind, payload reconcile.CRMEntityPayload) (int64, error)
	UpdateEntity(ctx context.Context, kind reconcile.CompanyKind, entityID int64, payload reconcile.CRMEntityPayload) error
	TransformKind(ctx context.Context, entityID int64, to reconcile.CompanyKind) error

	ListAddresses(ctx context.Context, companyID int64) ([]reconcile.CRMAddress, error)
	CreateAddress(ctx context.Context, companyID int64, payload reconcile.CRMAddressPayload) error
	UpdateAddress(ctx context.Context, companyID, addressID int64, payload reconcile.CRMAddressPayload) error
	DeleteAddress(ctx context.Context, companyID, addressID int64) error

	ListContacts(ctx context.Context, companyID int64) ([]reconcile.CRMContact, error)
	AddContact(ctx context.Context, kind reconcile.CompanyKind, entityID int64, contact reconcile.Contact) error
	UpdateContact(ctx context.Context, contactID int64, contact reconcile.Contact) error
	DeleteContact(ctx context.Context, contactID int64) error
}

// CatalogCompanyGateway is the catalog surface the company sync needs.
type CatalogCompanyGateway interface {
	UpdateCompanyCode(ctx context.Context, companyID, name, code string) error
}

// CompanyService mirrors catalog company changes into the CRM: entity
// creation, prospect/customer classification, core fields, contacts and
// addresses.
type CompanyService struct {
	crm     CRMCompanyGateway
	catalog CatalogCompanyGateway
	guard   *Guard
	logger  *zap.Logger

	// forceContactUpdate writes matched contacts even when no field changed.
	forceContactUpdate bool
}

// NewCompanyService creates a new CompanyService.
func NewCompanyService(
	crm CRMCompanyGateway,
	catalog CatalogCompanyGateway,
	guard *Guard,
	forceContactUpdate bool,
	logger *zap.Logger,
) *CompanyService {
	return &CompanyService{
		crm:                crm,
		catalog:            catalog,
		guard:              guard,
		forceContactUpdate: forceContactUpdate,
		logger:             logger.Named("company_service"),
	}
}

// HandleEvent dispatches one catalog company webhook event. Unknown events
// are logged and ignored.
func (s *CompanyService) HandleEvent(ctx context.Context, event reconcile.CompanyEvent, company reconcile.Company) error {
	switch event {
	case reconcile.CompanyEventCreated:
		return s.handleCreated(ctx, company)
	case reconcile.CompanyEventUpdated:
		return s.handleUpdated(ctx, company)
	default:
		s.logger.Info("Ignoring unknown company event",
			zap.String("company_id", company.ID),
		)
		return nil
	}
}

// handleCreated creates the CRM entity and persists its id back onto the
// catalog company. The write-back echoes as a company.updated webhook, so the
// sequence runs under the company guard.
func (s *CompanyService) handleCreated(ctx context.Context, company reconcile.Company) error {
	release, ok := s.guard.TryAcquire(EntityCompany)
	if !ok {
		s.logger.Info("Company sync already in progress, dropping event",
			zap.String("company_id", company.ID),
		)
		return nil
	}
	defer release()

	kind := company.Kind()
	entityID, err := s.crm.CreateEntity(ctx, kind, reconcile.MapCompanyToCRMEntity(company))
	if err != nil {
		return err
	}
	if err := s.catalog.UpdateCompanyCode(ctx, company.ID, company.Name, strconv.FormatInt(entityID, 10)); err != nil {
		return err
	}

	s.logger.Info("Company created and mirrored",
		zap.String("company_id", company.ID),
		zap.Int64("crm_entity_id", entityID),
		zap.String("kind", kind.String()),
	)
	return nil
}

// handleUpdated reconciles the CRM entity against the incoming company: core
// fields, classification, contacts, addresses. A company the CRM does not
// know is a no-op, not an error.
func (s *CompanyService) handleUpdated(ctx context.Context, company reconcile.Company) error {
	if s.guard.Busy(EntityCompany) {
		s.logger.Info("Company sync already in progress, dropping event",
			zap.String("company_id", company.ID),
		)
		return nil
	}

	crmCompany, err := s.crm.FindCompanyByName(ctx, company.Name)
	if err != nil {
		if errors.Is(err, reconcile.ErrCompanyNotFound) {
			s.logger.Info("Company unknown to CRM, skipping update",
				zap.String("company_id", company.ID),
				zap.String("name", company.Name),
			)
			return nil
		}
		return err
	}

	kind := company.Kind()
	if kind != crmCompany.Kind {
		if err := s.crm.TransformKind(ctx, crmCompany.ID, kind); err != nil {
			return err
		}
	}

	if err := s.crm.UpdateEntity(ctx, kind, crmCompany.ID, reconcile.MapCompanyToCRMEntity(company)); err != nil {
		return err
	}
	if err := s.syncContacts(ctx, kind, crmCompany.ID, company.Contacts); err != nil {
		return err
	}
	if err := s.syncAddresses(ctx, crmCompany.ID, company); err != nil {
		return err
	}

	s.logger.Info("Company updated in CRM",
		zap.String("company_id", company.ID),
		zap.Int64("crm_entity_id", crmCompany.ID),
	)
	return nil
}

// syncContacts applies the email-keyed diff. The three sets are disjoint by
// email, so the operations can run concurrently without two writes ever
// touching the same contact.
func (s *CompanyService) syncContacts(ctx context.Context, kind reconcile.CompanyKind, entityID int64, incoming []reconcile.Contact) error {
	existing, err := s.crm.ListContacts(ctx, entityID)
	if err != nil {
		return err
	}
	diff := reconcile.DiffContacts(existing, incoming)
	if diff.IsEmpty() {
		s.logger.Debug("Contacts already in sync", zap.Int64("crm_entity_id", entityID))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, contact := range diff.ToAdd {
		contact := contact
		g.Go(func() error {
			return s.crm.AddContact(ctx, kind, entityID, contact)
		})
	}
	for _, match := range diff.ToUpdate {
		if !s.forceContactUpdate && !match.Incoming.Changed(match.Existing) {
			continue
		}
		match := match
		g.Go(func() error {
			return s.crm.UpdateContact(ctx, match.ID, match.Incoming)
		})
	}
	for _, stale := range diff.ToDelete {
		stale := stale
		g.Go(func() error {
			return s.crm.DeleteContact(ctx, stale.ID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("Contacts reconciled",
		zap.Int64("crm_entity_id", entityID),
		zap.Int("added", len(diff.ToAdd)),
		zap.Int("updated", len(diff.ToUpdate)),
		zap.Int("deleted", len(diff.ToDelete)),
	)
	return nil
}

// syncAddresses plans against the CRM's current addresses and executes the
// plan. Planning happens before any write, so a malformed incoming company
// cannot leave the CRM half-reconciled.
func (s *CompanyService) syncAddresses(ctx context.Context, entityID int64, company reconcile.Company) error {
	existing, err := s.crm.ListAddresses(ctx, entityID)
	if err != nil {
		return err
	}

	var billing reconcile.Address
	if company.BillingAddress != nil {
		billing = *company.BillingAddress
	}
	plan, err := reconcile.PlanAddresses(existing, billing, company.ShippingAddresses)
	if err != nil {
		return err
	}
	if plan.IsEmpty() {
		s.logger.Debug("Addresses already in sync", zap.Int64("crm_entity_id", entityID))
		return nil
	}

	for _, create := range plan.Creates {
		payload := reconcile.MapAddressPayload(create.Address, create.Role)
		if err := s.crm.CreateAddress(ctx, entityID, payload); err != nil {
			return err
		}
	}
	for _, update := range plan.Updates {
		payload := reconcile.MapAddressPayload(update.Address, update.Role)
		if err := s.crm.UpdateAddress(ctx, entityID, update.AddressID, payload); err != nil {
			return err
		}
	}
	for _, addressID := range plan.Deletes {
		if err := s.crm.DeleteAddress(ctx, entityID, addressID); err != nil {
			return err
		}
	}

	s.logger.Info("Addresses reconciled",
		zap.Int64("crm_entity_id", entityID),
		zap.Int("created", len(plan.Creates)),
		zap.Int("updated", len(plan.Updates)),
		zap.Int("deleted", len(plan.Deletes)),
	)
	return nil
}
