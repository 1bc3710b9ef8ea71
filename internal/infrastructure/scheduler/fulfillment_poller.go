package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/reconcile"
	"github.com/syncbridge/backend/internal/infrastructure/logistics"
)

// ParcelLister reads the parcels the fulfillment provider knows for an order.
type ParcelLister interface {
	ListParcels(ctx context.Context, orderRef string) ([]logistics.Parcel, error)
}

// FulfillmentWriter pushes fulfillment state back into the catalog. Both
// write-backs carry the tracking URL alongside the status.
type FulfillmentWriter interface {
	CreateFulfillment(ctx context.Context, orderID, trackingURL string, status reconcile.FulfillmentStatus) error
	UpdateFulfillmentStatus(ctx context.Context, orderID, trackingURL string, status reconcile.FulfillmentStatus) error
}

// FulfillmentPollerConfig holds configuration for the fulfillment poller
type FulfillmentPollerConfig struct {
	// Enabled determines if the poller is active
	Enabled bool

	// Interval is the time between polling passes
	Interval time.Duration

	// TickTimeout is the maximum time for one polling pass
	TickTimeout time.Duration
}

// DefaultFulfillmentPollerConfig returns default configuration
func DefaultFulfillmentPollerConfig() FulfillmentPollerConfig {
	return FulfillmentPollerConfig{
		Enabled:     true,
		Interval:    5 * time.Minute,
		TickTimeout: 2 * time.Minute,
	}
}

// FulfillmentPoller watches the fulfillment provider for orders the engine
// has handed off and mirrors their progress into the catalog. It carries two
// independent queues: orders awaiting their first parcel (prepared) and
// orders awaiting shipment confirmation (shipped).
//
// A failed entry stays queued and is retried on the next pass; there is no
// backoff and no retry cap.
type FulfillmentPoller struct {
	prepared *PendingQueue
	shipped  *PendingQueue

	parcels ParcelLister
	catalog FulfillmentWriter
	logger  *zap.Logger
	config  FulfillmentPollerConfig

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewFulfillmentPoller creates a new fulfillment poller
func NewFulfillmentPoller(
	parcels ParcelLister,
	catalog FulfillmentWriter,
	logger *zap.Logger,
	config FulfillmentPollerConfig,
) *FulfillmentPoller {
	return &FulfillmentPoller{
		prepared: NewPendingQueue(),
		shipped:  NewPendingQueue(),
		parcels:  parcels,
		catalog:  catalog,
		logger:   logger.Named("fulfillment_poller"),
		config:   config,
	}
}

// EnqueuePrepared registers an order to be watched for its first parcel.
func (p *FulfillmentPoller) EnqueuePrepared(entry reconcile.PendingOrder) {
	p.prepared.Add(entry)
	p.logger.Info("Order queued awaiting preparation",
		zap.String("order_id", entry.OrderID),
		zap.Int("queue_len", p.prepared.Len()),
	)
}

// EnqueueShipped registers an order to be watched for shipment confirmation.
func (p *FulfillmentPoller) EnqueueShipped(entry reconcile.PendingOrder) {
	p.shipped.Add(entry)
	p.logger.Info("Order queued awaiting shipment",
		zap.String("order_id", entry.OrderID),
		zap.Int("queue_len", p.shipped.Len()),
	)
}

// Start starts the polling loop
func (p *FulfillmentPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	if !p.config.Enabled {
		p.mu.Unlock()
		p.logger.Info("Fulfillment poller is disabled")
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("Fulfillment poller started",
		zap.Duration("interval", p.config.Interval),
	)
	return nil
}

// Stop gracefully stops the poller
func (p *FulfillmentPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Fulfillment poller stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Fulfillment poller stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the poller is running
func (p *FulfillmentPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

func (p *FulfillmentPoller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Polling loop stopping")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one polling pass over both queues.
func (p *FulfillmentPoller) Tick(ctx context.Context) {
	tickCtx := ctx
	if p.config.TickTimeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, p.config.TickTimeout)
		defer cancel()
	}

	p.pollQueue(tickCtx, p.prepared, p.markPrepared)
	p.pollQueue(tickCtx, p.shipped, p.markShipped)
}

// pollQueue walks a snapshot of the queue so that removals cannot disturb the
// iteration, applying act to every entry whose parcels have appeared. A
// failed entry is logged and kept for the next pass.
func (p *FulfillmentPoller) pollQueue(ctx context.Context, queue *PendingQueue, act func(ctx context.Context, entry reconcile.PendingOrder, parcels []logistics.Parcel) error) {
	for _, entry := range queue.Snapshot() {
		parcels, err := p.parcels.ListParcels(ctx, entry.OrderID)
		if err != nil {
			p.logger.Error("Failed to list parcels, entry retained",
				zap.String("order_id", entry.OrderID),
				zap.Error(err),
			)
			continue
		}
		if len(parcels) == 0 {
			continue
		}
		if err := act(ctx, entry, parcels); err != nil {
			p.logger.Error("Failed to mirror fulfillment state, entry retained",
				zap.String("order_id", entry.OrderID),
				zap.Error(err),
			)
			continue
		}
		queue.Remove(entry.OrderID)
	}
}

func (p *FulfillmentPoller) markPrepared(ctx context.Context, entry reconcile.PendingOrder, parcels []logistics.Parcel) error {
	trackingURL := parcels[0].URLSuivi
	if err := p.catalog.CreateFulfillment(ctx, entry.OrderID, trackingURL, reconcile.FulfillmentStatusPrepared); err != nil {
		return err
	}
	p.logger.Info("Order marked prepared in catalog",
		zap.String("order_id", entry.OrderID),
		zap.String("tracking_url", trackingURL),
	)
	return nil
}

func (p *FulfillmentPoller) markShipped(ctx context.Context, entry reconcile.PendingOrder, parcels []logistics.Parcel) error {
	trackingURL := parcels[0].URLSuivi
	if err := p.catalog.UpdateFulfillmentStatus(ctx, entry.OrderID, trackingURL, reconcile.FulfillmentStatusShipped); err != nil {
		return err
	}
	p.logger.Info("Order marked shipped in catalog",
		zap.String("order_id", entry.OrderID),
		zap.String("tracking_url", trackingURL),
		zap.String("parcel", parcels[0].NumeroColis),
	)
	return nil
}
