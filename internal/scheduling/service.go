package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dockplan/dockplan/internal/deviations"
	"github.com/dockplan/dockplan/internal/unmet"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Get(ctx context.Context, id int64) (*Booking, error)
	List(ctx context.Context, req ListBookingsRequest) ([]Booking, error)
	ListPending(ctx context.Context) ([]Booking, error)
	FindDuplicates(ctx context.Context, orderNumbers []string, weekStart, weekEnd time.Time) ([]string, error)
	LoadSampiConfig(ctx context.Context) (PalletConfig, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Notifier receives booking change events after commit. Implementations must
// not block; delivery failures never surface as booking errors.
type Notifier interface {
	BookingChanged(ctx context.Context, event string, b *Booking)
}

// Change events emitted to the Notifier.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventPlaced    = "placed"
	EventBlocked   = "blocked"
	EventUnblocked = "unblocked"
	EventCancelled = "cancelled"
	EventDeleted   = "deleted"
	EventStarted   = "started"
)

// Service provides the booking scheduling operations.
type Service struct {
	repo      Store
	planner   *SplitPlanner
	palletCfg *PalletConfigSource
	logger    *slog.Logger
	notifier  Notifier
}

// NewService constructs a scheduling service.
func NewService(pool *pgxpool.Pool, planner *SplitPlanner, palletCfg *PalletConfigSource, logger *slog.Logger) *Service {
	return &Service{
		repo:      NewRepository(pool),
		planner:   planner,
		palletCfg: palletCfg,
		logger:    logger,
	}
}

// SetNotifier wires the post-commit event sink.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) notify(ctx context.Context, event string, b *Booking) {
	if s.notifier == nil || b == nil {
		return
	}
	s.notifier.BookingChanged(ctx, event, b)
}

func (s *Service) config(ctx context.Context) PalletConfig {
	if s.palletCfg != nil {
		return s.palletCfg.Get(ctx)
	}
	if loader, ok := s.repo.(PalletConfigLoader); ok {
		if cfg, err := loader.LoadSampiConfig(ctx); err == nil && len(cfg) > 0 {
			return cfg
		}
	}
	return defaultPalletConfig
}

// updateToken identifies one edit of a booking for idempotent audit keys.
func updateToken(b *Booking) string {
	return b.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// weekBounds returns the Monday and Sunday of the week containing t.
func weekBounds(t time.Time) (time.Time, time.Time) {
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

func parsePriority(raw string) (Priority, error) {
	if raw == "" {
		return PriorityNormal, nil
	}
	p := Priority(raw)
	for _, known := range Priorities {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

func unmetItems(items []LineItem) []unmet.Item {
	out := make([]unmet.Item, 0, len(items))
	for _, item := range items {
		out = append(out, unmet.Item{
			Code: item.Code,
			Name: item.Name,
			Qty:  item.Quantity,
			Kg:   WeightOf(item),
		})
	}
	return out
}

func snapshotOf(b *Booking) deviations.Snapshot {
	return deviations.Snapshot{
		ResourceID:      b.ResourceID,
		Date:            b.Date,
		StartMinutes:    b.StartMinutes(),
		DurationMinutes: b.DurationMinutes,
		PlannedStart:    b.PlannedStart(),
	}
}

// checkSlot validates the window, serializes against concurrent placements on
// the same door-day, and runs the overlap scan against the locked board rows.
// Returns a ConflictError naming the clashing booking.
func checkSlot(ctx context.Context, tx TxRepository, b *Booking) error {
	if b.Date == nil {
		return fmt.Errorf("%w: missing date", ErrInvalidWindow)
	}
	window := Window{
		ResourceID:      b.ResourceID,
		StartMinutes:    b.StartMinutes(),
		DurationMinutes: b.DurationMinutes,
	}
	if b.Date != nil {
		window.Date = *b.Date
	}
	if err := window.Validate(); err != nil {
		return err
	}
	if err := tx.LockBoard(ctx, b.ResourceID, *b.Date); err != nil {
		return fmt.Errorf("lock board: %w", err)
	}
	existing, err := tx.ConflictWindows(ctx, b.ResourceID, *b.Date, b.ID)
	if err != nil {
		return fmt.Errorf("load board windows: %w", err)
	}
	if id, clash := FindConflict(existing, window.StartMinutes, window.DurationMinutes); clash {
		return &ConflictError{BookingID: id, ResourceID: b.ResourceID}
	}
	return nil
}

// applyClientBlock puts a freshly created booking into the blocked state when
// its client is blocked.
func applyClientBlock(b *Booking, cb *ClientBlock, now time.Time) {
	prevStatus := string(b.Status)
	prevResource := b.ResourceID
	prevColor := b.Color

	b.PrevStatus = &prevStatus
	b.PrevResourceID = &prevResource
	b.PrevColor = &prevColor

	blockedBy := ClientBlocker
	b.IsBlocked = true
	b.BlockedBy = &blockedBy
	b.BlockedReason = cb.Reason
	b.BlockedDebtAmount = cb.Amount
	b.BlockedAt = &now
	b.Status = StatusBlocked
	b.ResourceID = ResourceUnassigned
	b.Color = ColorBlocked
}

// buildDraft turns a create request into an unsaved booking.
func (s *Service) buildDraft(req CreateBookingRequest, createdBy int64) (Booking, error) {
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return Booking{}, err
	}
	items, err := itemsFromRequest(req.Items)
	if err != nil {
		return Booking{}, err
	}

	client := req.ClientName
	if client == "" {
		client = req.ClientCode
	}
	if client == "" {
		return Booking{}, fmt.Errorf("%w: client is required", ErrValidation)
	}

	b := Booking{
		Client:      client,
		Description: req.Description,
		ResourceID:  ResourceUnassigned,
		Items:       items,
		Status:      StatusPending,
		Priority:    priority,
		Color:       ColorFor(priority),
		CreatedBy:   createdBy,
	}
	if req.ClientCode != "" {
		code := req.ClientCode
		b.ClientCode = &code
	}
	order := req.OrderNumber
	b.OrderNumber = &order

	if req.Kg != nil {
		b.Kg = decimal.NewFromFloat(*req.Kg)
	} else {
		b.Kg = TotalWeight(items)
	}

	if req.Duration != nil {
		if err := validDuration(*req.Duration); err != nil {
			return Booking{}, err
		}
		b.DurationMinutes = *req.Duration
	} else {
		b.DurationMinutes = RegularDurationMinutes(b.Kg)
	}

	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return Booking{}, err
		}
		b.Date = &date
	}
	if req.ResourceID != nil && *req.ResourceID != "" {
		b.ResourceID = *req.ResourceID
	}
	b.StartHour = req.StartHour
	b.StartMinute = req.StartMinute

	if b.Placed() {
		b.Status = StatusPlanned
	}
	return b, nil
}

// createInTx validates one create request and inserts its planned halves:
// all-or-nothing within the supplied transaction scope.
func (s *Service) createInTx(ctx context.Context, tx TxRepository, req CreateBookingRequest, createdBy int64, now time.Time) ([]int64, bool, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, false, err
	}
	draft, err := s.buildDraft(req, createdBy)
	if err != nil {
		return nil, false, err
	}
	plan, split := s.planner.Plan(s.config(ctx), draft)

	var clientBlock *ClientBlock
	if draft.ClientCode != nil {
		cb, err := tx.ClientBlock(ctx, *draft.ClientCode)
		if err != nil {
			return nil, false, fmt.Errorf("check client block: %w", err)
		}
		clientBlock = cb
	}

	var ids []int64
	for i := range plan {
		b := plan[i]
		if clientBlock != nil {
			applyClientBlock(&b, clientBlock, now)
		} else if b.Placed() {
			if err := checkSlot(ctx, tx, &b); err != nil {
				return nil, false, err
			}
		}

		id, err := tx.Insert(ctx, b)
		if err != nil {
			return nil, false, fmt.Errorf("insert booking: %w", err)
		}
		ids = append(ids, id)

		if clientBlock != nil {
			reason := ""
			if clientBlock.Reason != nil {
				reason = *clientBlock.Reason
			}
			amount := decimal.Zero
			if clientBlock.Amount != nil {
				amount = *clientBlock.Amount
			}
			audit := BlockAudit{
				BookingID:   id,
				Action:      AuditActionBlock,
				BlockedBy:   ClientBlocker,
				Amount:      amount,
				ActorUserID: createdBy,
			}
			if reason != "" {
				audit.Reason = &reason
			}
			if err := tx.InsertBlockAudit(ctx, audit); err != nil {
				return nil, false, fmt.Errorf("insert block audit: %w", err)
			}
		}
	}
	return ids, split, nil
}

// Create registers a booking, splitting it onto the Sampi line when its items
// warrant it. All halves are placed atomically; a conflict on either half
// creates nothing.
func (s *Service) Create(ctx context.Context, req CreateBookingRequest, createdBy int64) ([]Booking, bool, error) {
	var (
		ids   []int64
		split bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ids, split, err = s.createInTx(ctx, tx, req, createdBy, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, false, err
	}

	out := make([]Booking, 0, len(ids))
	for _, id := range ids {
		b, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		out = append(out, *b)
		s.notify(ctx, EventCreated, b)
	}
	return out, split, nil
}

// Place assigns a pending booking to a door and time slot.
func (s *Service) Place(ctx context.Context, id int64, req PlaceBookingRequest) (*Booking, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	var placed *Booking
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.IsBlocked {
			return ErrBlockedFrozen
		}
		if b.Status == StatusCancelled || b.Status == StatusCompleted {
			return fmt.Errorf("%w: cannot place a %s booking", ErrInvalidStatus, b.Status)
		}

		hour, minute := req.StartHour, req.StartMinute
		b.ResourceID = req.ResourceID
		b.Date = &date
		b.StartHour = &hour
		b.StartMinute = &minute

		if err := checkSlot(ctx, tx, b); err != nil {
			return err
		}

		b.Status = StatusPlanned
		if err := tx.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		placed = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPlaced, placed)
	return placed, nil
}

// Update edits a booking. Item reductions feed the unmet demand ledger and
// placement changes feed the deviation log, inside the same transaction.
func (s *Service) Update(ctx context.Context, id int64, req UpdateBookingRequest, actorID int64) (*Booking, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Duration != nil {
		if err := validDuration(*req.Duration); err != nil {
			return nil, err
		}
	}
	var newStatus *Status
	if req.Status != nil {
		st := Status(*req.Status)
		valid := false
		for _, known := range Statuses {
			if st == known {
				valid = true
				break
			}
		}
		if !valid || st == StatusCancelled || st == StatusBlocked {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
		}
		newStatus = &st
	}
	var newPriority *Priority
	if req.Priority != nil {
		p, err := parsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		newPriority = &p
	}
	var newItems []LineItem
	if req.Items != nil {
		items, err := itemsFromRequest(*req.Items)
		if err != nil {
			return nil, err
		}
		newItems = items
	}

	var updated *Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.IsBlocked {
			return ErrBlockedFrozen
		}
		if b.Status == StatusCancelled {
			return fmt.Errorf("%w: booking is cancelled", ErrInvalidStatus)
		}

		before := *b
		token := updateToken(b)

		if req.Description != nil {
			b.Description = *req.Description
		}
		if newPriority != nil {
			b.Priority = *newPriority
			b.Color = ColorFor(*newPriority)
		}
		if newStatus != nil {
			b.Status = *newStatus
		}
		if req.Items != nil {
			b.Items = NormalizeItems(newItems)
			if req.Kg == nil {
				b.Kg = TotalWeight(newItems)
			}
			switch {
			case b.SampiOn && s.planner.Mode() == SampiModePallet:
				// Pallet timing follows the edited items.
				calc := ComputeSampiTime(s.config(ctx), b.Items)
				minutes := calc.TotalMinutes
				b.SampiMinutes = &minutes
				b.SampiPallets = calc.Detail
				if req.Duration == nil {
					b.DurationMinutes = roundUpToSlot(calc.TotalMinutes)
				}
			case req.Duration == nil:
				b.DurationMinutes = RegularDurationMinutes(b.Kg)
			}
		}
		if req.Kg != nil {
			b.Kg = decimal.NewFromFloat(*req.Kg)
			if req.Duration == nil && req.Items == nil && !b.SampiOn {
				b.DurationMinutes = RegularDurationMinutes(b.Kg)
			}
		}
		if req.Duration != nil {
			b.DurationMinutes = *req.Duration
		}
		if req.Date != nil {
			date, err := parseDate(*req.Date)
			if err != nil {
				return err
			}
			b.Date = &date
		}
		if req.ResourceID != nil && *req.ResourceID != "" {
			b.ResourceID = *req.ResourceID
		}
		if req.StartHour != nil {
			b.StartHour = req.StartHour
		}
		if req.StartMinute != nil {
			b.StartMinute = req.StartMinute
		}

		placementChanged := b.ResourceID != before.ResourceID ||
			b.StartMinutes() != before.StartMinutes() ||
			b.DurationMinutes != before.DurationMinutes ||
			(b.Date != nil && before.Date != nil && !b.Date.Equal(*before.Date)) ||
			(b.Date == nil) != (before.Date == nil)

		if b.Placed() {
			if placementChanged {
				if err := checkSlot(ctx, tx, b); err != nil {
					return err
				}
			}
			if b.Status == StatusPending {
				b.Status = StatusPlanned
			}
		}

		if req.Items != nil {
			deltas := unmet.DiffItems(unmetItems(before.Items), unmetItems(newItems))
			for _, d := range deltas {
				reason := unmet.ReasonReduced
				if d.Removed {
					reason = unmet.ReasonDeletedItem
				}
				rec := unmet.Record{
					ChangeKey:   unmet.ChangeKey(b.ID, d.Code, reason, d.OriginalQty, d.FinalQty, token),
					BookingID:   b.ID,
					Client:      b.Client,
					ClientCode:  b.ClientCode,
					OrderNumber: b.OrderNumber,
					ProductCode: d.Code,
					OriginalQty: d.OriginalQty,
					FinalQty:    d.FinalQty,
					UnmetQty:    d.UnmetQty(),
					OriginalKg:  d.OriginalKg,
					FinalKg:     d.FinalKg,
					UnmetKg:     d.UnmetKg(),
					Reason:      reason,
					Date:        b.Date,
					CreatedBy:   &actorID,
				}
				if d.Name != "" {
					name := d.Name
					rec.ProductName = &name
				}
				if req.Reason != "" {
					detail := req.Reason
					rec.ReasonDetail = &detail
				}
				if err := tx.InsertUnmetDemand(ctx, rec); err != nil {
					return fmt.Errorf("record unmet demand: %w", err)
				}
			}
		}

		for _, f := range deviations.DetectReschedule(snapshotOf(&before), snapshotOf(b)) {
			rec := deviations.Record{
				ChangeKey:        deviations.ChangeKey(b.ID, f.Type, token),
				BookingID:        b.ID,
				Type:             f.Type,
				PlannedStart:     before.PlannedStart(),
				DeviationMinutes: f.DeviationMinutes,
				PlannedDoor:      f.PlannedDoor,
				RealDoor:         f.RealDoor,
				ImpactLevel:      f.ImpactLevel,
				Date:             b.Date,
				CreatedBy:        &actorID,
			}
			if req.Reason != "" {
				detail := req.Reason
				rec.Reason = &detail
			}
			if err := tx.InsertDeviation(ctx, rec); err != nil {
				return fmt.Errorf("record deviation: %w", err)
			}
		}

		if err := tx.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventUpdated, updated)
	return updated, nil
}

// Cancel cancels a booking, logging the cancellation as a critical deviation
// and the whole order as unmet demand.
func (s *Service) Cancel(ctx context.Context, id int64, req CancelBookingRequest, actorID int64) (*Booking, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	var cancelled *Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == StatusCancelled {
			return fmt.Errorf("%w: already cancelled", ErrInvalidStatus)
		}

		token := updateToken(b)
		b.Status = StatusCancelled
		if req.Reason != "" {
			reason := req.Reason
			b.CancellationReason = &reason
		}

		finding := deviations.Cancellation()
		rec := deviations.Record{
			ChangeKey:    deviations.ChangeKey(b.ID, finding.Type, token),
			BookingID:    b.ID,
			Type:         finding.Type,
			PlannedStart: b.PlannedStart(),
			ImpactLevel:  finding.ImpactLevel,
			Date:         b.Date,
			CreatedBy:    &actorID,
		}
		if req.Reason != "" {
			reason := req.Reason
			rec.Reason = &reason
		}
		if err := tx.InsertDeviation(ctx, rec); err != nil {
			return fmt.Errorf("record deviation: %w", err)
		}

		if err := s.recordFullShortfall(ctx, tx, b, unmet.ReasonCancelled, req.Reason, token, actorID); err != nil {
			return err
		}

		if err := tx.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventCancelled, cancelled)
	return cancelled, nil
}

// recordFullShortfall logs every item of the booking as fully unserved.
func (s *Service) recordFullShortfall(ctx context.Context, tx TxRepository, b *Booking, reason unmet.Reason, detail, token string, actorID int64) error {
	deltas := unmet.DiffItems(unmetItems(b.Items), nil)
	for _, d := range deltas {
		rec := unmet.Record{
			ChangeKey:   unmet.ChangeKey(b.ID, d.Code, reason, d.OriginalQty, d.FinalQty, token),
			BookingID:   b.ID,
			Client:      b.Client,
			ClientCode:  b.ClientCode,
			OrderNumber: b.OrderNumber,
			ProductCode: d.Code,
			OriginalQty: d.OriginalQty,
			FinalQty:    d.FinalQty,
			UnmetQty:    d.UnmetQty(),
			OriginalKg:  d.OriginalKg,
			FinalKg:     d.FinalKg,
			UnmetKg:     d.UnmetKg(),
			Reason:      reason,
			Date:        b.Date,
			CreatedBy:   &actorID,
		}
		if d.Name != "" {
			name := d.Name
			rec.ProductName = &name
		}
		if detail != "" {
			r := detail
			rec.ReasonDetail = &r
		}
		if err := tx.InsertUnmetDemand(ctx, rec); err != nil {
			return fmt.Errorf("record unmet demand: %w", err)
		}
	}
	return nil
}

// Delete removes a booking, logging its items as unmet demand first. The
// block audit trail cascades away with the row; the demand ledger survives.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	var deleted *Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		token := updateToken(b)
		if b.Status != StatusCancelled && b.Status != StatusCompleted {
			if err := s.recordFullShortfall(ctx, tx, b, unmet.ReasonBookingDeleted, "", token, actorID); err != nil {
				return err
			}
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		deleted = b
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, EventDeleted, deleted)
	return nil
}

// Block freezes a booking. Only the named allow-list may block; the current
// placement is snapshotted so unblock can restore it.
func (s *Service) Block(ctx context.Context, id int64, req BlockBookingRequest, actorID int64) (*Booking, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !IsAllowedBlocker(req.BlockedBy) {
		return nil, ErrBlockerNotAllowed
	}

	now := time.Now().UTC()
	amount := decimal.NewFromFloat(req.Amount)

	var blocked *Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.IsBlocked {
			return ErrAlreadyBlocked
		}

		prevStatus := string(b.Status)
		prevResource := b.ResourceID
		prevColor := b.Color
		b.PrevStatus = &prevStatus
		b.PrevResourceID = &prevResource
		b.PrevColor = &prevColor

		blockedBy := req.BlockedBy
		reason := req.Reason
		b.IsBlocked = true
		b.BlockedBy = &blockedBy
		b.BlockedReason = &reason
		b.BlockedDebtAmount = &amount
		b.BlockedAt = &now
		b.Status = StatusBlocked
		b.ResourceID = ResourceUnassigned
		b.Color = ColorBlocked

		audit := BlockAudit{
			BookingID:   id,
			Action:      AuditActionBlock,
			BlockedBy:   req.BlockedBy,
			Amount:      amount,
			Reason:      &reason,
			ActorUserID: actorID,
		}
		if err := tx.InsertBlockAudit(ctx, audit); err != nil {
			return fmt.Errorf("insert block audit: %w", err)
		}
		if err := tx.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		blocked = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventBlocked, blocked)
	return blocked, nil
}

// Unblock releases a blocked booking and restores its pre-block placement.
// If the restored slot was taken in the meantime the booking falls back to
// the pending queue instead of failing.
func (s *Service) Unblock(ctx context.Context, id int64, req UnblockBookingRequest, actorID int64) (*Booking, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	var unblocked *Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !b.IsBlocked {
			return ErrNotBlocked
		}

		b.Status = StatusPending
		b.ResourceID = ResourceUnassigned
		b.Color = ColorFor(b.Priority)
		if b.PrevStatus != nil {
			b.Status = Status(*b.PrevStatus)
		}
		if b.PrevResourceID != nil {
			b.ResourceID = *b.PrevResourceID
		}
		if b.PrevColor != nil {
			b.Color = *b.PrevColor
		}

		// Any restored placement gets re-checked, whatever its status: the
		// slot may have been taken while the booking was frozen.
		if b.Placed() {
			if err := checkSlot(ctx, tx, b); err != nil {
				if _, clash := AsConflict(err); !clash {
					return err
				}
				b.Status = StatusPending
				b.ResourceID = ResourceUnassigned
			}
		}

		amount := decimal.Zero
		if b.BlockedDebtAmount != nil {
			amount = *b.BlockedDebtAmount
		}

		b.IsBlocked = false
		b.BlockedBy = nil
		b.BlockedReason = nil
		b.BlockedDebtAmount = nil
		b.BlockedAt = nil
		b.PrevStatus = nil
		b.PrevResourceID = nil
		b.PrevColor = nil

		audit := BlockAudit{
			BookingID:   id,
			Action:      AuditActionUnblock,
			BlockedBy:   req.UnblockedBy,
			Amount:      amount,
			ActorUserID: actorID,
		}
		if req.Reason != "" {
			reason := req.Reason
			audit.Reason = &reason
		}
		if err := tx.InsertBlockAudit(ctx, audit); err != nil {
			return fmt.Errorf("insert block audit: %w", err)
		}
		if err := tx.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		unblocked = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventUnblocked, unblocked)
	return unblocked, nil
}

// RealStart records when the truck actually arrived at the door and logs the
// deviation from plan.
func (s *Service) RealStart(ctx context.Context, id int64, req RealStartRequest, actorID int64) (*Booking, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	clock := time.Now().UTC()
	if req.RealStart != "" {
		parsed, err := time.Parse("15:04", req.RealStart)
		if err != nil {
			return nil, fmt.Errorf("%w: real_start %q", ErrValidation, req.RealStart)
		}
		clock = parsed
	}

	var started *Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.IsBlocked {
			return ErrBlockedFrozen
		}
		if b.Date == nil {
			return fmt.Errorf("%w: booking has no date", ErrValidation)
		}

		real := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(),
			clock.Hour(), clock.Minute(), 0, 0, time.UTC)
		b.RealStartAt = &real
		if b.Status == StatusPlanned || b.Status == StatusPending {
			b.Status = StatusInProgress
		}

		if planned := b.PlannedStart(); planned != nil {
			if f := deviations.DetectRealStart(*planned, real); f != nil {
				rec := deviations.Record{
					ChangeKey:        deviations.ChangeKey(b.ID, f.Type, real.Format(time.RFC3339)),
					BookingID:        b.ID,
					Type:             f.Type,
					PlannedStart:     planned,
					RealStart:        &real,
					DeviationMinutes: f.DeviationMinutes,
					ImpactLevel:      f.ImpactLevel,
					Date:             b.Date,
					CreatedBy:        &actorID,
				}
				if err := tx.InsertDeviation(ctx, rec); err != nil {
					return fmt.Errorf("record deviation: %w", err)
				}
			}
		}

		if err := tx.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		started = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventStarted, started)
	return started, nil
}

// BulkCreate registers many bookings inside one transaction. Each row runs
// under its own savepoint, so a failing row rolls back alone while its
// validated siblings commit together. Duplicates within the target week are
// skipped with a warning, not an error.
func (s *Service) BulkCreate(ctx context.Context, req BulkCreateRequest, createdBy int64) ([]BulkCreateResult, error) {
	results := make([]BulkCreateResult, len(req.Bookings))
	now := time.Now().UTC()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Rows inserted earlier in this batch are not visible to the
		// duplicate query until commit; seen covers in-batch repeats.
		seen := map[string]bool{}
		for i, row := range req.Bookings {
			result := &results[i]
			result.Index = i
			result.OrderNumber = row.OrderNumber

			dupKey := ""
			if row.Date != nil && row.OrderNumber != "" {
				if date, err := parseDate(*row.Date); err == nil {
					weekStart, weekEnd := weekBounds(date)
					dupKey = row.OrderNumber + "|" + weekStart.Format("2006-01-02")
					dup := seen[dupKey]
					if !dup {
						existing, err := s.repo.FindDuplicates(ctx, []string{row.OrderNumber}, weekStart, weekEnd)
						dup = err == nil && len(existing) > 0
					}
					if dup {
						result.Warning = "duplicate order number in week"
						continue
					}
				}
			}

			err := tx.Savepoint(ctx, func(ctx context.Context, tx TxRepository) error {
				ids, split, err := s.createInTx(ctx, tx, row, createdBy, now)
				if err != nil {
					return err
				}
				result.BookingIDs = ids
				result.Split = split
				return nil
			})
			if err != nil {
				result.BookingIDs = nil
				result.Error = err.Error()
				continue
			}
			if dupKey != "" {
				seen[dupKey] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		for _, id := range results[i].BookingIDs {
			if b, err := s.repo.Get(ctx, id); err == nil {
				s.notify(ctx, EventCreated, b)
			}
		}
	}
	return results, nil
}

// CheckDuplicates reports which order numbers already have a booking in the
// Monday to Sunday week containing the given date.
func (s *Service) CheckDuplicates(ctx context.Context, req DuplicateCheckRequest) ([]string, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	weekStart, weekEnd := weekBounds(date)
	return s.repo.FindDuplicates(ctx, req.OrderNumbers, weekStart, weekEnd)
}

// Get retrieves a booking.
func (s *Service) Get(ctx context.Context, id int64) (*Booking, error) {
	return s.repo.Get(ctx, id)
}

// List returns the board for the given filters.
func (s *Service) List(ctx context.Context, req ListBookingsRequest) ([]Booking, error) {
	return s.repo.List(ctx, req)
}

// ListPending returns the intake queue.
func (s *Service) ListPending(ctx context.Context) ([]Booking, error) {
	return s.repo.ListPending(ctx)
}

// CheckSlot reports whether a window is free, returning the conflicting
// booking id when it is not. excludeID ignores one booking (0 for none).
func (s *Service) CheckSlot(ctx context.Context, window Window, excludeID int64) (int64, error) {
	if err := window.Validate(); err != nil {
		return 0, err
	}
	var conflictID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBoard(ctx, window.ResourceID, window.Date); err != nil {
			return err
		}
		existing, err := tx.ConflictWindows(ctx, window.ResourceID, window.Date, excludeID)
		if err != nil {
			return err
		}
		if id, clash := FindConflict(existing, window.StartMinutes, window.DurationMinutes); clash {
			conflictID = id
		}
		return nil
	})
	return conflictID, err
}
