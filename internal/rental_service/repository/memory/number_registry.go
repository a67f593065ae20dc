package memory

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// NumberRegistry is the in-process implementation of domain.NumberRegistry.
// Every transition is a compare-and-swap on (phone, status) under one lock.
type NumberRegistry struct {
	mu      sync.RWMutex
	numbers map[string]*domain.Number
	// active indexes the phones each buyer holds in Reserved or CodeSent,
	// in reservation order.
	active map[domain.ChatID][]string
	seq    int64
	now    func() time.Time
	logger *slog.Logger
}

// NewNumberRegistry creates an empty registry. now defaults to time.Now.
func NewNumberRegistry(logger *slog.Logger, now func() time.Time) *NumberRegistry {
	if now == nil {
		now = time.Now
	}
	return &NumberRegistry{
		numbers: make(map[string]*domain.Number),
		active:  make(map[domain.ChatID][]string),
		now:     now,
		logger:  logger.With("component", "number_registry"),
	}
}

// Register normalizes rawPhone and adds it in Free status.
func (r *NumberRegistry) Register(rawPhone string, sellerID domain.ChatID) (domain.Number, error) {
	phone, err := domain.NormalizePhone(rawPhone)
	if err != nil {
		return domain.Number{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.numbers[phone]; exists {
		return domain.Number{}, fmt.Errorf("register %s: %w", phone, domain.ErrDuplicateRegistration)
	}

	now := r.now()
	r.seq++
	n := &domain.Number{
		Phone:           phone,
		SellerID:        sellerID,
		Status:          domain.NumberStatusFree,
		RegisteredAt:    now,
		StatusChangedAt: now,
		Seq:             r.seq,
	}
	r.numbers[phone] = n
	r.logger.Debug("Number registered", "phone", phone, "seller_id", sellerID)
	return *n, nil
}

// Reserve binds buyerID to a Free number. Of concurrent callers on the same
// phone exactly one wins; the rest get ErrNotFree.
func (r *NumberRegistry) Reserve(phone string, buyerID domain.ChatID) (domain.Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.numbers[phone]
	if !ok {
		return domain.Number{}, fmt.Errorf("reserve %s: %w", phone, domain.ErrNotFound)
	}
	if n.Status != domain.NumberStatusFree {
		return domain.Number{}, fmt.Errorf("reserve %s: %w", phone, domain.ErrNotFree)
	}

	n.Status = domain.NumberStatusReserved
	n.BuyerID = buyerID
	n.StatusChangedAt = r.now()
	r.active[buyerID] = append(r.active[buyerID], phone)
	return *n, nil
}

// SubmitCode stores the SMS code relayed by the number's seller.
func (r *NumberRegistry) SubmitCode(phone, code string, requesterID domain.ChatID) (domain.Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.numbers[phone]
	if !ok {
		return domain.Number{}, fmt.Errorf("submit code %s: %w", phone, domain.ErrNotFound)
	}
	if n.SellerID != requesterID {
		return domain.Number{}, fmt.Errorf("submit code %s: %w", phone, domain.ErrNotOwner)
	}
	if n.Status != domain.NumberStatusReserved {
		return domain.Number{}, fmt.Errorf("submit code %s in status %s: %w", phone, n.Status, domain.ErrWrongState)
	}

	n.Status = domain.NumberStatusCodeSent
	n.Code = code
	n.StatusChangedAt = r.now()
	return *n, nil
}

// ReportOutcome records the buyer's verdict on the relayed code.
func (r *NumberRegistry) ReportOutcome(phone string, outcome domain.Outcome, requesterID domain.ChatID) (domain.Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.numbers[phone]
	if !ok {
		return domain.Number{}, fmt.Errorf("report outcome %s: %w", phone, domain.ErrNotFound)
	}
	if n.BuyerID != requesterID {
		return domain.Number{}, fmt.Errorf("report outcome %s: %w", phone, domain.ErrNotOwner)
	}
	if n.Status != domain.NumberStatusCodeSent {
		return domain.Number{}, fmt.Errorf("report outcome %s in status %s: %w", phone, n.Status, domain.ErrWrongState)
	}

	now := r.now()
	n.Status = outcome.Status()
	n.StatusChangedAt = now
	if n.Status == domain.NumberStatusSucceeded {
		n.SucceededAt = now
	} else {
		n.FailedAt = now
	}
	r.dropActive(n.BuyerID, phone)
	return *n, nil
}

// ReportCrash marks a previously successful rental as crashed.
func (r *NumberRegistry) ReportCrash(phone string, requesterID domain.ChatID) (domain.Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.numbers[phone]
	if !ok {
		return domain.Number{}, fmt.Errorf("report crash %s: %w", phone, domain.ErrNotFound)
	}
	if n.BuyerID != requesterID {
		return domain.Number{}, fmt.Errorf("report crash %s: %w", phone, domain.ErrNotOwner)
	}
	if n.Status != domain.NumberStatusSucceeded {
		return domain.Number{}, fmt.Errorf("report crash %s in status %s: %w", phone, n.Status, domain.ErrWrongState)
	}

	now := r.now()
	n.Status = domain.NumberStatusCrashed
	n.StatusChangedAt = now
	n.CrashedAt = now
	return *n, nil
}

// Get returns a copy of the number registered under phone.
func (r *NumberRegistry) Get(phone string) (domain.Number, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.numbers[phone]
	if !ok {
		return domain.Number{}, domain.ErrNotFound
	}
	return *n, nil
}

// PendingOutcome returns the first number in the buyer index that is waiting
// for an outcome report.
func (r *NumberRegistry) PendingOutcome(buyerID domain.ChatID) (domain.Number, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, phone := range r.active[buyerID] {
		if n := r.numbers[phone]; n != nil && n.Status == domain.NumberStatusCodeSent {
			return *n, nil
		}
	}
	return domain.Number{}, domain.ErrNotFound
}

func (r *NumberRegistry) List() []domain.Number {
	return r.snapshot(func(*domain.Number) bool { return true })
}

func (r *NumberRegistry) ListFree() []domain.Number {
	return r.snapshot(func(n *domain.Number) bool { return n.Status == domain.NumberStatusFree })
}

func (r *NumberRegistry) ListBySeller(sellerID domain.ChatID) []domain.Number {
	return r.snapshot(func(n *domain.Number) bool { return n.SellerID == sellerID })
}

func (r *NumberRegistry) ListByBuyer(buyerID domain.ChatID) []domain.Number {
	return r.snapshot(func(n *domain.Number) bool { return n.HasBuyer() && n.BuyerID == buyerID })
}

func (r *NumberRegistry) ListSucceededByBuyer(buyerID domain.ChatID) []domain.Number {
	return r.snapshot(func(n *domain.Number) bool {
		return n.BuyerID == buyerID && n.Status == domain.NumberStatusSucceeded
	})
}

// snapshot copies matching numbers out under the read lock, so callers can
// range over the result while transitions continue.
func (r *NumberRegistry) snapshot(match func(*domain.Number) bool) []domain.Number {
	r.mu.RLock()
	out := make([]domain.Number, 0, len(r.numbers))
	for _, n := range r.numbers {
		if match(n) {
			out = append(out, *n)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// dropActive removes phone from the buyer index. Caller holds r.mu.
func (r *NumberRegistry) dropActive(buyerID domain.ChatID, phone string) {
	phones := r.active[buyerID]
	for i, p := range phones {
		if p == phone {
			phones = append(phones[:i], phones[i+1:]...)
			break
		}
	}
	if len(phones) == 0 {
		delete(r.active, buyerID)
		return
	}
	r.active[buyerID] = phones
}
