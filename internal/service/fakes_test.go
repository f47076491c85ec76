package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/mail"
	"github.com/spec-kit/deal-portal/internal/repository"
)

type fakeStore struct {
	mu       sync.Mutex
	deals    map[string]domain.Deal
	history  []domain.StatusHistoryEntry
	messages []domain.DealMessage
	seq      int

	appendErr   error
	updateCalls int
	listCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{deals: map[string]domain.Deal{}}
}

func (s *fakeStore) put(deal domain.Deal) *domain.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	if deal.Version == 0 {
		deal.Version = 1
	}
	s.deals[deal.ID] = deal
	return &deal
}

func (s *fakeStore) deal(id string) domain.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deals[id]
}

func (s *fakeStore) historyFor(dealID string) []domain.StatusHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatusHistoryEntry
	for _, e := range s.history {
		if e.DealID == dealID {
			out = append(out, e)
		}
	}
	return out
}

type fakeDealRepo struct{ store *fakeStore }

func (r fakeDealRepo) Create(ctx context.Context, deal *domain.Deal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	deal.ID = uuid.NewString()
	deal.Version = 1
	deal.CreatedAt = time.Now().UTC()
	deal.UpdatedAt = deal.CreatedAt
	r.store.deals[deal.ID] = *deal
	return nil
}

func (r fakeDealRepo) GetByID(ctx context.Context, id string) (*domain.Deal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	deal, ok := r.store.deals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &deal, nil
}

func (r fakeDealRepo) ListWithFilter(ctx context.Context, filter repository.DealFilter) ([]domain.Deal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Deal
	for _, deal := range r.store.deals {
		if filter.BrokerID != nil && deal.BrokerID != *filter.BrokerID {
			continue
		}
		out = append(out, deal)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastStatusChange.Equal(out[j].LastStatusChange) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastStatusChange.After(out[j].LastStatusChange)
	})
	r.store.listCalls++
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r fakeDealRepo) UpdateStatus(ctx context.Context, id string, status domain.DealStatus, changedAt time.Time, expectedVersion int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.updateCalls++
	deal, ok := r.store.deals[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if deal.Version != expectedVersion {
		return 0, repository.ErrVersionMismatch
	}
	deal.Status = status
	deal.LastStatusChange = changedAt
	deal.UpdatedAt = changedAt
	deal.Version++
	r.store.deals[id] = deal
	return deal.Version, nil
}

func (r fakeDealRepo) UpdateAdminNotes(ctx context.Context, id string, notes *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	deal, ok := r.store.deals[id]
	if !ok {
		return pgx.ErrNoRows
	}
	deal.AdminNotes = notes
	r.store.deals[id] = deal
	return nil
}

func (r fakeDealRepo) UpdateLenderScore(ctx context.Context, id, lender string, score int, notes *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	deal, ok := r.store.deals[id]
	if !ok {
		return pgx.ErrNoRows
	}
	deal.RecommendedLender = &lender
	deal.LenderFitScore = &score
	deal.LenderNotes = notes
	r.store.deals[id] = deal
	return nil
}

type fakeHistoryRepo struct{ store *fakeStore }

func (r fakeHistoryRepo) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.appendErr != nil {
		return r.store.appendErr
	}
	r.store.seq++
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Unix(int64(r.store.seq), 0).UTC()
	r.store.history = append(r.store.history, *entry)
	return nil
}

func (r fakeHistoryRepo) ListByDeal(ctx context.Context, dealID string, order domain.HistoryOrder) ([]domain.StatusHistoryEntry, error) {
	entries := r.store.historyFor(dealID)
	if order == domain.HistoryNewestFirst {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return entries, nil
}

type fakeMessageRepo struct{ store *fakeStore }

func (r fakeMessageRepo) Create(ctx context.Context, msg *domain.DealMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	r.store.messages = append(r.store.messages, *msg)
	return nil
}

func (r fakeMessageRepo) ListByDeal(ctx context.Context, dealID string) ([]domain.DealMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.DealMessage
	for _, m := range r.store.messages {
		if m.DealID == dealID {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeTransactor restores the store when the unit of work fails.
type fakeTransactor struct{ store *fakeStore }

func (t fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	t.store.mu.Lock()
	deals := make(map[string]domain.Deal, len(t.store.deals))
	for k, v := range t.store.deals {
		deals[k] = v
	}
	historyLen := len(t.store.history)
	t.store.mu.Unlock()

	err := fn(ctx, repository.TxRepositories{
		Deals:   fakeDealRepo{store: t.store},
		History: fakeHistoryRepo{store: t.store},
	})
	if err != nil {
		t.store.mu.Lock()
		t.store.deals = deals
		t.store.history = t.store.history[:historyLen]
		t.store.mu.Unlock()
	}
	return err
}

type fakeDirectory struct {
	profiles []domain.Profile
	err      error
}

func (d *fakeDirectory) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if d.err != nil {
		return nil, d.err
	}
	for _, p := range d.profiles {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (d *fakeDirectory) ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []domain.Profile
	for _, p := range d.profiles {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []mail.Email
	attempts int
	// failures is how many leading attempts fail; negative fails forever.
	failures int
}

func (m *fakeMailer) Send(ctx context.Context, email mail.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failures < 0 || m.attempts <= m.failures {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, e := range m.sent {
		out = append(out, e.To)
	}
	sort.Strings(out)
	return out
}

type fakeLedger struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
}

func newFakeLedger() *fakeLedger { return &fakeLedger{keys: map[string]bool{}} }

func (l *fakeLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.keys[key] {
		return false, nil
	}
	l.keys[key] = true
	return true, nil
}

func (l *fakeLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	l.released = append(l.released, key)
	return nil
}
