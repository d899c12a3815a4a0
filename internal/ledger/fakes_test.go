package ledger

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"hati/internal/cache"
	"hati/internal/store"
	"hati/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// memStore implements the service's store interfaces with the same
// status-guard semantics as the SQL stores: every transition checks the
// expected current status and reports rows affected.
type memStore struct {
	mu          sync.Mutex
	members     map[string][]string
	expenses    map[string]*store.Expense
	settlements map[string]*store.Settlement
	agreements  map[string]*store.Agreement
	auditLog    []string
}

func newMemStore() *memStore {
	return &memStore{
		members:     make(map[string][]string),
		expenses:    make(map[string]*store.Expense),
		settlements: make(map[string]*store.Settlement),
		agreements:  make(map[string]*store.Agreement),
	}
}

func (m *memStore) addTeam(teamID string, memberIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]string(nil), memberIDs...)
	sort.Strings(sorted)
	m.members[teamID] = sorted
}

func (m *memStore) settlement(id string) store.Settlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.settlements[id]
}

func (m *memStore) settlementsByExpense(expenseID string) []store.Settlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []store.Settlement
	for _, s := range m.settlements {
		if s.ExpenseID == expenseID {
			rows = append(rows, *s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].OwedBy < rows[j].OwedBy })
	return rows
}

func (m *memStore) ActiveMemberIDs(ctx context.Context, tx store.Selecter, teamID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.members[teamID]...), nil
}

func (m *memStore) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.members[teamID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Create(ctx context.Context, tx store.Execer, e store.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := e
	m.expenses[e.ID] = &copied
	return nil
}

func (m *memStore) GetByID(ctx context.Context, expenseID string) (store.Expense, error) {
	return m.GetForUpdate(ctx, nil, expenseID)
}

func (m *memStore) GetForUpdate(ctx context.Context, tx store.Getter, expenseID string) (store.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[expenseID]
	if !ok || e.DeletedAt != nil {
		return store.Expense{}, sql.ErrNoRows
	}
	return *e, nil
}

func (m *memStore) UpdateDescription(ctx context.Context, tx store.Execer, expenseID, description string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[expenseID]
	if !ok || e.DeletedAt != nil {
		return 0, nil
	}
	e.Description = description
	return 1, nil
}

func (m *memStore) SoftDelete(ctx context.Context, tx store.Execer, expenseID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[expenseID]
	if !ok || e.DeletedAt != nil {
		return 0, nil
	}
	now := time.Now()
	e.DeletedAt = &now
	return 1, nil
}

func (m *memStore) InsertBatch(ctx context.Context, tx store.Execer, rows []store.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		copied := row
		copied.Status = store.StatusPending
		m.settlements[row.ID] = &copied
	}
	return nil
}

func (m *memStore) settlementForUpdate(settlementID string) (store.Settlement, error) {
	s, ok := m.settlements[settlementID]
	if !ok || s.DeletedAt != nil {
		return store.Settlement{}, sql.ErrNoRows
	}
	return *s, nil
}

func (m *memStore) GetForUpdateSettlement(ctx context.Context, tx store.Getter, settlementID string) (store.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settlementForUpdate(settlementID)
}

func (m *memStore) ListForUpdate(ctx context.Context, tx store.Selecter, settlementIDs []string) ([]store.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []store.Settlement
	seen := make(map[string]bool)
	for _, id := range settlementIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := m.settlements[id]; ok && s.DeletedAt == nil {
			rows = append(rows, *s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m *memStore) ListOpenInvolving(ctx context.Context, teamID, memberID string) ([]store.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []store.Settlement
	for _, s := range m.settlements {
		if s.TeamID == teamID && s.Open() && (s.OwedBy == memberID || s.OwedTo == memberID) {
			rows = append(rows, *s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m *memStore) ListOpenByTeam(ctx context.Context, teamID string) ([]store.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []store.Settlement
	for _, s := range m.settlements {
		if s.TeamID == teamID && s.Open() {
			rows = append(rows, *s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m *memStore) MarkUnconfirmed(ctx context.Context, tx store.Execer, settlementID, method string, proofURI *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[settlementID]
	if !ok || s.DeletedAt != nil || s.Status != store.StatusPending {
		return 0, nil
	}
	s.Status = store.StatusUnconfirmed
	s.PaymentMethod = &method
	s.ProofURI = proofURI
	return 1, nil
}

func (m *memStore) MarkPaid(ctx context.Context, tx store.Execer, settlementID string, paidAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[settlementID]
	if !ok || s.DeletedAt != nil || s.Status != store.StatusUnconfirmed {
		return 0, nil
	}
	s.Status = store.StatusPaid
	s.PaidAt = &paidAt
	return 1, nil
}

func (m *memStore) RejectToPending(ctx context.Context, tx store.Execer, settlementID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[settlementID]
	if !ok || s.DeletedAt != nil || s.Status != store.StatusUnconfirmed {
		return 0, nil
	}
	s.Status = store.StatusPending
	s.PaymentMethod = nil
	s.ProofURI = nil
	return 1, nil
}

func (m *memStore) MarkPaidByAgreement(ctx context.Context, tx store.Execer, settlementID string, paidAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[settlementID]
	if !ok || s.DeletedAt != nil || (s.Status != store.StatusPending && s.Status != store.StatusUnconfirmed) {
		return 0, nil
	}
	method := store.MethodSettled
	s.Status = store.StatusPaid
	s.PaymentMethod = &method
	s.ProofURI = nil
	s.PaidAt = &paidAt
	return 1, nil
}

func (m *memStore) SoftDeleteByExpense(ctx context.Context, tx store.Execer, expenseID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var affected int64
	for _, s := range m.settlements {
		if s.ExpenseID == expenseID && s.DeletedAt == nil {
			s.DeletedAt = &now
			affected++
		}
	}
	return affected, nil
}

func (m *memStore) CreateAgreement(ctx context.Context, tx store.Execer, a store.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := a
	copied.Status = store.AgreementPending
	m.agreements[a.ID] = &copied
	return nil
}

func (m *memStore) GetForUpdateAgreement(ctx context.Context, tx store.Getter, agreementID string) (store.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[agreementID]
	if !ok {
		return store.Agreement{}, sql.ErrNoRows
	}
	return *a, nil
}

func (m *memStore) MarkResponded(ctx context.Context, tx store.Execer, agreementID, status string, respondedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[agreementID]
	if !ok || a.Status != store.AgreementPending {
		return 0, nil
	}
	a.Status = status
	a.RespondedAt = &respondedAt
	return 1, nil
}

func (m *memStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLog = append(m.auditLog, action)
	return nil
}

// Interface adapters: the settlement and agreement stores share GetForUpdate
// and Create names, so the fake exposes them through thin wrappers.
type memSettlements struct{ *memStore }

func (m memSettlements) GetForUpdate(ctx context.Context, tx store.Getter, settlementID string) (store.Settlement, error) {
	return m.memStore.GetForUpdateSettlement(ctx, tx, settlementID)
}

type memAgreements struct{ *memStore }

func (m memAgreements) Create(ctx context.Context, tx store.Execer, a store.Agreement) error {
	return m.memStore.CreateAgreement(ctx, tx, a)
}

func (m memAgreements) GetForUpdate(ctx context.Context, tx store.Getter, agreementID string) (store.Agreement, error) {
	return m.memStore.GetForUpdateAgreement(ctx, tx, agreementID)
}

func newTestService(mem *memStore, c cache.Cache) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := NewService(fakeTxRunner{}, mem, mem, memSettlements{mem}, memAgreements{mem}, mem, c, notifier)
	return svc, notifier
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []websocket.SettlementUpdate
}

func (n *recordingNotifier) BroadcastSettlement(userID string, update websocket.SettlementUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
}
