package demoserver

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/policyctl/internal/policy"
)

var (
	errDuplicateNumber = errors.New("duplicate number")
	errNoSuchPolicy    = errors.New("no such policy")
)

// memStore keeps policies in memory with a unique index on number.
type memStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]policy.Policy
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, byID: make(map[int64]policy.Policy)}
}

func (m *memStore) insert(p policy.NewPolicy) (policy.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Number == p.Number {
			return policy.Policy{}, errDuplicateNumber
		}
	}
	row := policy.Policy{
		ID:      m.nextID,
		Number:  p.Number,
		Holder:  p.Holder,
		Premium: p.Premium,
		Status:  p.Status,
	}
	m.byID[row.ID] = row
	m.nextID++
	return row, nil
}

func (m *memStore) delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return errNoSuchPolicy
	}
	delete(m.byID, id)
	return nil
}

// query filters by a case-insensitive substring of number, holder or status,
// then sorts. Unknown sort columns fall back to id.
func (m *memStore) query(q, sortBy, dir string) []policy.Policy {
	m.mu.RLock()
	out := make([]policy.Policy, 0, len(m.byID))
	needle := strings.ToLower(q)
	for _, p := range m.byID {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Number), needle) ||
			strings.Contains(strings.ToLower(p.Holder), needle) ||
			strings.Contains(strings.ToLower(p.Status), needle) {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()

	less := func(a, b policy.Policy) bool { return a.ID < b.ID }
	switch sortBy {
	case "number":
		less = func(a, b policy.Policy) bool { return a.Number < b.Number }
	case "holder":
		less = func(a, b policy.Policy) bool { return a.Holder < b.Holder }
	case "premium":
		less = func(a, b policy.Policy) bool { return a.Premium < b.Premium }
	case "status":
		less = func(a, b policy.Policy) bool { return a.Status < b.Status }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if dir == "asc" {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

var seedPolicies = []policy.NewPolicy{
	{Number: "P-1001", Holder: "Anna Berg", Premium: 1200, Status: "active"},
	{Number: "P-1002", Holder: "Erik Lind", Premium: 950.5, Status: "active"},
	{Number: "P-1003", Holder: "Maja Holm", Premium: 430, Status: "lapsed"},
	{Number: "P-1004", Holder: "Oskar Nyström", Premium: 2100, Status: "cancelled"},
	{Number: "P-1005", Holder: "Sara Ek", Premium: 780, Status: "active"},
}
