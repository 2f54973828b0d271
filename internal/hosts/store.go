package hosts

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/logging"
)

// Store is the host reconciliation store. It is written only by the session
// controller's event handlers; everything else reads copies.
type Store struct {
	mu      sync.RWMutex
	records map[uint32]*Record
	order   []uint32 // ascending ordinals
	carry   bool     // new records start online
	logger  *logging.Logger
}

// NewStore creates an empty store.
func NewStore(logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		records: make(map[uint32]*Record),
		logger:  logger.WithComponent("hosts"),
	}
}

// Reset clears every record and disables monitoring carry-over.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[uint32]*Record)
	s.order = s.order[:0]
	s.carry = false
}

// SetCarryOver controls whether newly inserted records start online, used
// while monitoring is active.
func (s *Store) SetCarryOver(enabled bool) {
	s.mu.Lock()
	s.carry = enabled
	s.mu.Unlock()
}

// ApplyDiscovered inserts rec or replaces every field of the existing record
// for the same address except its liveness. Reports whether it was an insert.
func (s *Store) ApplyDiscovered(rec Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.IPAddress.Ordinal()
	next := rec.Clone()

	if existing, ok := s.records[key]; ok {
		next.Liveness = existing.Liveness
		*existing = next
		return false
	}

	next.Liveness = LivenessUnknown
	if s.carry {
		next.Liveness = LivenessOnline
	}
	s.records[key] = &next

	i := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= key })
	s.order = slices.Insert(s.order, i, key)
	return true
}

// ApplyLiveness sets the status of a known host. An unknown address is a
// backend desync: nothing is created and false is returned.
func (s *Store) ApplyLiveness(ip ipaddr.Address, online bool) bool {
	s.mu.Lock()
	rec, ok := s.records[ip.Ordinal()]
	if ok {
		rec.Liveness = LivenessFromBool(online)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.WarnDesync("liveness update for unknown host", ip.String(), "online", online)
	}
	return ok
}

// ApplyOptimisticOnline marks every host online ahead of real monitoring
// results and enables carry-over for hosts found later.
func (s *Store) ApplyOptimisticOnline() {
	s.setAll(LivenessOnline)
	s.SetCarryOver(true)
}

// ResetLiveness returns every host to unknown and disables carry-over.
func (s *Store) ResetLiveness() {
	s.setAll(LivenessUnknown)
	s.SetCarryOver(false)
}

func (s *Store) setAll(l Liveness) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		rec.Liveness = l
	}
}

// Get returns a copy of the record for ip.
func (s *Store) Get(ip ipaddr.Address) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ip.Ordinal()]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// List returns every record in ascending address order.
func (s *Store) List() []Record {
	return s.Filter("")
}

// Filter returns, in address order, the records whose IP text, hostname or
// MAC address contains term, ignoring case. An empty term matches everything.
func (s *Store) Filter(term string) []Record {
	needle := strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, key := range s.order {
		rec := s.records[key]
		if needle == "" || matches(rec, needle) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func matches(rec *Record, needle string) bool {
	return strings.Contains(rec.IPAddress.String(), needle) ||
		strings.Contains(strings.ToLower(rec.Hostname), needle) ||
		strings.Contains(strings.ToLower(rec.MACAddress), needle)
}

// IPs returns the address text of every host in order.
func (s *Store) IPs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	for i, key := range s.order {
		out[i] = ipaddr.FromOrdinal(key).String()
	}
	return out
}

// Len returns the number of hosts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
