package storage

import (
	"context"
	"sync"
	"time"

	"imovel-scraper/models"
)

// MemoryStore is an in-memory implementation of LinkStore, RawStore and
// PropertyStore used in tests and dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	links      []*models.SourceLink
	raws       map[string]*models.RawProperty
	rawOrder   []string
	properties []*models.Property
	lastSeq    int64
	nextLinkID int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		raws:       make(map[string]*models.RawProperty),
		nextLinkID: 1,
	}
}

// NextBatch returns up to limit pending links in insertion order.
func (m *MemoryStore) NextBatch(_ context.Context, limit int) ([]*models.SourceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.SourceLink
	for _, l := range m.links {
		if l.Status == models.LinkPending {
			out = append(out, l)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// MarkStatus updates one link's status fields.
func (m *MemoryStore) MarkStatus(_ context.Context, id int64, status models.LinkStatus, errMsg string, found int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.ID == id {
			now := time.Now()
			l.Status = status
			l.LastError = errMsg
			l.PropertiesFound = found
			l.LastCrawledAt = &now
			return nil
		}
	}
	return ErrNotFound
}

// Seed inserts links, skipping duplicate URLs.
func (m *MemoryStore) Seed(_ context.Context, links []*models.SourceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range links {
		dup := false
		for _, existing := range m.links {
			if existing.URL == l.URL {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		cp := *l
		cp.ID = m.nextLinkID
		cp.Status = models.LinkPending
		cp.CreatedAt = time.Now()
		m.nextLinkID++
		m.links = append(m.links, &cp)
	}
	return nil
}

// ResetAll sets every link back to pending.
func (m *MemoryStore) ResetAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		l.Status = models.LinkPending
		l.LastError = ""
		l.PropertiesFound = 0
	}
	return nil
}

// CountPending reports pending link count.
func (m *MemoryStore) CountPending(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, l := range m.links {
		if l.Status == models.LinkPending {
			n++
		}
	}
	return n, nil
}

// Links returns all links (test helper).
func (m *MemoryStore) Links() []*models.SourceLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.SourceLink(nil), m.links...)
}

// InsertRaw stores a raw record.
func (m *MemoryStore) InsertRaw(_ context.Context, r *models.RawProperty) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.raws[cp.ID] = &cp
	m.rawOrder = append(m.rawOrder, cp.ID)
	return nil
}

// PendingBatch returns raw records awaiting promotion in insertion order.
func (m *MemoryStore) PendingBatch(_ context.Context, limit int) ([]*models.RawProperty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.RawProperty
	for _, id := range m.rawOrder {
		r := m.raws[id]
		if r.Status == models.RawPending && r.NeedsProcessing {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// MarkProcessing flips a raw record to processing.
func (m *MemoryStore) MarkProcessing(_ context.Context, id string) error {
	return m.updateRaw(id, models.RawProcessing, "", true, "")
}

// Complete records the promotion result.
func (m *MemoryStore) Complete(_ context.Context, id, propertyCode string) error {
	return m.updateRaw(id, models.RawCompleted, "", false, propertyCode)
}

// Ignore marks non-listing content.
func (m *MemoryStore) Ignore(_ context.Context, id string) error {
	return m.updateRaw(id, models.RawIgnored, "", false, "")
}

// Fail records the error message.
func (m *MemoryStore) Fail(_ context.Context, id, errMsg string) error {
	return m.updateRaw(id, models.RawError, errMsg, true, "")
}

func (m *MemoryStore) updateRaw(id string, status models.RawStatus, errMsg string, needs bool, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.raws[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.LastError = errMsg
	r.NeedsProcessing = needs
	if code != "" {
		r.PropertyCode = code
	}
	r.UpdatedAt = time.Now()
	return nil
}

// Raw returns one raw record by id (test helper).
func (m *MemoryStore) Raw(id string) (*models.RawProperty, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.raws[id]
	return r, ok
}

// Raws returns all raw records in insertion order (test helper).
func (m *MemoryStore) Raws() []*models.RawProperty {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.RawProperty, 0, len(m.rawOrder))
	for _, id := range m.rawOrder {
		out = append(out, m.raws[id])
	}
	return out
}

// InsertProperty stores a canonical listing.
func (m *MemoryStore) InsertProperty(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.properties = append(m.properties, &cp)
	return nil
}

// CodeForRaw returns the code of the listing created from the raw record.
func (m *MemoryStore) CodeForRaw(_ context.Context, rawID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.properties {
		if p.RawID == rawID {
			return p.Code, nil
		}
	}
	return "", nil
}

// NextCode allocates the next IMV code under the store lock.
func (m *MemoryStore) NextCode(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSeq++
	return FormatCode(m.lastSeq), nil
}

// Properties returns all canonical listings (test helper).
func (m *MemoryStore) Properties() []*models.Property {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Property(nil), m.properties...)
}
