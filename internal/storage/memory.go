package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

// MemoryStore holds all data in memory. A single mutex is the serialization
// point for every find-or-create, which gives it the same atomicity as the
// database store's constraints.
type MemoryStore struct {
	mu sync.RWMutex

	contacts      map[string]*models.Contact
	conversations map[string]*models.Conversation
	convByKey     map[string]string
	messages      map[string]*models.Message
	msgByExternal map[string]string
	msgSeq        map[string]int64
	metrics       map[string]*models.DailyMetrics
	notes         map[string]*models.Note

	seq int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:      make(map[string]*models.Contact),
		conversations: make(map[string]*models.Conversation),
		convByKey:     make(map[string]string),
		messages:      make(map[string]*models.Message),
		msgByExternal: make(map[string]string),
		msgSeq:        make(map[string]int64),
		metrics:       make(map[string]*models.DailyMetrics),
		notes:         make(map[string]*models.Note),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Contact operations

func (m *MemoryStore) FindOrCreateContact(ctx context.Context, channel models.Channel, address string, seed *models.Contact) (*ContactMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*models.Contact
	for _, c := range m.contacts {
		if contactMatches(c, channel, address) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.IsActive != b.IsActive {
				return a.IsActive
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		return &ContactMatch{Contact: cloneContact(candidates[0]), Candidates: len(candidates)}, nil
	}

	if err := m.checkContactUnique(seed, ""); err != nil {
		return nil, err
	}
	created := cloneContact(seed)
	m.stampContact(created)
	m.contacts[created.ID] = created
	*seed = *cloneContact(created)
	return &ContactMatch{Contact: cloneContact(created), Created: true}, nil
}

func (m *MemoryStore) CreateContact(ctx context.Context, contact *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkContactUnique(contact, ""); err != nil {
		return err
	}
	stored := cloneContact(contact)
	m.stampContact(stored)
	m.contacts[stored.ID] = stored
	*contact = *cloneContact(stored)
	return nil
}

func (m *MemoryStore) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContact(c), nil
}

func (m *MemoryStore) UpdateContact(ctx context.Context, contact *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.contacts[contact.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkContactUnique(contact, contact.ID); err != nil {
		return err
	}
	stored := cloneContact(contact)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	m.contacts[stored.ID] = stored
	contact.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemoryStore) DeactivateContact(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListContacts(ctx context.Context, filter models.ContactFilter) ([]*models.Contact, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*models.Contact
	for _, c := range m.contacts {
		if !c.IsActive {
			continue
		}
		if search != "" && !containsFold(search, c.FirstName, c.LastName, c.Email, c.Phone) {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(c.Tags, filter.Tags) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := int64(len(matched))
	page := paginate(len(matched), filter.Offset, clampLimit(filter.Limit, 50, 200))
	out := make([]*models.Contact, 0, page.end-page.start)
	for _, c := range matched[page.start:page.end] {
		out = append(out, cloneContact(c))
	}
	return out, total, nil
}

// Conversation operations

func (m *MemoryStore) FindOrCreateConversation(ctx context.Context, contactID string, channel models.Channel, at time.Time) (*models.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := contactID + "|" + string(channel)
	if id, ok := m.convByKey[key]; ok {
		return m.conversationView(m.conversations[id]), false, nil
	}
	if _, ok := m.contacts[contactID]; !ok {
		return nil, false, fmt.Errorf("contact %s: %w", contactID, ErrNotFound)
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		ContactID:     contactID,
		Channel:       channel,
		Status:        models.ConversationStatusActive,
		LastMessageAt: at,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.conversations[conv.ID] = conv
	m.convByKey[key] = conv.ID
	return m.conversationView(conv), true, nil
}

func (m *MemoryStore) RecordConversationActivity(ctx context.Context, id string, at time.Time, inbound bool) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	conv.LastMessageAt = at
	if inbound {
		conv.UnreadCount++
	}
	conv.UpdatedAt = time.Now()
	return m.conversationView(conv), nil
}

func (m *MemoryStore) MarkConversationRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.UnreadCount = 0
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetConversationStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.Status = status
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.conversationView(conv), nil
}

func (m *MemoryStore) ListConversations(ctx context.Context, filter models.ConversationFilter) ([]*models.Conversation, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Conversation
	for _, conv := range m.conversations {
		if filter.Status != "" && conv.Status != filter.Status {
			continue
		}
		if filter.Channel != "" && conv.Channel != filter.Channel {
			continue
		}
		matched = append(matched, conv)
	}
	sortByActivity(matched)

	total := int64(len(matched))
	page := paginate(len(matched), filter.Offset, clampLimit(filter.Limit, 50, 200))
	out := make([]*models.Conversation, 0, page.end-page.start)
	for _, conv := range matched[page.start:page.end] {
		out = append(out, m.conversationView(conv))
	}
	return out, total, nil
}

func (m *MemoryStore) SearchConversations(ctx context.Context, query string, limit int) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var matched []*models.Conversation
	for _, conv := range m.conversations {
		if c, ok := m.contacts[conv.ContactID]; ok && containsFold(q, c.FirstName, c.LastName, c.Email, c.Phone) {
			matched = append(matched, conv)
			continue
		}
		for _, msg := range m.messages {
			if msg.ConversationID == conv.ID && strings.Contains(strings.ToLower(msg.Content), q) {
				matched = append(matched, conv)
				break
			}
		}
	}
	sortByActivity(matched)

	limit = clampLimit(limit, 20, 100)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*models.Conversation, 0, len(matched))
	for _, conv := range matched {
		out = append(out, m.conversationView(conv))
	}
	return out, nil
}

// Message operations

func (m *MemoryStore) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ExternalID != nil {
		if _, ok := m.msgByExternal[externalKey(msg.Channel, *msg.ExternalID)]; ok {
			return false, nil
		}
	}

	now := time.Now()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	for i := range msg.Attachments {
		if msg.Attachments[i].ID == "" {
			msg.Attachments[i].ID = uuid.NewString()
		}
		msg.Attachments[i].MessageID = msg.ID
		msg.Attachments[i].CreatedAt = now
	}

	m.messages[msg.ID] = cloneMessage(msg)
	m.seq++
	m.msgSeq[msg.ID] = m.seq
	if msg.ExternalID != nil {
		m.msgByExternal[externalKey(msg.Channel, *msg.ExternalID)] = msg.ID
	}
	return true, nil
}

func (m *MemoryStore) FindMessageByExternalID(ctx context.Context, channel models.Channel, externalID string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.msgByExternal[externalKey(channel, externalID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessage(m.messages[id]), nil
}

func (m *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, filter MessageFilter) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == filter.ConversationID {
			matched = append(matched, msg)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return m.msgSeq[a.ID] < m.msgSeq[b.ID]
	})

	page := paginate(len(matched), filter.Offset, clampLimit(filter.Limit, 50, 500))
	out := make([]*models.Message, 0, page.end-page.start)
	for _, msg := range matched[page.start:page.end] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

// Scheduled message operations

func (m *MemoryStore) DueScheduledMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*models.Message
	for _, msg := range m.messages {
		if msg.Status == models.MessageStatusScheduled && msg.ScheduledFor != nil && !msg.ScheduledFor.After(now) {
			due = append(due, msg)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(*due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
		}
		return m.msgSeq[due[i].ID] < m.msgSeq[due[j].ID]
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]*models.Message, 0, len(due))
	for _, msg := range due {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

func (m *MemoryStore) CompleteScheduledMessage(ctx context.Context, id, externalID string, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Status != models.MessageStatusScheduled {
		return ErrNotScheduled
	}
	msg.Status = models.MessageStatusSent
	if externalID != "" {
		ext := externalID
		msg.ExternalID = &ext
		m.msgByExternal[externalKey(msg.Channel, ext)] = msg.ID
	}
	delivered := deliveredAt
	msg.DeliveredAt = &delivered
	msg.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) FailScheduledMessage(ctx context.Context, id string, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Status != models.MessageStatusScheduled {
		return ErrNotScheduled
	}
	msg.Status = models.MessageStatusFailed
	if msg.Metadata == nil {
		msg.Metadata = datatypes.JSONMap{}
	}
	for k, v := range patch {
		msg.Metadata[k] = v
	}
	msg.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CountScheduledMessages(ctx context.Context, now time.Time) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due, future int64
	for _, msg := range m.messages {
		if msg.Status != models.MessageStatusScheduled || msg.ScheduledFor == nil {
			continue
		}
		if msg.ScheduledFor.After(now) {
			future++
		} else {
			due++
		}
	}
	return due, future, nil
}

func (m *MemoryStore) RecentlyProcessedMessages(ctx context.Context, since time.Time, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Message
	for _, msg := range m.messages {
		if msg.ScheduledFor == nil || msg.UpdatedAt.Before(since) {
			continue
		}
		if msg.Status == models.MessageStatusSent || msg.Status == models.MessageStatusFailed {
			matched = append(matched, msg)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	limit = clampLimit(limit, 10, 100)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*models.Message, 0, len(matched))
	for _, msg := range matched {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

// Metrics operations

func (m *MemoryStore) IncrementDailyMetrics(ctx context.Context, day time.Time, channel models.Channel, direction models.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day = models.DayOf(day)
	key := day.Format("2006-01-02") + "|" + string(channel)
	row, ok := m.metrics[key]
	now := time.Now()
	if !ok {
		row = &models.DailyMetrics{ID: uuid.NewString(), Date: day, Channel: channel, CreatedAt: now}
		m.metrics[key] = row
	}
	if direction == models.DirectionInbound {
		row.MessagesReceived++
	} else {
		row.MessagesSent++
	}
	row.UpdatedAt = now
	return nil
}

func (m *MemoryStore) ListDailyMetrics(ctx context.Context, filter models.MetricsFilter) ([]*models.DailyMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to := models.DayOf(filter.From), models.DayOf(filter.To)
	var out []*models.DailyMetrics
	for _, row := range m.metrics {
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		if filter.Channel != "" && row.Channel != filter.Channel {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Channel < out[j].Channel
	})
	return out, nil
}

// Note operations

func (m *MemoryStore) CreateNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contacts[note.ContactID]; !ok {
		return fmt.Errorf("contact %s: %w", note.ContactID, ErrNotFound)
	}
	now := time.Now()
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.CreatedAt, note.UpdatedAt = now, now
	cp := *note
	cp.Mentions = append([]string(nil), note.Mentions...)
	m.notes[note.ID] = &cp
	return nil
}

func (m *MemoryStore) GetNote(ctx context.Context, id string) (*models.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *MemoryStore) UpdateNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.notes[note.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Content = note.Content
	existing.IsPrivate = note.IsPrivate
	existing.Mentions = append([]string(nil), note.Mentions...)
	existing.UpdatedAt = time.Now()
	note.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *MemoryStore) DeleteNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[id]; !ok {
		return ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *MemoryStore) ListNotes(ctx context.Context, filter models.NoteFilter) ([]*models.Note, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Note
	for _, n := range m.notes {
		if n.ContactID != filter.ContactID {
			continue
		}
		if !filter.IsAdmin && n.IsPrivate && n.AuthorID != filter.ViewerID {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page := paginate(len(matched), filter.Offset, clampLimit(filter.Limit, 20, 100))
	out := make([]*models.Note, 0, page.end-page.start)
	for _, n := range matched[page.start:page.end] {
		cp := *n
		out = append(out, &cp)
	}
	return out, total, nil
}

// helpers

func (m *MemoryStore) stampContact(c *models.Contact) {
	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (m *MemoryStore) checkContactUnique(c *models.Contact, selfID string) error {
	for _, other := range m.contacts {
		if other.ID == selfID {
			continue
		}
		if sameAddress(c.Email, other.Email) || sameAddress(c.Phone, other.Phone) || sameAddress(c.WhatsAppNumber, other.WhatsAppNumber) {
			return ErrDuplicateContact
		}
	}
	return nil
}

func (m *MemoryStore) conversationView(conv *models.Conversation) *models.Conversation {
	cp := *conv
	cp.Messages = nil
	if c, ok := m.contacts[conv.ContactID]; ok {
		cp.Contact = cloneContact(c)
	}
	return &cp
}

func contactMatches(c *models.Contact, channel models.Channel, address string) bool {
	switch channel {
	case models.ChannelEmail:
		return c.Email != nil && *c.Email == address
	case models.ChannelSMS:
		return c.Phone != nil && *c.Phone == address
	case models.ChannelWhatsApp:
		return (c.Phone != nil && *c.Phone == address) || (c.WhatsAppNumber != nil && *c.WhatsAppNumber == address)
	}
	return false
}

func sameAddress(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

func containsFold(q string, fields ...*string) bool {
	for _, f := range fields {
		if f != nil && strings.Contains(strings.ToLower(*f), q) {
			return true
		}
	}
	return false
}

func hasAnyTag(have []string, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func sortByActivity(convs []*models.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].LastMessageAt.Equal(convs[j].LastMessageAt) {
			return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
		}
		return convs[i].ID < convs[j].ID
	})
}

func externalKey(channel models.Channel, externalID string) string {
	return string(channel) + "|" + externalID
}

type window struct{ start, end int }

func paginate(n, offset, limit int) window {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return window{start: offset, end: end}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneContact(c *models.Contact) *models.Contact {
	cp := *c
	cp.FirstName = copyString(c.FirstName)
	cp.LastName = copyString(c.LastName)
	cp.Email = copyString(c.Email)
	cp.Phone = copyString(c.Phone)
	cp.WhatsAppNumber = copyString(c.WhatsAppNumber)
	cp.Tags = append([]string(nil), c.Tags...)
	if c.CustomFields != nil {
		cp.CustomFields = datatypes.JSONMap{}
		for k, v := range c.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	return &cp
}

func cloneMessage(msg *models.Message) *models.Message {
	cp := *msg
	cp.SenderID = copyString(msg.SenderID)
	cp.ExternalID = copyString(msg.ExternalID)
	cp.ScheduledFor = copyTime(msg.ScheduledFor)
	cp.DeliveredAt = copyTime(msg.DeliveredAt)
	if msg.Metadata != nil {
		cp.Metadata = datatypes.JSONMap{}
		for k, v := range msg.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Attachments = append([]models.MessageAttachment(nil), msg.Attachments...)
	return &cp
}
