package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/mongo"
	"Parley/internal/presence"
	"Parley/internal/repository"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Millis() int64 {
	return c.Now().UnixMilli()
}

// fakeUserRepo

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uint64]*model.User{}}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func (r *fakeUserRepo) GetUserById(_ context.Context, id uint64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *fakeUserRepo) GetUserByIds(_ context.Context, ids []uint64) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			res = append(res, cloneUser(u))
		}
	}
	return res, nil
}

func (r *fakeUserRepo) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalID == externalID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalID == user.ExternalID {
			return repository.ErrDuplicateKey
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id uint64, name, email string, imageURL *string, lastSeen int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.Name, u.Email, u.ImageURL, u.IsOnline = name, email, imageURL, true
	if lastSeen > u.LastSeen {
		u.LastSeen = lastSeen
	}
	return nil
}

func (r *fakeUserRepo) UpdateOnlineStatus(_ context.Context, id uint64, isOnline bool, lastSeen int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.IsOnline = isOnline
	if isOnline && lastSeen > u.LastSeen {
		u.LastSeen = lastSeen
	}
	return nil
}

func (r *fakeUserRepo) sorted(filter func(u *model.User) bool, limit int) []*model.User {
	res := make([]*model.User, 0)
	for _, u := range r.users {
		if filter(u) {
			res = append(res, cloneUser(u))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	if len(res) > limit {
		res = res[:limit]
	}
	return res
}

func (r *fakeUserRepo) ListUsers(_ context.Context, excludeID uint64, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(u *model.User) bool { return u.ID != excludeID }, limit), nil
}

func (r *fakeUserRepo) SearchUsers(_ context.Context, keyword string, excludeID uint64, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kw := strings.ToLower(keyword)
	return r.sorted(func(u *model.User) bool {
		return u.ID != excludeID &&
			(strings.Contains(strings.ToLower(u.Name), kw) || strings.Contains(strings.ToLower(u.Email), kw))
	}, limit), nil
}

func (r *fakeUserRepo) MarkStaleOffline(_ context.Context, before int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.IsOnline && u.LastSeen < before {
			u.IsOnline = false
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) get(id uint64) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

// fakeConvRepo

type fakeConvRepo struct {
	mu       sync.Mutex
	nextID   uint64
	convs    map[uint64]*model.Conversation
	members  []*model.ConversationMember
	onCreate func(conv *model.Conversation)
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{convs: map[uint64]*model.Conversation{}}
}

func cloneConv(c *model.Conversation) *model.Conversation {
	res := *c
	res.Participants = append([]uint64(nil), c.Participants...)
	res.UnreadCounts = make(map[uint64]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		res.UnreadCounts[k] = v
	}
	return &res
}

func (r *fakeConvRepo) CreateConversation(_ context.Context, conv *model.Conversation) error {
	if r.onCreate != nil {
		hook := r.onCreate
		r.onCreate = nil
		hook(conv)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv.PeerKey != nil {
		for _, c := range r.convs {
			if c.PeerKey != nil && *c.PeerKey == *conv.PeerKey {
				return repository.ErrDuplicateKey
			}
		}
	}
	if conv.UnreadCounts == nil {
		conv.UnreadCounts = map[uint64]int{}
	}
	r.nextID++
	conv.ID = r.nextID
	r.convs[conv.ID] = cloneConv(conv)
	for _, uid := range conv.Participants {
		r.members = append(r.members, &model.ConversationMember{ConversationID: conv.ID, UserID: uid})
	}
	return nil
}

func (r *fakeConvRepo) GetConversation(_ context.Context, convID uint64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[convID]; ok {
		return cloneConv(c), nil
	}
	return nil, nil
}

func (r *fakeConvRepo) GetConversationByPeerKey(_ context.Context, peerKey string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.PeerKey != nil && *c.PeerKey == peerKey {
			return cloneConv(c), nil
		}
	}
	return nil, nil
}

func (r *fakeConvRepo) GetUserConversations(_ context.Context, userID uint64) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*model.Conversation, 0)
	for _, m := range r.members {
		if m.UserID == userID {
			res = append(res, cloneConv(r.convs[m.ConversationID]))
		}
	}
	return res, nil
}

func (r *fakeConvRepo) GetPeerIDs(_ context.Context, userID uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uint64]bool{}
	res := make([]uint64, 0)
	for _, c := range r.convs {
		if !c.HasParticipant(userID) {
			continue
		}
		for _, id := range c.OtherParticipants(userID) {
			if !seen[id] {
				seen[id] = true
				res = append(res, id)
			}
		}
	}
	return res, nil
}

func (r *fakeConvRepo) RecordMessage(ctx context.Context, convID, senderID uint64, msgID string, at int64, persist func(ctx context.Context) error) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.convs[convID]
	if !ok {
		return nil, errors.New("record not found")
	}
	next := cloneConv(stored)
	for _, uid := range next.Participants {
		if uid != senderID {
			next.UnreadCounts[uid]++
		}
	}
	next.LastMessageID = &msgID
	next.LastMessageTime = at
	if err := persist(ctx); err != nil {
		return nil, err
	}
	r.convs[convID] = next
	return cloneConv(next), nil
}

func (r *fakeConvRepo) ResetUnread(_ context.Context, convID, userID uint64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[convID]
	if !ok {
		return nil, errors.New("record not found")
	}
	c.UnreadCounts[userID] = 0
	return cloneConv(c), nil
}

func (r *fakeConvRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

func (r *fakeConvRepo) get(id uint64) *model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneConv(r.convs[id])
}

// fakeMessageRepo

type fakeMessageRepo struct {
	mu      sync.Mutex
	msgs    map[primitive.ObjectID]*mongo.Message
	saveErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{msgs: map[primitive.ObjectID]*mongo.Message{}}
}

func cloneMessage(m *mongo.Message) *mongo.Message {
	c := *m
	c.ReadBy = append([]uint64(nil), m.ReadBy...)
	return &c
}

func (r *fakeMessageRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	r.msgs[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *fakeMessageRepo) GetMessage(_ context.Context, id string) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	if m, ok := r.msgs[oid]; ok {
		return cloneMessage(m), nil
	}
	return nil, nil
}

func (r *fakeMessageRepo) GetMessagesByIDs(ctx context.Context, ids []string) (map[string]*mongo.Message, error) {
	res := make(map[string]*mongo.Message, len(ids))
	for _, id := range ids {
		m, _ := r.GetMessage(ctx, id)
		if m != nil {
			res[id] = m
		}
	}
	return res, nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, convID uint64) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*mongo.Message, 0)
	for _, m := range r.msgs {
		if m.ConversationID == convID {
			res = append(res, cloneMessage(m))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return res[i].ID.Hex() < res[j].ID.Hex()
	})
	return res, nil
}

func (r *fakeMessageRepo) MarkDeleted(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongodriver.ErrNoDocuments
	}
	m, ok := r.msgs[oid]
	if !ok {
		return mongodriver.ErrNoDocuments
	}
	m.IsDeleted = true
	m.Content = mongo.DeletedPlaceholder
	return nil
}

func (r *fakeMessageRepo) MarkConversationRead(_ context.Context, convID uint64, userID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ConversationID == convID && !m.HasRead(userID) {
			m.ReadBy = append(m.ReadBy, userID)
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, convID uint64, userID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ConversationID == convID && m.SenderID != userID && !m.HasRead(userID) {
			n++
		}
	}
	return n, nil
}

// fakeTypingRepo

type fakeTypingRepo struct {
	mu     sync.Mutex
	states map[uint64]model.TypingState
}

func newFakeTypingRepo() *fakeTypingRepo {
	return &fakeTypingRepo{states: map[uint64]model.TypingState{}}
}

func (r *fakeTypingRepo) SetTyping(_ context.Context, state *model.TypingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ConversationID] = *state
	return nil
}

func (r *fakeTypingRepo) GetTyping(_ context.Context, convID uint64) (*model.TypingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[convID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// fakePublisher

type recordedEvent struct {
	Users          []uint64
	Type           string
	ConversationID uint64
	Data           json.RawMessage
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishToUsers(_ context.Context, userIDs []uint64, payload []byte) error {
	var raw struct {
		Type           string          `json:"type"`
		ConversationID uint64          `json:"conversation_id"`
		Data           json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{
		Users:          append([]uint64(nil), userIDs...),
		Type:           raw.Type,
		ConversationID: raw.ConversationID,
		Data:           raw.Data,
	})
	return nil
}

func (p *fakePublisher) ofType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]recordedEvent, 0)
	for _, e := range p.events {
		if e.Type == eventType {
			res = append(res, e)
		}
	}
	return res
}

// fakeUserIndex

type fakeUserIndex struct {
	indexed []uint64
	ids     []uint64
	err     error
}

func (f *fakeUserIndex) IndexUser(_ context.Context, user *model.User) error {
	f.indexed = append(f.indexed, user.ID)
	return nil
}

func (f *fakeUserIndex) SearchUserIDs(_ context.Context, _ string, _ uint64, _ int) ([]uint64, error) {
	return f.ids, f.err
}

type testEnv struct {
	clock     *fakeClock
	users     *fakeUserRepo
	convs     *fakeConvRepo
	msgs      *fakeMessageRepo
	typing    *fakeTypingRepo
	pub       *fakePublisher
	userSvc   *UserServiceImpl
	imSvc     *imServiceImpl
	typingSvc *typingServiceImpl
}

func newTestEnv() *testEnv {
	e := &testEnv{
		clock:  newFakeClock(),
		users:  newFakeUserRepo(),
		convs:  newFakeConvRepo(),
		msgs:   newFakeMessageRepo(),
		typing: newFakeTypingRepo(),
		pub:    &fakePublisher{},
	}
	policy := presence.DefaultPolicy()

	e.userSvc = NewUserService(e.users, e.convs, nil, e.pub, policy).(*UserServiceImpl)
	e.userSvc.now = e.clock.Now
	e.imSvc = NewIMService(e.users, e.convs, e.msgs, e.pub, policy).(*imServiceImpl)
	e.imSvc.now = e.clock.Now
	e.typingSvc = NewTypingService(e.users, e.convs, e.typing, e.pub, policy).(*typingServiceImpl)
	e.typingSvc.now = e.clock.Now
	return e
}

func (e *testEnv) seedUser(t *testing.T, externalID, name string) *model.User {
	t.Helper()
	id, err := e.userSvc.UpsertUser(context.Background(), &dto.IdentityDTO{
		ExternalID: externalID,
		Name:       name,
		Email:      strings.ToLower(name) + "@example.com",
	})
	require.NoError(t, err)
	return e.users.get(id)
}

func (e *testEnv) directConversation(t *testing.T, a, b *model.User) uint64 {
	t.Helper()
	id, err := e.imSvc.GetOrCreateConversation(context.Background(), a.ExternalID, b.ID)
	require.NoError(t, err)
	return id
}
