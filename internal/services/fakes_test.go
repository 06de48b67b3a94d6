package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/redis"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
)

// In-memory stand-ins for the repositories and infrastructure clients.

type fakeTransactionRepo struct {
	mu      sync.Mutex
	seq     int
	txs     map[string]*models.Transaction
	created []*models.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txs: map[string]*models.Transaction{}}
}

func (r *fakeTransactionRepo) Create(ctx context.Context, tx *models.Transaction) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("tx-%d", r.seq)
	cp := *tx
	cp.ID = id
	r.txs[id] = &cp
	r.created = append(r.created, &cp)
	return id, nil
}

func (r *fakeTransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *fakeTransactionRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.CheckoutRequestID == checkoutRequestID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) SetGatewayRefs(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return pkgerrors.ErrTransactionNotFound
	}
	tx.MerchantRequestID = merchantRequestID
	tx.CheckoutRequestID = checkoutRequestID
	return nil
}

func (r *fakeTransactionRepo) Finalize(ctx context.Context, id string, status models.StatusType, receiptNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return pkgerrors.ErrTransactionNotFound
	}
	if tx.Status.Terminal() {
		return pkgerrors.ErrTransactionFinalized
	}
	tx.Status = status
	tx.ReceiptNumber = receiptNumber
	return nil
}

func (r *fakeTransactionRepo) ListByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, tx := range r.txs {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

type stkCall struct {
	amount    int64
	phone     string
	reference string
}

type fakeGateway struct {
	calls    []stkCall
	pushErr  error
	response *models.STKPushResponse
	queryRes *models.STKQueryResponse
}

func (g *fakeGateway) InitiateSTKPush(ctx context.Context, amount int64, phone, reference, description string) (*models.STKPushResponse, error) {
	g.calls = append(g.calls, stkCall{amount: amount, phone: phone, reference: reference})
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	if g.response != nil {
		return g.response, nil
	}
	return &models.STKPushResponse{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "cr-1",
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error) {
	if g.queryRes != nil {
		return g.queryRes, nil
	}
	return &models.STKQueryResponse{ResponseCode: "0", CheckoutRequestID: checkoutRequestID}, nil
}

type sentMessage struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	sent []sentMessage
}

func (p *fakeProducer) Send(ctx context.Context, topic, key string, value []byte) error {
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.UserProfile
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.UserProfile{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return pkgerrors.ErrEmailExists
		}
	}
	cp := *u
	r.users[u.UID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, uid string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	if name, ok := updates["displayName"].(string); ok {
		u.DisplayName = name
	}
	if phone, ok := updates["phoneNumber"].(string); ok {
		u.PhoneNumber = phone
	}
	return nil
}

func (r *fakeUserRepo) AddSavedProperty(ctx context.Context, uid, propertyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	for _, id := range u.SavedProperties {
		if id == propertyID {
			return nil
		}
	}
	u.SavedProperties = append(u.SavedProperties, propertyID)
	return nil
}

func (r *fakeUserRepo) RemoveSavedProperty(ctx context.Context, uid, propertyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	kept := u.SavedProperties[:0]
	for _, id := range u.SavedProperties {
		if id != propertyID {
			kept = append(kept, id)
		}
	}
	u.SavedProperties = kept
	return nil
}

func (r *fakeUserRepo) SetSubscription(ctx context.Context, uid string, sub models.SubscriptionInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	u.Subscription = &sub
	return nil
}

type fakePropertyRepo struct {
	mu         sync.Mutex
	seq        int
	properties map[string]*models.Property
	increments []string // "id/field/delta"
	inquiries  []models.PropertyInquiry
	lastQuery  *query.Query
	findResult []models.Property
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{properties: map[string]*models.Property{}}
}

func (r *fakePropertyRepo) Create(ctx context.Context, p *models.Property) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("prop-%d", r.seq)
	cp := *p
	cp.ID = id
	r.properties[id] = &cp
	return id, nil
}

func (r *fakePropertyRepo) GetByID(ctx context.Context, id string) (*models.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.properties[id]
	if !ok {
		return nil, pkgerrors.ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePropertyRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.properties[id]
	if !ok {
		return pkgerrors.ErrPropertyNotFound
	}
	if title, ok := updates["title"].(string); ok {
		p.Title = title
	}
	if images, ok := updates["images"].([]string); ok {
		p.Images = images
	}
	return nil
}

func (r *fakePropertyRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.properties[id]; !ok {
		return pkgerrors.ErrPropertyNotFound
	}
	delete(r.properties, id)
	return nil
}

func (r *fakePropertyRepo) Find(ctx context.Context, q query.Query) ([]models.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = &q
	return r.findResult, nil
}

func (r *fakePropertyRepo) FindByOwner(ctx context.Context, ownerID string) ([]models.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Property
	for _, p := range r.properties {
		if p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePropertyRepo) FindFeatured(ctx context.Context, limit int) ([]models.Property, error) {
	return r.findResult, nil
}

func (r *fakePropertyRepo) Search(ctx context.Context, term string, limit int) ([]models.Property, error) {
	return r.findResult, nil
}

func (r *fakePropertyRepo) Increment(ctx context.Context, id, field string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments = append(r.increments, fmt.Sprintf("%s/%s/%d", id, field, delta))
	return nil
}

func (r *fakePropertyRepo) SetFeatured(ctx context.Context, id string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.properties[id]
	if !ok {
		return pkgerrors.ErrPropertyNotFound
	}
	p.IsFeatured = true
	p.FeaturedUntil = &until
	return nil
}

func (r *fakePropertyRepo) CreateInquiry(ctx context.Context, inq *models.PropertyInquiry) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if inq.ID == "" {
		inq.ID = fmt.Sprintf("inq-%d", r.seq)
	}
	r.inquiries = append(r.inquiries, *inq)
	return inq.ID, nil
}

func (r *fakePropertyRepo) ListInquiriesByOwner(ctx context.Context, ownerID string) ([]models.PropertyInquiry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PropertyInquiry
	for _, inq := range r.inquiries {
		if inq.OwnerID == ownerID {
			out = append(out, inq)
		}
	}
	return out, nil
}

type fakeRedis struct {
	mu    sync.Mutex
	store map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}}
}

func (c *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return v, nil
}

func (c *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = fmt.Sprint(value)
	return nil
}

func (c *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.store[key]; ok {
		return false, nil
	}
	c.store[key] = fmt.Sprint(value)
	return true, nil
}

func (c *fakeRedis) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeRedis) Close() error { return nil }

type fakeImageRepo struct {
	uploads []string
}

func (r *fakeImageRepo) Upload(ctx context.Context, propertyID string, index int, src io.Reader) (string, error) {
	name := fmt.Sprintf("properties/%s/image_%d", propertyID, index)
	r.uploads = append(r.uploads, name)
	return name, nil
}

func (r *fakeImageRepo) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return nil, pkgerrors.ErrPropertyNotFound
}

func (r *fakeImageRepo) Delete(ctx context.Context, name string) error { return nil }
