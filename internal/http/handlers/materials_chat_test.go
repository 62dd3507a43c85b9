package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/geocoder89/sitehub/internal/domain/chat"
	"github.com/geocoder89/sitehub/internal/domain/material"
	"github.com/geocoder89/sitehub/internal/http/handlers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaterials struct {
	items map[string]material.Material
}

func newFakeMaterials(ms ...material.Material) *fakeMaterials {
	f := &fakeMaterials{items: map[string]material.Material{}}
	for _, m := range ms {
		f.items[m.ID] = m
	}
	return f
}

func (f *fakeMaterials) Create(_ context.Context, m material.Material) error {
	f.items[m.ID] = m
	return nil
}

func (f *fakeMaterials) GetByID(_ context.Context, _ string, id string) (material.Material, error) {
	m, ok := f.items[id]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	return m, nil
}

func (f *fakeMaterials) List(_ context.Context, _ string, _ material.ListFilter) ([]material.Material, error) {
	out := make([]material.Material, 0, len(f.items))
	for _, m := range f.items {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMaterials) Update(_ context.Context, _ string, id string, req material.UpdateMaterialRequest) (material.Material, error) {
	m, ok := f.items[id]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	if req.Name != nil {
		m.Name = *req.Name
	}
	f.items[id] = m
	return m, nil
}

func (f *fakeMaterials) AddStock(_ context.Context, _ string, id string, qty float64) (material.Material, error) {
	m, ok := f.items[id]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	m.StockQuantity += qty
	f.items[id] = m
	return m, nil
}

func (f *fakeMaterials) Consume(_ context.Context, _ string, id string, qty float64) (material.Material, error) {
	m, ok := f.items[id]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	if m.StockQuantity < qty {
		return material.Material{}, material.ErrInsufficientStock
	}
	m.StockQuantity -= qty
	m.UsedQuantity += qty
	f.items[id] = m
	return m, nil
}

func (f *fakeMaterials) Delete(_ context.Context, _ string, id string) error {
	if _, ok := f.items[id]; !ok {
		return material.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func TestMaterials_StockMovements(t *testing.T) {
	cement := material.NewFromCreateRequest(testProjectID, material.CreateMaterialRequest{
		Name: "Cement", Unit: "bag", UnitPrice: 30, StockQuantity: 10,
	})
	store := newFakeMaterials(cement)
	h := handlers.NewMaterialsHandler(store)

	stock := mount(http.MethodPost, "/projects/:projectId/materials/:materialId/stock", h.AddStock)
	consume := mount(http.MethodPost, "/projects/:projectId/materials/:materialId/consume", h.Consume)
	base := "/projects/" + testProjectID + "/materials/" + cement.ID

	w := serve(stock, http.MethodPost, base+"/stock", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(consume, http.MethodPost, base+"/consume", `{"quantity":12}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got material.Material
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.InDelta(t, 3, got.StockQuantity, 1e-9)
	assert.InDelta(t, 12, got.UsedQuantity, 1e-9)

	w = serve(consume, http.MethodPost, base+"/consume", `{"quantity":4}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "insufficient_stock", errorCode(t, w))

	w = serve(consume, http.MethodPost, base+"/consume", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(consume, http.MethodPost, "/projects/"+testProjectID+"/materials/"+uuid.NewString()+"/consume", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMaterials_ListReportsStockValue(t *testing.T) {
	store := newFakeMaterials(
		material.NewFromCreateRequest(testProjectID, material.CreateMaterialRequest{Name: "Cement", Unit: "bag", UnitPrice: 30, StockQuantity: 10}),
		material.NewFromCreateRequest(testProjectID, material.CreateMaterialRequest{Name: "Sand", Unit: "m3", UnitPrice: 50, StockQuantity: 2.5}),
	)
	h := handlers.NewMaterialsHandler(store)
	r := mount(http.MethodGet, "/projects/:projectId/materials", h.List)

	w := serve(r, http.MethodGet, "/projects/"+testProjectID+"/materials", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count      int     `json:"count"`
		StockValue float64 `json:"stockValue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.InDelta(t, 425, body.StockValue, 1e-9)
}

type fakeChat struct {
	posted    []chat.Message
	requestID string
	lastList  chat.ListFilter
}

func (f *fakeChat) Post(_ context.Context, m chat.Message, requestID string) error {
	f.posted = append(f.posted, m)
	f.requestID = requestID
	return nil
}

func (f *fakeChat) List(_ context.Context, _ string, filter chat.ListFilter) ([]chat.Message, error) {
	f.lastList = filter
	return f.posted, nil
}

func (f *fakeChat) DeleteOwn(_ context.Context, _ string, id, authorID string) error {
	for i, m := range f.posted {
		if m.ID != id {
			continue
		}
		if m.AuthorID != authorID {
			return chat.ErrNotAuthor
		}
		f.posted = append(f.posted[:i], f.posted[i+1:]...)
		return nil
	}
	return chat.ErrNotFound
}

func TestChat_PostCarriesRequestID(t *testing.T) {
	store := &fakeChat{}
	h := handlers.NewChatHandler(store)
	r := mount(http.MethodPost, "/projects/:projectId/chat/messages", h.Post)

	w := serve(r, http.MethodPost, "/projects/"+testProjectID+"/chat/messages", `{"body":"Crane arrives at 7"}`,
		"X-Request-Id", "req-chat-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, store.posted, 1)
	assert.Equal(t, testUserID, store.posted[0].AuthorID)
	assert.Equal(t, "req-chat-1", store.requestID)
}

func TestChat_ListClampsPaging(t *testing.T) {
	store := &fakeChat{}
	h := handlers.NewChatHandler(store)
	r := mount(http.MethodGet, "/projects/:projectId/chat/messages", h.List)

	w := serve(r, http.MethodGet, "/projects/"+testProjectID+"/chat/messages?q=crane&limit=5000&offset=20", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "crane", store.lastList.Query)
	assert.Equal(t, 200, store.lastList.Limit)
	assert.Equal(t, 20, store.lastList.Offset)
}

func TestChat_OnlyAuthorDeletes(t *testing.T) {
	mine := chat.NewMessage(testProjectID, testUserID, "mine")
	theirs := chat.NewMessage(testProjectID, uuid.NewString(), "theirs")
	store := &fakeChat{posted: []chat.Message{mine, theirs}}
	h := handlers.NewChatHandler(store)
	r := mount(http.MethodDelete, "/projects/:projectId/chat/messages/:messageId", h.Delete)
	base := "/projects/" + testProjectID + "/chat/messages/"

	w := serve(r, http.MethodDelete, base+theirs.ID, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_author", errorCode(t, w))

	w = serve(r, http.MethodDelete, base+mine.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodDelete, base+mine.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
