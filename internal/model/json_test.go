package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationAcceptsDocumentID(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"n1","type":"order","title":"Shipped","isRead":true,"createdAt":"2026-10-01T12:00:00Z"}`), &n))
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, NotificationOrder, n.Type)
	assert.Equal(t, "Shipped", n.Title)
	assert.True(t, n.IsRead)
	assert.False(t, n.CreatedAt.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"n2","_id":"ignored"}`), &n))
	assert.Equal(t, "n2", n.ID)
}

func TestUserAcceptsDocumentID(t *testing.T) {
	var s Session
	require.NoError(t, json.Unmarshal([]byte(`{"token":"t","user":{"_id":"u1","name":"Ann","role":"seller"}}`), &s))
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, RoleSeller, s.User.Role)
	assert.True(t, s.Authenticated())
}

func TestCartItemAcceptsDocumentIDs(t *testing.T) {
	var c Cart
	raw := `{"items":[{"_id":"line1","quantity":2,"product":{"_id":"p1","name":"Mug","price":9.5}}],"total":19,"itemCount":2}`
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c.Items, 1)

	item := c.Items[0]
	assert.Equal(t, "line1", item.ID)
	assert.Equal(t, "p1", item.Product.ID)
	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 2, c.ItemCount)
}

func TestMarshaledCartReadsBack(t *testing.T) {
	in := Cart{Items: []CartItem{{ID: "line1", ProductID: "p1", Quantity: 1, Product: ProductSnapshot{ID: "p1", Name: "Mug"}}}, ItemCount: 1}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Cart
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
