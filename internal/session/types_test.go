package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionSet_FlatStrings(t *testing.T) {
	var perms PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &perms))

	assert.Equal(t, PermissionSet{"a": true, "b": true}, perms)
}

func TestPermissionSet_ObjectList(t *testing.T) {
	var perms PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`[{"permissionName":"a"},{"permissionName":"b"}]`), &perms))

	assert.Equal(t, PermissionSet{"a": true, "b": true}, perms)
}

func TestPermissionSet_FormatInvariant(t *testing.T) {
	var fromStrings, fromObjects PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`["users.view","inventory.edit"]`), &fromStrings))
	require.NoError(t, json.Unmarshal([]byte(`[{"permissionName":"users.view"},{"permissionName":"inventory.edit"}]`), &fromObjects))

	assert.Equal(t, fromStrings, fromObjects)
	assert.True(t, fromStrings.Has("users.view"))
	assert.False(t, fromStrings.Has("users.delete"))
}

func TestPermissionSet_RejectsUnknownShape(t *testing.T) {
	var perms PermissionSet
	assert.Error(t, json.Unmarshal([]byte(`[42]`), &perms))
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &perms))
}

func TestSessionValid(t *testing.T) {
	tests := []struct {
		name string
		sess *Session
		want bool
	}{
		{"nil", nil, false},
		{"authenticated with user and tenant", &Session{IsAuthenticated: true, User: User{ID: "u1"}, Tenant: "diku"}, true},
		{"authenticated without user id", &Session{IsAuthenticated: true, Tenant: "diku"}, false},
		{"authenticated without tenant", &Session{IsAuthenticated: true, User: User{ID: "u1"}}, false},
		{"not authenticated", &Session{User: User{ID: "u1"}, Tenant: "diku"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.Valid())
		})
	}
}

func TestTokenExpirationISO(t *testing.T) {
	exp := TokenExpiration{AtExpires: 1700000000000, RtExpires: 1700000600000}.withISO()

	assert.Equal(t, "2023-11-14T22:13:20Z", exp.AtExpiresISO)
	assert.Equal(t, "2023-11-14T22:23:20Z", exp.RtExpiresISO)
}
