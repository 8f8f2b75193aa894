package access

import (
	"testing"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(public bool, entries ...models.AccessEntry) *models.File {
	return &models.File{ID: "f1", OwnerID: "owner", IsPublic: public, AccessList: entries}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		identity models.Identity
		file     *models.File
		want     models.AccessLevel
		wantErr  error
	}{
		{name: "owner", identity: models.Identity{UserID: "owner"}, file: file(false), want: models.AccessWrite},
		{name: "anonymous on private", identity: models.Identity{}, file: file(false), wantErr: common.ErrorForbidden},
		{name: "anonymous on public", identity: models.Identity{}, file: file(true), want: models.AccessRead},
		{name: "anonymous never matches acl", identity: models.Identity{},
			file: file(false, models.AccessEntry{Kind: models.KindEmail, Value: "", Level: models.AccessRead}), wantErr: common.ErrorForbidden},
		{name: "acl by email", identity: models.Identity{UserID: "u2", Email: "b@x.io"},
			file: file(false, models.AccessEntry{Kind: models.KindEmail, Value: "b@x.io", Level: models.AccessRead}), want: models.AccessRead},
		{name: "acl by provider id write", identity: models.Identity{ProviderID: "gh-7"},
			file: file(false, models.AccessEntry{Kind: models.KindProviderID, Value: "gh-7", Level: models.AccessWrite}), want: models.AccessWrite},
		{name: "public plus acl write", identity: models.Identity{UserID: "u3"},
			file: file(true, models.AccessEntry{Kind: models.KindUserID, Value: "u3", Level: models.AccessWrite}), want: models.AccessWrite},
		{name: "best entry wins", identity: models.Identity{UserID: "u3", Email: "c@x.io"},
			file: file(false,
				models.AccessEntry{Kind: models.KindUserID, Value: "u3", Level: models.AccessRead},
				models.AccessEntry{Kind: models.KindEmail, Value: "c@x.io", Level: models.AccessWrite},
			), want: models.AccessWrite},
		{name: "stranger", identity: models.Identity{UserID: "zed"},
			file: file(false, models.AccessEntry{Kind: models.KindUserID, Value: "u3", Level: models.AccessRead}), wantErr: common.ErrorForbidden},
		{name: "nil file", identity: models.Identity{UserID: "owner"}, file: nil, wantErr: common.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.identity, tt.file)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequire(t *testing.T) {
	f := file(true)
	assert.NoError(t, Require(models.Identity{}, f, models.AccessRead))
	assert.ErrorIs(t, Require(models.Identity{}, f, models.AccessWrite), common.ErrorForbidden)
	assert.NoError(t, Require(models.Identity{UserID: "owner"}, f, models.AccessWrite))
}

func TestIsOwner(t *testing.T) {
	assert.True(t, IsOwner(models.Identity{UserID: "owner"}, file(false)))
	assert.False(t, IsOwner(models.Identity{}, &models.File{}))
	assert.False(t, IsOwner(models.Identity{UserID: "owner"}, nil))
}
