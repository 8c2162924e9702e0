package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

func TestSelfProfile_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSelfProfile_GetBootstrapsDefaults(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)

	w := env.do(t, http.MethodGet, "/v1/profile", env.token(t, u.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := decode[profile.ProfileView](t, w)
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Len(t, view.Sections, 6)
}

func TestSelfProfile_UpdateFields(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)
	token := env.token(t, u.ID)

	w := env.do(t, http.MethodPatch, "/v1/profile", token, map[string]any{"bio": "hello", "website": "https://alice.example"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[profile.ProfileView](t, w)
	assert.Equal(t, "hello", view.Bio)
	assert.Equal(t, "https://alice.example", view.Website)

	w = env.do(t, http.MethodPatch, "/v1/profile", token, map[string]any{"website": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"website must be a valid URL"}`, w.Body.String())
}

func TestUpdateComplete_JSON(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)

	w := env.do(t, http.MethodPut, "/v1/profile/update-complete", env.token(t, u.ID), map[string]any{
		"bio":      "about me",
		"sections": []map[string]any{{"title": "Only", "content": "one"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := decode[profile.ProfileView](t, w)
	assert.Equal(t, "about me", view.Bio)
	require.Len(t, view.Sections, 1)
	assert.Equal(t, "Only", view.Sections[0].Title)
	assert.NotEmpty(t, view.Sections[0].ID)
}

func TestDisplayImage_UploadAndDelete(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)
	token := env.token(t, u.ID)

	w := env.upload(t, http.MethodPost, "/v1/profile/image", token, "image", 1)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[profile.ProfileView](t, w).Image)
	assert.Equal(t, 1, env.store.count())

	w = env.do(t, http.MethodDelete, "/v1/profile/image", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Profile image deleted successfully"}`, w.Body.String())
	assert.Zero(t, env.store.count())

	w = env.do(t, http.MethodDelete, "/v1/profile/image", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No profile image to delete"}`, w.Body.String())
}

func TestPublicProfile(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", false)

	w := env.do(t, http.MethodGet, "/v1/profiles/alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "alice@example.com")
	assert.Len(t, decode[profile.ProfileView](t, w).Sections, 6)

	w = env.do(t, http.MethodGet, "/v1/profiles/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminProfile_Authorization(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "root", true)
	user := env.createUser(t, "alice", false)

	// 普通用户访问 admin 路由
	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/users/%d/profile", admin.ID), env.token(t, user.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"admin privileges required"}`, w.Body.String())

	adminToken := env.token(t, admin.ID)
	w = env.do(t, http.MethodGet, "/v1/admin/users/999/profile", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/users/%d/profile", user.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, user.ID, decode[profile.ProfileView](t, w).UserID)
}

func TestAdminProfile_EditsTargetUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "root", true)
	user := env.createUser(t, "alice", false)
	base := fmt.Sprintf("/v1/admin/users/%d/profile", user.ID)

	w := env.do(t, http.MethodPost, base+"/sections", env.token(t, admin.ID), map[string]string{"title": "Notes", "content": "by admin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	sections := env.sections(t, "/v1/profile/sections", env.token(t, user.ID))
	require.Len(t, sections, 7)
	assert.Equal(t, "Notes", sections[6].Title)

	var adminProfile database.Profile
	err := env.db.Where("user_id = ?", admin.ID).First(&adminProfile).Error
	assert.Error(t, err, "admin's own profile must not be touched")
}
