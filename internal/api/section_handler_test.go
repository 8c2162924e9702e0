package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

func TestSectionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)
	token := env.token(t, u.ID)

	w := env.do(t, http.MethodPost, "/v1/profile/sections", token, map[string]string{"title": "Travels", "content": "Lisbon"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[database.Section](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, []database.SectionImageRef{}, created.Images)

	w = env.do(t, http.MethodPatch, "/v1/profile/sections/"+created.ID, token, map[string]string{"title": "Trips"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[database.Section](t, w)
	assert.Equal(t, "Trips", updated.Title)
	assert.Equal(t, "Lisbon", updated.Content)

	w = env.do(t, http.MethodGet, "/v1/profile/sections/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Trips", decode[database.Section](t, w).Title)

	w = env.do(t, http.MethodDelete, "/v1/profile/sections/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Section deleted successfully"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/v1/profile/sections/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Section not found"}`, w.Body.String())
}

func TestAddSection_RequiresTitleAndContent(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)

	w := env.do(t, http.MethodPost, "/v1/profile/sections", env.token(t, u.ID), map[string]string{"title": "Only title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"title and content are required"}`, w.Body.String())
}

func TestReorderSections(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)
	token := env.token(t, u.ID)
	before := env.sections(t, "/v1/profile/sections", token)

	w := env.do(t, http.MethodPost, "/v1/profile/sections/reorder", token, map[string]any{"section_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"section_ids array is required"}`, w.Body.String())

	last := before[len(before)-1].ID
	w = env.do(t, http.MethodPut, "/v1/profile/sections/reorder", token, map[string]any{"section_ids": []string{last, "unknown"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[sectionsBody](t, w)
	assert.NotEmpty(t, body.Message)
	require.Len(t, body.Sections, len(before))
	assert.Equal(t, last, body.Sections[0].ID)
	assert.Equal(t, before[0].ID, body.Sections[1].ID)
}

func TestResetSections(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", false)
	token := env.token(t, u.ID)

	w := env.do(t, http.MethodPost, "/v1/profile/sections", token, map[string]string{"title": "Extra", "content": "x"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/v1/profile/sections/reset-default", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[sectionsBody](t, w)
	assert.NotEmpty(t, body.Message)
	assert.Len(t, body.Sections, 6)
}
