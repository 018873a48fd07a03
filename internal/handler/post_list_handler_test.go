package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/postdesk/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPost(t *testing.T, env *testEnv, title, slug, searchable string, categoryID uint, published bool) db.Post {
	t.Helper()
	var author db.User
	require.NoError(t, env.gdb.Where("username = ?", "alice").First(&author).Error)

	post := db.Post{
		Title:           title,
		SearchableTitle: searchable,
		Slug:            slug,
		Content:         "<p>" + title + "</p>",
		Published:       published,
		AuthorID:        author.ID,
		CategoryID:      categoryID,
		Version:         1,
	}
	require.NoError(t, env.gdb.Create(&post).Error)
	return post
}

func slugsOf(t *testing.T, payload map[string]any) []string {
	t.Helper()
	var slugs []string
	for _, item := range payload["posts"].([]any) {
		slugs = append(slugs, item.(map[string]any)["slug"].(string))
	}
	return slugs
}

func TestListPosts(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "bob")

	other := db.Category{Name: "Food", Slug: "food"}
	require.NoError(t, env.gdb.Create(&other).Error)
	news := seedPost(t, env, "Quarterly Report", "quarterly-report", "quarterly report", env.category.ID, true)
	seedPost(t, env, "Crêpe Recipe", "crepe-recipe", "crepe recipe", other.ID, false)

	tag := db.Tag{Name: "finance", Slug: "finance"}
	require.NoError(t, env.gdb.Create(&tag).Error)
	require.NoError(t, env.gdb.Create(&db.PostTag{PostID: news.ID, TagID: tag.ID}).Error)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payload := decodeBody(t, w)
	assert.EqualValues(t, 2, payload["total"])
	assert.EqualValues(t, 10, payload["limit"])
	assert.Equal(t, []string{"crepe-recipe", "quarterly-report"}, slugsOf(t, payload))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts?category=food", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"crepe-recipe"}, slugsOf(t, decodeBody(t, w)))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts?tag=finance", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	payload = decodeBody(t, w)
	assert.Equal(t, []string{"quarterly-report"}, slugsOf(t, payload))
	assert.Len(t, payload["posts"].([]any)[0].(map[string]any)["tags"], 1)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts?published=true&limit=1", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"quarterly-report"}, slugsOf(t, decodeBody(t, w)))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts?limit=abc", nil), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchPosts(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t, "alice")

	seedPost(t, env, "Crêpe Recipe", "crepe-recipe", "crepe recipe", env.category.ID, true)
	seedPost(t, env, "Release Plan", "release-plan", "release plan", env.category.ID, false)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts/search?q="+url.QueryEscape("crepe"), nil), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payload := decodeBody(t, w)
	assert.Equal(t, "crepe", payload["query"])
	assert.EqualValues(t, 1, payload["total"])
	assert.Equal(t, []string{"crepe-recipe"}, slugsOf(t, payload))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts/search?q=plan", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"release-plan"}, slugsOf(t, decodeBody(t, w)))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts/search?q=", nil), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 静态路由不应被 :slug 吞掉
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/admin/api/posts/release-plan", nil), token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteCategoryReassignsPosts(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.login(t, "admin")
	alice := env.login(t, "alice")

	post := seedPost(t, env, "Launch", "launch", "launch", env.category.ID, true)
	target := "/admin/api/categories/" + strconv.Itoa(int(env.category.ID))

	assert.Equal(t, http.StatusForbidden, env.do(t, httptest.NewRequest(http.MethodDelete, target, nil), alice).Code)

	w := env.do(t, httptest.NewRequest(http.MethodDelete, target, nil), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decodeBody(t, w)["reassigned"])

	var stored db.Post
	require.NoError(t, env.gdb.Preload("Category").First(&stored, post.ID).Error)
	assert.Equal(t, "uncategorized", stored.Category.Slug)

	assert.Equal(t, http.StatusNotFound, env.do(t, httptest.NewRequest(http.MethodDelete, target, nil), admin).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, httptest.NewRequest(http.MethodDelete, "/admin/api/categories/abc", nil), admin).Code)

	fallback := "/admin/api/categories/" + strconv.Itoa(int(stored.CategoryID))
	assert.Equal(t, http.StatusBadRequest, env.do(t, httptest.NewRequest(http.MethodDelete, fallback, nil), admin).Code)
}
