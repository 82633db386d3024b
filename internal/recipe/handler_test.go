package recipe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasti/api/internal/middleware"
	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/response"
	"github.com/tasti/api/internal/storage/storagetest"
)

// testAuth authenticates requests carrying an X-Test-User header.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Test-User")
		if userID == "" {
			response.Unauthorized(w, "authorization header required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID)))
	})
}

type testAPI struct {
	router http.Handler
	store  *memStore
	gw     *storagetest.Gateway
}

func newTestAPI() *testAPI {
	store := newMemStore()
	gw := storagetest.New()
	broker := presign.NewBroker(gw, 0)
	h := NewHandler(NewService(store, gw, broker), presign.NewHandler(broker))

	r := chi.NewRouter()
	r.Mount("/recipes", h.Routes(testAuth))
	return &testAPI{router: r, store: store, gw: gw}
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestHandler_CreateRequiresAuth(t *testing.T) {
	api := newTestAPI()
	rec, _ := api.do(t, http.MethodPost, "/recipes", "", `{"title":"Soup"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_CreateValidation(t *testing.T) {
	api := newTestAPI()
	cases := map[string]string{
		"no title":       `{"description":"x"}`,
		"blank title":    `{"title":"   "}`,
		"long title":     `{"title":"` + strings.Repeat("a", 256) + `"}`,
		"bad difficulty": `{"title":"Soup","difficulty":"extreme"}`,
		"neg duration":   `{"title":"Soup","duration":-5}`,
		"malformed":      `{"title":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, env := api.do(t, http.MethodPost, "/recipes", "u1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestHandler_CreateWithPresignedUpload(t *testing.T) {
	api := newTestAPI()

	rec, env := api.do(t, http.MethodPost, "/recipes", "u1",
		`{"title":"Soup","description":"Hot","difficulty":"medium","steps":["boil"],"request_presigned_url":true,"image_filename":"soup.png"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		ID                 string  `json:"id"`
		OwnerID            string  `json:"owner_id"`
		Difficulty         string  `json:"difficulty"`
		HasImage           bool    `json:"has_image"`
		ImageKey           *string `json:"image_bucket_key"`
		PresignedUploadURL string  `json:"presigned_upload_url"`
		ImageUploadKey     string  `json:"image_upload_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "u1", body.OwnerID)
	assert.Equal(t, "medium", body.Difficulty)
	assert.False(t, body.HasImage)
	assert.Nil(t, body.ImageKey)
	assert.True(t, strings.HasPrefix(body.ImageUploadKey, "recipes/"))
	assert.True(t, strings.HasSuffix(body.ImageUploadKey, ".png"))
	assert.Contains(t, body.PresignedUploadURL, body.ImageUploadKey)

	// Confirm the upload.
	rec, env = api.do(t, http.MethodPatch, "/recipes/"+body.ID+"/image", "u1",
		`{"image_bucket_key":"`+body.ImageUploadKey+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		HasImage bool   `json:"has_image"`
		ImageKey string `json:"image_bucket_key"`
		ImageURL string `json:"image_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.True(t, updated.HasImage)
	assert.Equal(t, body.ImageUploadKey, updated.ImageKey)
	assert.Contains(t, updated.ImageURL, "method=GET")
}

func TestHandler_CreateWithoutPresignOmitsUploadFields(t *testing.T) {
	api := newTestAPI()
	rec, env := api.do(t, http.MethodPost, "/recipes", "u1", `{"title":"Soup"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, string(env.Data), "presigned_upload_url")
	assert.Empty(t, api.gw.PresignCalls())
}

func TestHandler_PublicReads(t *testing.T) {
	api := newTestAPI()
	r := api.store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	rec, env := api.do(t, http.MethodGet, "/recipes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0]["has_image"])

	rec, _ = api.do(t, http.MethodGet, "/recipes/"+r.ID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/recipes/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_MutationsAreOwnerOnly(t *testing.T) {
	api := newTestAPI()
	r := api.store.add("owner", "Soup", strptr("recipes/abc.jpg"))
	base := "/recipes/" + r.ID

	requests := []struct{ method, path, body string }{
		{http.MethodPatch, base, `{"title":"Mine now"}`},
		{http.MethodDelete, base, ""},
		{http.MethodPatch, base + "/image", `{"image_bucket_key":"recipes/evil.jpg"}`},
		{http.MethodDelete, base + "/image", ""},
		{http.MethodPost, base + "/image/presigned-url", `{"method":"PUT","filename":"x.png"}`},
	}
	for _, req := range requests {
		rec, _ := api.do(t, req.method, req.path, "intruder", req.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", req.method, req.path)
	}

	stored, ok := api.store.get(r.ID)
	require.True(t, ok)
	assert.Equal(t, "Soup", stored.Title)
	assert.Equal(t, "recipes/abc.jpg", *stored.ImageKey)
	assert.Empty(t, api.gw.DeleteCalls())
	assert.Empty(t, api.gw.PresignCalls())
}

func TestHandler_UpdateFields(t *testing.T) {
	api := newTestAPI()
	r := api.store.add("u1", "Soup", nil)

	rec, env := api.do(t, http.MethodPatch, "/recipes/"+r.ID, "u1", `{"title":" Stew ","difficulty":"hard","steps":["a","b"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body Recipe
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "Stew", body.Title)
	assert.Equal(t, "hard", body.Difficulty)
	assert.Equal(t, []string{"a", "b"}, body.Steps)

	rec, _ = api.do(t, http.MethodPatch, "/recipes/"+r.ID, "u1", `{"difficulty":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdateImageBlankOrAbsentClears(t *testing.T) {
	for name, body := range map[string]string{
		"absent":     `{}`,
		"empty":      `{"image_bucket_key":""}`,
		"whitespace": `{"image_bucket_key":"  \t "}`,
		"null":       `{"image_bucket_key":null}`,
		"no body":    "",
	} {
		t.Run(name, func(t *testing.T) {
			api := newTestAPI()
			r := api.store.add("u1", "Soup", strptr("recipes/abc.jpg"))

			rec, _ := api.do(t, http.MethodPatch, "/recipes/"+r.ID+"/image", "u1", body)
			require.Equal(t, http.StatusOK, rec.Code)

			stored, _ := api.store.get(r.ID)
			assert.Nil(t, stored.ImageKey)
			assert.Equal(t, []string{"recipes/abc.jpg"}, api.gw.DeleteCalls())
		})
	}
}

func TestHandler_UpdateImageHidesCleanupFailure(t *testing.T) {
	api := newTestAPI()
	api.gw.DeleteErr = errBackendDown
	r := api.store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	rec, env := api.do(t, http.MethodPatch, "/recipes/"+r.ID+"/image", "u1", `{"image_bucket_key":"recipes/def.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	stored, _ := api.store.get(r.ID)
	assert.Equal(t, "recipes/def.jpg", *stored.ImageKey)
}

func TestHandler_ClearImage(t *testing.T) {
	api := newTestAPI()
	r := api.store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	rec, _ := api.do(t, http.MethodDelete, "/recipes/"+r.ID+"/image", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stored, _ := api.store.get(r.ID)
	assert.Nil(t, stored.ImageKey)
}

func TestHandler_DeleteCascades(t *testing.T) {
	api := newTestAPI()
	api.gw.DeleteErr = errBackendDown
	r := api.store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	rec, _ := api.do(t, http.MethodDelete, "/recipes/"+r.ID, "u1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, exists := api.store.get(r.ID)
	assert.False(t, exists)
	assert.Equal(t, []string{"recipes/abc.jpg"}, api.gw.DeleteCalls())

	rec, _ = api.do(t, http.MethodDelete, "/recipes/"+r.ID, "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PresignPolicies(t *testing.T) {
	api := newTestAPI()
	r := api.store.add("u1", "Soup", nil)

	rec, env := api.do(t, http.MethodPost, "/recipes/"+r.ID+"/image/presigned-url", "u1", `{"method":"DELETE","key":"abc.jpg"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "GET, PUT")

	rec, env = api.do(t, http.MethodPost, "/recipes/presigned-url", "u1", `{"method":"DELETE","key":"abc.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var grant presign.GrantBody
	require.NoError(t, json.Unmarshal(env.Data, &grant))
	assert.Equal(t, "DELETE", grant.Method)
	assert.Equal(t, "recipes/abc.jpg", grant.Key)

	rec, env = api.do(t, http.MethodPost, "/recipes/"+r.ID+"/image/presigned-url", "u1", `{"method":"put","filename":"photo.png"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &grant))
	assert.Equal(t, "PUT", grant.Method)
	assert.Regexp(t, `^recipes/[0-9a-f-]{36}\.png$`, grant.Key)

	rec, _ = api.do(t, http.MethodPost, "/recipes/presigned-url", "", `{"method":"GET","key":"abc.jpg"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
