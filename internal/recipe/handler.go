package recipe

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/tasti/api/internal/middleware"
	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/response"
)

const maxTitleLength = 255

var validDifficulties = map[string]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// Handler holds HTTP handlers for recipe endpoints.
type Handler struct {
	svc       *Service
	presigner *presign.Handler
}

// NewHandler creates a new recipe Handler.
func NewHandler(svc *Service, presigner *presign.Handler) *Handler {
	return &Handler{svc: svc, presigner: presigner}
}

// Routes mounts the recipe endpoints. Reads are public; requireAuth guards
// every mutation.
func (h *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.Create)
		r.Post("/presigned-url", h.presigner.Generate)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Patch("/{id}/image", h.UpdateImage)
		r.Delete("/{id}/image", h.ClearImage)
		r.Post("/{id}/image/presigned-url", h.PresignImage)
	})
	return r
}

type createRequest struct {
	Title               string   `json:"title"                           example:"Shakshuka"`
	Description         string   `json:"description"                     example:"Eggs poached in tomato sauce."`
	Duration            *int     `json:"duration,omitempty"              example:"1800"`
	Difficulty          string   `json:"difficulty,omitempty"            example:"medium"`
	Steps               []string `json:"steps,omitempty"`
	RequestPresignedURL bool     `json:"request_presigned_url,omitempty" example:"true"`
	ImageFilename       string   `json:"image_filename,omitempty"        example:"shakshuka.png"`
}

type updateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Duration    *int      `json:"duration,omitempty"`
	Difficulty  *string   `json:"difficulty,omitempty"`
	Steps       *[]string `json:"steps,omitempty"`
}

type imageRequest struct {
	ImageBucketKey *string `json:"image_bucket_key,omitempty" example:"recipes/5b0f0c0e-8d56-4c1b-9d7e-2c8d9d3b8f61.png"`
}

type recipeBody struct {
	*Recipe
	HasImage bool   `json:"has_image"`
	ImageURL string `json:"image_url,omitempty"`
}

type createdBody struct {
	recipeBody
	PresignedUploadURL string `json:"presigned_upload_url,omitempty"`
	ImageUploadKey     string `json:"image_upload_key,omitempty"`
}

func (h *Handler) body(r *http.Request, rec *Recipe) recipeBody {
	return recipeBody{Recipe: rec, HasImage: rec.HasImage(), ImageURL: h.svc.ImageURL(r.Context(), rec)}
}

// List godoc
//
//	@Summary		List recipes
//	@Description	Returns recipes newest first. Each recipe with an image carries a short-lived download URL.
//	@Tags			recipes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size (1-100, default 20)"
//	@Param			offset	query		int		false	"Offset"
//	@Param			owner	query		string	false	"Owner user ID"
//	@Success		200		{object}	response.Envelope{data=[]recipeBody}
//	@Failure		500		{object}	response.Envelope
//	@Router			/recipes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	recipes, err := h.svc.List(r.Context(), ListParams{OwnerID: q.Get("owner"), Limit: limit, Offset: offset})
	if err != nil {
		response.InternalError(w)
		return
	}

	out := make([]recipeBody, len(recipes))
	for i := range recipes {
		out[i] = h.body(r, &recipes[i])
	}
	response.OK(w, out)
}

// Get godoc
//
//	@Summary		Get recipe
//	@Tags			recipes
//	@Produce		json
//	@Param			id	path		string	true	"Recipe ID"
//	@Success		200	{object}	response.Envelope{data=recipeBody}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/recipes/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "recipe not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, h.body(r, rec))
}

// Create godoc
//
//	@Summary		Create recipe
//	@Description	Create a recipe owned by the caller. With request_presigned_url, the response also carries a PUT URL and the key to upload the image to; attach it afterwards with PATCH /recipes/{id}/image.
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createRequest	true	"Recipe"
//	@Success		201		{object}	response.Envelope{data=createdBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/recipes [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createRequest
	if err := response.Decode(w, r, &req, false); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	var difficulty *string
	if req.Difficulty != "" {
		difficulty = &req.Difficulty
	}
	if msg := validate(&req.Title, difficulty, req.Duration, true); msg != "" {
		response.BadRequest(w, msg)
		return
	}

	params := CreateParams{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Steps:       req.Steps,
	}
	if req.Duration != nil {
		params.Duration = *req.Duration
	}

	if !req.RequestPresignedURL {
		rec, err := h.svc.Create(r.Context(), params)
		if err != nil {
			response.InternalError(w)
			return
		}
		response.Created(w, createdBody{recipeBody: h.body(r, rec)})
		return
	}

	rec, grant, err := h.svc.CreateWithUpload(r.Context(), params, req.ImageFilename)
	if err != nil {
		response.InternalError(w)
		return
	}
	out := createdBody{recipeBody: h.body(r, rec)}
	if grant != nil {
		out.PresignedUploadURL = grant.URL
		out.ImageUploadKey = grant.Key
	}
	response.Created(w, out)
}

// Update godoc
//
//	@Summary		Update recipe
//	@Description	Partially update a recipe's fields. Owner only. The image is changed through /recipes/{id}/image.
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string			true	"Recipe ID"
//	@Param			request	body		updateRequest	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=recipeBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/recipes/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := response.Decode(w, r, &req, false); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if msg := validate(req.Title, req.Difficulty, req.Duration, false); msg != "" {
		response.BadRequest(w, msg)
		return
	}

	updated, err := h.svc.Update(r.Context(), rec.ID, UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
		Difficulty:  req.Difficulty,
		Steps:       req.Steps,
	})
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "recipe not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, h.body(r, updated))
}

// Delete godoc
//
//	@Summary		Delete recipe
//	@Description	Delete a recipe and its stored image. Owner only.
//	@Tags			recipes
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Recipe ID"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/recipes/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Delete(r.Context(), rec); err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "recipe not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// UpdateImage godoc
//
//	@Summary		Set or clear recipe image
//	@Description	Attach an uploaded object to the recipe by its key, deleting the previous image. An absent or blank key clears the image. Owner only.
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string			true	"Recipe ID"
//	@Param			request	body		imageRequest	true	"Image key"
//	@Success		200		{object}	response.Envelope{data=recipeBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/recipes/{id}/image [patch]
func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req imageRequest
	if err := response.Decode(w, r, &req, true); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	var err error
	if req.ImageBucketKey == nil || strings.TrimSpace(*req.ImageBucketKey) == "" {
		_, err = h.svc.ClearImage(r.Context(), rec)
	} else {
		_, err = h.svc.SetImage(r.Context(), rec, *req.ImageBucketKey)
	}
	h.writeImageResult(w, r, rec, err)
}

// ClearImage godoc
//
//	@Summary		Clear recipe image
//	@Description	Detach and delete the recipe's image. Owner only.
//	@Tags			recipes
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Recipe ID"
//	@Success		200	{object}	response.Envelope{data=recipeBody}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/recipes/{id}/image [delete]
func (h *Handler) ClearImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	_, err := h.svc.ClearImage(r.Context(), rec)
	h.writeImageResult(w, r, rec, err)
}

// PresignImage godoc
//
//	@Summary		Presigned URL for a recipe image
//	@Description	Issue a presigned GET or PUT URL in the recipes namespace. DELETE is not accepted here. Owner only.
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string							true	"Recipe ID"
//	@Param			request	body		presign.RequestBody				true	"Access request"
//	@Success		200		{object}	response.Envelope{data=presign.GrantBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/recipes/{id}/image/presigned-url [post]
func (h *Handler) PresignImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.loadOwned(w, r); !ok {
		return
	}
	h.presigner.Respond(w, r, presign.RecipePolicy)
}

// writeImageResult reports an image mutation. Cleanup failures are already
// logged by the service and never reach the client.
func (h *Handler) writeImageResult(w http.ResponseWriter, r *http.Request, rec *Recipe, err error) {
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "recipe not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, h.body(r, rec))
}

// loadOwned fetches the recipe in the URL and checks the caller owns it.
// It writes the error response itself and returns false on failure.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*Recipe, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return nil, false
	}

	rec, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "recipe not found")
			return nil, false
		}
		response.InternalError(w)
		return nil, false
	}

	if rec.OwnerID != userID {
		response.Forbidden(w, "only the owner can modify this recipe")
		return nil, false
	}
	return rec, true
}

// validate checks recipe fields; nil fields are skipped unless required.
// It returns a client-facing message, or "" when the input is valid.
func validate(title, difficulty *string, duration *int, titleRequired bool) string {
	if title != nil {
		if *title == "" {
			return "title is required"
		}
		if utf8.RuneCountInString(*title) > maxTitleLength {
			return "title must be at most 255 characters"
		}
	} else if titleRequired {
		return "title is required"
	}
	if difficulty != nil && !validDifficulties[*difficulty] {
		return "difficulty must be one of: easy, medium, hard"
	}
	if duration != nil && *duration < 0 {
		return "duration must not be negative"
	}
	return ""
}
