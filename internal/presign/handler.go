package presign

import (
	"log"
	"net/http"

	"github.com/tasti/api/internal/response"
)

// Handler serves presigned-url actions.
type Handler struct {
	broker *Broker
}

// NewHandler creates a new presign Handler.
func NewHandler(broker *Broker) *Handler {
	return &Handler{broker: broker}
}

// RequestBody is the JSON shape of an access request.
type RequestBody struct {
	Method     string `json:"method"               example:"PUT"`
	Key        string `json:"key,omitempty"        example:"recipes/desserts"`
	Filename   string `json:"filename,omitempty"   example:"photo.png"`
	Expiration *int   `json:"expiration,omitempty" example:"3600"`
}

// GrantBody is the JSON shape of a Grant.
type GrantBody struct {
	PresignedURL string `json:"presigned_url" example:"https://storage.example.com/tasti/recipes/...&X-Amz-Signature=..."`
	Key          string `json:"key"           example:"recipes/5b0f0c0e-8d56-4c1b-9d7e-2c8d9d3b8f61.png"`
	Method       string `json:"method"        example:"PUT"`
	ExpiresIn    int    `json:"expires_in"    example:"3600"`
}

// NewGrantBody converts a Grant for the wire.
func NewGrantBody(g *Grant) GrantBody {
	return GrantBody{
		PresignedURL: g.URL,
		Key:          g.Key,
		Method:       string(g.Method),
		ExpiresIn:    int(g.ExpiresIn.Seconds()),
	}
}

// Generate godoc
//
//	@Summary		Generate presigned URL
//	@Description	Issue a presigned GET, PUT or DELETE URL for a key in the recipes namespace. On PUT with a filename, a unique key is derived under the requested key; the response carries the resolved key.
//	@Tags			storage
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		RequestBody	true	"Access request"
//	@Success		200		{object}	response.Envelope{data=GrantBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/recipes/presigned-url [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	h.Respond(w, r, GenericPolicy)
}

// Respond decodes a presign request from r, applies policy, and writes the
// grant or the error. Callers do their own authorization first.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request, policy Policy) {
	var req RequestBody
	if err := response.Decode(w, r, &req, false); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	access := Request{Method: req.Method, Key: req.Key, Filename: req.Filename}
	// Method and key errors are reported before a bad expiration.
	if _, _, err := h.broker.Resolve(policy, access); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	expiration, err := ExpirationFromSeconds(req.Expiration)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	access.Expiration = expiration

	grant, err := h.broker.RequestAccess(r.Context(), policy, access)
	if IsValidation(err) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		log.Printf("presign: %s policy: %v", policy.Name, err)
		response.Error(w, http.StatusInternalServerError, "failed to generate presigned URL")
		return
	}

	log.Printf("presign: issued %s grant for %q (policy=%s)", grant.Method, grant.Key, policy.Name)
	response.OK(w, NewGrantBody(grant))
}
