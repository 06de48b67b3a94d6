package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
	"github.com/gorilla/mux"
)

// parseFilter maps the listing query string onto a filter value.
func parseFilter(r *http.Request) models.PropertyFilter {
	q := r.URL.Query()
	f := models.PropertyFilter{
		Location: q.Get("location"),
		SortBy:   models.SortOrder(q.Get("sortBy")),
	}

	minPrice, _ := strconv.ParseInt(q.Get("minPrice"), 10, 64)
	maxPrice, _ := strconv.ParseInt(q.Get("maxPrice"), 10, 64)
	if minPrice > 0 || maxPrice > 0 {
		f.PriceRange = &models.PriceRange{Min: minPrice, Max: maxPrice}
	}

	if types := q.Get("types"); types != "" {
		f.PropertyTypes = strings.Split(types, ",")
	}
	f.Bedrooms, _ = strconv.Atoi(q.Get("bedrooms"))
	f.Bathrooms, _ = strconv.Atoi(q.Get("bathrooms"))

	if furnished := q.Get("furnished"); furnished != "" {
		v := furnished == "true"
		f.Furnished = &v
	}
	if from := q.Get("availableFrom"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			f.AvailableFrom = &t
		}
	}
	if amenities := q.Get("amenities"); amenities != "" {
		f.Amenities = strings.Split(amenities, ",")
	}
	return f
}

// Cursors travel as base64 JSON. Timestamps round-trip through RFC 3339
// strings, so a decoded string sort value is re-parsed as a time before it
// reaches the datastore.
func encodeCursor(c *query.Cursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(raw string) *query.Cursor {
	if raw == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var c query.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	if s, ok := c.SortValue.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			c.SortValue = t
		}
	}
	return &c
}

func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cursor := decodeCursor(r.URL.Query().Get("cursor"))

	page, err := h.properties.List(r.Context(), filter, limit, cursor)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := struct {
		Properties []models.Property `json:"properties"`
		NextCursor string            `json:"nextCursor,omitempty"`
	}{Properties: page.Properties}
	if page.NextCursor != nil {
		resp.NextCursor = encodeCursor(page.NextCursor)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SearchProperties(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.properties.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) FeaturedProperties(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.properties.Featured(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	property, err := h.properties.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, property)
}

func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	if err := h.properties.RecordView(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *Handler) CreateInquiry(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	inq, err := h.properties.CreateInquiry(r.Context(), id, mux.Vars(r)["id"], req.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, inq)
}

func (h *Handler) ListInquiries(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	inqs, err := h.properties.ListInquiries(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inqs)
}

func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	var property models.Property
	if err := json.NewDecoder(r.Body).Decode(&property); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.properties.Create(r.Context(), id, &property)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.properties.Update(r.Context(), id, mux.Vars(r)["id"], updates); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	if err := h.properties.Delete(r.Context(), id, mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) MyProperties(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	properties, err := h.properties.ListByOwner(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, properties)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	index, _ := strconv.Atoi(r.URL.Query().Get("index"))

	// Multipart "image" part when present, raw body otherwise.
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		defer file.Close()
		src = file
	}

	name, err := h.properties.UploadImage(r.Context(), id, mux.Vars(r)["id"], index, src)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if err := h.properties.DeleteImage(r.Context(), id, mux.Vars(r)["id"], name); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	rc, err := h.properties.OpenImage(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	io.Copy(w, rc)
}
