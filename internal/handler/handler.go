package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	service "github.com/AgutuSam/houseTreePWA/internal/services"
	"github.com/AgutuSam/houseTreePWA/internal/watch"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/gorilla/mux"
)

type Handler struct {
	users      service.UserService
	properties service.PropertyService
	payments   service.PaymentService
	watcher    *watch.Manager
}

func NewHandler(users service.UserService, properties service.PropertyService, payments service.PaymentService, watcher *watch.Manager) *Handler {
	return &Handler{
		users:      users,
		properties: properties,
		payments:   payments,
		watcher:    watcher,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

// writeServiceError maps the service sentinels onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrNilProperty),
		errors.Is(err, pkgerrors.ErrNilTransaction):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, pkgerrors.ErrNotOwner), errors.Is(err, pkgerrors.ErrForbiddenRole):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrPropertyNotFound),
		errors.Is(err, pkgerrors.ErrPlanNotFound),
		errors.Is(err, pkgerrors.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrEmailExists), errors.Is(err, pkgerrors.ErrTransactionFinalized):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrGatewayUnavailable), errors.Is(err, pkgerrors.ErrGatewayRejected):
		h.writeError(w, http.StatusBadGateway, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// uid returns the authenticated user id placed in the context by the auth
// middleware.
func uid(r *http.Request) (string, bool) {
	id, ok := r.Context().Value("uid").(string)
	return id, ok && id != ""
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")

	r.HandleFunc("/properties", h.ListProperties).Methods("GET")
	r.HandleFunc("/properties/search", h.SearchProperties).Methods("GET")
	r.HandleFunc("/properties/featured", h.FeaturedProperties).Methods("GET")
	r.HandleFunc("/properties/stream", h.StreamProperties).Methods("GET")
	r.HandleFunc("/properties/{id}", h.GetProperty).Methods("GET")
	r.HandleFunc("/properties/{id}/view", h.RecordView).Methods("POST")
	r.HandleFunc("/images/{name:.+}", h.ServeImage).Methods("GET")

	r.HandleFunc("/plans", h.ListPlans).Methods("GET")
	r.HandleFunc("/payments/callback", h.PaymentCallback).Methods("POST")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetProfile).Methods("GET")
	r.HandleFunc("/me", h.UpdateProfile).Methods("PATCH")
	r.HandleFunc("/me/saved", h.ListSaved).Methods("GET")
	r.HandleFunc("/me/saved/stream", h.StreamSaved).Methods("GET")
	r.HandleFunc("/me/saved/{id}", h.SaveProperty).Methods("POST")
	r.HandleFunc("/me/saved/{id}", h.UnsaveProperty).Methods("DELETE")

	r.HandleFunc("/properties/{id}/inquiries", h.CreateInquiry).Methods("POST")

	r.HandleFunc("/subscriptions", h.PurchaseSubscription).Methods("POST")
	r.HandleFunc("/payments", h.PaymentHistory).Methods("GET")
	r.HandleFunc("/payments/status", h.PaymentStatus).Methods("POST")
	r.HandleFunc("/payments/{id}", h.GetTransaction).Methods("GET")
}

func (h *Handler) RegisterManagerRoutes(r *mux.Router) {
	r.HandleFunc("/properties", h.CreateProperty).Methods("POST")
	r.HandleFunc("/properties/{id}", h.UpdateProperty).Methods("PATCH")
	r.HandleFunc("/properties/{id}", h.DeleteProperty).Methods("DELETE")
	r.HandleFunc("/properties/{id}/images", h.UploadImage).Methods("POST")
	r.HandleFunc("/properties/{id}/images", h.DeleteImage).Methods("DELETE")
	r.HandleFunc("/properties/{id}/feature", h.PurchaseFeaturedListing).Methods("POST")
	r.HandleFunc("/my/properties", h.MyProperties).Methods("GET")
	r.HandleFunc("/my/inquiries", h.ListInquiries).Methods("GET")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		AsManager   bool   `json:"asManager"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password, req.DisplayName, req.AsManager)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	user, err := h.users.GetProfile(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
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
	if err := h.users.UpdateProfile(r.Context(), id, updates); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) SaveProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	propertyID := mux.Vars(r)["id"]
	if err := h.users.SaveProperty(r.Context(), id, propertyID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) UnsaveProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	propertyID := mux.Vars(r)["id"]
	if err := h.users.UnsaveProperty(r.Context(), id, propertyID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	ids, err := h.users.SavedPropertyIDs(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	properties := make([]models.Property, 0, len(ids))
	for _, propertyID := range ids {
		p, err := h.properties.Get(r.Context(), propertyID)
		if err != nil {
			// Saved ids can outlive the listing they point to.
			continue
		}
		properties = append(properties, *p)
	}
	h.writeJSON(w, http.StatusOK, properties)
}
