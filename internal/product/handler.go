package product

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"unimarket/internal/metrics"
	"unimarket/internal/middleware"
)

type Handler struct {
	Repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{Repo: repo}
}

// List is public. Optional query params: category, min_price, max_price.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f := Filter{Category: r.URL.Query().Get("category")}
	if v := r.URL.Query().Get("min_price"); v != "" {
		f.MinPrice, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.URL.Query().Get("max_price"); v != "" {
		f.MaxPrice, _ = strconv.ParseFloat(v, 64)
	}

	products, err := h.Repo.List(r.Context(), f)
	if err != nil {
		http.Error(w, "failed to fetch products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []*Product{}
	}

	json.NewEncoder(w).Encode(products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	p, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch product", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, _, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.Repo.Create(r.Context(), sellerID, &req)
	if err != nil {
		http.Error(w, "failed to create product", http.StatusInternalServerError)
		return
	}

	metrics.ProductsCreated.Inc()

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}
