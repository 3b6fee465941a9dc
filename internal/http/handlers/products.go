package handlers

import (
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/pribylovaa/go-online-store/internal/errors"
	"github.com/pribylovaa/go-online-store/internal/service"
	"github.com/pribylovaa/go-online-store/internal/storage"
)

type productRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Rating             float64  `json:"rating"`
	Stock              int64    `json:"stock"`
	Brand              string   `json:"brand"`
	Category           string   `json:"category"`
	Images             []string `json:"images"`
	Colors             []string `json:"colors"`
}

func (in productRequest) toInput() service.ProductInput {
	return service.ProductInput{
		Title:              in.Title,
		Description:        in.Description,
		Price:              in.Price,
		DiscountPercentage: in.DiscountPercentage,
		Rating:             in.Rating,
		Stock:              in.Stock,
		Brand:              in.Brand,
		Category:           in.Category,
		Images:             in.Images,
		Colors:             in.Colors,
	}
}

// ListProducts — публичный каталог. Параметры запроса совместимы
// с фронтом: _page, _limit, category, brand, _sort, _order
// (category/brand повторяемые).
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := storage.ListProductsParams{
		Page:       parseInt64(q.Get("_page"), 1),
		Limit:      parseInt64(q.Get("_limit"), 0),
		Categories: splitMulti(q["category"]),
		Brands:     splitMulti(q["brand"]),
		SortField:  q.Get("_sort"),
		SortOrder:  q.Get("_order"),
	}

	page, err := h.Service.ListProducts(r.Context(), params)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	product, err := h.Service.ProductByID(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.ListAllProducts(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	product, err := h.Service.CreateProduct(r.Context(), in.toInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in productRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	product, err := h.Service.UpdateProduct(r.Context(), id, in.toInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) ToggleProductActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	active, err := h.Service.ToggleProductActive(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"isActive": active})
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Service.DeleteProduct(r.Context(), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProductImagePresign выдаёт presigned PUT URL для загрузки изображения.
func (h *Handlers) ProductImagePresign(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ContentType   string `json:"contentType"`
		ContentLength int64  `json:"contentLength"`
	}
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	info, err := h.Service.ProductImageUploadURL(r.Context(), in.ContentType, in.ContentLength)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uploadUrl":       info.UploadURL,
		"key":             info.Key,
		"expiresSeconds":  int64(info.Expires.Seconds()),
		"requiredHeaders": info.RequiredHeader,
	})
}

// ProductImageConfirm подтверждает загрузку и прикрепляет изображение
// к товару.
func (h *Handlers) ProductImageConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in struct {
		Key string `json:"key"`
	}
	if err := decodeStrict(r, &in); err != nil || in.Key == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	product, err := h.Service.ConfirmProductImage(r.Context(), id, in.Key)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}

	return v
}

// splitMulti поддерживает оба формата: ?category=a&category=b
// и ?category=a,b.
func splitMulti(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}
