package models

import (
	"time"

	"github.com/google/uuid"
)

// Product — товар каталога.
//
// DiscountPrice — производное поле: price * (1 - discountPercentage/100),
// округлённое до двух знаков; пересчитывается при создании и обновлении.
// Неактивный товар (IsActive=false) скрыт из публичного каталога,
// но виден администратору.
type Product struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Price              float64   `json:"price"`
	DiscountPercentage float64   `json:"discountPercentage"`
	DiscountPrice      float64   `json:"discountPrice"`
	Rating             float64   `json:"rating"`
	Stock              int64     `json:"stock"`
	Brand              string    `json:"brand"`
	Category           string    `json:"category"`
	Images             []string  `json:"images"`
	Colors             []string  `json:"colors,omitempty"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ProductPage — страница каталога с общим числом документов под фильтром.
type ProductPage struct {
	Data      []Product `json:"data"`
	TotalDocs int64     `json:"totalDocs"`
}
