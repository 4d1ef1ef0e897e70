package common

import (
	"math"

	"gorm.io/gorm"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type PaginationResult struct {
	Message     string      `json:"message"`
	Data        interface{} `json:"data"`
	Count       int64       `json:"count"`
	CurrentPage int         `json:"currentPage"`
	NextPage    int         `json:"nextPage"`
	PrevPage    int         `json:"prevPage"`
	LastPage    int         `json:"lastPage"`
}

// NormalizePage clamps page/per_page query values and returns the row offset.
func NormalizePage(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

// PaginateResponse wraps one page of results. An empty message defaults to "success".
func PaginateResponse(data interface{}, total int64, page int, limit int, message string) PaginationResult {
	if message == "" {
		message = "success"
	}

	lastPage := 0
	if limit > 0 {
		lastPage = int(math.Ceil(float64(total) / float64(limit)))
	}

	nextPage := page + 1
	if nextPage > lastPage {
		nextPage = 0
	}

	prevPage := page - 1
	if prevPage < 1 {
		prevPage = 0
	}

	return PaginationResult{
		Message:     message,
		Data:        data,
		Count:       total,
		CurrentPage: page,
		NextPage:    nextPage,
		PrevPage:    prevPage,
		LastPage:    lastPage,
	}
}

// Paginate counts the rows matched by query and loads one page of them in
// the given order.
func Paginate[T any](query *gorm.DB, page, perPage int, order, message string) (PaginationResult, error) {
	page, perPage, offset := NormalizePage(page, perPage)
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PaginationResult{}, err
	}

	list := []T{}
	if err := query.Order(order).Limit(perPage).Offset(offset).Find(&list).Error; err != nil {
		return PaginationResult{}, err
	}
	return PaginateResponse(list, total, page, perPage, message), nil
}
