// Package categories provides lookup over the expense category reference data.
package categories

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cleared-dev/spend/internal/model"
)

// Service provides in-memory lookup over the categories.
type Service struct {
	categories []model.Category
	byID       map[int64]model.Category
	byName     map[string]model.Category
}

// NewService creates a Service from a slice of categories, in API order.
func NewService(categories []model.Category) *Service {
	byID := make(map[int64]model.Category, len(categories))
	byName := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
		byName[strings.ToLower(c.Name)] = c
	}
	return &Service{categories: categories, byID: byID, byName: byName}
}

// All returns all categories.
func (s *Service) All() []model.Category {
	return s.categories
}

// Get returns a category by ID.
func (s *Service) Get(id int64) (model.Category, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Exists reports whether a category ID exists.
func (s *Service) Exists(id int64) bool {
	_, ok := s.byID[id]
	return ok
}

// Name returns the category's name, or "#<id>" when it is unknown.
func (s *Service) Name(id int64) string {
	if c, ok := s.byID[id]; ok {
		return c.Name
	}
	return "#" + strconv.FormatInt(id, 10)
}

// First returns the first category, used as the form default.
func (s *Service) First() (model.Category, bool) {
	if len(s.categories) == 0 {
		return model.Category{}, false
	}
	return s.categories[0], true
}

// Resolve finds a category by numeric ID or case-insensitive name.
func (s *Service) Resolve(idOrName string) (model.Category, error) {
	key := strings.TrimSpace(idOrName)
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		if c, ok := s.byID[id]; ok {
			return c, nil
		}
		return model.Category{}, fmt.Errorf("category %d not found", id)
	}
	if c, ok := s.byName[strings.ToLower(key)]; ok {
		return c, nil
	}
	return model.Category{}, fmt.Errorf("category %q not found", key)
}
