// Package query builds request bodies in the catalog API query language.
//
// A body is a list of clauses separated by newlines:
//
//	where rating_count > 5;
//	fields name,cover.image_id;
//	limit 10;
//	offset 20;
//
// The filter comes first, then the field projection, then pagination.
package query

import (
	"fmt"
	"strings"

	"github.com/erauner12/gamesdb/internal/catalog"
)

// PageRequest describes one request against a catalog entity
type PageRequest struct {
	Entity catalog.Entity
	Fields []string // defaults to the entity's field projection
	Filter string   // full clause, e.g. "where logo != null"
	Search string   // free text search term, optional
	Limit  int      // 0 disables pagination clauses
	Offset int
}

// ForPage returns a request for the 1-based page of the entity's list view.
// page < 1 returns an unpaginated request.
func ForPage(entity catalog.Entity, pageSize, page int) PageRequest {
	req := PageRequest{Entity: entity, Filter: entity.DefaultFilter}
	if page >= 1 && pageSize > 0 {
		req.Limit = pageSize
		req.Offset = pageSize * (page - 1)
	}
	return req
}

// Validate reports requests the API would reject
func (r PageRequest) Validate() error {
	if r.Entity.Path == "" {
		return fmt.Errorf("query: missing entity")
	}
	if len(r.fields()) == 0 {
		return fmt.Errorf("query: no fields for %s", r.Entity.Name)
	}
	if r.Limit < 0 || r.Offset < 0 {
		return fmt.Errorf("query: negative limit or offset")
	}
	if r.Limit == 0 && r.Offset > 0 {
		return fmt.Errorf("query: offset without limit")
	}
	if strings.Contains(r.filterClause(), ";") {
		return fmt.Errorf("query: filter must be a single clause")
	}
	return nil
}

// Build renders the request body
func (r PageRequest) Build() string {
	var clauses []string

	if search := Search(r.Search); search != "" {
		clauses = append(clauses, search)
	}
	if filter := r.filterClause(); filter != "" {
		clauses = append(clauses, filter+";")
	}
	clauses = append(clauses, "fields "+strings.Join(r.fields(), ",")+";")
	if r.Limit > 0 {
		clauses = append(clauses, fmt.Sprintf("limit %d;", r.Limit))
		clauses = append(clauses, fmt.Sprintf("offset %d;", r.Offset))
	}

	return strings.Join(clauses, "\n")
}

// filterClause is the filter without its terminating ";"
func (r PageRequest) filterClause() string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.Filter), ";"))
}

func (r PageRequest) fields() []string {
	if len(r.Fields) > 0 {
		return r.Fields
	}
	return r.Entity.Fields
}
