package service

import "fmt"

// CatalogError means the page listing failed and no graph can be built.
type CatalogError struct {
	DatabaseID string
	Err        error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("failed to load pages of database %s: %v", e.DatabaseID, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// PageContentFetchError is recorded when a single page's blocks cannot be
// listed. It is logged and counted, the page is treated as having no content.
type PageContentFetchError struct {
	PageID string
	Err    error
}

func (e *PageContentFetchError) Error() string {
	return fmt.Sprintf("failed to fetch content of page %s: %v", e.PageID, e.Err)
}

func (e *PageContentFetchError) Unwrap() error {
	return e.Err
}
