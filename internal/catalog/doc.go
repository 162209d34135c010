// Package catalog serves the sign-language lesson videos shown on the
// learning page: searchable, filterable by category, and paged.
package catalog
