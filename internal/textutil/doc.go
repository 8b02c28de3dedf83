// Package textutil holds the stateless string transforms used by the
// extractors: currency amounts, markup to markdown, and email addresses.
package textutil
