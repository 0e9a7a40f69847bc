// Package catalog validates media URLs and normalizes raw format lists
// into the selection options presented to users.
package catalog
