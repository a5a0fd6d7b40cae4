// Package internaldefs holds the metric names and bucket layout shared by
// the exporters.
package internaldefs
