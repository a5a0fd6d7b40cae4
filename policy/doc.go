// Package policy provides permission policies that can replace the
// engine's default admin-only rule.
//
// [Matrix] grants permissions per role from a YAML document. [Rego]
// evaluates an Open Policy Agent module in-process. Both implement
// [authgate.PermissionPolicy] and perform no I/O after construction.
package policy
