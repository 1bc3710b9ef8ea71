// Package reconcile contains the cross-system reconciliation core.
// It holds the pure logic shared by the three vendor integrations.
//
// Key concepts:
//   - Field mappers: pure translations of one system's entity shape into another's
//   - AddressPlan: minimal create/update/delete set for a company's CRM addresses
//   - ContactDiff: email-keyed add/update/delete partition of a contact sync
//   - CompanyKind: two-variant prospect/customer classification derived once at the boundary
//
// Nothing in this package performs I/O; the application layer orchestrates
// the vendor clients around these functions.
package reconcile
