// Package permission evaluates permission strings granted through roles
// and API tokens.
package permission

import "strings"

// Wildcard grants every permission
const Wildcard = "*"

const (
	PropertyView     = "property.view"
	WorkLogView      = "work_log.view"
	WorkLogUpdate    = "work_log.update"
	DocumentView     = "document.view"
	DocumentCreate   = "document.create"
	InvoiceView      = "invoice.view"
	ReportView       = "report.view"
	OrganizationView = "org.view"
	AuditView        = "audit.view"
)

// HasPermission reports whether required is granted exactly, by the global
// wildcard, or by a prefix wildcard such as "work_log.*". A "*" anywhere
// other than the end of a grant matches literally.
func HasPermission(granted []string, required string) bool {
	for _, p := range granted {
		if p == required || p == Wildcard {
			return true
		}
		if strings.HasSuffix(p, "*") && strings.HasPrefix(required, strings.TrimSuffix(p, "*")) {
			return true
		}
	}
	return false
}
