package auth

// Permission constants define the available permissions in the system.
// These are used for role-based access control (RBAC) to restrict access
// to specific resources and actions.
const (
	// PermDashboardView allows viewing the compliance dashboard.
	PermDashboardView = "dashboard.view"

	// PermDocumentManage allows creating, editing and retiring controlled documents.
	PermDocumentManage = "document.manage"
	// PermDocumentRead allows viewing controlled documents.
	PermDocumentRead = "document.read"

	// PermModuleManage allows managing training modules and their linked documents.
	PermModuleManage = "module.manage"

	// PermTrainingAssign allows changing a user's role and reconciling their assignments.
	PermTrainingAssign = "training.assign"
	// PermTrainingRecord allows recording training session outcomes.
	PermTrainingRecord = "training.record"

	// PermShiftManage allows managing shifts and shift assignments.
	PermShiftManage = "shift.manage"

	// PermAuditManage allows scheduling audits and raising issues from findings.
	PermAuditManage = "audit.manage"

	// PermAdminUsers allows managing user accounts.
	PermAdminUsers = "admin.users"
	// PermAdminRoles allows managing role profiles, their permissions and training templates.
	PermAdminRoles = "admin.roles"
)

// AllPermissions lists every permission known to the system. The seed routine
// uses it to make sure each one exists as a database row.
var AllPermissions = []string{
	PermDashboardView,
	PermDocumentManage,
	PermDocumentRead,
	PermModuleManage,
	PermTrainingAssign,
	PermTrainingRecord,
	PermShiftManage,
	PermAuditManage,
	PermAdminUsers,
	PermAdminRoles,
}
