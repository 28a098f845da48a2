// Package auth provides authentication and authorization functionality for the application.
//
// Authentication is local only: username/password against the database with
// Argon2id password hashing, handled by LocalProvider.
//
// Authorization is a straightforward Role-Based Access Control (RBAC) model:
//   - Every user holds at most one role profile
//   - Role profiles carry a set of permissions
//   - Permissions are checked for resource access
//
// The Service type provides the permission checks:
//   - HasPermission: check if a user has a specific permission
//   - HasAnyPermission: check if a user has at least one permission from a list
//   - HasAllPermissions: check if a user has all permissions from a list
//   - GetUserPermissions: retrieve all permissions for a user
//
// Fiber middleware functions are provided for route protection:
//   - RequirePermission: protect routes requiring a specific permission
//   - RequireAnyPermission: protect routes requiring any of several permissions
//
// Example usage:
//
//	authService := auth.NewService(db)
//
//	hasPermission, err := authService.HasPermission(userID, auth.PermTrainingAssign)
//
//	app.Get("/api/admin/users",
//	    auth.RequirePermission(authService, auth.PermAdminUsers),
//	    handler,
//	)
package auth
