// Package main provides the entry point for the CompliTrack compliance and
// training management application. It runs a JSON API server using the Fiber
// framework through which an organization manages controlled documents,
// training modules, role profiles, shifts and audits, and tracks which
// training items are assigned to and completed by each user. The application
// uses gorm for data persistence against a PostgreSQL database.
package main
