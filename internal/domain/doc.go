// Package domain defines the core business types for the newsletter
// onboarding workflow.
//
// Types in this package are value objects with no database dependencies and
// no HTTP concerns. They are the shared language between handlers, services,
// and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Parse functions are the only way to obtain a valid SubscriberName or
//     SubscriberEmail; their fields are unexported so callers cannot build
//     one that skipped validation
//   - Constants and enums belong here
package domain
