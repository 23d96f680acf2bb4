package domain

// SubjectID is the authenticated subject extracted from bearer token claims (typically "sub").
// For this service the subject is the caller's UserID.
type SubjectID string

// UserID is an internal identifier for a user record.
type UserID string

// FamilyID is an internal identifier for a family record.
type FamilyID string

// MembershipID is an internal identifier for a family membership record.
type MembershipID string

// HealthLogID is an internal identifier for a health log entry.
type HealthLogID string

// ReminderID is an internal identifier for a reminder settings record.
type ReminderID string
