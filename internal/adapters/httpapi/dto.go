package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/househealth/househealth-api/internal/domain"
)

type RegisterUserRequest struct {
	DisplayName string              `json:"displayName" validate:"required"`
	Email       openapi_types.Email `json:"email" validate:"required"`
	Password    string              `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	DisplayName nullable.Nullable[string]              `json:"displayName,omitempty"`
	Email       nullable.Nullable[openapi_types.Email] `json:"email,omitempty"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	SystemRole  string    `json:"systemRole"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateFamilyRequest struct {
	Name string `json:"name" validate:"required"`
}

type RenameFamilyRequest struct {
	Name string `json:"name" validate:"required"`
}

// UserRefRequest names the target user of add-member, add-owner and ownership transfer.
type UserRefRequest struct {
	UserID openapi_types.UUID `json:"userId" validate:"required"`
}

type UpdateMembershipRequest struct {
	Role                 nullable.Nullable[string] `json:"role,omitempty"`
	NotificationsEnabled nullable.Nullable[bool]   `json:"notificationsEnabled,omitempty"`
}

type Family struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Version         int64     `json:"version"`
	CreatedByUserID *string   `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type FamilyDetails struct {
	Family  Family   `json:"family"`
	Members []Member `json:"members"`
}

type FamiliesResponse struct {
	Families []Family `json:"families"`
}

type Member struct {
	MembershipID         string    `json:"membershipId"`
	UserID               string    `json:"userId"`
	DisplayName          string    `json:"displayName"`
	Email                string    `json:"email"`
	Role                 string    `json:"role"`
	IsOwner              bool      `json:"isOwner"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	JoinedAt             time.Time `json:"joinedAt"`
}

type MembersResponse struct {
	Members []Member `json:"members"`
}

type Membership struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	FamilyID             string    `json:"familyId"`
	Role                 string    `json:"role"`
	IsOwner              bool      `json:"isOwner"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	JoinedAt             time.Time `json:"joinedAt"`
}

type RecordHealthLogRequest struct {
	MetricType string     `json:"metricType" validate:"required,oneof=BP SUGAR"`
	Systolic   *int       `json:"systolic,omitempty"`
	Diastolic  *int       `json:"diastolic,omitempty"`
	SugarType  *string    `json:"sugarType,omitempty" validate:"omitempty,oneof=FASTING POST_MEAL RANDOM"`
	SugarValue *float64   `json:"sugarValue,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	RecordedAt *time.Time `json:"recordedAt,omitempty"`
}

type HealthLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	MetricType string    `json:"metricType"`
	Systolic   *int      `json:"systolic,omitempty"`
	Diastolic  *int      `json:"diastolic,omitempty"`
	SugarType  *string   `json:"sugarType,omitempty"`
	SugarValue *float64  `json:"sugarValue,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

type HealthLogsResponse struct {
	HealthLogs []HealthLog `json:"healthLogs"`
}

type UpsertReminderRequest struct {
	FrequencyType        string `json:"frequencyType" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
	FrequencyInterval    *int   `json:"frequencyInterval,omitempty"`
	NotificationsEnabled *bool  `json:"notificationsEnabled,omitempty"`
}

type Reminder struct {
	ID                   string     `json:"id"`
	MetricType           string     `json:"metricType"`
	FrequencyType        string     `json:"frequencyType"`
	FrequencyInterval    *int       `json:"frequencyInterval,omitempty"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
	LastTriggeredAt      *time.Time `json:"lastTriggeredAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type RemindersResponse struct {
	Reminders []Reminder `json:"reminders"`
}

func userFromDomain(u domain.User) User {
	return User{
		ID:          string(u.ID),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		SystemRole:  string(u.SystemRole),
		CreatedAt:   u.CreatedAt,
	}
}

func familyFromDomain(f domain.Family) Family {
	out := Family{
		ID:        string(f.ID),
		Name:      f.Name,
		Version:   f.Version,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.CreatedByUserID != nil {
		id := string(*f.CreatedByUserID)
		out.CreatedByUserID = &id
	}
	return out
}

func familyDetailsFromDomain(d domain.FamilyDetails) FamilyDetails {
	return FamilyDetails{Family: familyFromDomain(d.Family), Members: membersFromDomain(d.Members)}
}

func membersFromDomain(views []domain.MemberView) []Member {
	out := make([]Member, 0, len(views))
	for _, v := range views {
		out = append(out, Member{
			MembershipID:         string(v.Membership.ID),
			UserID:               string(v.Membership.UserID),
			DisplayName:          v.User.DisplayName,
			Email:                v.User.Email,
			Role:                 string(v.Membership.Role),
			IsOwner:              v.Membership.Owner,
			NotificationsEnabled: v.Membership.NotificationsEnabled,
			JoinedAt:             v.Membership.JoinedAt,
		})
	}
	return out
}

func membershipFromDomain(m domain.Membership) Membership {
	return Membership{
		ID:                   string(m.ID),
		UserID:               string(m.UserID),
		FamilyID:             string(m.FamilyID),
		Role:                 string(m.Role),
		IsOwner:              m.Owner,
		NotificationsEnabled: m.NotificationsEnabled,
		JoinedAt:             m.JoinedAt,
	}
}

func healthLogFromDomain(l domain.HealthLog) HealthLog {
	out := HealthLog{
		ID:         string(l.ID),
		UserID:     string(l.UserID),
		MetricType: string(l.MetricType),
		Systolic:   l.Systolic,
		Diastolic:  l.Diastolic,
		SugarValue: l.SugarValue,
		Notes:      l.Notes,
		RecordedAt: l.RecordedAt,
		CreatedAt:  l.CreatedAt,
	}
	if l.SugarType != nil {
		st := string(*l.SugarType)
		out.SugarType = &st
	}
	return out
}

func reminderFromDomain(s domain.ReminderSettings) Reminder {
	return Reminder{
		ID:                   string(s.ID),
		MetricType:           string(s.MetricType),
		FrequencyType:        string(s.FrequencyType),
		FrequencyInterval:    s.FrequencyInterval,
		NotificationsEnabled: s.NotificationsEnabled,
		LastTriggeredAt:      s.LastTriggeredAt,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}
