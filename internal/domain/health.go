package domain

import "time"

type MetricType string

const (
	MetricTypeBloodPressure MetricType = "BP"
	MetricTypeSugar         MetricType = "SUGAR"
)

func (m MetricType) Valid() bool {
	return m == MetricTypeBloodPressure || m == MetricTypeSugar
}

type SugarType string

const (
	SugarTypeFasting  SugarType = "FASTING"
	SugarTypePostMeal SugarType = "POST_MEAL"
	SugarTypeRandom   SugarType = "RANDOM"
)

func (s SugarType) Valid() bool {
	switch s {
	case SugarTypeFasting, SugarTypePostMeal, SugarTypeRandom:
		return true
	default:
		return false
	}
}

// HealthLog is a single reading recorded by a user.
// BP readings carry Systolic/Diastolic; SUGAR readings carry SugarType/SugarValue.
type HealthLog struct {
	ID         HealthLogID
	UserID     UserID
	MetricType MetricType

	Systolic   *int
	Diastolic  *int
	SugarType  *SugarType
	SugarValue *float64

	Notes      *string
	RecordedAt time.Time
	CreatedAt  time.Time
}

type FrequencyType string

const (
	FrequencyDaily   FrequencyType = "DAILY"
	FrequencyWeekly  FrequencyType = "WEEKLY"
	FrequencyMonthly FrequencyType = "MONTHLY"
)

func (f FrequencyType) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// ReminderSettings is unique per (user, metric type).
type ReminderSettings struct {
	ID         ReminderID
	UserID     UserID
	MetricType MetricType

	FrequencyType        FrequencyType
	FrequencyInterval    *int
	NotificationsEnabled bool
	LastTriggeredAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
