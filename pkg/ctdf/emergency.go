package ctdf

import "time"

// EmergencyState is the overlay placed on a session while a panic is being handled
type EmergencyState struct {
	PanicActive bool       `groups:"basic"`
	LastPanicAt time.Time  `groups:"basic"`
	Active      *Emergency `groups:"basic"`
}

func (e *EmergencyState) IsActive() bool {
	return e.PanicActive || (e.Active != nil && e.Active.Status == EmergencyStatusActive)
}

type Emergency struct {
	PrimaryIdentifier string `groups:"basic"`

	Type        EmergencyType   `groups:"basic"`
	Status      EmergencyStatus `groups:"basic"`
	Description string          `groups:"basic"`

	Location *Location `groups:"basic"`

	TriggeredBy string    `groups:"detailed"`
	TriggeredAt time.Time `groups:"basic"`

	Resolution string    `groups:"detailed"`
	ResolvedBy string    `groups:"detailed"`
	ResolvedAt time.Time `groups:"detailed"`
}

type EmergencyType string

const (
	EmergencyTypePanic     EmergencyType = "panic"
	EmergencyTypeAccident  EmergencyType = "accident"
	EmergencyTypeMedical   EmergencyType = "medical"
	EmergencyTypeBreakdown EmergencyType = "breakdown"
	EmergencyTypeSecurity  EmergencyType = "security"
	EmergencyTypeOther     EmergencyType = "other"
)

type EmergencyStatus string

const (
	EmergencyStatusActive    EmergencyStatus = "active"
	EmergencyStatusResolved  EmergencyStatus = "resolved"
	EmergencyStatusEscalated EmergencyStatus = "escalated"
)

func (e *Emergency) Clone() *Emergency {
	if e == nil {
		return nil
	}

	c := *e
	c.Location = e.Location.Clone()

	return &c
}
