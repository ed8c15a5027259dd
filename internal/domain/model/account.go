package model

import (
	"time"

	"github.com/samber/lo"
)

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Sport        string    `json:"sport,omitempty"`
	Team         string    `json:"team,omitempty"`
	Active       bool      `json:"is_active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the user as an (identity, role) pair.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Contact is an emergency contact owned by one user.
type Contact struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	Primary      bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationType categorizes in-app notifications.
type NotificationType string

// Notification types.
const (
	NotificationEmergency      NotificationType = "emergency_alert"
	NotificationReminder       NotificationType = "training_reminder"
	NotificationProtocolUpdate NotificationType = "protocol_update"
	NotificationGeneral        NotificationType = "general"
)

// Notification is an in-app message targeted at roles and/or users.
type Notification struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	Priority      string           `json:"priority"`
	TargetRoles   []Role           `json:"target_roles"`
	TargetUserIDs []string         `json:"target_user_ids"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	Read          bool             `json:"is_read"`
}

// TargetsUser reports whether the notification is addressed to the actor.
func (n Notification) TargetsUser(a Actor) bool {
	return lo.Contains(n.TargetUserIDs, a.ID) || lo.Contains(n.TargetRoles, a.Role)
}

// Preferences controls which notifications a user wants and how.
type Preferences struct {
	EmergencyAlerts   bool `json:"emergency_alerts"`
	TrainingReminders bool `json:"training_reminders"`
	ProtocolUpdates   bool `json:"protocol_updates"`
	Email             bool `json:"email_notifications"`
	Push              bool `json:"push_notifications"`
}

// DefaultPreferences enables everything.
func DefaultPreferences() Preferences {
	return Preferences{EmergencyAlerts: true, TrainingReminders: true, ProtocolUpdates: true, Email: true, Push: true}
}

// Device is a registered push token.
type Device struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
