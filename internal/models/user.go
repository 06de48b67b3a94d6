package models

import "time"

type UserRole string

const (
	RoleHunter  UserRole = "hunter"
	RoleManager UserRole = "manager"
	RoleAdmin   UserRole = "admin"
)

type SubscriptionInfo struct {
	Plan                  string    `bson:"plan" json:"plan"`
	StartDate             time.Time `bson:"startDate" json:"startDate"`
	EndDate               time.Time `bson:"endDate" json:"endDate"`
	IsActive              bool      `bson:"isActive" json:"isActive"`
	FeaturedListingsCount int       `bson:"featuredListingsCount" json:"featuredListingsCount"`
}

// UserProfile lives in the users collection keyed by the auth uid.
// Hunter fields and manager fields are mutually exclusive in practice;
// role decides which set is meaningful.
type UserProfile struct {
	UID          string   `bson:"_id" json:"uid"`
	Email        string   `bson:"email" json:"email"`
	DisplayName  string   `bson:"displayName,omitempty" json:"displayName,omitempty"`
	PhoneNumber  string   `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Role         UserRole `bson:"role" json:"role"`
	PasswordHash string   `bson:"passwordHash" json:"-"`

	// Hunter
	SavedProperties []string `bson:"savedProperties,omitempty" json:"savedProperties,omitempty"`

	// Manager
	BusinessName string            `bson:"businessName,omitempty" json:"businessName,omitempty"`
	Subscription *SubscriptionInfo `bson:"subscription,omitempty" json:"subscription,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
