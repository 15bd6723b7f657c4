// Package domain defines the persistence models for profiles, groups,
// memberships, and compliments. These types are mapped with GORM and form
// the core data layer of the kudos application.
package domain

import (
	"time"
)

// Profile holds the display name chosen by an anonymous identity. There is
// exactly one profile per identity, created implicitly on first save and
// only ever written by its owner. An absent profile is a valid state
// ("name not yet set") and is distinct from an empty name, which is
// rejected at the service layer.
//
// Fields:
//   - UserID: opaque anonymous identity, primary key (char(36)).
//   - DisplayName: the chosen name; saves are full replaces, not patches.
//   - UpdatedAt: timestamp managed by GORM.
type Profile struct {
	UserID      string    `json:"user_id"      gorm:"type:char(36);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Group is a named circle of members who exchange compliments with each
// other exclusively. A group row is only ever created together with its
// creator's membership, inside one transaction, so no reader can observe a
// group with zero members. ID and CreatorID are immutable after creation.
//
// Groups may be deleted out of band (admin path); memberships are
// cascade-deleted with the group while compliments are retained, since the
// ledger is append-only.
type Group struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	CreatorID string    `json:"creator_id" gorm:"type:char(36);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "groups" }

// Membership records one identity belonging to one group. The key is the
// (GroupID, MemberID) pair: joining a group you already belong to is an
// upsert that overwrites the UserName snapshot and resets JoinedAt.
//
// UserName is a snapshot of the member's display name at join time; a
// later profile rename does not rewrite existing membership rows. There is
// no delete path: leaving a group is a client-local act.
type Membership struct {
	GroupID  string    `json:"group_id"  gorm:"type:char(36);primaryKey"`
	MemberID string    `json:"member_id" gorm:"type:char(36);primaryKey"`
	UserName string    `json:"user_name" gorm:"type:varchar(255);not null"`
	JoinedAt time.Time `json:"joined_at" gorm:"index:idx_group_roster"`

	// Group is the parent circle. Memberships are cascade-deleted if
	// their group is removed out of band.
	Group Group `json:"-" gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Membership.
func (Membership) TableName() string { return "memberships" }

// Compliment is one immutable anonymous message from a sender to a
// receiver within a group. Rows are append-only: never updated, never
// deleted. Timestamp is assigned by the server at write time; a zero
// Timestamp (write still in flight) sorts as the oldest record.
//
// GroupID deliberately carries no foreign key: the ledger outlives a
// group that is deleted out of band.
type Compliment struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string    `json:"sender_id"   gorm:"type:char(36);not null;index:idx_sent,priority:2"`
	ReceiverID string    `json:"receiver_id" gorm:"type:char(36);not null;index:idx_received,priority:2"`
	GroupID    string    `json:"group_id"    gorm:"type:char(36);not null;index:idx_sent,priority:1;index:idx_received,priority:1"`
	Message    string    `json:"message"     gorm:"type:text;not null"`
	Timestamp  time.Time `json:"timestamp"`
}

// TableName returns the database table name for Compliment.
func (Compliment) TableName() string { return "compliments" }
