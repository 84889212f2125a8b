package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	GroupPublic  = "public"
	GroupPrivate = "private"
)

const (
	RoleAdmin  = "admin"
	RoleMod    = "mod"
	RoleMember = "member"
)

type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Visibility  string    `json:"visibility"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	// Roles is keyed by the member's user ID string.
	Roles   map[string]string `json:"roles"`
	Members []uuid.UUID       `json:"members"`

	// MembersCount is a denormalized cache updated alongside Members.
	// Members is authoritative whenever present.
	MembersCount int `json:"members_count"`

	Settings GroupSettings `json:"settings"`
	AIUsage  AIUsage       `json:"ai_usage"`
}

type GroupSettings struct {
	AIExplainLimitPerDay int  `json:"ai_explain_limit_per_day"`
	AllowSummarize       bool `json:"allow_summarize"`
	RAGEnabled           bool `json:"rag_enabled"`
}

// AIUsage tracks per-day assistant call counters. DateKey is the UTC date
// (YYYY-MM-DD) the counters belong to; counters reset when the key rolls over.
type AIUsage struct {
	ExplainCallsToday int    `json:"explain_calls_today"`
	NotesCallsToday   int    `json:"notes_calls_today"`
	DateKey           string `json:"date_key"`
}

// MemberCount returns the authoritative member count: the length of Members
// when present, otherwise the cached counter.
func (g *Group) MemberCount() int {
	if g.Members != nil {
		return len(g.Members)
	}
	return g.MembersCount
}

// IsMember reports whether userID is in the group's member set.
func (g *Group) IsMember(userID uuid.UUID) bool {
	return ContainsID(g.Members, userID)
}

// Role returns the member's role, or "" when not a member.
func (g *Group) Role(userID uuid.UUID) string {
	return g.Roles[userID.String()]
}

// IsAdmin reports whether userID holds the admin role.
func (g *Group) IsAdmin(userID uuid.UUID) bool {
	return g.Role(userID) == RoleAdmin
}

// IsModerator reports whether userID holds the admin or mod role.
func (g *Group) IsModerator(userID uuid.UUID) bool {
	r := g.Role(userID)
	return r == RoleAdmin || r == RoleMod
}

// UsageFor returns the usage counters valid for dateKey, resetting them when
// the stored key is stale.
func (u AIUsage) UsageFor(dateKey string) AIUsage {
	if u.DateKey == dateKey {
		return u
	}
	return AIUsage{DateKey: dateKey}
}
