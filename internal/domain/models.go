// Package domain defines the persistence models for workspaces, agents,
// channels, intents, conversations and messages. These types are mapped with
// GORM and form the core data layer of the Kônsul backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
)

// ConversationStatus is the lifecycle state of a conversation.
//
// New conversations start in StatusBot (the agent answers on its own).
// StatusOpen means a human teammate is expected to pick the thread up.
type ConversationStatus string

const (
	StatusBot    ConversationStatus = "BOT"
	StatusOpen   ConversationStatus = "OPEN"
	StatusClosed ConversationStatus = "CLOSED"
)

// Valid reports whether s is a known conversation status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusBot, StatusOpen, StatusClosed:
		return true
	}
	return false
}

// Workspace is the tenant boundary grouping agents, channels and team members.
type Workspace struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Workspace.
func (Workspace) TableName() string { return "workspaces" }

// Agent is a configured conversational persona belonging to a workspace.
//
// Fields:
//   - Instructions: system prompt handed to the reply generator.
//   - Knowledge: free text the retrieval fallback answers from.
//   - Model: optional model override for the reply generator.
type Agent struct {
	ID           string         `json:"id"           gorm:"type:char(36);primaryKey"`
	WorkspaceID  string         `json:"workspaceId"  gorm:"type:char(36);not null;index:idx_workspace_agents"`
	Name         string         `json:"name"         gorm:"type:varchar(255);not null"`
	Instructions string         `json:"instructions" gorm:"type:text"`
	Knowledge    string         `json:"knowledge"    gorm:"type:text"`
	Model        string         `json:"model"        gorm:"type:varchar(64)"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-"            gorm:"index"`

	Workspace Workspace `json:"-" gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Agent.
func (Agent) TableName() string { return "agents" }

// Channel binds an agent to one messaging provider. Provider credentials
// live in Config and are handed to the channel adapters per call.
type Channel struct {
	ID        string                            `json:"id"        gorm:"type:char(36);primaryKey"`
	AgentID   string                            `json:"agentId"   gorm:"type:char(36);not null;index:idx_agent_channels"`
	Type      ChannelType                       `json:"type"      gorm:"type:varchar(16);not null"`
	Config    datatypes.JSONType[ChannelConfig] `json:"config"`
	IsActive  bool                              `json:"isActive"  gorm:"not null"`
	CreatedAt time.Time                         `json:"createdAt"`
	UpdatedAt time.Time                         `json:"updatedAt"`
	DeletedAt gorm.DeletedAt                    `json:"-"         gorm:"index"`

	Agent Agent `json:"-" gorm:"foreignKey:AgentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Channel.
func (Channel) TableName() string { return "channels" }

// CorrelationKey returns the provider identifier that inbound webhooks carry
// for this channel (phone number id, page id, instagram account id). Webchat
// channels are addressed by their own id.
func (c Channel) CorrelationKey() string {
	if c.Type == ChannelWebchat {
		return c.ID
	}
	return c.Config.Data().CorrelationKey(c.Type)
}

// ChannelKey is the secondary index from a provider correlation key to the
// owning channel. The unique index on (type, key) guarantees that a webhook
// resolves to at most one channel.
type ChannelKey struct {
	Type      ChannelType `gorm:"type:varchar(16);not null;uniqueIndex:ux_channel_key,priority:1"`
	Key       string      `gorm:"type:varchar(128);not null;uniqueIndex:ux_channel_key,priority:2"`
	ChannelID string      `gorm:"type:char(36);not null;index"`
	CreatedAt time.Time
}

// TableName returns the database table name for ChannelKey.
func (ChannelKey) TableName() string { return "channel_keys" }

// Intent is a pattern-triggered rule owned by an agent.
//
// Trigger holds "|"-delimited regular expressions. Payload is the raw
// per-action configuration; it is validated into an ActionConfig on write
// (see ParseActionConfig) and parsed again on execution.
type Intent struct {
	ID            string         `json:"id"            gorm:"type:char(36);primaryKey"`
	AgentID       string         `json:"agentId"       gorm:"type:char(36);not null;index:idx_agent_intents,priority:1"`
	Name          string         `json:"name"          gorm:"type:varchar(255);not null"`
	Description   string         `json:"description"   gorm:"type:text"`
	Trigger       string         `json:"trigger"       gorm:"type:text;not null"`
	ActionType    ActionType     `json:"actionType"    gorm:"type:varchar(16);not null"`
	ActionURL     string         `json:"actionUrl,omitempty" gorm:"type:varchar(2048)"`
	Payload       datatypes.JSON `json:"payloadJson,omitempty"`
	Enabled       bool           `json:"enabled"       gorm:"not null"`
	TriggerCount  int64          `json:"triggerCount"  gorm:"not null;default:0"`
	LastTriggered *time.Time     `json:"lastTriggered,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"     gorm:"index:idx_agent_intents,priority:2"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-"             gorm:"index"`

	Agent Agent `json:"-" gorm:"foreignKey:AgentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Intent.
func (Intent) TableName() string { return "intents" }

// Conversation is a thread with one external party on one channel.
// ExternalID is the provider thread identifier (WhatsApp wa_id, Messenger
// PSID, Instagram IGSID or webchat visitor id).
type Conversation struct {
	ID            string             `json:"id"            gorm:"type:char(36);primaryKey"`
	AgentID       string             `json:"agentId"       gorm:"type:char(36);not null;index:idx_agent_conversations,priority:1"`
	ChannelID     string             `json:"channelId"     gorm:"type:char(36);not null;uniqueIndex:ux_channel_external,priority:1"`
	ExternalID    string             `json:"externalId"    gorm:"type:varchar(128);not null;uniqueIndex:ux_channel_external,priority:2"`
	ContactName   string             `json:"contactName"   gorm:"type:varchar(255)"`
	ContactEmail  string             `json:"contactEmail"  gorm:"type:varchar(255)"`
	Status        ConversationStatus `json:"status"        gorm:"type:varchar(16);not null"`
	AssignedTo    string             `json:"assignedTo"    gorm:"type:varchar(128)"`
	LastMessageAt *time.Time         `json:"lastMessageAt,omitempty" gorm:"index:idx_agent_conversations,priority:2"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	Channel Channel `json:"-" gorm:"foreignKey:ChannelID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Attachment describes a media item stored for a message.
type Attachment struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Mime     string `json:"mime,omitempty"`
}

// MessageMetadata is the optional JSON document attached to a message.
type MessageMetadata struct {
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Message is a single immutable utterance within a conversation.
type Message struct {
	ID                string                              `json:"id"             gorm:"type:char(36);primaryKey"`
	ConversationID    string                              `json:"conversationId" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	Role              Role                                `json:"role"           gorm:"type:varchar(16);not null;check:role IN ('USER','AGENT')"`
	Content           string                              `json:"content"        gorm:"type:text;not null"`
	Metadata          datatypes.JSONType[MessageMetadata] `json:"metadata"`
	ProviderMessageID string                              `json:"providerMessageId,omitempty" gorm:"type:varchar(255);index"`
	CreatedAt         time.Time                           `json:"createdAt"      gorm:"index:idx_conversation_msgs,priority:2"`
	UpdatedAt         time.Time                           `json:"updatedAt"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// IntentRun records one execution of an intent action.
type IntentRun struct {
	ID             string     `json:"id"             gorm:"type:char(36);primaryKey"`
	IntentID       string     `json:"intentId"       gorm:"type:char(36);not null;index"`
	ConversationID string     `json:"conversationId" gorm:"type:char(36);index"`
	MessageID      string     `json:"messageId"      gorm:"type:char(36)"`
	ActionType     ActionType `json:"actionType"     gorm:"type:varchar(16);not null"`
	Success        bool       `json:"success"        gorm:"not null"`
	Error          string     `json:"error,omitempty" gorm:"type:text"`
	DurationMS     int64      `json:"durationMs"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// TableName returns the database table name for IntentRun.
func (IntentRun) TableName() string { return "intent_runs" }
