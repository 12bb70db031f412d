// Package domain defines the persistence models for chatbots, flows,
// knowledge-base entries, conversations, and messages. These types are
// mapped with GORM and form the core data layer of the conversation engine.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ConversationStatus enumerates the lifecycle states of a conversation.
type ConversationStatus string

const (
	ConversationActive      ConversationStatus = "active"
	ConversationEnded       ConversationStatus = "ended"
	ConversationTransferred ConversationStatus = "transferred"
)

// MessageType identifies the author of a message within a conversation.
type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageBot    MessageType = "bot"
	MessageSystem MessageType = "system"
)

// NodeType is the closed set of flow node kinds the interpreter executes.
type NodeType string

const (
	NodeMessage   NodeType = "message"
	NodeCondition NodeType = "condition"
	NodeInput     NodeType = "input"
	NodeAction    NodeType = "action"
	NodeDelay     NodeType = "delay"
)

// ActionType is the closed set of action-node behaviors.
type ActionType string

const (
	ActionCollectEmail ActionType = "collect_email"
	ActionCollectPhone ActionType = "collect_phone"
	ActionRedirect     ActionType = "redirect"
)

// TriggerType is the closed set of flow trigger kinds.
type TriggerType string

const (
	TriggerKeyword   TriggerType = "keyword"
	TriggerIntent    TriggerType = "intent"
	TriggerButton    TriggerType = "button"
	TriggerCondition TriggerType = "condition"
)

// AIConfig holds per-chatbot generative-AI settings. It is stored as a JSON
// column on the Chatbot row; the engine reads it, never writes it.
type AIConfig struct {
	Enabled         bool    `json:"enabled"`
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	SystemPrompt    string  `json:"system_prompt"`
	FallbackToRules bool    `json:"fallback_to_rules"`
}

// Chatbot represents one configured bot owned by a user. The engine treats
// it as read-only configuration: flows, knowledge base, AI settings, and the
// fallback message all hang off this aggregate.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerID: identifier of the owning account; indexed for efficient
//     retrieval and used for monthly quota lookups.
//   - FallbackMessage: terminal pipeline response when nothing else matches.
//   - WebhookURL: optional endpoint notified of processed messages/leads.
//   - TotalConversations / TotalMessages / LeadsCaptured: aggregate counters
//     incremented atomically (UPDATE ... SET x = x + ?), never via
//     read-modify-write on a cached copy.
type Chatbot struct {
	ID                 string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	OwnerID            string         `json:"owner_id"            gorm:"type:varchar(64);not null;index:idx_owner_bots"`
	Name               string         `json:"name"                gorm:"type:varchar(255);not null"`
	FallbackMessage    string         `json:"fallback_message"    gorm:"type:text;not null;default:''"`
	WebhookURL         string         `json:"webhook_url"         gorm:"type:text"`
	IsActive           bool           `json:"is_active"           gorm:"not null;default:true"`
	AI                 AIConfig       `json:"ai"                  gorm:"serializer:json"`
	TotalConversations int64          `json:"total_conversations" gorm:"not null;default:0"`
	TotalMessages      int64          `json:"total_messages"      gorm:"not null;default:0"`
	LeadsCaptured      int64          `json:"leads_captured"      gorm:"not null;default:0"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-"                   gorm:"index"`

	Flows         []Flow               `json:"flows,omitempty"          gorm:"foreignKey:ChatbotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	KnowledgeBase []KnowledgeBaseEntry `json:"knowledge_base,omitempty" gorm:"foreignKey:ChatbotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chatbot.
func (Chatbot) TableName() string { return "chatbots" }

// Button is a quick-reply or link button attached to a bot message.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
	// Action distinguishes plain quick replies from link buttons ("url").
	Action string `json:"action,omitempty"`
	URL    string `json:"url,omitempty"`
}

// NodeContent is the per-type payload of a FlowNode. Only the fields
// relevant to the node's Type are populated; the rest stay zero. A single
// struct (rather than one Go type per node kind) matches how the
// flow-builder UI serializes nodes.
type NodeContent struct {
	// message
	Text    string   `json:"text,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`

	// condition
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    string `json:"value,omitempty"`

	// input
	InputType  string `json:"input_type,omitempty"`
	Validation string `json:"validation,omitempty"`

	// action
	Action  ActionType `json:"action,omitempty"`
	URL     string     `json:"url,omitempty"`
	Message string     `json:"message,omitempty"`

	// delay
	DelayMs int `json:"delay_ms,omitempty"`
}

// FlowNode is one step in a flow graph. Connections hold successor node IDs
// resolved by lookup within the owning flow's node list; for condition nodes
// index 0 is the true branch and index 1 the false branch.
type FlowNode struct {
	ID          string      `json:"id"`
	Type        NodeType    `json:"type"`
	Content     NodeContent `json:"content"`
	Connections []string    `json:"connections,omitempty"`
	// IsEntry marks the explicit start node. When no node carries it, the
	// interpreter falls back to the legacy entry heuristic.
	IsEntry bool `json:"is_entry,omitempty"`
}

// FlowNodes is stored as a single JSON column on the flow row; the graph is
// authored as one unit in the builder UI and always loaded whole.
type FlowNodes []FlowNode

// Flow is an author-defined conversation script. Flows are evaluated in
// Position order; the first active flow whose trigger matches wins, so
// authors control precedence by ordering.
type Flow struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	ChatbotID    string         `json:"chatbot_id"    gorm:"type:char(36);not null;index:idx_bot_flows,priority:1"`
	Name         string         `json:"name"          gorm:"type:varchar(255);not null"`
	TriggerType  TriggerType    `json:"trigger_type"  gorm:"type:varchar(16);not null"`
	TriggerValue string         `json:"trigger_value" gorm:"type:text;not null"`
	Nodes        FlowNodes      `json:"nodes"         gorm:"serializer:json"`
	IsActive     bool           `json:"is_active"     gorm:"not null;default:true"`
	Position     int            `json:"position"      gorm:"not null;default:0;index:idx_bot_flows,priority:2"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Flow.
func (Flow) TableName() string { return "flows" }

// StringList is a JSON-serialized string slice column.
type StringList []string

// KnowledgeBaseEntry is a single FAQ pair with matching keywords and an
// author-supplied confidence weight that scales the computed match score.
// Entries with IsActive=false are never ranking candidates.
type KnowledgeBaseEntry struct {
	ID         string         `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatbotID  string         `json:"chatbot_id" gorm:"type:char(36);not null;index:idx_bot_kb,priority:1"`
	Question   string         `json:"question"   gorm:"type:text;not null"`
	Answer     string         `json:"answer"     gorm:"type:text;not null"`
	Keywords   StringList     `json:"keywords"   gorm:"serializer:json"`
	Category   string         `json:"category"   gorm:"type:varchar(64)"`
	Confidence float64        `json:"confidence" gorm:"not null;default:1"`
	IsActive   bool           `json:"is_active"  gorm:"not null;default:true"`
	Position   int            `json:"position"   gorm:"not null;default:0;index:idx_bot_kb,priority:2"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for KnowledgeBaseEntry.
func (KnowledgeBaseEntry) TableName() string { return "knowledge_base_entries" }

// Lead is the contact information accumulated for a visitor over the course
// of a conversation. New captures overwrite same-named fields; the rest
// persist.
type Lead struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Merge overlays non-empty fields of other onto l and reports whether
// anything changed.
func (l *Lead) Merge(other *Lead) bool {
	if other == nil {
		return false
	}
	changed := false
	if other.Email != "" && other.Email != l.Email {
		l.Email = other.Email
		changed = true
	}
	if other.Phone != "" && other.Phone != l.Phone {
		l.Phone = other.Phone
		changed = true
	}
	if other.Name != "" && other.Name != l.Name {
		l.Name = other.Name
		changed = true
	}
	return changed
}

// VisitorInfo captures what the embedding page knows about the visitor.
type VisitorInfo struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// ConversationAnalytics holds per-conversation counters. They are re-derived
// from the message log on every turn; the stored values are a read
// convenience, not the source of truth.
type ConversationAnalytics struct {
	MessageCount      int     `json:"message_count"`
	UserMessageCount  int     `json:"user_message_count"`
	BotMessageCount   int     `json:"bot_message_count"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// Conversation is one visitor session with a chatbot. Exactly one active
// conversation may exist per (ChatbotID, SessionID) pair; the service layer
// serializes processing per pair to preserve that invariant and message
// ordering.
//
// Fields:
//   - SessionID: opaque correlation key supplied by the embedding widget.
//   - Title: short label auto-generated from the first user message.
//   - Lead: accumulated partial contact info, nil until the first capture.
//   - DurationMs: set together with EndedAt when the conversation ends.
type Conversation struct {
	ID             string                `json:"id"               gorm:"type:char(36);primaryKey"`
	ChatbotID      string                `json:"chatbot_id"       gorm:"type:char(36);not null;index:idx_bot_sessions,priority:1"`
	SessionID      string                `json:"session_id"       gorm:"type:varchar(128);not null;index:idx_bot_sessions,priority:2"`
	Status         ConversationStatus    `json:"status"           gorm:"type:varchar(16);not null;default:'active';index:idx_bot_sessions,priority:3"`
	Title          string                `json:"title"            gorm:"type:varchar(255)"`
	Visitor        VisitorInfo           `json:"visitor"          gorm:"serializer:json"`
	Analytics      ConversationAnalytics `json:"analytics"        gorm:"embedded;embeddedPrefix:analytics_"`
	Lead           *Lead                 `json:"lead,omitempty"   gorm:"serializer:json"`
	StartedAt      time.Time             `json:"started_at"`
	LastActivityAt time.Time             `json:"last_activity_at"`
	EndedAt        *time.Time            `json:"ended_at,omitempty"`
	DurationMs     int64                 `json:"duration_ms,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	DeletedAt      gorm.DeletedAt        `json:"-"                gorm:"index"`

	// Messages is the append-only log, ordered by arrival.
	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// MessageMetadata is the per-message metadata attached by the pipeline:
// which stage answered, at what confidence, and how long processing took.
type MessageMetadata struct {
	Confidence       *float64 `json:"confidence,omitempty"`
	FlowID           string   `json:"flow_id,omitempty"`
	NodeID           string   `json:"node_id,omitempty"`
	AIGenerated      bool     `json:"ai_generated,omitempty"`
	ProcessingTimeMs int64    `json:"processing_time_ms,omitempty"`
	Buttons          []Button `json:"buttons,omitempty"`
	DelayMs          int      `json:"delay_ms,omitempty"`
}

// Message is a single utterance within a conversation. Messages are
// immutable once appended.
type Message struct {
	ID             string          `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string          `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Type           MessageType     `json:"type"            gorm:"type:varchar(16);not null;check:type IN ('user','bot','system')"`
	Content        string          `json:"content"         gorm:"type:text;not null"`
	Metadata       MessageMetadata `json:"metadata"        gorm:"serializer:json"`
	CreatedAt      time.Time       `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `json:"-"               gorm:"index"`

	// Conversation is the parent log. Messages are cascade-deleted if their
	// conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// OwnerUsage tracks how many messages an owner's bots processed in a given
// calendar month against their plan limit. Consulted before processing;
// incremented atomically after a successful turn.
type OwnerUsage struct {
	OwnerID      string    `json:"owner_id"      gorm:"type:varchar(64);primaryKey"`
	Period       string    `json:"period"        gorm:"type:char(7);primaryKey"` // e.g. "2026-08"
	MonthlyLimit int64     `json:"monthly_limit" gorm:"not null;default:0"`      // 0 = unlimited
	Used         int64     `json:"used"          gorm:"not null;default:0"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for OwnerUsage.
func (OwnerUsage) TableName() string { return "owner_usage" }
