package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func migrateAll(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.AutoMigrate(&Workspace{}, &Agent{}, &Channel{}, &ChannelKey{}, &Intent{},
		&Conversation{}, &Message{}, &InboundReceipt{}, &IntentRun{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Workspace{}).TableName():      "workspaces",
		(Agent{}).TableName():          "agents",
		(Channel{}).TableName():        "channels",
		(ChannelKey{}).TableName():     "channel_keys",
		(Intent{}).TableName():         "intents",
		(Conversation{}).TableName():   "conversations",
		(Message{}).TableName():        "messages",
		(InboundReceipt{}).TableName(): "inbound_receipts",
		(IntentRun{}).TableName():      "intent_runs",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)
	migrateAll(t, db)
	m := db.Migrator()

	for _, idx := range []struct {
		model any
		name  string
	}{
		{&ChannelKey{}, "ux_channel_key"},
		{&Conversation{}, "ux_channel_external"},
		{&Intent{}, "idx_agent_intents"},
		{&Message{}, "idx_conversation_msgs"},
		{&InboundReceipt{}, "ux_channel_receipt"},
	} {
		if !m.HasIndex(idx.model, idx.name) {
			t.Fatalf("expected index %s on %T", idx.name, idx.model)
		}
	}

	now := time.Now().UTC()
	ws := &Workspace{ID: "w1", Name: "Acme"}
	ag := &Agent{ID: "a1", WorkspaceID: "w1", Name: "Sofía"}
	ch := &Channel{ID: "ch1", AgentID: "a1", Type: ChannelWebchat, IsActive: true}
	cv := &Conversation{ID: "c1", AgentID: "a1", ChannelID: "ch1", ExternalID: "v1", Status: StatusBot}
	msg := &Message{ID: "m1", ConversationID: "c1", Role: RoleUser, Content: "hola", CreatedAt: now}
	for _, v := range []any{ws, ag, ch, cv, msg} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("insert %T: %v", v, err)
		}
	}

	// Duplicate (channel, external) must be rejected.
	dup := &Conversation{ID: "c2", AgentID: "a1", ChannelID: "ch1", ExternalID: "v1", Status: StatusBot}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (channel_id, external_id)")
	}

	// CASCADE: deleting the conversation removes its messages.
	if err := db.Delete(&Conversation{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	var cnt int64
	db.Model(&Message{}).Where("conversation_id = ?", "c1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got count=%d", cnt)
	}
}

func TestJSONColumns_RoundTrip(t *testing.T) {
	db := newDomainDB(t)
	migrateAll(t, db)

	db.Create(&Workspace{ID: "w1", Name: "Acme"})
	db.Create(&Agent{ID: "a1", WorkspaceID: "w1", Name: "Bot"})
	ch := &Channel{
		ID: "ch1", AgentID: "a1", Type: ChannelWhatsApp, IsActive: true,
		Config: datatypes.NewJSONType(ChannelConfig{PhoneNumberID: " 1555 ", AccessToken: "secret"}),
	}
	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("create channel: %v", err)
	}
	in := &Intent{
		ID: "i1", AgentID: "a1", Name: "n", Trigger: "hola", ActionType: ActionInternal,
		Payload: datatypes.JSON(`{"action":"escalate_to_human"}`), Enabled: true,
	}
	if err := db.Create(in).Error; err != nil {
		t.Fatalf("create intent: %v", err)
	}

	var gotCh Channel
	if err := db.First(&gotCh, "id = ?", "ch1").Error; err != nil {
		t.Fatalf("load channel: %v", err)
	}
	if gotCh.CorrelationKey() != "1555" {
		t.Fatalf("correlation key = %q; want 1555", gotCh.CorrelationKey())
	}
	if gotCh.Config.Data().Redacted().AccessToken != "********" {
		t.Fatalf("access token should be redacted")
	}

	var gotIn Intent
	db.First(&gotIn, "id = ?", "i1")
	cfg, err := ParseActionConfig(gotIn.ActionType, gotIn.Payload)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if ic, ok := cfg.(InternalConfig); !ok || ic.Action != InternalEscalate {
		t.Fatalf("unexpected payload variant: %#v", cfg)
	}
}

func TestChannelTypes(t *testing.T) {
	for in, want := range map[string]ChannelType{
		"whatsapp": ChannelWhatsApp, " Instagram ": ChannelInstagram,
		"MESSENGER": ChannelMessenger, "webchat": ChannelWebchat,
	} {
		got, ok := ParseChannelType(in)
		if !ok || got != want {
			t.Fatalf("ParseChannelType(%q) = %q,%v", in, got, ok)
		}
	}
	if _, ok := ParseChannelType("telegram"); ok {
		t.Fatalf("telegram should not parse")
	}

	cfg := ChannelConfig{PhoneNumberID: "p", PageID: "g", InstagramAccountID: "ig"}
	if cfg.CorrelationKey(ChannelWhatsApp) != "p" || cfg.CorrelationKey(ChannelMessenger) != "g" ||
		cfg.CorrelationKey(ChannelInstagram) != "ig" || cfg.CorrelationKey(ChannelWebchat) != "" {
		t.Fatalf("unexpected correlation keys")
	}
	if (Channel{ID: "x", Type: ChannelWebchat}).CorrelationKey() != "x" {
		t.Fatalf("webchat channels correlate by id")
	}
	if !StatusOpen.Valid() || ConversationStatus("PENDING").Valid() {
		t.Fatalf("status validity unexpected")
	}
}
