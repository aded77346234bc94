package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

func TestCreateChannel_IndexesCorrelationKey(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	a := seedAgent(t, db, "w1")

	ch := seedChannel(t, db, a.ID, domain.ChannelWhatsApp, domain.ChannelConfig{PhoneNumberID: "111"})
	id, err := FindChannelIDByKey(ctx, db, domain.ChannelWhatsApp, "111")
	if err != nil || id != ch.ID {
		t.Fatalf("FindChannelIDByKey = %q,%v; want %q", id, err, ch.ID)
	}

	// Same key under another provider type is a different index entry.
	if _, err := FindChannelIDByKey(ctx, db, domain.ChannelMessenger, "111"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across types, got %v", err)
	}

	web := seedChannel(t, db, a.ID, domain.ChannelWebchat, domain.ChannelConfig{})
	if id, _ := FindChannelIDByKey(ctx, db, domain.ChannelWebchat, web.ID); id != web.ID {
		t.Fatalf("webchat channels index by their own id")
	}
}

func TestCreateChannel_DuplicateKeyRejected(t *testing.T) {
	db := newTestDB(t, true)
	a := seedAgent(t, db, "w1")
	seedChannel(t, db, a.ID, domain.ChannelMessenger, domain.ChannelConfig{PageID: "p1"})

	dup := &domain.Channel{AgentID: a.ID, Type: domain.ChannelMessenger, IsActive: true,
		Config: datatypes.NewJSONType(domain.ChannelConfig{PageID: "p1"})}
	if err := CreateChannel(context.Background(), db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// The failed transaction must not leave the channel row behind.
	if _, err := GetChannel(context.Background(), db, dup.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("channel row should have been rolled back, got %v", err)
	}
}

func TestUpdateChannel_ReindexesAndScopes(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	a := seedAgent(t, db, "w1")
	ch := seedChannel(t, db, a.ID, domain.ChannelInstagram, domain.ChannelConfig{InstagramAccountID: "ig-old"})

	ch.Config = datatypes.NewJSONType(domain.ChannelConfig{InstagramAccountID: "ig-new", AccessToken: "t"})
	ch.IsActive = false
	if err := UpdateChannel(ctx, db, a.ID, ch); err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}
	if _, err := FindChannelIDByKey(ctx, db, domain.ChannelInstagram, "ig-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old key should be gone, got %v", err)
	}
	if id, _ := FindChannelIDByKey(ctx, db, domain.ChannelInstagram, "ig-new"); id != ch.ID {
		t.Fatalf("new key not indexed")
	}
	got, _ := GetAgentChannel(ctx, db, a.ID, ch.ID)
	if got.IsActive || got.Config.Data().AccessToken != "t" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := UpdateChannel(ctx, db, "other-agent", ch); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign agent, got %v", err)
	}

	list, err := ListChannels(ctx, db, a.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListChannels = %d,%v", len(list), err)
	}
}
