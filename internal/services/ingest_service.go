// Package services – IngestService
//
// This file implements IngestService, the inbound pipeline shared by the
// provider webhooks and the webchat endpoint. For each normalized message it:
//
//   - claims an InboundReceipt keyed by provider message id or Idempotency-Key
//     so redeliveries are acknowledged without a second USER message
//   - finds or creates the conversation for (channel, sender)
//   - downloads and stores image/document attachments through media.Pipeline
//   - stores the USER message, then matches and executes an intent
//   - generates the AGENT reply, stores it and delivers it through the
//     provider (webchat gets the reply in the HTTP response instead)
//
// Receipt lifecycle: a run that fails before the USER message is stored
// releases its receipt. A run that fails later keeps it with the message id
// recorded, and the next redelivery resumes at reply generation without
// executing the intent again.
//
// Observability: HandleWebhook and Process open OpenTelemetry spans tagged
// with channel id and type. Outcomes are counted in
// konsul_inbound_messages_total and send failures in
// konsul_outbound_send_failures_total. Logs go through the request-scoped
// zerolog logger enriched with channel_id and external_id.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/media"
	"github.com/konsul-app/konsul-backend/internal/reply"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

// Outcome describes what happened to one inbound message.
type Outcome struct {
	ChannelID      string          `json:"channelId"`
	ConversationID string          `json:"conversationId"`
	Message        *domain.Message `json:"message,omitempty"`
	Reply          *domain.Message `json:"reply,omitempty"`
	IntentID       string          `json:"intentId,omitempty"`
	IntentResult   *Result         `json:"intentResult,omitempty"`
	// Duplicate is true when the message had already been processed; Reply
	// then carries the recorded reply when one exists.
	Duplicate bool `json:"duplicate,omitempty"`
}

// WebhookReport summarizes a provider webhook delivery.
type WebhookReport struct {
	Received   int
	Matched    int
	Processed  int
	Duplicates int
	Failed     int
}

// IngestService runs the inbound pipeline: de-duplicate, resolve the
// conversation, store attachments and the USER message, match and execute an
// intent, generate and store the AGENT reply, and deliver it through the
// provider.
type IngestService struct {
	DB        *gorm.DB
	Channels  *ChannelService
	Providers *channels.Registry
	Matcher   *Matcher
	Executor  *IntentExecutor
	Replies   reply.Generator
	// Media stores attachments; nil skips attachment persistence.
	Media *media.Pipeline

	// FallbackTokens supplies an access token for channels whose config
	// carries none.
	FallbackTokens map[domain.ChannelType]string
	ReceiptTTL     time.Duration
	// IdempotencyTTL bounds webchat Idempotency-Key replays; ReceiptTTL
	// applies when zero.
	IdempotencyTTL time.Duration
	HistoryLimit   int
}

func (s *IngestService) receiptTTL(t domain.ChannelType) time.Duration {
	if t == domain.ChannelWebchat && s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	if s.ReceiptTTL > 0 {
		return s.ReceiptTTL
	}
	return 72 * time.Hour
}

func (s *IngestService) historyLimit() int {
	if s.HistoryLimit > 0 {
		return s.HistoryLimit
	}
	return 20
}

// HandleWebhook parses a provider webhook body and processes every message
// it carries. Messages whose correlation key resolves to no active channel
// are skipped. Per-message failures are logged and counted; only a body that
// cannot be parsed is returned as an error.
func (s *IngestService) HandleWebhook(ctx context.Context, t domain.ChannelType, body []byte) (WebhookReport, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "HandleWebhook", trace.WithAttributes(attribute.String("channel.type", string(t))))
	defer span.End()

	var rep WebhookReport
	p, ok := s.Providers.Get(t)
	if !ok {
		return rep, fmt.Errorf("%w: %s", channels.ErrUnsupported, t)
	}
	msgs, err := p.Parse(body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return rep, err
	}

	lg := zerolog.Ctx(ctx)
	rep.Received = len(msgs)
	for _, m := range msgs {
		ch, err := s.Channels.Resolve(ctx, t, m.CorrelationKey)
		if err != nil {
			if !errors.Is(err, ErrChannelNotFound) {
				rep.Failed++
				lg.Error().Err(err).Str("channel_type", string(t)).Msg("channel lookup failed")
				continue
			}
			inboundMessages.WithLabelValues(string(t), "unmatched").Inc()
			lg.Debug().Str("channel_type", string(t)).Str("correlation_key", m.CorrelationKey).Msg("no channel for inbound message")
			continue
		}
		rep.Matched++

		out, err := s.Process(ctx, ch, m)
		switch {
		case err != nil:
			rep.Failed++
			lg.Error().Err(err).
				Str("channel_id", ch.ID).
				Str("provider_message_id", m.ProviderMessageID).
				Msg("inbound message failed")
		case out.Duplicate:
			rep.Duplicates++
		default:
			rep.Processed++
		}
	}
	span.SetAttributes(
		attribute.Int("messages.received", rep.Received),
		attribute.Int("messages.matched", rep.Matched),
	)
	return rep, nil
}

// HandleWebchat processes a widget post. The reply is returned to the caller
// instead of being sent. A retried post with the same idempotency key returns
// the recorded reply with Duplicate set.
func (s *IngestService) HandleWebchat(ctx context.Context, channelID string, msg channels.WebchatMessage, idempotencyKey string) (*Outcome, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyMessage
	}
	if strings.TrimSpace(msg.VisitorID) == "" {
		return nil, fmt.Errorf("%w: visitorId is required", ErrEmptyMessage)
	}
	ch, err := s.Channels.Resolve(ctx, domain.ChannelWebchat, channelID)
	if err != nil {
		return nil, err
	}
	out, err := s.Process(ctx, ch, msg.ToInbound(ch.ID, idempotencyKey))
	if err != nil {
		return nil, err
	}
	if out.Duplicate && out.Reply == nil {
		return nil, ErrDuplicateDelivery
	}
	return out, nil
}

// Process runs the pipeline for one normalized message on a resolved channel.
func (s *IngestService) Process(ctx context.Context, ch *domain.Channel, m channels.InboundMessage) (*Outcome, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("channel.id", ch.ID),
			attribute.String("channel.type", string(ch.Type)),
		),
	)
	defer span.End()

	lg := zerolog.Ctx(ctx).With().Str("channel_id", ch.ID).Str("external_id", m.ExternalID).Logger()
	ctx = lg.WithContext(ctx)
	label := string(ch.Type)

	if strings.TrimSpace(m.ExternalID) == "" {
		inboundMessages.WithLabelValues(label, "skipped").Inc()
		return nil, fmt.Errorf("%w: missing sender id", channels.ErrBadPayload)
	}

	// De-duplicate before anything is persisted.
	var receipt *domain.InboundReceipt
	if key := m.DedupKey(); key != "" {
		rec, err := repo.ClaimReceipt(ctx, s.DB, ch.ID, key, s.receiptTTL(ch.Type))
		if errors.Is(err, repo.ErrDuplicate) {
			inboundMessages.WithLabelValues(label, "duplicate").Inc()
			lg.Info().Str("dedup_key", key).Msg("duplicate inbound message ignored")
			return s.replay(ctx, ch, key)
		}
		if err != nil {
			return nil, err
		}
		receipt = rec
	}

	out, err := s.run(ctx, ch, m)
	if err != nil {
		inboundMessages.WithLabelValues(label, "failed").Inc()
		span.SetStatus(codes.Error, err.Error())
		s.abandon(ctx, receipt, out)
		return nil, err
	}

	if receipt != nil {
		if err := repo.CompleteReceipt(ctx, s.DB, receipt.ID, out.Message.ID, out.Reply.ID); err != nil {
			lg.Warn().Err(err).Msg("failed to complete receipt")
		}
	}
	inboundMessages.WithLabelValues(label, "processed").Inc()
	return out, nil
}

// abandon settles the receipt of a failed run. Before the USER message is
// stored the claim is dropped and a redelivery starts over. Afterwards the
// receipt keeps the message id and a redelivery resumes at the reply.
func (s *IngestService) abandon(ctx context.Context, receipt *domain.InboundReceipt, out *Outcome) {
	if receipt == nil {
		return
	}
	lg := zerolog.Ctx(ctx)
	if out == nil || out.Message == nil {
		if err := repo.ReleaseReceipt(ctx, s.DB, receipt.ID); err != nil {
			lg.Warn().Err(err).Msg("failed to release receipt")
		}
		return
	}
	if err := repo.CompleteReceipt(ctx, s.DB, receipt.ID, out.Message.ID, ""); err != nil {
		lg.Warn().Err(err).Msg("failed to record stored message on receipt")
	}
}

// replay loads what a previous delivery of the same message produced. A
// delivery that stored its USER message but failed before replying is
// resumed instead.
func (s *IngestService) replay(ctx context.Context, ch *domain.Channel, key string) (*Outcome, error) {
	out := &Outcome{ChannelID: ch.ID, Duplicate: true}
	rec, err := repo.GetReceipt(ctx, s.DB, ch.ID, key, time.Now().UTC())
	if err != nil || rec.MessageID == "" {
		return out, nil
	}
	if rec.ReplyMessageID == "" {
		return s.resume(ctx, ch, rec)
	}
	if msg, err := repo.GetMessage(ctx, s.DB, rec.MessageID); err == nil {
		out.Message = msg
		out.ConversationID = msg.ConversationID
	}
	if rep, err := repo.GetMessage(ctx, s.DB, rec.ReplyMessageID); err == nil {
		out.Reply = rep
	}
	return out, nil
}

// resume generates and delivers the missing reply for a stored USER message.
// The intent is not matched again: its action already ran on the first
// attempt.
func (s *IngestService) resume(ctx context.Context, ch *domain.Channel, rec *domain.InboundReceipt) (*Outcome, error) {
	lg := zerolog.Ctx(ctx).With().Str("message_id", rec.MessageID).Logger()
	won, err := repo.TakeStalledReceipt(ctx, s.DB, rec.ID, rec.MessageID)
	if err != nil {
		return nil, err
	}
	if !won {
		return &Outcome{ChannelID: ch.ID, Duplicate: true}, nil
	}

	out, err := s.finish(ctx, ch, rec.MessageID)
	if err != nil {
		if cerr := repo.CompleteReceipt(ctx, s.DB, rec.ID, rec.MessageID, ""); cerr != nil {
			lg.Warn().Err(cerr).Msg("failed to restore receipt")
		}
		return nil, err
	}
	if err := repo.CompleteReceipt(ctx, s.DB, rec.ID, out.Message.ID, out.Reply.ID); err != nil {
		lg.Warn().Err(err).Msg("failed to complete receipt")
	}
	lg.Info().Msg("resumed reply for stored message")
	return out, nil
}

func (s *IngestService) finish(ctx context.Context, ch *domain.Channel, messageID string) (*Outcome, error) {
	userMsg, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := repo.GetConversation(ctx, s.DB, userMsg.ConversationID)
	if err != nil {
		return nil, err
	}
	out := &Outcome{ChannelID: ch.ID, ConversationID: conv.ID, Message: userMsg}
	if err := s.respond(ctx, ch, conv, userMsg, false, out); err != nil {
		return nil, err
	}
	return out, nil
}

// run stores the USER message and hands it to respond. Once the message is
// stored the returned Outcome is non-nil, even alongside an error.
func (s *IngestService) run(ctx context.Context, ch *domain.Channel, m channels.InboundMessage) (*Outcome, error) {
	lg := zerolog.Ctx(ctx)
	provider, ok := s.Providers.Get(ch.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", channels.ErrUnsupported, ch.Type)
	}

	conv, created, err := repo.FindOrCreateConversation(ctx, s.DB, ch, m.ExternalID, m.ContactName, m.ContactEmail)
	if err != nil {
		return nil, err
	}
	if created {
		lg.Info().Str("conversation_id", conv.ID).Msg("conversation started")
	}

	var meta domain.MessageMetadata
	if m.Media != nil && s.Media != nil {
		att, err := s.storeMedia(ctx, provider, s.credentials(ch), m)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", m.Kind, err)
		}
		meta.Attachments = append(meta.Attachments, att)
	}

	userMsg := &domain.Message{
		ConversationID:    conv.ID,
		Role:              domain.RoleUser,
		Content:           m.Content(),
		Metadata:          datatypes.NewJSONType(meta),
		ProviderMessageID: m.ProviderMessageID,
	}
	if err := repo.CreateMessage(ctx, s.DB, userMsg); err != nil {
		return nil, err
	}
	if err := repo.TouchConversation(ctx, s.DB, conv.ID, userMsg.CreatedAt); err != nil {
		lg.Warn().Err(err).Msg("failed to touch conversation")
	}

	out := &Outcome{ChannelID: ch.ID, ConversationID: conv.ID, Message: userMsg}
	hasText := strings.TrimSpace(m.Text) != "" || (m.Media != nil && strings.TrimSpace(m.Media.Caption) != "")
	return out, s.respond(ctx, ch, conv, userMsg, hasText, out)
}

// respond runs the steps after the USER message is stored: intent matching
// and execution when matchIntent is set, reply generation, storing the AGENT
// reply and, outside webchat, delivery through the provider.
func (s *IngestService) respond(ctx context.Context, ch *domain.Channel, conv *domain.Conversation, userMsg *domain.Message, matchIntent bool, out *Outcome) error {
	lg := zerolog.Ctx(ctx)
	content := userMsg.Content

	agent, err := repo.GetAgentByID(ctx, s.DB, ch.AgentID)
	if err != nil {
		return err
	}

	var outcome *reply.IntentOutcome
	if matchIntent {
		intents, err := repo.ListEnabledIntents(ctx, s.DB, ch.AgentID)
		if err != nil {
			return err
		}
		if in := s.Matcher.DetectIntent(ctx, content, intents); in != nil {
			res := s.Executor.Execute(ctx, in, ExecContext{Conversation: conv, Message: userMsg, UserMessage: content})
			out.IntentID, out.IntentResult = in.ID, &res
			data, _ := res.Data.(map[string]any)
			outcome = &reply.IntentOutcome{Name: in.Name, Type: in.ActionType, Success: res.Success, Data: data}
		}
	}

	history, err := repo.ListRecentMessages(ctx, s.DB, conv.ID, s.historyLimit()+1)
	if err != nil {
		return err
	}
	history = withoutMessage(history, userMsg.ID)

	text, err := s.Replies.Generate(ctx, reply.Request{
		Agent:        *agent,
		Conversation: *conv,
		History:      history,
		UserMessage:  content,
		Intent:       outcome,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			lg.Warn().Err(err).Msg("reply generation failed")
		}
		text = reply.DefaultFallback
	}

	replyMsg := &domain.Message{ConversationID: conv.ID, Role: domain.RoleAgent, Content: text}
	if err := repo.CreateMessage(ctx, s.DB, replyMsg); err != nil {
		return err
	}
	if err := repo.TouchConversation(ctx, s.DB, conv.ID, replyMsg.CreatedAt); err != nil {
		lg.Warn().Err(err).Msg("failed to touch conversation")
	}
	out.Reply = replyMsg

	if ch.Type != domain.ChannelWebchat {
		if provider, ok := s.Providers.Get(ch.Type); ok {
			s.deliver(ctx, provider, s.credentials(ch), ch, conv.ExternalID, replyMsg)
		}
	}
	return nil
}

// deliver sends the reply through the provider. Failures are logged; the
// reply stays stored either way.
func (s *IngestService) deliver(ctx context.Context, p channels.Provider, creds domain.ChannelConfig, ch *domain.Channel, to string, msg *domain.Message) {
	lg := zerolog.Ctx(ctx)
	pid, err := p.Send(ctx, creds, to, msg.Content)
	if err != nil {
		outboundFailures.WithLabelValues(string(ch.Type)).Inc()
		lg.Error().Err(err).Str("message_id", msg.ID).Msg("reply delivery failed")
		return
	}
	if pid == "" {
		return
	}
	msg.ProviderMessageID = pid
	if err := repo.SetMessageProviderID(ctx, s.DB, msg.ID, pid); err != nil {
		lg.Warn().Err(err).Msg("failed to store provider message id")
	}
}

func (s *IngestService) storeMedia(ctx context.Context, p channels.Provider, creds domain.ChannelConfig, m channels.InboundMessage) (domain.Attachment, error) {
	blob, err := p.FetchMedia(ctx, creds, *m.Media)
	if err != nil {
		return domain.Attachment{}, err
	}
	filename := m.Media.Filename
	if filename == "" {
		filename = blob.Filename
	}
	mime := blob.Mime
	if mime == "" {
		mime = m.Media.Mime
	}
	return s.Media.Persist(ctx, string(m.Kind), blob.Data, mime, filename)
}

// credentials returns the channel config with the fallback token applied.
func (s *IngestService) credentials(ch *domain.Channel) domain.ChannelConfig {
	cfg := ch.Config.Data()
	if strings.TrimSpace(cfg.AccessToken) == "" {
		cfg.AccessToken = s.FallbackTokens[ch.Type]
	}
	return cfg
}

// PurgeReceipts removes expired de-duplication receipts.
func (s *IngestService) PurgeReceipts(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredReceipts(ctx, s.DB, time.Now().UTC())
}

func withoutMessage(msgs []domain.Message, id string) []domain.Message {
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
