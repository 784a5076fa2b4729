// Package wilma layers user-facing operations over the portal client:
// archival of read messages and fuzzy recipient resolution, so callers
// can address people by display name instead of opaque portal ids.
package wilma

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"wilma-backend/lib/messagestore"

	scraper "wilma-backend/lib/scrapers/wilma"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/wilma")

type Service struct {
	client *scraper.Client
	// messages fetched through GetMessage are copied here, the portal
	// expires old messages. nil disables archival.
	store *messagestore.Store
	user  string
}

func NewService(client *scraper.Client, user string, store *messagestore.Store) Service {
	return Service{
		client: client,
		store:  store,
		user:   user,
	}
}

func (s Service) Schedule(ctx context.Context, date time.Time) (scraper.DaySchedule, error) {
	ctx, span := tracer.Start(ctx, "Schedule")
	defer span.End()

	day, err := s.client.Schedule(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return scraper.DaySchedule{}, err
	}
	return day, nil
}

func (s Service) WeekSchedule(ctx context.Context, start time.Time) ([]scraper.DaySchedule, error) {
	ctx, span := tracer.Start(ctx, "WeekSchedule")
	defer span.End()

	week, err := s.client.WeekSchedule(ctx, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return week, nil
}

func (s Service) Messages(ctx context.Context, folder scraper.Folder, limit int) ([]scraper.MessageSummary, error) {
	ctx, span := tracer.Start(ctx, "Messages")
	defer span.End()

	messages, err := s.client.Messages(ctx, folder, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return messages, nil
}

// GetMessage fetches a message and, when a store is configured,
// archives it. archival failures are logged rather than surfaced, the
// fetched message is still good.
func (s Service) GetMessage(ctx context.Context, messageId string) (scraper.Message, error) {
	ctx, span := tracer.Start(ctx, "GetMessage")
	defer span.End()
	span.SetAttributes(attribute.String("message_id", messageId))

	message, err := s.client.GetMessage(ctx, messageId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return scraper.Message{}, err
	}

	if s.store != nil {
		err := s.store.Archive(ctx, recordFromMessage(s.user, message))
		if err != nil {
			slog.WarnContext(ctx, "failed to archive message", "id", messageId, "err", err)
		}
	}
	return message, nil
}

// ArchivedMessages lists previously archived messages, newest first.
func (s Service) ArchivedMessages(ctx context.Context, folder scraper.Folder, limit int) ([]scraper.Message, error) {
	ctx, span := tracer.Start(ctx, "ArchivedMessages")
	defer span.End()

	if s.store == nil {
		return nil, fmt.Errorf("no message store configured")
	}

	records, err := s.store.List(ctx, s.user, string(folder), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	messages := make([]scraper.Message, len(records))
	for i, rec := range records {
		messages[i] = messageFromRecord(rec)
	}
	return messages, nil
}

func (s Service) Recipients(ctx context.Context) ([]scraper.Recipient, error) {
	ctx, span := tracer.Start(ctx, "Recipients")
	defer span.End()

	recipients, err := s.client.Recipients(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return recipients, nil
}

// below this, a name match is considered a miss rather than a send to
// the wrong person
const resolveThreshold = 0.75

// ResolveRecipient finds the recipient whose display name most
// resembles query.
func (s Service) ResolveRecipient(ctx context.Context, query string) (scraper.Recipient, error) {
	ctx, span := tracer.Start(ctx, "ResolveRecipient")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	recipients, err := s.client.Recipients(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return scraper.Recipient{}, err
	}
	if len(recipients) == 0 {
		return scraper.Recipient{}, fmt.Errorf("the portal exposes no recipients to search")
	}

	best, similarity := bestMatch(query, recipients)
	if similarity < resolveThreshold {
		return scraper.Recipient{}, fmt.Errorf("no recipient resembling %q (closest was %q)", query, best.Name)
	}
	return best, nil
}

func bestMatch(query string, recipients []scraper.Recipient) (scraper.Recipient, float64) {
	var best scraper.Recipient
	var bestSimilarity float64
	for _, recipient := range recipients {
		similarity := matchr.JaroWinkler(
			strings.ToLower(query),
			strings.ToLower(recipient.Name),
			false,
		)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = recipient
		}
	}
	return best, bestSimilarity
}

func (s Service) SendMessage(ctx context.Context, recipientIds []string, subject, body string) error {
	ctx, span := tracer.Start(ctx, "SendMessage")
	defer span.End()

	err := s.client.SendMessage(ctx, recipientIds, subject, body, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s Service) ReplyToMessage(ctx context.Context, messageId, body string) error {
	ctx, span := tracer.Start(ctx, "ReplyToMessage")
	defer span.End()
	span.SetAttributes(attribute.String("message_id", messageId))

	err := s.client.ReplyToMessage(ctx, messageId, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func recordFromMessage(user string, message scraper.Message) messagestore.Record {
	return messagestore.Record{
		User:        user,
		Id:          message.Id,
		Folder:      string(message.Folder),
		Subject:     message.Subject,
		Sender:      message.Sender,
		Timestamp:   message.Timestamp,
		Content:     message.Content,
		Recipients:  message.Recipients,
		Attachments: message.Attachments,
	}
}

func messageFromRecord(rec messagestore.Record) scraper.Message {
	return scraper.Message{
		Id:          rec.Id,
		Subject:     rec.Subject,
		Sender:      rec.Sender,
		Timestamp:   rec.Timestamp,
		Content:     rec.Content,
		Recipients:  rec.Recipients,
		Attachments: rec.Attachments,
		IsRead:      true,
		Folder:      scraper.Folder(rec.Folder),
	}
}
