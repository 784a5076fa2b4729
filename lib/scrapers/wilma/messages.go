package wilma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"wilma-backend/lib/htmlutil"
	"wilma-backend/lib/textutil"
	"wilma-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

// the json list endpoint renders timestamps like "2026-02-08 11:42"
const listTimestampFormat = "2006-01-02 15:04"

// Messages lists the newest messages of a folder via the portal's
// json endpoint.
func (c *Client) Messages(ctx context.Context, folder Folder, limit int) ([]MessageSummary, error) {
	ctx, span := tracer.Start(ctx, "client:Messages")
	defer span.End()

	const path = "/messages/list/index_json"
	res, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Messages []map[string]any `json:"Messages"`
	}
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		// some instances answer the json endpoint with a rendered page
		if summaries := parseMessageListMarkup(string(res.Body()), folder, limit); len(summaries) > 0 {
			return summaries, nil
		}
		return nil, &APIError{Path: path, Err: fmt.Errorf("failed to parse message list: %w", err)}
	}

	items := payload.Messages
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	summaries := make([]MessageSummary, len(items))
	for i, item := range items {
		timestamp, err := time.ParseInLocation(
			listTimestampFormat,
			eventString(item, "TimeStamp"),
			timezone.Location,
		)
		if err != nil {
			timestamp = timezone.Now()
		}

		itemFolder := folder
		if f := eventString(item, "Folder"); f != "" {
			itemFolder = Folder(f)
		}

		summaries[i] = MessageSummary{
			Id:        stringifyField(item, "Id"),
			Subject:   eventString(item, "Subject"),
			Sender:    eventString(item, "Sender"),
			Timestamp: timestamp,
			IsRead:    eventInt(item, "Status") != 0,
			Folder:    itemFolder,
		}
	}
	return summaries, nil
}

// ids arrive as json numbers, everything else as strings
func stringifyField(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

var messageHrefRegex = regexp.MustCompile(`/messages/(\d+)`)
var unreadMarkerRegex = regexp.MustCompile(`(?i)unread|lukematon`)

// server-rendered message lists come as table rows holding a link to
// the message, with sender and timestamp cells beside it. a page with
// links but no surrounding rows still yields id and subject.
func parseMessageListMarkup(doc string, folder Folder, limit int) []MessageSummary {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil
	}

	var summaries []MessageSummary
	seen := map[string]bool{}

	parsed.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if limit > 0 && len(summaries) >= limit {
			return
		}
		link := row.Find(`a[href*="/messages/"]`).First()
		if link.Length() == 0 {
			return
		}
		groups := messageHrefRegex.FindStringSubmatch(link.AttrOr("href", ""))
		if groups == nil || seen[groups[1]] {
			return
		}
		seen[groups[1]] = true

		cells := row.Find("td")
		markup, _ := goquery.OuterHtml(row)
		summaries = append(summaries, MessageSummary{
			Id:        groups[1],
			Subject:   strings.TrimSpace(link.Text()),
			Sender:    cellText(cells, 1),
			Timestamp: parseTimestamp(cellText(cells, 2)),
			IsRead:    !unreadMarkerRegex.MatchString(markup),
			Folder:    folder,
		})
	})
	if len(summaries) > 0 {
		return summaries
	}

	parsed.Find(`a[href*="/messages/"]`).Each(func(_ int, link *goquery.Selection) {
		if limit > 0 && len(summaries) >= limit {
			return
		}
		groups := messageHrefRegex.FindStringSubmatch(link.AttrOr("href", ""))
		if groups == nil || seen[groups[1]] {
			return
		}
		seen[groups[1]] = true

		summaries = append(summaries, MessageSummary{
			Id:        groups[1],
			Subject:   strings.TrimSpace(link.Text()),
			Timestamp: timezone.Now(),
			Folder:    folder,
		})
	})
	return summaries
}

// GetMessage fetches a single message with its full content. single
// messages are only served as html. a fetched message is always
// considered read, fetching implies viewing.
func (c *Client) GetMessage(ctx context.Context, messageId string) (Message, error) {
	ctx, span := tracer.Start(ctx, "client:GetMessage")
	defer span.End()

	res, err := c.request(ctx, http.MethodGet, "/messages/"+messageId, nil)
	if err != nil {
		return Message{}, err
	}

	return parseMessageDocument(string(res.Body()), messageId), nil
}

const siteTitleSuffix = " - Wilma"

var senderLabelRegex = regexp.MustCompile(`(?i)Lähettäjä`)
var sentLabelRegex = regexp.MustCompile(`(?i)Lähetetty`)

// "8.2.2026 klo 11:42" as rendered in message metadata
var messageTimeRegex = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})\s*(?:klo\s*)?(\d{1,2})[.:](\d{2})`)

// timestamp-shaped substring, the last one separates the metadata
// footer from the message body
var timestampShapeRegex = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}\s*(?:klo\s*)?\d{1,2}[.:]\d{2}`)

// dialog and ui chrome fragments the portal bakes into the content
// panel
var chromeFragments = []*regexp.Regexp{
	regexp.MustCompile(`×\s*Varmistus\s*Jatka\s*Peruuta`),
	regexp.MustCompile(`Vastaa viestin lähettäjälle`),
}

var attachmentHrefRegex = regexp.MustCompile(`(?i)attachment|liite`)
var recipientsClassRegex = regexp.MustCompile(`(?i)recipients|vastaanottaja`)

func parseMessageDocument(doc string, messageId string) Message {
	message := Message{
		Id:        messageId,
		Timestamp: timezone.Now(),
		IsRead:    true,
		Folder:    FolderInbox,
	}

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return message
	}
	root := parsed.Get(0)

	// the title carries the subject with a trailing site-name suffix
	title := strings.TrimSpace(parsed.Find("title").First().Text())
	if idx := strings.LastIndex(title, siteTitleSuffix); idx != -1 {
		message.Subject = strings.TrimSpace(title[:idx])
	}

	if node := htmlutil.LabelSibling(root, senderLabelRegex); node != nil {
		message.Sender = textutil.CollapseWhitespace(htmlutil.GetText(node))
	}

	if node := htmlutil.LabelSibling(root, sentLabelRegex); node != nil {
		text := strings.TrimSpace(htmlutil.GetText(node))
		if groups := messageTimeRegex.FindStringSubmatch(text); groups != nil {
			message.Timestamp = time.Date(
				atoi(groups[3]), time.Month(atoi(groups[2])), atoi(groups[1]),
				atoi(groups[4]), atoi(groups[5]), 0, 0, timezone.Location,
			)
		}
	}

	if panel := parsed.Find("div.panel-body").First(); panel.Length() > 0 {
		fullText := htmlutil.GetTextJoined(panel.Get(0), "\n")
		// everything up to and including the last timestamp-shaped
		// substring is the metadata footer
		content := fullText
		if parts := timestampShapeRegex.Split(fullText, -1); len(parts) > 1 {
			content = parts[len(parts)-1]
		}
		message.Content = textutil.StripFragments(content, chromeFragments)
	}

	parsed.Find("a").Each(func(_ int, anchor *goquery.Selection) {
		if !attachmentHrefRegex.MatchString(anchor.AttrOr("href", "")) {
			return
		}
		if name := strings.TrimSpace(anchor.Text()); name != "" {
			message.Attachments = append(message.Attachments, name)
		}
	})

	parsed.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !recipientsClassRegex.MatchString(sel.AttrOr("class", "")) {
			return true
		}
		for _, name := range strings.Split(sel.Text(), ",") {
			if name = strings.TrimSpace(name); name != "" {
				message.Recipients = append(message.Recipients, name)
			}
		}
		return false
	})

	return message
}

// operates on digit groups the surrounding regex already validated
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// the formkey (csrf token) appears under both attribute orderings in
// the wild
var formkeyRegexes = []*regexp.Regexp{
	regexp.MustCompile(`name="formkey"\s+value="([^"]*)"`),
	regexp.MustCompile(`value="([^"]*)"\s+name="formkey"`),
}

func extractFormkey(doc string) string {
	for _, pattern := range formkeyRegexes {
		if groups := pattern.FindStringSubmatch(doc); groups != nil {
			return groups[1]
		}
	}
	return ""
}

const composePath = "/messages/compose"

// SendMessage sends a message to the given recipient ids. when
// replyToId is set the portal threads the message under it.
//
// success is judged heuristically: the post-redirect url containing
// the message-list path, or the response body lacking the portal's
// error keywords. this mirrors what the portal actually exposes and
// carries a known false-positive/negative risk.
func (c *Client) SendMessage(ctx context.Context, recipientIds []string, subject, body, replyToId string) error {
	ctx, span := tracer.Start(ctx, "client:SendMessage")
	defer span.End()

	res, err := c.request(ctx, http.MethodGet, composePath, nil)
	if err != nil {
		return err
	}
	formkey := extractFormkey(string(res.Body()))

	form := map[string]string{
		"formkey": formkey,
		"rcpt":    strings.Join(recipientIds, ","),
		"subject": subject,
		"body":    body,
	}
	if replyToId != "" {
		form["replyto"] = replyToId
	}

	res, err = c.request(ctx, http.MethodPost, composePath, form)
	if err != nil {
		return err
	}
	if !sendSucceeded(finalURL(res), string(res.Body())) {
		return &APIError{Path: composePath, Err: fmt.Errorf("the portal reported an error sending the message")}
	}
	return nil
}

func sendSucceeded(finalUrl, body string) bool {
	if strings.Contains(strings.ToLower(finalUrl), "/messages") {
		return true
	}
	lower := strings.ToLower(body)
	return !strings.Contains(lower, "error") && !strings.Contains(lower, "virhe")
}

// ReplyToMessage replies to a message via the portal's reply compose
// form. the portal resolves the recipients server-side from the
// original message and injects them as hidden fields, which avoids a
// recipient lookup that fails when the recipient list is loaded
// dynamically.
func (c *Client) ReplyToMessage(ctx context.Context, messageId, body string) error {
	ctx, span := tracer.Start(ctx, "client:ReplyToMessage")
	defer span.End()

	replyPath := composePath + "?answer=" + messageId
	res, err := c.request(ctx, http.MethodGet, replyPath, nil)
	if err != nil {
		return err
	}

	form, err := parseComposeForm(string(res.Body()), messageId)
	if err != nil {
		return &APIError{Path: replyPath, Err: err}
	}

	data := form.Fields
	data["formkey"] = form.Formkey
	data[form.BodyField] = body

	res, err = c.request(ctx, http.MethodPost, form.Action, data)
	if err != nil {
		return err
	}
	if !sendSucceeded(finalURL(res), string(res.Body())) {
		return &APIError{Path: form.Action, Err: fmt.Errorf("the portal reported an error sending the reply")}
	}
	return nil
}

type composeForm struct {
	Formkey string
	// hidden fields the portal pre-fills, may carry recipient,
	// subject and thread-reference values for replies
	Fields map[string]string
	// name of the message body field, from the form's textarea
	BodyField string
	// POST target
	Action string
}

func parseComposeForm(doc string, targetId string) (composeForm, error) {
	form := composeForm{
		Formkey:   extractFormkey(doc),
		Fields:    map[string]string{},
		BodyField: "body",
		Action:    composePath,
	}
	if form.Formkey == "" {
		return form, fmt.Errorf("could not extract formkey from compose form")
	}

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err == nil {
		element := parsed.Find("form").First()
		if element.Length() > 0 {
			form.Fields = htmlutil.HiddenFields(element)
			delete(form.Fields, "formkey")

			form.BodyField = element.Find("textarea").First().AttrOr("name", "body")

			if action := element.AttrOr("action", ""); strings.HasPrefix(action, "/") {
				form.Action = action
			}
		}
	}

	// the thread reference must survive even when the portal did not
	// inject one
	_, hasAnswer := form.Fields["answer"]
	_, hasReplyTo := form.Fields["replyto"]
	if !hasAnswer && !hasReplyTo {
		form.Fields["answer"] = targetId
	}

	return form, nil
}
