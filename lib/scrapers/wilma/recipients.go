package wilma

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"wilma-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// fallback strategies for the recipient list, tried in order, first
// non-empty result wins. the portal either renders recipients
// server-side as <option> elements or ships them to a javascript
// widget as embedded json.
var recipientStrategies = []func(string) []Recipient{
	recipientsFromOptions,
	recipientsFromScripts,
}

// Recipients lists the people a message can be addressed to. an empty
// list is a valid outcome, the compose page may load its recipients
// through channels this client cannot see.
func (c *Client) Recipients(ctx context.Context) ([]Recipient, error) {
	ctx, span := tracer.Start(ctx, "client:Recipients")
	defer span.End()

	res, err := c.request(ctx, http.MethodGet, composePath, nil)
	if err != nil {
		return nil, err
	}

	doc := string(res.Body())
	for _, strategy := range recipientStrategies {
		if recipients := strategy(doc); len(recipients) > 0 {
			return recipients, nil
		}
	}
	return nil, nil
}

// server-rendered <option> elements with a non-empty, non-zero value
func recipientsFromOptions(doc string) []Recipient {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil
	}

	var recipients []Recipient
	parsed.Find("option").Each(func(_ int, option *goquery.Selection) {
		value := option.AttrOr("value", "")
		if value == "" || value == "0" {
			return
		}
		display := strings.TrimSpace(option.Text())
		if display == "" {
			return
		}
		name, role := textutil.SplitTrailingParen(display)
		recipients = append(recipients, Recipient{
			Id:   value,
			Name: name,
			Role: role,
		})
	})
	return recipients
}

// widget initialization data, e.g. select2/chosen style
// data: [{id: "...", text: "..."}]
var widgetDataRegex = regexp.MustCompile(
	`data\s*:\s*(\[(?:[^[\]]*|\[(?:[^[\]]*|\[[^[\]]*\])*\])*\])`,
)

// recipient arrays assigned to conventionally named variables, or fed
// through a json parse call
var scriptDataRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)(?:recipients|vastaanottajat|rcptList|recipientData)\s*=\s*(\[.*?\])\s*;`),
	regexp.MustCompile(`(?s)JSON\.parse\(\s*['"](\[.*?\])['"]`),
}

func recipientsFromScripts(doc string) []Recipient {
	if groups := widgetDataRegex.FindStringSubmatch(doc); groups != nil {
		if recipients := recipientsFromJsonList([]byte(groups[1])); len(recipients) > 0 {
			return recipients
		}
	}

	for _, pattern := range scriptDataRegexes {
		groups := pattern.FindStringSubmatch(doc)
		if groups == nil {
			continue
		}
		if recipients := recipientsFromJsonList([]byte(groups[1])); len(recipients) > 0 {
			return recipients
		}
	}
	return nil
}

// the embedded json is not schema'd: ids and names appear under
// varying key casings, tried in order
var recipientIdKeys = []string{"id", "Id", "ID"}
var recipientNameKeys = []string{"text", "name", "Name"}

func recipientsFromJsonList(raw []byte) []Recipient {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var recipients []Recipient
	for _, item := range items {
		id := firstPresent(item, recipientIdKeys)
		display := firstPresent(item, recipientNameKeys)
		if id == "" || display == "" {
			continue
		}
		name, role := textutil.SplitTrailingParen(display)
		recipients = append(recipients, Recipient{
			Id:   id,
			Name: name,
			Role: role,
		})
	}
	return recipients
}

func firstPresent(item map[string]any, keys []string) string {
	for _, key := range keys {
		if _, ok := item[key]; ok {
			return stringifyField(item, key)
		}
	}
	return ""
}
