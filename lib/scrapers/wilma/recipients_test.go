package wilma

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecipientsFromOptions(t *testing.T) {
	doc := `<html><body>
	<select name="rcpt">
		<option value="">-- Valitse --</option>
		<option value="0">Kaikki</option>
		<option value="opettaja_doe">Jane Doe (Math Teacher)</option>
		<option value="rehtori_v">Matti Virtanen</option>
	</select>
	</body></html>`

	recipients := recipientsFromOptions(doc)
	require.Equal(t, []Recipient{
		{Id: "opettaja_doe", Name: "Jane Doe", Role: "Math Teacher"},
		{Id: "rehtori_v", Name: "Matti Virtanen"},
	}, recipients)
}

func TestRecipientsFromWidgetData(t *testing.T) {
	doc := `<script>
	$("#rcpt").select2({
		data : [{"id": "opettaja_doe", "text": "Jane Doe (Math Teacher)"}, {"id": "rehtori_v", "text": "Matti Virtanen"}]
	});
	</script>`

	recipients := recipientsFromScripts(doc)
	require.Equal(t, []Recipient{
		{Id: "opettaja_doe", Name: "Jane Doe", Role: "Math Teacher"},
		{Id: "rehtori_v", Name: "Matti Virtanen"},
	}, recipients)
}

func TestRecipientsFromScriptVariable(t *testing.T) {
	doc := `<script>
	var recipients = [{"Id": 42, "Name": "Jane Doe"}];
	</script>`

	recipients := recipientsFromScripts(doc)
	require.Equal(t, []Recipient{
		{Id: "42", Name: "Jane Doe"},
	}, recipients)
}

func TestRecipientsFromJsonParse(t *testing.T) {
	doc := `<script>
	var data = JSON.parse('[{"id": "a1", "name": "Jane Doe"}]');
	</script>`

	recipients := recipientsFromScripts(doc)
	require.Equal(t, []Recipient{
		{Id: "a1", Name: "Jane Doe"},
	}, recipients)
}

func TestRecipientsEmptyPage(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	// the compose page loads its recipient widget from a separate
	// request this client never sees
	portal.pages["/!0411876/messages/compose"] = `<html><body><script>loadRecipients();</script></body></html>`
	client := portal.client(t)

	recipients, err := client.Recipients(context.Background())
	require.NoError(t, err)
	require.Empty(t, recipients)
}

func TestRecipientsPrefersRenderedOptions(t *testing.T) {
	portal := newStubPortal()
	defer portal.server.Close()
	portal.pages["/!0411876/messages/compose"] = `<html><body>
	<select><option value="x1">Jane Doe</option></select>
	<script>var recipients = [{"id": "y1", "text": "Someone Else"}];</script>
	</body></html>`
	client := portal.client(t)

	recipients, err := client.Recipients(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Recipient{{Id: "x1", Name: "Jane Doe"}}, recipients)
}
