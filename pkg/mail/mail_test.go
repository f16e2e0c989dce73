package mail_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/mail"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/storage"
)

type captured struct {
	from string
	to   []string
	raw  string
}

type captureTransport struct{ sent []captured }

func (c *captureTransport) Deliver(_ context.Context, from string, to []string, raw []byte) error {
	c.sent = append(c.sent, captured{from, to, string(raw)})
	return nil
}

func TestSendVerificationCode(t *testing.T) {
	tr := &captureTransport{}
	m := mail.New("orders@truck.test", "Truck", tr)

	require.NoError(t, m.SendVerificationCode(context.Background(), "a@b.com", "482913", 10*time.Minute))

	require.Len(t, tr.sent, 1)
	got := tr.sent[0]
	assert.Equal(t, "orders@truck.test", got.from)
	assert.Equal(t, []string{"a@b.com"}, got.to)
	assert.Contains(t, got.raw, "Subject: Your verification code\r\n")
	assert.Contains(t, got.raw, "482913")
	assert.Contains(t, got.raw, "10 minutes")
	assert.Contains(t, got.raw, "text/html")
}

func TestSubjectCannotInjectHeaders(t *testing.T) {
	tr := &captureTransport{}
	m := mail.New("x@truck.test", "Truck", tr)

	require.NoError(t, m.To("a@b.com").Subject("hi\r\nBcc: evil@x.com").Text("body").Send(context.Background()))
	assert.NotContains(t, tr.sent[0].raw, "\r\nBcc:")
}

func TestRecipientValidation(t *testing.T) {
	m := mail.New("x@truck.test", "Truck", &captureTransport{})
	assert.ErrorIs(t, m.To().Text("x").Send(context.Background()), mail.ErrNoRecipients)
	assert.Error(t, m.To("a@b.com\r\nBcc: c@d.com").Text("x").Send(context.Background()))
}

func TestReceiptEscapesItemNames(t *testing.T) {
	raw, err := mail.RenderReceipt(mail.Receipt{
		OrderID:  7,
		Lines:    []mail.ReceiptLine{{Name: "<b>Taco</b>", Quantity: 2, Amount: "7.00"}},
		Subtotal: "7.00", Tax: "0.58", Total: "7.58", Currency: "USD",
	})
	require.NoError(t, err)
	assert.Contains(t, raw, "#7")
	assert.Contains(t, raw, "&lt;b&gt;Taco&lt;/b&gt;")
	assert.Contains(t, raw, "7.58 USD")
}

func TestOutboxTransportWritesEML(t *testing.T) {
	disk := storage.NewLocalDisk(t.TempDir(), "")
	m := mail.New("x@truck.test", "Truck", mail.NewOutboxTransport(disk))

	require.NoError(t, m.To("a@b.com").Text("hello").Send(context.Background()))

	files, err := disk.List(context.Background(), "mail/outbox")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".eml"))

	data, err := disk.Get(context.Background(), files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
