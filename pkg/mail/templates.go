package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Your verification code is</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
<p>It expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.</p>
</body></html>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h2>Thanks for your order #{{.OrderID}}</h2>
<table cellpadding="4">
{{range .Lines}}<tr><td>{{.Quantity}} × {{.Name}}</td><td align="right">{{.Amount}}</td></tr>
{{end}}<tr><td>Subtotal</td><td align="right">{{.Subtotal}}</td></tr>
<tr><td>Tax</td><td align="right">{{.Tax}}</td></tr>
<tr><td><strong>Total</strong></td><td align="right"><strong>{{.Total}} {{.Currency}}</strong></td></tr>
</table>
{{if .TransactionID}}<p>Payment reference: {{.TransactionID}}</p>{{end}}
</body></html>`))

// SendVerificationCode mails a one-time code.
func (m *Mailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	msg, err := m.To(to).Subject("Your verification code").
		Render(verificationTmpl, struct {
			Code    string
			Minutes int
		}{code, int(ttl.Minutes())})
	if err != nil {
		return err
	}
	return msg.Send(ctx)
}

// ReceiptLine is one row of a receipt, amounts already formatted.
type ReceiptLine struct {
	Name     string
	Quantity int
	Amount   string
}

// Receipt is the data for an order receipt email.
type Receipt struct {
	OrderID       uint
	Lines         []ReceiptLine
	Subtotal      string
	Tax           string
	Total         string
	Currency      string
	TransactionID string
}

// RenderReceipt renders the HTML body of an order receipt.
func RenderReceipt(r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("mail: render receipt: %w", err)
	}
	return buf.String(), nil
}
