package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// PaymentInfo is what the payment confirmation email shows the buyer.
type PaymentInfo struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	StoreName     string
	Amount        string
	InvoiceURL    string
	Items         []PaymentItem
}

type PaymentItem struct {
	Name      string
	Quantity  int
	LineTotal string
}

// Renderer renders the payment confirmation email. Its templates are parsed
// once and are safe for concurrent use.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.New("payment_received_html").Parse(paymentReceivedHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template payment_received: %w", err)
	}
	text, err := texttemplate.New("payment_received_text").Parse(paymentReceivedText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template payment_received: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Subject follows the invoice-first wording buyers already know; orders whose
// invoice could not be issued get a plain confirmation subject.
func Subject(info *PaymentInfo) string {
	if info.InvoiceURL != "" {
		return fmt.Sprintf("Sua nota fiscal - Pedido %s", info.OrderNumber)
	}
	return fmt.Sprintf("Pagamento confirmado - Pedido %s", info.OrderNumber)
}

// PaymentReceivedTag labels payment confirmations in the provider dashboard.
const PaymentReceivedTag = "payment-received"

func (r *Renderer) Render(info *PaymentInfo) (*Email, error) {
	if info == nil {
		return nil, fmt.Errorf("payment info is required")
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, info); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.text.Execute(&textBuf, info); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	return &Email{
		To:       info.CustomerEmail,
		Subject:  Subject(info),
		Text:     textBuf.String(),
		HTML:     htmlBuf.String(),
		Tag:      PaymentReceivedTag,
		Metadata: map[string]string{
			"order_number": info.OrderNumber,
		},
	}, nil
}

// SendPaymentReceived renders and sends the payment confirmation. A nil
// provider means email is disabled.
func SendPaymentReceived(ctx context.Context, p Provider, renderer *Renderer, info *PaymentInfo) error {
	if p == nil {
		return nil
	}
	if renderer == nil {
		return fmt.Errorf("email renderer is required")
	}
	if info == nil || info.CustomerEmail == "" {
		return fmt.Errorf("customer email is required")
	}

	email, err := renderer.Render(info)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

const paymentReceivedText = `Olá {{.CustomerName}},

Recebemos o pagamento do seu pedido {{.OrderNumber}} (valor R$ {{.Amount}}).
{{range .Items}}
- {{.Name}} (x{{.Quantity}}) R$ {{.LineTotal}}
{{- end}}
{{if .InvoiceURL}}
Aqui está a sua nota fiscal: {{.InvoiceURL}}
{{else}}
Sua nota fiscal será enviada assim que for emitida.
{{end}}
Obrigado pela preferência!
{{.StoreName}}
`

const paymentReceivedHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Pagamento confirmado</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #059669; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .items-table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items-table td { padding: 8px; border-bottom: 1px solid #e5e7eb; }
    .button { display: inline-block; background: #059669; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Pagamento confirmado</h1>
  </div>
  <div class="content">
    <p>Olá {{.CustomerName}},</p>
    <p>Recebemos o pagamento do seu pedido <strong>{{.OrderNumber}}</strong> (valor R$ {{.Amount}}).</p>
    {{if .Items}}
    <table class="items-table">
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Name}}</td>
          <td>x{{.Quantity}}</td>
          <td>R$ {{.LineTotal}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
    {{if .InvoiceURL}}
    <p>Aqui está a sua nota fiscal:</p>
    <p><a href="{{.InvoiceURL}}" class="button" target="_blank">Clique para baixar a nota fiscal</a></p>
    {{else}}
    <p>Sua nota fiscal será enviada assim que for emitida.</p>
    {{end}}
  </div>
  <div class="footer">
    <p>Obrigado pela preferência!<br>{{.StoreName}}</p>
  </div>
</body>
</html>
`
