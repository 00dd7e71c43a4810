package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dcutelaria/storefront/internal/models"
	"github.com/resend/resend-go/v2"
)

// EmailNotifier sends transactional email through Resend.
type EmailNotifier struct {
	client *resend.Client
	from   string
}

func NewEmailNotifier(apiKey, from string) *EmailNotifier {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	return &EmailNotifier{client: client, from: from}
}

func (n *EmailNotifier) Configured() bool {
	return n.client != nil && n.from != ""
}

// SendOrderConfirmation emails the buyer after the payment settles.
func (n *EmailNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if !n.Configured() {
		return fmt.Errorf("email: sender not configured")
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{order.Customer.Email},
		Subject: fmt.Sprintf("Pedido %s confirmado", order.OrderNumber),
		Html:    orderConfirmationHTML(order),
	}

	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("email: send confirmation: %w", err)
	}
	return nil
}

func orderConfirmationHTML(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Pagamento confirmado!</h2>")
	fmt.Fprintf(&b, "<p>Olá %s, recebemos o pagamento do pedido <strong>%s</strong>.</p>",
		html.EscapeString(firstName(order.Customer.Name)), order.OrderNumber)
	b.WriteString("<ul>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<li>%dx %s — %s</li>",
			item.Quantity, html.EscapeString(item.Name), formatBRL(item.UnitPrice*int64(item.Quantity)))
	}
	b.WriteString("</ul>")
	if order.Discount > 0 {
		fmt.Fprintf(&b, "<p>Desconto: %s</p>", formatBRL(order.Discount))
	}
	fmt.Fprintf(&b, "<p><strong>Total: %s</strong></p>", formatBRL(order.Total))
	return b.String()
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

// formatBRL renders centavos as a pt-BR currency string.
func formatBRL(centavos int64) string {
	reais := centavos / 100
	cents := centavos % 100
	return fmt.Sprintf("R$ %d,%02d", reais, cents)
}
