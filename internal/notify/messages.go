package notify

import (
	"fmt"
	"strings"

	"github.com/dcutelaria/storefront/internal/models"
)

// OrderAlertText builds the admin-facing WhatsApp summary for a settled order.
func OrderAlertText(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Pedido pago: %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Cliente: %s (%s)\n", order.Customer.Name, order.Customer.Phone)
	b.WriteString("Itens:\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  • %dx %s\n", item.Quantity, item.Name)
	}
	if order.Discount > 0 {
		fmt.Fprintf(&b, "Desconto: %s\n", formatBRL(order.Discount))
	}
	fmt.Fprintf(&b, "Total: %s\n", formatBRL(order.Total))
	fmt.Fprintf(&b, "Entrega: %s - %s/%s",
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State)
	return b.String()
}
