package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// statusCopy - тема, заголовок и текст письма о смене статуса.
type statusCopy struct {
	Subject string
	Heading string
	Message string
}

var statusMessages = map[domain.OrderStatus]statusCopy{
	domain.OrderStatusShipped: {
		Subject: "Your order has shipped!",
		Heading: "📦 Your Order is On Its Way!",
		Message: "Great news! Your order has been shipped and is on its way to you.",
	},
	domain.OrderStatusOutForDelivery: {
		Subject: "Your order is out for delivery",
		Heading: "🚚 Out for Delivery Today!",
		Message: "Your order is out for delivery and will arrive today.",
	},
	domain.OrderStatusDelivered: {
		Subject: "Your order has been delivered",
		Heading: "✅ Order Delivered!",
		Message: "Your order has been successfully delivered. We hope you love it!",
	},
}

func copyForStatus(orderID string, status domain.OrderStatus) statusCopy {
	if c, ok := statusMessages[status]; ok {
		return c
	}
	return statusCopy{
		Subject: fmt.Sprintf("Order %s - Status Update", orderID),
		Heading: "📋 Order Status Update",
		Message: fmt.Sprintf("Your order status has been updated to: %s", status),
	}
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
  <div style="background: white; border-radius: 12px; padding: 30px; box-shadow: 0 2px 10px rgba(0,0,0,0.1);">
{{template "content" .}}
    <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; text-align: center;">
      <p style="color: #999; font-size: 14px;">Questions? Reply to this email and we'll help you out.</p>
    </div>
  </div>
</body>
</html>{{end}}`

const confirmationHTML = `{{define "content"}}
    <h1 style="color: #333; margin-bottom: 10px;">🎉 Order Confirmed!</h1>
    <p style="color: #666; font-size: 16px;">Hi {{.Name}},</p>
    <p style="color: #666; font-size: 16px;">Thank you for your order! We've received your order and are getting it ready.</p>
    <div style="background: #f8f8f8; border-radius: 8px; padding: 15px; margin: 20px 0;">
      <p style="margin: 0; color: #333; font-weight: 600;">Order ID: <span style="color: #007bff;">{{.OrderID}}</span></p>
    </div>
    <h3 style="color: #333; margin-top: 30px;">Order Summary</h3>
    <table style="width: 100%; border-collapse: collapse;">
      <thead>
        <tr style="background: #f8f8f8;">
          <th style="padding: 10px; text-align: left;">Item</th>
          <th style="padding: 10px; text-align: center;">Qty</th>
          <th style="padding: 10px; text-align: right;">Price</th>
        </tr>
      </thead>
      <tbody>
{{- range .Items}}
        <tr>
          <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Name}}</td>
          <td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
          <td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{money .Price}}</td>
        </tr>
{{- end}}
      </tbody>
      <tfoot>
        <tr>
          <td colspan="2" style="padding: 15px 10px; font-weight: 600; text-align: right;">Total:</td>
          <td style="padding: 15px 10px; font-weight: 600; text-align: right; color: #007bff;">{{moneyPtr .Total}}</td>
        </tr>
      </tfoot>
    </table>
{{- with .ShippingAddress}}
    <h3 style="color: #333; margin-top: 30px;">Shipping To</h3>
    <p style="color: #666; line-height: 1.6;">
      {{.FullName}}<br>
      {{.Address}}<br>
      {{.City}}, {{.State}} {{.ZipCode}}
    </p>
{{- end}}
{{end}}`

const statusUpdateHTML = `{{define "content"}}
    <h1 style="color: #333; margin-bottom: 10px;">{{.Copy.Heading}}</h1>
    <p style="color: #666; font-size: 16px;">Hi {{.Name}},</p>
    <p style="color: #666; font-size: 16px;">{{.Copy.Message}}</p>
    <div style="background: #f8f8f8; border-radius: 8px; padding: 15px; margin: 20px 0;">
      <p style="margin: 0; color: #333; font-weight: 600;">Order ID: <span style="color: #007bff;">{{.OrderID}}</span></p>
      <p style="margin: 10px 0 0 0; color: #333;">Status: <span style="color: #28a745; font-weight: 600;">{{statusLabel .Status}}</span></p>
    </div>
{{end}}`

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"moneyPtr": func(d *decimal.Decimal) string {
		if d == nil {
			return "$0.00"
		}
		return "$" + d.StringFixed(2)
	},
	"statusLabel": func(s domain.OrderStatus) string {
		return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
	},
}

var (
	confirmationTemplate = template.Must(template.Must(template.New("layout").Funcs(templateFuncs).Parse(layoutHTML)).Parse(confirmationHTML))
	statusUpdateTemplate = template.Must(template.Must(template.New("layout").Funcs(templateFuncs).Parse(layoutHTML)).Parse(statusUpdateHTML))
)

// Email - готовое к отправке письмо.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Render собирает тему и HTML письма по типу уведомления.
func Render(n domain.Notification) (Email, error) {
	if strings.TrimSpace(n.Email) == "" {
		return Email{}, domain.ValidationError("email", "is required")
	}
	if strings.TrimSpace(n.OrderID) == "" {
		return Email{}, domain.ValidationError("orderId", "is required")
	}

	var (
		subject string
		tmpl    *template.Template
		data    any
	)
	switch n.Type {
	case domain.NotificationConfirmation:
		subject = "Order Confirmed - " + n.OrderID
		tmpl = confirmationTemplate
		data = n
	case domain.NotificationStatusUpdate:
		c := copyForStatus(n.OrderID, n.Status)
		subject = c.Subject + " - " + n.OrderID
		tmpl = statusUpdateTemplate
		data = struct {
			domain.Notification
			Copy statusCopy
		}{n, c}
	default:
		return Email{}, domain.ValidationError("type", fmt.Sprintf("unsupported notification type %q", n.Type))
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Email{}, fmt.Errorf("render %s email: %w", n.Type, err)
	}
	return Email{To: n.Email, Subject: subject, HTML: buf.String()}, nil
}
