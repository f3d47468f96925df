package email

import "time"

// OrderConfirmationEmail carries the data rendered into the receipt email.
// All money fields are minor units; the template formats them.
type OrderConfirmationEmail struct {
	OrderNumber  string
	Email        string
	CustomerName string
	OrderDate    time.Time

	Items      []OrderLine
	TotalCents int64
	Currency   string // uppercase ISO 4217, e.g. "USD"

	// ShippingAddress is the multi-line display form; empty when the
	// customer provided no usable address.
	ShippingAddress string
}

func (e OrderConfirmationEmail) Subject() string {
	return "Order Confirmation - " + e.OrderNumber
}

// OrderLine is one receipt line.
type OrderLine struct {
	Name       string
	Quantity   int32
	PriceCents int64
	TotalCents int64
}

// orderConfirmationTemplate is the built-in receipt layout. Kept inline so
// the binary has no runtime template-directory dependency.
const orderConfirmationTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:Helvetica,Arial,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px 12px;">
<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;overflow:hidden;">
<tr><td style="background-color:#1c1917;padding:24px 32px;">
<h1 style="margin:0;color:#ffffff;font-size:20px;">Thank you for your order</h1>
</td></tr>
<tr><td style="padding:32px;">
<p style="margin:0 0 8px;color:#1c1917;font-size:15px;">Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p style="margin:0 0 24px;color:#57534e;font-size:14px;">
We received your payment for order <strong>{{.OrderNumber}}</strong> on {{.OrderDate.Format "January 2, 2006"}}.
</p>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="border-collapse:collapse;">
<tr>
<th align="left" style="padding:8px 0;border-bottom:1px solid #e7e5e4;color:#78716c;font-size:12px;text-transform:uppercase;">Item</th>
<th align="center" style="padding:8px 0;border-bottom:1px solid #e7e5e4;color:#78716c;font-size:12px;text-transform:uppercase;">Qty</th>
<th align="right" style="padding:8px 0;border-bottom:1px solid #e7e5e4;color:#78716c;font-size:12px;text-transform:uppercase;">Price</th>
</tr>
{{range .Items}}
<tr>
<td style="padding:10px 0;border-bottom:1px solid #f5f5f4;color:#1c1917;font-size:14px;">{{.Name}}</td>
<td align="center" style="padding:10px 0;border-bottom:1px solid #f5f5f4;color:#57534e;font-size:14px;">{{.Quantity}}</td>
<td align="right" style="padding:10px 0;border-bottom:1px solid #f5f5f4;color:#1c1917;font-size:14px;">{{formatAmount .TotalCents}}</td>
</tr>
{{end}}
<tr>
<td colspan="2" align="right" style="padding:14px 8px 0 0;color:#1c1917;font-size:15px;font-weight:bold;">Total</td>
<td align="right" style="padding:14px 0 0;color:#1c1917;font-size:15px;font-weight:bold;">{{formatAmount .TotalCents}} {{.Currency}}</td>
</tr>
</table>
{{if .ShippingAddress}}
<h2 style="margin:28px 0 8px;color:#1c1917;font-size:14px;">Shipping to</h2>
<p style="margin:0;color:#57534e;font-size:14px;white-space:pre-line;">{{.ShippingAddress}}</p>
{{end}}
</td></tr>
<tr><td style="padding:20px 32px;background-color:#fafaf9;">
<p style="margin:0;color:#a8a29e;font-size:12px;">If you have any questions, just reply to this email.</p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`
