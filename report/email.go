package report

import (
	"fmt"
	"strings"

	"azure-cost-report/connectors/acs"
	"azure-cost-report/domain/costreport"
)

// composeMessage builds the notification mail: a short summary in the
// body, the CSV as attachment, and a download link when the report was
// also uploaded to storage.
func composeMessage(sender string, recipients []string, rep costreport.Report, filename, csvContent, blobURL string) acs.Message {
	period := rep.Window.String()
	total := rep.GrandTotal.StringFixed(2)
	generated := rep.GeneratedAt.Format("2006-01-02 15:04:05")

	var plain strings.Builder
	fmt.Fprintf(&plain, "Azure Cost Report\n\n")
	fmt.Fprintf(&plain, "Report Period: %s\n", period)
	fmt.Fprintf(&plain, "Total Subscriptions: %d\n", len(rep.Rows))
	fmt.Fprintf(&plain, "Total Cost: $%s USD\n", total)
	fmt.Fprintf(&plain, "Report File: %s\n", filename)
	fmt.Fprintf(&plain, "Generated: %s\n", generated)
	if blobURL != "" {
		fmt.Fprintf(&plain, "\nDownload Report: %s\n", blobURL)
	}
	plain.WriteString("\nPlease find the detailed cost report attached as a CSV file.\n")
	plain.WriteString("\nThis is an automated email. Please do not reply.\n")

	var html strings.Builder
	html.WriteString(`<html><body style="font-family: Arial, sans-serif; color: #333;">`)
	html.WriteString(`<h2 style="color: #0078D4; border-bottom: 2px solid #0078D4; padding-bottom: 10px;">Azure Cost Report</h2>`)
	html.WriteString(`<table style="border-collapse: collapse;">`)
	fmt.Fprintf(&html, `<tr><td style="padding: 6px;"><strong>Period:</strong></td><td style="padding: 6px;">%s</td></tr>`, period)
	fmt.Fprintf(&html, `<tr><td style="padding: 6px;"><strong>Total Subscriptions:</strong></td><td style="padding: 6px;">%d</td></tr>`, len(rep.Rows))
	fmt.Fprintf(&html, `<tr><td style="padding: 6px;"><strong>Total Cost:</strong></td><td style="padding: 6px; color: #0078D4;"><strong>$%s USD</strong></td></tr>`, total)
	fmt.Fprintf(&html, `<tr><td style="padding: 6px;"><strong>Report File:</strong></td><td style="padding: 6px;">%s</td></tr>`, filename)
	fmt.Fprintf(&html, `<tr><td style="padding: 6px;"><strong>Generated:</strong></td><td style="padding: 6px;">%s</td></tr>`, generated)
	html.WriteString(`</table>`)
	if blobURL != "" {
		fmt.Fprintf(&html, `<p><a href="%s" style="display: inline-block; padding: 10px 20px; background-color: #0078D4; color: white; text-decoration: none; border-radius: 5px;">Download CSV Report</a></p>`, blobURL)
	}
	html.WriteString(`<p>Please find the detailed cost breakdown attached as a CSV file.</p>`)
	html.WriteString(`<p style="font-size: 12px; color: #666;"><em>This is an automated email. Please do not reply.</em></p>`)
	html.WriteString(`</body></html>`)

	return acs.Message{
		Sender:     sender,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Azure Cost Report: %s", period),
		PlainText:  plain.String(),
		HTML:       html.String(),
		Attachment: &acs.Attachment{
			Name:        filename,
			ContentType: "text/csv",
			Content:     []byte(csvContent),
		},
	}
}
