package compliance

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders the report as a one-table A4 document.
func WritePDF(w io.Writer, rep *Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PillCare - Compliance report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	detail(pdf, "Treatment", rep.TreatmentID.String())
	detail(pdf, "Patient", rep.PatientID.String())
	detail(pdf, "Period", fmt.Sprintf("%s to %s (%d days)", rep.PeriodStart, rep.PeriodEnd, rep.TotalDays))
	detail(pdf, "Scheduled doses", fmt.Sprint(rep.ScheduledDoses))
	detail(pdf, "Taken doses", fmt.Sprint(rep.TakenDoses))
	detail(pdf, "Missed doses", fmt.Sprint(rep.MissedDoses))
	detail(pdf, "Compliance", fmt.Sprintf("%.2f%%", rep.ComplianceRate))
	pdf.Ln(6)

	widths := []float64{40, 35, 35, 35, 35}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Date", "Scheduled", "Taken", "Missed", "Rate"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, d := range rep.Daily {
		if d.Rate < 50 {
			pdf.SetTextColor(180, 0, 0)
		}
		cells := []string{
			d.Date.String(),
			fmt.Sprint(d.Scheduled),
			fmt.Sprint(d.Taken),
			fmt.Sprint(d.Missed),
			fmt.Sprintf("%.0f%%", d.Rate),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, c, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
	}
	if len(rep.Daily) == 0 {
		pdf.CellFormat(0, 8, "No treatment days in this period.", "", 1, "L", false, 0, "")
	}

	return pdf.Output(w)
}

func detail(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 7, label, "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, value, "", 1, "", false, 0, "")
}
