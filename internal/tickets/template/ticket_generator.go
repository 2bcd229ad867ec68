package template

import (
	"bytes"
	"fmt"
	"image/png"
	"ms-checkin/internal/models"

	"github.com/signintech/gopdf"
)

// EventInfo is printed in the ticket header.
type EventInfo struct {
	Name  string
	Venue string
	Dates string
}

type TicketPDFGenerator struct {
	FontPath string
	Event    EventInfo
}

func NewTicketPDFGenerator(fontPath string, event EventInfo) *TicketPDFGenerator {
	return &TicketPDFGenerator{FontPath: fontPath, Event: event}
}

func (g *TicketPDFGenerator) Generate(ticket models.Ticket, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("dejavu", g.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("dejavu", "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	g.addHeader(pdf)

	pdf.SetY(140)
	addTicketInfo(pdf, ticket)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, qrCode)
	}

	pdf.SetY(760)
	addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *TicketPDFGenerator) addHeader(pdf *gopdf.GoPdf) {
	pdf.SetX(40)
	pdf.SetY(40)
	pdf.SetFont("dejavu", "", 22)
	name := g.Event.Name
	if name == "" {
		name = "EVENT TICKET"
	}
	pdf.Cell(nil, name)

	pdf.SetFont("dejavu", "", 12)
	for _, line := range []string{g.Event.Venue, g.Event.Dates} {
		if line == "" {
			continue
		}
		pdf.Br(26)
		pdf.SetX(40)
		pdf.Cell(nil, line)
	}

	pdf.SetLineWidth(1)
	pdf.Line(40, 110, 555, 110)
	pdf.SetFont("dejavu", "", 14)
}

func addTicketInfo(pdf *gopdf.GoPdf, ticket models.Ticket) {
	info := []struct {
		Label string
		Value string
	}{
		{"Ticket", ticket.TicketNumber},
		{"Name", ticket.FullName},
		{"Email", ticket.Email},
		{"Type", ticket.TicketType},
	}
	if !ticket.IssuedAt.IsZero() {
		info = append(info, struct {
			Label string
			Value string
		}{"Issued", ticket.IssuedAt.Format("2006-01-02 15:04")})
	}

	for _, item := range info {
		if item.Value == "" {
			continue
		}
		pdf.SetX(40)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(22)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.SetX(40)
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: 200, H: 200}
	if err := pdf.ImageFrom(img, 40, pdf.GetY(), rect); err != nil {
		pdf.SetX(40)
		pdf.Cell(nil, "Failed to draw QR code")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(40)
	pdf.SetFont("dejavu", "", 10)
	pdf.Cell(nil, "Present this QR code at the entrance. One scan per program segment.")
}
