package gallerypress

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type notifyRequest struct {
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	Attachment string `json:"attachment"` // base64, no prefix expected
	MIMEType   string `json:"mimeType"`
	Filename   string `json:"filename"`
}

// handleNotify emails a single PDF/PNG attachment to the submitter. This is
// an independent pipeline from the submission endpoint; the only shared
// machinery is the payload decoding and the error envelope.
func (a *App) handleNotify(c echo.Context) error {
	var req notifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	var missing []string
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.Attachment) == "" {
		missing = append(missing, "attachment")
	}
	if len(missing) > 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "missing required fields: " + strings.Join(missing, ", "),
		})
	}

	data, err := DecodePayload(req.Attachment)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "attachment is not valid base64"})
	}
	if data == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "attachment is empty or too short"})
	}

	mimeType := textOr(strings.TrimSpace(req.MIMEType), "application/pdf")
	job := EmailJob{
		To:      req.Email,
		Subject: "Your mosaic design",
		Attachment: Attachment{
			Content:  data,
			Filename: textOr(strings.TrimSpace(req.Filename), defaultAttachmentName(mimeType)),
			MIMEType: mimeType,
		},
	}
	name := textOr(req.Nickname, "there")
	job.TextBody = fmt.Sprintf("Hi %s,\n\nYour mosaic design is attached. Happy building!\n", name)
	job.HTMLBody = fmt.Sprintf("<p>Hi %s,</p><p>Your mosaic design is attached. Happy building!</p>", esc(name))

	if err := a.mailer.Send(c.Request().Context(), job); err != nil {
		return upstreamJSON(c, "sending email failed", err)
	}

	a.logDelivery(c, Delivery{Kind: "email", Nickname: req.Nickname})
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

func defaultAttachmentName(mimeType string) string {
	if strings.Contains(mimeType, "png") {
		return "mosaic-design.png"
	}
	return "mosaic-design.pdf"
}
