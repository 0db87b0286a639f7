package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	smtpPkg "net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"attendance/internal/config"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtpPkg.Auth, from string, to []string, msg []byte) error

// SMTPGateway sends mail through an SMTP relay with PLAIN auth over STARTTLS.
type SMTPGateway struct {
	addr string
	auth smtpPkg.Auth
	mail string
	send SendFunc
}

// NewSMTPGateway builds a gateway from the SMTP settings in cfg.
func NewSMTPGateway(cfg *config.Config) (*SMTPGateway, error) {
	if cfg.SMTPMail == "" {
		return nil, errors.New("SMTP_MAIL is not set")
	}
	return &SMTPGateway{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		auth: smtpPkg.PlainAuth("", cfg.SMTPMail, cfg.SMTPPassword, cfg.SMTPHost),
		mail: cfg.SMTPMail,
		send: smtpPkg.SendMail,
	}, nil
}

// Notify sends msg. ctx is honoured only before the send starts; net/smtp
// carries its own connection deadlines.
func (s *SMTPGateway) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidEmail(msg.Recipient) {
		return fmt.Errorf("invalid recipient %q", msg.Recipient)
	}

	body, err := compose(s.mail, msg, time.Now())
	if err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, s.mail, []string{msg.Recipient}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.Recipient, err)
	}
	return nil
}

func compose(from string, msg Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.Attachment == nil {
		buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		buf.WriteString(msg.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=\"utf-8\""},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}

	contentType := msg.Attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": msg.Attachment.Filename})},
	})
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(msg.Attachment.Data)
	for len(encoded) > 76 {
		part.Write([]byte(encoded[:76] + "\r\n"))
		encoded = encoded[76:]
	}
	part.Write([]byte(encoded))

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
