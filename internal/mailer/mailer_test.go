package mailer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmq/internal/platform/config"
	dErrors "gmq/pkg/domain-errors"
)

func validMessage() Message {
	return Message{
		To:      "ana@example.com",
		From:    "noreply@pr.gov",
		Subject: "Su certificado",
		Text:    "hola",
		HTML:    "<p>hola</p>",
	}
}

func TestMessageValidate(t *testing.T) {
	require.NoError(t, validMessage().Validate())

	broken := map[string]func(*Message){
		"to":         func(m *Message) { m.To = "" },
		"from":       func(m *Message) { m.From = "" },
		"subject":    func(m *Message) { m.Subject = " " },
		"body":       func(m *Message) { m.Text, m.HTML = "", "" },
		"attachment": func(m *Message) { m.Attachment = []byte("%PDF-") },
		"address":    func(m *Message) { m.To = "not an address" },
	}
	for name, mutate := range broken {
		t.Run(name, func(t *testing.T) {
			m := validMessage()
			mutate(&m)
			err := m.Validate()
			de, ok := dErrors.As(err)
			require.True(t, ok)
			assert.Equal(t, dErrors.CodeValidation, de.Code)
			assert.Equal(t, dErrors.AppIncorrectEmailParams, de.AppCode)
		})
	}
}

func parseParts(t *testing.T, raw []byte) (*mail.Message, map[string][]byte, map[string]string) {
	t.Helper()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	_, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)

	bodies := map[string][]byte{}
	filenames := map[string]string{}
	var walk func(r io.Reader, boundary string)
	walk = func(r io.Reader, boundary string) {
		mr := multipart.NewReader(r, boundary)
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			require.NoError(t, err)
			mediaType, ps, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
			require.NoError(t, err)
			if strings.HasPrefix(mediaType, "multipart/") {
				walk(p, ps["boundary"])
				continue
			}
			data, err := io.ReadAll(p)
			require.NoError(t, err)
			if p.Header.Get("Content-Transfer-Encoding") == "base64" {
				data, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(string(data), "\r\n", ""))
				require.NoError(t, err)
			}
			bodies[mediaType] = data
			if name := p.FileName(); name != "" {
				filenames[mediaType] = name
			}
		}
	}
	walk(msg.Body, params["boundary"])
	return msg, bodies, filenames
}

func TestBuildMultipart(t *testing.T) {
	m := validMessage()
	m.Subject = "Solicitud recibida, José"
	m.AttachmentName = "certificado_7.pdf"
	m.Attachment = bytes.Repeat([]byte("%PDF-1.4 data "), 20)

	raw, err := Build(m, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, bodies, names := parseParts(t, raw)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, m.Subject, subject)
	assert.Equal(t, "ana@example.com", msg.Header.Get("To"))

	assert.Equal(t, "hola", string(bodies["text/plain"]))
	assert.Equal(t, "<p>hola</p>", string(bodies["text/html"]))
	assert.Equal(t, m.Attachment, bodies["application/pdf"])
	assert.Equal(t, "certificado_7.pdf", names["application/pdf"])
}

func TestRenderLocalizes(t *testing.T) {
	es, err := Render(TemplateReceipt, Spanish, Data{Name: "ANA RIVERA", TransactionID: "PRCAP1"})
	require.NoError(t, err)
	assert.Contains(t, es.Text, "Saludos Ana Rivera")
	assert.Contains(t, es.Text, "PRCAP1")
	assert.Contains(t, es.HTML, "<strong>PRCAP1</strong>")

	en, err := Render(TemplateReceipt, English, Data{Name: "ana", TransactionID: "PRCAP1"})
	require.NoError(t, err)
	assert.Contains(t, en.Text, "Greetings Ana")
	assert.NotEqual(t, es.Subject, en.Subject)

	fallback, err := Render(TemplateReceipt, Language("klingon"), Data{})
	require.NoError(t, err)
	assert.Equal(t, es.Subject, fallback.Subject)
}

func TestRenderEscapesHTML(t *testing.T) {
	c, err := Render(TemplateRejection, English, Data{Reason: "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, c.HTML, "<script>")
	assert.Contains(t, c.Text, "<script>x</script>")
}

func TestEveryTemplateRendersInBothLanguages(t *testing.T) {
	for _, tpl := range []Template{TemplateReceipt, TemplateCertificate, TemplateRejection, TemplateFailure, TemplateManualReview} {
		for _, lang := range []Language{English, Spanish} {
			c, err := Render(tpl, lang, Data{Name: "ana", TransactionID: "PRCAP1"})
			require.NoError(t, err, "%s/%s", tpl, lang)
			assert.NotEmpty(t, c.Subject)
			assert.Contains(t, c.Text, "PRCAP1")
		}
	}
	_, err := Render(Template("nope"), English, Data{})
	assert.Error(t, err)
}

// fakeSMTP accepts one session and captures the DATA payload.
func fakeSMTP(t *testing.T, rejectRcpt bool) (addr string, data <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = io.WriteString(conn, s+"\r\n") }
		write("220 localhost ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"):
				write("250 OK")
			case strings.HasPrefix(cmd, "RCPT"):
				if rejectRcpt {
					write("550 no such user")
					continue
				}
				write("250 OK")
			case cmd == "DATA":
				write("354 go ahead")
				var buf bytes.Buffer
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					buf.WriteString(l)
				}
				out <- buf.Bytes()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("250 OK")
			}
		}
	}()
	return ln.Addr().String(), out
}

func smtpFor(t *testing.T, addr string) *SMTPMailer {
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return NewSMTP(config.SMTPConfig{Host: host, Port: p, From: "noreply@pr.gov"})
}

func TestSMTPMailerDelivers(t *testing.T) {
	addr, data := fakeSMTP(t, false)
	m := smtpFor(t, addr)

	msg := validMessage()
	msg.From = ""
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, msg))

	select {
	case raw := <-data:
		assert.Contains(t, string(raw), "From: noreply@pr.gov")
		assert.Contains(t, string(raw), "multipart/alternative")
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestSMTPMailerRejectedRecipientIsDeliveryError(t *testing.T) {
	addr, _ := fakeSMTP(t, true)
	m := smtpFor(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Send(ctx, validMessage())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMailDelivery))
}

func TestSMTPMailerUnreachable(t *testing.T) {
	m := NewSMTP(config.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "noreply@pr.gov"})
	err := m.Send(context.Background(), validMessage())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMailDelivery))
}

func TestSMTPMailerValidatesBeforeDialing(t *testing.T) {
	m := NewSMTP(config.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "noreply@pr.gov"})
	msg := validMessage()
	msg.To = ""
	err := m.Send(context.Background(), msg)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
