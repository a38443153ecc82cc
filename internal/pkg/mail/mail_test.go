package mail

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangarlinks/hangarlinks/app/models"
)

func TestSend_NotConfigured(t *testing.T) {
	m := &SMTPMailer{Sender: "a@b.c", send: func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called without a host")
		return nil
	}}
	assert.NoError(t, m.Send("x@y.z", "hi", "body"))
}

func TestSend(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	m := &SMTPMailer{Host: "smtp.test", Port: "2525", Sender: "noreply@test", send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"pilot@test"}, to)
		return nil
	}}
	require.NoError(t, m.Send("pilot@test", "Hello\r\nBcc: evil@test", "<p>x</p>"))
	assert.Equal(t, "smtp.test:2525", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Hello  Bcc: evil@test\r\n")
	assert.True(t, strings.HasSuffix(string(gotMsg), "<p>x</p>"))

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.ErrorContains(t, m.Send("pilot@test", "s", "b"), "refused")
}

func TestListingAlert(t *testing.T) {
	subject, body := ListingAlert("https://hangarlinks.test/", &models.Listing{ID: 5, AirportICAO: "CYHM", PriceMonth: 900, SizeSqft: 2400, Covered: true})
	assert.Equal(t, "New hangar at CYHM: $900/month", subject)
	assert.Contains(t, body, `href="https://hangarlinks.test/listing/5"`)
	assert.Contains(t, body, "Covered")
}

func TestAdminNotice(t *testing.T) {
	subject, body := AdminNotice("New subscription", "user <3> upgraded")
	assert.Equal(t, "[HangarLinks] New subscription", subject)
	assert.Equal(t, "<pre>user &lt;3&gt; upgraded</pre>", body)
}
