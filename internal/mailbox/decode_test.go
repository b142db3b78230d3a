package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantSubject string
		wantBody    string
	}{
		{
			name: "single part plain text",
			raw: `From: alice@example.com
To: inbox@example.com
Subject: Invoice overdue
Content-Type: text/plain; charset=utf-8

Please pay invoice #42.
`,
			wantSubject: "Invoice overdue",
			wantBody:    "Please pay invoice #42.\r\n",
		},
		{
			name: "encoded word subject",
			raw: `Subject: =?UTF-8?B?UmXDp3UgZGUgcGFpZW1lbnQ=?=
Content-Type: text/plain; charset=utf-8

ok
`,
			wantSubject: "Reçu de paiement",
			wantBody:    "ok\r\n",
		},
		{
			name: "alternative prefers plain text",
			raw: `Subject: Meeting
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>Hello <b>team</b></p>
--b1
Content-Type: text/plain; charset=utf-8

Hello team
--b1--
`,
			wantSubject: "Meeting",
			wantBody:    "Hello team",
		},
		{
			name: "html only yields empty body",
			raw: `Subject: Newsletter
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>News</p>
--b1--
`,
			wantSubject: "Newsletter",
			wantBody:    "",
		},
		{
			name: "nested multipart walks depth first",
			raw: `Subject: Report attached
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

See the attached report.
--inner
Content-Type: text/html; charset=utf-8

<p>See the attached report.</p>
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="report.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer--
`,
			wantSubject: "Report attached",
			wantBody:    "See the attached report.",
		},
		{
			name: "text/plain attachment is still plain text",
			raw: `Subject: Logs
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="server.log"

ERROR disk full
--b1
Content-Type: text/plain; charset=utf-8

Server is down, logs attached.
--b1--
`,
			wantSubject: "Logs",
			wantBody:    "ERROR disk full",
		},
		{
			name: "only plain part is an attachment after html",
			raw: `Subject: Notes
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b2"

--b2
Content-Type: text/html; charset=utf-8

<p>see file</p>
--b2
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="notes.txt"

attached text
--b2--
`,
			wantSubject: "Notes",
			wantBody:    "attached text",
		},
		{
			name: "quoted printable latin1 body",
			raw: `Subject: Caf=?ISO-8859-1?Q?=E9?=
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

Caf=E9 cr=E8me
`,
			wantSubject: "Café",
			wantBody:    "Café crème\r\n",
		},
		{
			name: "windows-1252 body",
			raw: "Subject: Quote\nContent-Type: text/plain; charset=windows-1252\nContent-Transfer-Encoding: quoted-printable\n\n=93quoted=94\n",
			wantSubject: "Quote",
			wantBody:    "“quoted”\r\n",
		},
		{
			name: "unknown charset keeps raw text",
			raw: `Subject: Status
Content-Type: text/plain; charset=x-made-up

all good
`,
			wantSubject: "Status",
			wantBody:    "all good\r\n",
		},
		{
			name: "part without content type is plain text",
			raw: `Subject: Bare part
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1

bare text
--b1--
`,
			wantSubject: "Bare part",
			wantBody:    "bare text",
		},
		{
			name: "missing subject",
			raw: `Content-Type: text/plain

no subject here
`,
			wantSubject: "",
			wantBody:    "no subject here\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := DecodeMessage(crlf(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, email.Subject)
			assert.Equal(t, tt.wantBody, email.Body)
		})
	}
}

func TestDecodeMessage_InvalidUTF8Subject(t *testing.T) {
	raw := append([]byte("Subject: caf\xe9\r\nContent-Type: text/plain\r\n\r\n"), []byte("body\r\n")...)

	email, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "caf�", email.Subject)
}
