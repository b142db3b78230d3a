package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailroute/internal/credential"
)

const (
	testUser     = "desk@example.com"
	testPassword = "app-password"
)

func startIMAPServer(t *testing.T) Endpoint {
	t.Helper()
	return serveIMAP(t, nil, SecurityInsecure)
}

// serveIMAP starts an in-memory server. With a TLS config, LOGIN is only
// accepted on an encrypted link.
func serveIMAP(t *testing.T, tlsCfg *tls.Config, sec Security) Endpoint {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser(testUser, testPassword)
	require.NoError(t, user.Create(inbox, nil))
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(_ *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
		},
		TLSConfig:    tlsCfg,
		InsecureAuth: tlsCfg == nil,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if sec == SecurityTLS {
		ln = tls.NewListener(ln, tlsCfg)
	}

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	ep := endpointFor(ln.Addr())
	ep.Security = sec
	return ep
}

// seed appends n messages numbered from 1 so the highest number is the
// newest.
func seed(t *testing.T, ep Endpoint, n int) {
	t.Helper()

	conn, err := net.Dial("tcp", ep.Address())
	require.NoError(t, err)

	seedClient(t, imapclient.New(conn, nil), n)
}

// seedTLS appends n messages over an implicit TLS connection.
func seedTLS(t *testing.T, ep Endpoint, clientCfg *tls.Config, n int) {
	t.Helper()

	conn, err := tls.Dial("tcp", ep.Address(), clientCfg)
	require.NoError(t, err)

	seedClient(t, imapclient.New(conn, nil), n)
}

func seedClient(t *testing.T, client *imapclient.Client, n int) {
	t.Helper()
	defer client.Close()

	require.NoError(t, client.Login(testUser, testPassword).Wait())

	for i := 1; i <= n; i++ {
		msg := fmt.Sprintf(
			"From: sender%d@example.com\r\n"+
				"To: %s\r\n"+
				"Subject: Message %02d\r\n"+
				"Content-Type: text/plain; charset=utf-8\r\n"+
				"\r\n"+
				"Body of message %d\r\n",
			i, testUser, i, i,
		)

		cmd := client.Append(inbox, int64(len(msg)), nil)
		_, err := cmd.Write([]byte(msg))
		require.NoError(t, err)
		require.NoError(t, cmd.Close())
		_, err = cmd.Wait()
		require.NoError(t, err)
	}

	require.NoError(t, client.Logout().Wait())
}

func validCreds() Credentials {
	return Credentials{Username: testUser, Password: credential.NewSecret(testPassword)}
}

func TestFetcher_NewestFirst(t *testing.T) {
	ep := startIMAPServer(t)
	seed(t, ep, 12)

	f := NewFetcher(ep, WithTimeouts(Timeouts{Connect: 2 * time.Second, Read: 5 * time.Second}))

	emails, err := f.Fetch(context.Background(), validCreds(), 3)
	require.NoError(t, err)
	require.Len(t, emails, 3)

	assert.Equal(t, "Message 12", emails[0].Subject)
	assert.Equal(t, "Message 11", emails[1].Subject)
	assert.Equal(t, "Message 10", emails[2].Subject)
	assert.Equal(t, "Body of message 12\r\n", emails[0].Body)
}

func TestFetcher_DefaultLimit(t *testing.T) {
	ep := startIMAPServer(t)
	seed(t, ep, 12)

	f := NewFetcher(ep)

	emails, err := f.Fetch(context.Background(), validCreds(), 0)
	require.NoError(t, err)
	require.Len(t, emails, DefaultFetchLimit)
	assert.Equal(t, "Message 12", emails[0].Subject)
	assert.Equal(t, "Message 03", emails[len(emails)-1].Subject)
}

func TestFetcher_FewerThanLimit(t *testing.T) {
	ep := startIMAPServer(t)
	seed(t, ep, 2)

	emails, err := NewFetcher(ep).Fetch(context.Background(), validCreds(), 10)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "Message 02", emails[0].Subject)
}

func TestFetcher_EmptyInbox(t *testing.T) {
	ep := startIMAPServer(t)

	emails, err := NewFetcher(ep).Fetch(context.Background(), validCreds(), 5)
	require.NoError(t, err)
	assert.NotNil(t, emails)
	assert.Empty(t, emails)
}

func TestFetcher_LeavesMessagesUnseen(t *testing.T) {
	ep := startIMAPServer(t)
	seed(t, ep, 3)

	_, err := NewFetcher(ep).Fetch(context.Background(), validCreds(), 3)
	require.NoError(t, err)

	conn, err := net.Dial("tcp", ep.Address())
	require.NoError(t, err)
	client := imapclient.New(conn, nil)
	defer client.Close()

	require.NoError(t, client.Login(testUser, testPassword).Wait())
	_, err = client.Select(inbox, nil).Wait()
	require.NoError(t, err)

	msgs, err := client.Fetch(imap.SeqSetNum(1, 2, 3), &imap.FetchOptions{Flags: true}).Collect()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, msg := range msgs {
		assert.NotContains(t, msg.Flags, imap.FlagSeen)
	}
}

func TestFetcher_AuthFailure(t *testing.T) {
	ep := startIMAPServer(t)

	creds := Credentials{Username: testUser, Password: credential.NewSecret("not-the-password")}
	emails, err := NewFetcher(ep).Fetch(context.Background(), creds, 5)

	assert.Nil(t, emails)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchAuth, fetchErr.Kind)
	assert.NotContains(t, err.Error(), "not-the-password")
}

func TestFetcher_Verify(t *testing.T) {
	ep := startIMAPServer(t)
	f := NewFetcher(ep)

	require.NoError(t, f.Verify(context.Background(), validCreds()))

	err := f.Verify(context.Background(), Credentials{Username: testUser, Password: credential.NewSecret("nope")})
	assert.True(t, IsFetchAuthError(err))
}

func TestFetcher_NetworkFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := endpointFor(ln.Addr())
	require.NoError(t, ln.Close())

	_, err = NewFetcher(ep, WithTimeouts(Timeouts{Connect: time.Second})).Fetch(context.Background(), validCreds(), 5)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
}

func TestFetcher_ReadTimeout(t *testing.T) {
	// A server that accepts but never sends a greeting.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		<-done
		_ = conn.Close()
	}()

	f := NewFetcher(endpointFor(ln.Addr()), WithTimeouts(Timeouts{Connect: time.Second, Read: 200 * time.Millisecond}))

	_, err = f.Fetch(context.Background(), validCreds(), 5)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
}

func TestNewestFirst(t *testing.T) {
	tests := []struct {
		name  string
		in    []uint32
		limit int
		want  []uint32
	}{
		{"empty", nil, 5, []uint32{}},
		{"fewer than limit", []uint32{1, 2}, 5, []uint32{2, 1}},
		{"clamped", []uint32{1, 2, 3, 4, 5}, 2, []uint32{5, 4}},
		{"unsorted input", []uint32{3, 1, 2}, 3, []uint32{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newestFirst(tt.in, tt.limit)
			assert.ElementsMatch(t, tt.want, got)
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFetcher_ImplicitTLS(t *testing.T) {
	certs := newTestTLS(t)
	ep := serveIMAP(t, certs.server, SecurityTLS)
	seedTLS(t, ep, certs.client, 3)

	emails, err := NewFetcher(ep, WithTLSConfig(certs.client)).Fetch(context.Background(), validCreds(), 2)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "Message 03", emails[0].Subject)
	assert.Equal(t, "Message 02", emails[1].Subject)
}

func TestFetcher_StartTLS(t *testing.T) {
	certs := newTestTLS(t)
	ep := serveIMAP(t, certs.server, SecurityStartTLS)
	f := NewFetcher(ep, WithTLSConfig(certs.client))

	require.NoError(t, f.Verify(context.Background(), validCreds()))

	err := f.Verify(context.Background(), Credentials{Username: testUser, Password: credential.NewSecret("nope")})
	assert.True(t, IsFetchAuthError(err))
}

func TestFetcher_PlaintextLoginRefused(t *testing.T) {
	certs := newTestTLS(t)
	ep := serveIMAP(t, certs.server, SecurityStartTLS)
	ep.Security = SecurityInsecure

	emails, err := NewFetcher(ep).Fetch(context.Background(), validCreds(), 5)
	assert.Nil(t, emails)
	assert.Error(t, err)
}

func TestFetcher_UntrustedCertificate(t *testing.T) {
	certs := newTestTLS(t)
	ep := serveIMAP(t, certs.server, SecurityTLS)

	err := NewFetcher(ep, WithTimeouts(Timeouts{Connect: 2 * time.Second})).Verify(context.Background(), validCreds())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
}
