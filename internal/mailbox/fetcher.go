package mailbox

import (
	"context"
	"fmt"
	"slices"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/model"
)

// DefaultFetchLimit is used when a non-positive limit is requested.
const DefaultFetchLimit = 10

const inbox = "INBOX"

// Fetcher retrieves recent INBOX messages over IMAP. Each call opens its
// own session and closes it before returning; nothing is cached between
// calls.
type Fetcher struct {
	endpoint Endpoint
	opts     options
}

// NewFetcher creates a Fetcher for the given IMAP endpoint.
func NewFetcher(endpoint Endpoint, opts ...Option) *Fetcher {
	return &Fetcher{
		endpoint: endpoint,
		opts:     newOptions(opts),
	}
}

// imapSession is one authenticated connection.
type imapSession struct {
	client *imapclient.Client
	conn   *deadlineConn
	logger *zap.Logger
}

// fail classifies err, preferring the transport's own failure when the
// link broke underneath the command.
func (s *imapSession) fail(op string, err error) *FetchError {
	if connErr := s.conn.failure(); connErr != nil {
		return &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("%s: %w", op, connErr)}
	}
	return fetchError(op, err)
}

func (s *imapSession) close() {
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("imap logout failed", zap.Error(err))
	}
	_ = s.client.Close()
}

// Fetch returns up to limit of the most recent INBOX messages, newest
// first. The mailbox is opened read-only and bodies are fetched with PEEK,
// so no flags change on the server. Any failure aborts the whole batch.
func (f *Fetcher) Fetch(
	ctx context.Context, creds Credentials, limit int,
) ([]model.Email, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	sess, err := f.connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	if _, err := sess.client.Select(inbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, sess.fail("selecting INBOX", err)
	}

	searchData, err := sess.client.Search(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, sess.fail("searching INBOX", err)
	}

	seqNums := newestFirst(searchData.AllSeqNums(), limit)
	if len(seqNums) == 0 {
		f.opts.logger.Debug("inbox is empty", zap.String("host", f.endpoint.Host))
		return []model.Email{}, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	msgs, err := sess.client.Fetch(imap.SeqSetNum(seqNums...), fetchOpts).Collect()
	if err != nil {
		return nil, sess.fail("fetching messages", err)
	}

	raw := make(map[uint32][]byte, len(msgs))
	for _, msg := range msgs {
		raw[msg.SeqNum] = msg.FindBodySection(bodySection)
	}

	emails := make([]model.Email, 0, len(seqNums))
	for _, n := range seqNums {
		body, ok := raw[n]
		if !ok || body == nil {
			return nil, &FetchError{
				Kind: FetchProtocol,
				Err:  fmt.Errorf("message %d missing from FETCH response", n),
			}
		}

		email, err := DecodeMessage(body)
		if err != nil {
			return nil, &FetchError{
				Kind: FetchProtocol,
				Err:  fmt.Errorf("decoding message %d: %w", n, err),
			}
		}
		emails = append(emails, email)
	}

	f.opts.logger.Info("fetched messages",
		zap.String("host", f.endpoint.Host),
		zap.Int("count", len(emails)),
	)

	return emails, nil
}

// Verify checks that the credentials can open INBOX.
func (f *Fetcher) Verify(ctx context.Context, creds Credentials) error {
	sess, err := f.connect(ctx, creds)
	if err != nil {
		return err
	}
	defer sess.close()

	if _, err := sess.client.Select(inbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return sess.fail("selecting INBOX", err)
	}
	return nil
}

// connect dials, upgrades if needed and authenticates.
func (f *Fetcher) connect(
	ctx context.Context, creds Credentials,
) (*imapSession, error) {
	conn, transport, err := dial(ctx, f.endpoint, f.opts)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: err}
	}

	clientOpts := &imapclient.Options{
		TLSConfig: f.opts.tlsConfigFor(f.endpoint.Host),
	}

	var client *imapclient.Client
	if f.endpoint.Security == SecurityStartTLS {
		client, err = imapclient.NewStartTLS(conn, clientOpts)
		if err != nil {
			broken := transport.failure() != nil || isNetworkError(err)
			conn.Close()
			if broken {
				return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("starting TLS: %w", err)}
			}
			return nil, fetchError("starting TLS", err)
		}
	} else {
		client = imapclient.New(conn, clientOpts)
	}

	sess := &imapSession{client: client, conn: transport, logger: f.opts.logger}

	if err := client.Login(creds.Username, creds.Password.Reveal()).Wait(); err != nil {
		// Closing makes the reader fail on the conn, so classify first.
		broken := transport.failure() != nil || isNetworkError(err)
		_ = client.Close()
		if broken {
			return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("logging in: %w", err)}
		}
		// Any NO/BAD reply to LOGIN means the server refused the credentials.
		return nil, &FetchError{
			Kind: FetchAuth,
			Err:  fmt.Errorf("authentication failed for %s: %w", creds.Username, err),
		}
	}

	return sess, nil
}

// newestFirst returns the highest limit sequence numbers in descending
// order.
func newestFirst(seqNums []uint32, limit int) []uint32 {
	sorted := slices.Clone(seqNums)
	slices.Sort(sorted)
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	slices.Reverse(sorted)
	return sorted
}
