package mailbox

import (
	"context"

	"github.com/nhle/mailroute/internal/model"
)

// Sender delivers a forwarded copy to one recipient. Implementations open a
// fresh session per call and never retry.
type Sender interface {
	Send(ctx context.Context, creds Credentials, req model.ForwardRequest) (model.Confirmation, error)
}
