package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Replies fit comfortably in one read; the largest observed frame set is far
// below this.
const maxFrameRead = 1024

// FetchFrame opens a connection to the inverter's status port, sends an
// information request for the given logger serial number, and returns the
// raw reply bytes. The connection is closed on every exit path. All network
// failures surface as ConnectionError.
func FetchFrame(ctx context.Context, host string, port int, serialNumber uint32, timeout time.Duration) ([]byte, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	logger := log.With().Str("component", "transport").Str("addr", addr).Logger()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, domain.NewConnectionError(host, err)
	}
	defer func() { _ = conn.Close() }()

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, domain.NewConnectionError(host, err)
		}
	}

	request := protocol.InformationRequest(serialNumber)
	logger.Debug().Int("bytes", len(request)).Msg("Sending information request")

	if _, err := conn.Write(request); err != nil {
		return nil, domain.NewConnectionError(host, err)
	}

	buf := make([]byte, maxFrameRead)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, domain.NewConnectionError(host, err)
	}

	logger.Debug().Int("bytes", n).Msg("Received reply")
	return buf[:n], nil
}
