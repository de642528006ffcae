package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/imagine/internal/core/domain"
)

// connectionMessages are substrings that identify transport failures of
// service calls when no typed error is available.
var connectionMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"timed out",
	"no such host",
	"unexpected eof",
	"server closed the connection",
	"too many connections",
}

// dialMessages identify connection attempts that failed before any
// statement was sent.
var dialMessages = []string{
	"connection refused",
	"no such host",
}

// connectionSQLStates are SQLSTATE codes outside class 08 that still mean
// the connection, not the statement, failed.
var connectionSQLStates = map[string]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// IsNetworkRetryable classifies failures of image service calls.
// Rejections from the service are never retried.
func IsNetworkRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var transient *domain.TransientError
	if errors.As(err, &transient) {
		return true
	}

	return isTransportFailure(err)
}

// IsConnectionError classifies failures of relational store calls. Only
// failures where the statement never reached the server qualify; a lost
// reply (EOF, deadline, read timeout) may follow a committed write and is
// returned on the first attempt.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isConnectionSQLState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isConnectionSQLState(string(pqErr.Code))
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	return isDialFailure(err)
}

// isDialFailure matches errors raised before a connection existed.
func isDialFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range dialMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func isConnectionSQLState(code string) bool {
	return strings.HasPrefix(code, "08") || connectionSQLStates[code]
}

func isTransportFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range connectionMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
