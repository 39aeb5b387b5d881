package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Common repository errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrMemberNotFound     = errors.New("project member not found")

	// ErrDuplicateEmail is returned when a user with the same email is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidReference is returned when a row points at a user, project or task that does not exist
	ErrInvalidReference = errors.New("referenced record does not exist")

	// ErrTimeout is returned when the caller's deadline expired or the request was cancelled
	ErrTimeout = errors.New("store operation timed out")

	// ErrStoreUnavailable is returned when the database connection or transaction failed
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	pgUniqueViolation   = "23505"
	pgForeignKey        = "23503"
	pgConnectionClass   = "08"
	pgShutdownClass     = "57P"
	pgSerializationFail = "40001"
)

// translate maps driver and gorm errors onto repository errors. notFound is returned
// for gorm.ErrRecordNotFound and may be nil when the caller expects rows to exist.
func translate(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrInvalidReference
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgForeignKey:
			return ErrInvalidReference
		case strings.HasPrefix(pgErr.Code, pgConnectionClass),
			strings.HasPrefix(pgErr.Code, pgShutdownClass),
			pgErr.Code == pgSerializationFail:
			return ErrStoreUnavailable
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || errors.Is(err, driver.ErrBadConn) {
		return ErrStoreUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrStoreUnavailable
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
