package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/buketp/UrbanFeed/internal/news"
)

// classifyError maps driver failures onto the storage error taxonomy. Errors
// that match neither class are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, news.ErrStorageUnavailable) || errors.Is(err, news.ErrStorageConflict) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %s (%s): %w", news.ErrStorageConflict, pgErr.ConstraintName, pgErr.Code, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), pgErr.Code == "53300":
			return fmt.Errorf("%w: %w", news.ErrStorageUnavailable, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", news.ErrStorageUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", news.ErrStorageUnavailable, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", news.ErrStorageUnavailable, err)
	}

	return err
}
