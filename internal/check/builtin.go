package check

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/store"
)

// StoreRoundTrip probes the backing store with a write/read/delete cycle.
// It is the designated bootstrap check in the default suite.
func StoreRoundTrip(s store.Store) Func {
	return func(ctx context.Context) Verdict {
		key := fmt.Sprintf("remedyd.probe.%d", time.Now().UnixNano())
		want := []byte("ok")

		if err := s.Put(ctx, key, want); err != nil {
			return Fail("store write failed", err.Error(), "storage")
		}
		got, err := s.Get(ctx, key)
		if err != nil {
			return Fail("store read failed", err.Error(), "storage")
		}
		if !bytes.Equal(got, want) {
			return Fail("store returned wrong value",
				fmt.Sprintf("got %q, want %q", got, want), "storage")
		}
		if err := s.Delete(ctx, key); err != nil {
			return Warn("store probe cleanup failed", "delete stale remedyd.probe.* keys")
		}
		return Pass("store round trip ok")
	}
}

// FileExists verifies a required file is present. A missing file is a
// structural failure; retrying cannot fix a missing dependency.
func FileExists(path string) Func {
	return func(ctx context.Context) Verdict {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Fail(fmt.Sprintf("required file missing: %s", path),
					err.Error(), "filesystem")
			}
			return Fail(fmt.Sprintf("cannot stat %s", path), err.Error(), "filesystem")
		}
		if info.IsDir() {
			return Fail(fmt.Sprintf("%s is a directory, expected file", path),
				"", "filesystem")
		}
		return Pass(fmt.Sprintf("file present: %s", path))
	}
}

// KeyPresent verifies the backing store holds a value under key.
func KeyPresent(s store.Store, key string) Func {
	return func(ctx context.Context) Verdict {
		if _, err := s.Get(ctx, key); err != nil {
			return Verdict{
				Outcome:            OutcomeFail,
				Message:            fmt.Sprintf("missing store key: %s", key),
				ErrorDetail:        err.Error(),
				SuspectedComponent: "storage/configuration",
				SuggestedRemedy:    fmt.Sprintf("seed %s via remedyd run --remediate", key),
				Severity:           SeverityError,
				Timestamp:          time.Now(),
			}
		}
		return Pass(fmt.Sprintf("store key present: %s", key))
	}
}
