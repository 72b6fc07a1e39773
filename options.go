package rangezip

import (
	"time"

	"github.com/rangezip/rangezip/httprange"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTailWindow is the default value of [Options.TailWindow].
	DefaultTailWindow int64 = 1 * 1024 * 1024
	// DefaultChunkSize is the default value of [Options.ChunkSize].
	DefaultChunkSize = 8 * 1024
	// DefaultSafetyMargin is the default value of [Options.SafetyMargin].
	DefaultSafetyMargin int64 = 1024
)

// Options customises New.
type Options struct {
	// ConnectTimeout bounds the TCP connect of each HTTP attempt.
	//
	// Defaults to [httprange.DefaultConnectTimeout]. Ignored when Fetcher
	// is given.
	ConnectTimeout time.Duration

	// RequestTimeout bounds each HTTP attempt end to end.
	//
	// Defaults to [httprange.DefaultRequestTimeout]. Ignored when Fetcher
	// is given.
	RequestTimeout time.Duration

	// MaxAttempts is the number of tries per ranged GET.
	//
	// Defaults to [httprange.DefaultMaxAttempts]. Ignored when Fetcher is
	// given.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff between attempts.
	//
	// Defaults to [httprange.DefaultBaseDelay]. Ignored when Fetcher is
	// given.
	BaseDelay time.Duration

	// TailWindow is the number of trailing bytes fetched to locate the
	// end-of-central-directory record. Archives whose trailing comment
	// pushes the record further back than this are not located.
	//
	// Defaults to DefaultTailWindow. Cannot be smaller than the record's
	// 22 fixed bytes.
	TailWindow int64

	// ChunkSize is the read buffer size used when inflating payloads.
	//
	// Defaults to DefaultChunkSize. Cannot be non-positive.
	ChunkSize int

	// SafetyMargin is the number of extra bytes fetched past each entry's
	// expected end, absorbing local headers whose variable-length fields
	// are longer than the central directory recorded.
	//
	// Defaults to DefaultSafetyMargin. Cannot be negative.
	SafetyMargin int64

	// Limiter, when set, gates every HTTP attempt. Ignored when Fetcher is
	// given.
	Limiter *rate.Limiter

	// Fetcher replaces the range client built from the options above. The
	// caller keeps ownership: [Archive.Close] will not close it.
	Fetcher *httprange.Client

	// Logger receives diagnostics for every fail-soft degradation and
	// discovery event.
	//
	// Defaults to a no-op logger.
	Logger zerolog.Logger
}
