package cli

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// newTargetLogger prefixes every line with the target's position in the
// batch so interleaved output stays attributable.
func newTargetLogger(i, n int, target string) *log.Logger {
	return log.New(os.Stderr, fmt.Sprintf("[%d/%d] %s: ", i+1, n, truncateRight(target, 48, "...")), log.LstdFlags|log.Lmsgprefix)
}

// truncateRight keeps the first n runes of text, appending suffix only when
// truncation happens. Presigned URLs make mile-long logger prefixes
// otherwise.
func truncateRight(text string, n int, suffix string) string {
	if n <= 0 {
		return suffix
	}

	rs := []rune(text)
	if len(rs) <= n {
		return text
	}
	return string(rs[:n]) + suffix
}

// defaultBytes is equivalent to progressbar.DefaultBytes but with a higher
// progressbar.OptionThrottle.
func defaultBytes(maxBytes int64, description string, options ...progressbar.Option) *progressbar.ProgressBar {
	return progressbar.NewOptions64(maxBytes,
		append([]progressbar.Option{
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(1 * time.Second),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true)},
			options...)...)
}
