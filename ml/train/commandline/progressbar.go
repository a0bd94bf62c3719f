// Package commandline provides a train.Callback that renders training
// progress on a terminal: one progress bar per epoch, and a small stats
// table at the end of each training pass.
package commandline

import (
	"fmt"
	"os"
	"time"

	"github.com/avivg/burn-hl/ml/train"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	statsStyle        = lipgloss.NewStyle().PaddingLeft(4)
)

// ProgressCallback implements train.Callback, displaying a progress bar for
// the epoch in flight. It expects to be driven from a single goroutine --
// the Learner wraps callbacks in train.AsyncCallback, which guarantees
// that.
type ProgressCallback[TO, VO any] struct {
	out *termenv.Output

	bar        *progressbar.ProgressBar
	barEpoch   int
	epochStart time.Time
	trainItems int
	validItems int
}

// NewProgressCallback creates a ProgressCallback writing to stdout.
func NewProgressCallback[TO, VO any]() *ProgressCallback[TO, VO] {
	return &ProgressCallback[TO, VO]{
		out: termenv.NewOutput(os.Stdout),
	}
}

// OnTrainItem implements train.Callback.
func (c *ProgressCallback[TO, VO]) OnTrainItem(item train.Item[TO]) {
	if c.bar == nil || c.barEpoch != item.Epoch {
		c.startBar(item)
	}
	_ = c.bar.Set(item.Progress.Items)
	c.trainItems = item.Progress.Items
}

func (c *ProgressCallback[TO, VO]) startBar(item train.Item[TO]) {
	total := item.Progress.TotalItems
	if total == 0 {
		total = -1 // Unknown total: progressbar renders a spinner.
	}
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(fmt.Sprintf("Epoch %d/%d: ", item.Epoch, item.EpochTotal)),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	c.barEpoch = item.Epoch
	c.epochStart = time.Now()
}

// OnTrainEndEpoch implements train.Callback.
func (c *ProgressCallback[TO, VO]) OnTrainEndEpoch(epoch int) {
	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}
	elapsed := time.Since(c.epochStart)
	rate := "-"
	if seconds := elapsed.Seconds(); seconds > 0 {
		rate = humanize.CommafWithDigits(float64(c.trainItems)/seconds, 1)
	}
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		}).
		Row("Epoch", fmt.Sprintf("%d", epoch)).
		Row("Items", humanize.Comma(int64(c.trainItems))).
		Row("Duration", elapsed.Round(time.Millisecond).String()).
		Row("Items/s", rate)
	_, _ = c.out.WriteString(statsStyle.Render(table.String()) + "\n")
	c.trainItems = 0
}

// OnValidItem implements train.Callback.
func (c *ProgressCallback[TO, VO]) OnValidItem(item train.Item[VO]) {
	c.validItems = item.Progress.Items
}

// OnValidEndEpoch implements train.Callback.
func (c *ProgressCallback[TO, VO]) OnValidEndEpoch(epoch int) {
	_, _ = c.out.WriteString(fmt.Sprintf("Validation epoch %d: %s items\n", epoch, humanize.Comma(int64(c.validItems))))
	c.validItems = 0
}
