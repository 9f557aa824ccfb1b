package download

import (
	"regexp"
	"strconv"

	"github.com/cuivienor/carbon/internal/model"
)

// yt-dlp is run with --newline so every progress report arrives as its own
// line, e.g. "[download]  42.5% of 10.00MiB at 1.2MiB/s ETA 00:05".
var (
	progressRe    = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%`)
	speedRe       = regexp.MustCompile(`at\s+(\S+/s)`)
	etaRe         = regexp.MustCompile(`ETA\s+(\S+)`)
	destinationRe = regexp.MustCompile(`\[download\] Destination: (.+)`)
)

// ParseLine extracts updates from one line of yt-dlp stdout. A line may
// carry several tokens; a line with none yields nil.
func ParseLine(line string) []model.Update {
	var updates []model.Update

	if m := progressRe.FindStringSubmatch(line); m != nil {
		if percent, err := strconv.ParseFloat(m[1], 64); err == nil {
			updates = append(updates, model.ProgressUpdate{Percent: percent})
		}
	}
	if m := speedRe.FindStringSubmatch(line); m != nil {
		updates = append(updates, model.SpeedUpdate{Speed: m[1]})
	}
	if m := etaRe.FindStringSubmatch(line); m != nil {
		updates = append(updates, model.EtaUpdate{Eta: m[1]})
	}
	if m := destinationRe.FindStringSubmatch(line); m != nil {
		updates = append(updates, model.TempPathUpdate{Path: m[1]})
	}

	return updates
}
