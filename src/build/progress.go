package build

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LayerEvent is one completed build layer parsed from buildx plain output.
type LayerEvent struct {
	Instruction string        // "FROM", "RUN", "ENV", ...
	Detail      string        // instruction arguments (truncated)
	Cached      bool          // layer was a cache hit
	Duration    time.Duration // zero for cached layers
}

// Regex patterns for buildx --progress=plain output.
var (
	// #N [stage M/N] INSTRUCTION args...
	layerStartRe = regexp.MustCompile(`^#(\d+) \[[^\]]*?(?:\d+/\d+)?\] (\w+)\s*(.*)`)
	// #N [internal] ... (load build definition etc. — skipped)
	internalRe = regexp.MustCompile(`^#\d+ \[(internal|auxiliary)\]`)
	// #N CACHED
	cachedRe = regexp.MustCompile(`^#(\d+) CACHED`)
	// #N DONE 44.8s
	doneRe = regexp.MustCompile(`^#(\d+) DONE (\d+\.?\d*)s`)
)

type layerState struct {
	step        int
	instruction string
	detail      string
	cached      bool
	done        bool
	seconds     float64
}

// ParseProgress parses captured buildx --progress=plain output into
// completed layer events in step order. Internal and export steps are
// filtered out; only real Dockerfile layers remain.
func ParseProgress(output string) []LayerEvent {
	layers := map[int]*layerState{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || internalRe.MatchString(line) {
			continue
		}

		if m := layerStartRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			detail := m[3]
			if len(detail) > 60 {
				detail = detail[:57] + "..."
			}
			layers[num] = &layerState{
				step:        num,
				instruction: m[2],
				detail:      detail,
			}
			continue
		}

		if m := cachedRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			if ls, ok := layers[num]; ok {
				ls.cached = true
				ls.done = true
			}
			continue
		}

		if m := doneRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			secs, _ := strconv.ParseFloat(m[2], 64)
			if ls, ok := layers[num]; ok {
				ls.seconds = secs
				ls.done = true
			}
		}
	}

	ordered := make([]*layerState, 0, len(layers))
	for _, ls := range layers {
		if ls.done && ls.instruction != "" {
			ordered = append(ordered, ls)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].step < ordered[j].step })

	events := make([]LayerEvent, 0, len(ordered))
	for _, ls := range ordered {
		events = append(events, LayerEvent{
			Instruction: ls.instruction,
			Detail:      ls.detail,
			Cached:      ls.cached,
			Duration:    time.Duration(ls.seconds * float64(time.Second)),
		})
	}
	return events
}

// RunLayers filters events down to RUN layers, which map 1:1 onto plan
// steps in order.
func RunLayers(events []LayerEvent) []LayerEvent {
	var runs []LayerEvent
	for _, e := range events {
		if e.Instruction == "RUN" {
			runs = append(runs, e)
		}
	}
	return runs
}
