// Package cli runs an interactive prompt for trying out suggestions against the live index.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const maxNameWidth = 40

var (
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	typeStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#797593", Dark: "#908caa"})
	fuzzyStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#b4637a", Dark: "#eb6f92"})
)

// InputHandler reads queries line by line and prints the ranked hits.
// Lines starting with ':' are commands:
//
//	:size N   change the number of hits
//	:match    toggle whole-token matching
//	:stats    print engine counters
//	:quit     leave the prompt
type InputHandler struct {
	engine      suggest.Suggester
	size        int
	maxQueryLen int
	match       bool
	in          io.Reader
	out         io.Writer
}

// NewInputHandler creates a prompt on stdin/stdout
func NewInputHandler(engine suggest.Suggester, size, maxQueryLen int) *InputHandler {
	if size <= 0 {
		size = 10
	}
	return &InputHandler{
		engine:      engine,
		size:        size,
		maxQueryLen: maxQueryLen,
		in:          os.Stdin,
		out:         os.Stdout,
	}
}

// Start runs the prompt until EOF or :quit.
func (h *InputHandler) Start() error {
	fmt.Fprintln(h.out, "placeserve CLI")
	fmt.Fprintln(h.out, "type a place name and press Enter (:quit or Ctrl+D to exit):")

	scanner := bufio.NewScanner(h.in)
	for {
		fmt.Fprint(h.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(h.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if !h.handleCommand(line) {
				return nil
			}
			continue
		}
		h.handleInput(line)
	}
}

// handleCommand returns false when the prompt should stop
func (h *InputHandler) handleCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":q", ":quit", ":exit":
		return false
	case ":size":
		if len(fields) != 2 {
			fmt.Fprintf(h.out, "size is %d\n", h.size)
			return true
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			fmt.Fprintln(h.out, "size must be a positive integer")
			return true
		}
		h.size = n
		fmt.Fprintf(h.out, "size set to %d\n", n)
	case ":match":
		h.match = !h.match
		fmt.Fprintf(h.out, "whole-token matching %s\n", onOff(h.match))
	case ":stats":
		stats := h.engine.Stats()
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h.out, "%-14s %s\n", k, utils.FormatWithCommas(int64(stats[k])))
		}
	default:
		fmt.Fprintf(h.out, "unknown command %s\n", fields[0])
	}
	return true
}

func (h *InputHandler) handleInput(q string) {
	if err := utils.ValidateQuery(q, h.maxQueryLen); err != nil {
		fmt.Fprintf(h.out, "invalid query: %v\n", err)
		return
	}

	start := time.Now()
	hits, err := h.engine.Suggest(suggest.Query{Text: q, Size: h.size, Suggest: !h.match})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(h.out, "error: %v\n", err)
		return
	}
	log.Debugf("Took [ %v ] for query '%s'", elapsed, q)

	if len(hits) == 0 {
		fmt.Fprintf(h.out, "no places found for '%s'\n", q)
		return
	}

	fmt.Fprintf(h.out, "found %d places for '%s' in %v:\n", len(hits), q, elapsed.Round(time.Microsecond))
	for _, hit := range hits {
		name := nameStyle.Render(fmt.Sprintf("%-*s", maxNameWidth, utils.Truncate(hit.Name, maxNameWidth)))
		line := fmt.Sprintf("%2d. %s %s", hit.Rank, name, typeStyle.Render(hit.Type))
		if hit.Population > 0 {
			line += fmt.Sprintf("  pop %s", utils.FormatWithCommas(hit.Population))
		}
		if hit.Match == "fuzzy" {
			line += " " + fuzzyStyle.Render("~")
		}
		fmt.Fprintln(h.out, line)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
