package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edgard/smartblinds/internal/schedule"
)

// commandArgs splits a command message into its arguments, dropping the
// command itself (with or without a @botname suffix).
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return fields
	}
	return fields[1:]
}

type addActionArgs struct {
	weekday schedule.Weekday
	tod     schedule.TimeOfDay
	open    bool
}

// parseAddActionArgs parses "<weekday> <HH:MM[:SS]> <open|close>".
func parseAddActionArgs(args []string) (addActionArgs, error) {
	if len(args) != 3 {
		return addActionArgs{}, fmt.Errorf("want 3 arguments, got %d", len(args))
	}

	weekday, err := schedule.ParseWeekday(args[0])
	if err != nil {
		return addActionArgs{}, err
	}
	tod, err := schedule.ParseTimeOfDay(args[1])
	if err != nil {
		return addActionArgs{}, err
	}

	var open bool
	switch strings.ToLower(args[2]) {
	case "open":
		open = true
	case "close":
	default:
		return addActionArgs{}, fmt.Errorf("unknown target %q, want open or close", args[2])
	}

	return addActionArgs{weekday: weekday, tod: tod, open: open}, nil
}

func parseActionID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("want 1 argument, got %d", len(args))
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid action id %q", args[0])
	}
	return id, nil
}
