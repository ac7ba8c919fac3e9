package line_splitter

import (
	"fmt"
	"regexp"
	"time"
)

// Mode determines how the condition pattern of a multiline [Rule] is applied
type Mode string

const (
	// ModeContinueThrough includes all consecutive lines matching the condition in the event
	// the first line (which matched the start pattern) does not need to match the condition
	ModeContinueThrough Mode = "continue_through"
	// ModeContinuePast includes all consecutive lines matching the condition, plus one more line
	ModeContinuePast Mode = "continue_past"
	// ModeHaltBefore includes all consecutive lines not matching the condition
	ModeHaltBefore Mode = "halt_before"
	// ModeHaltWith includes all consecutive lines up to and including the first line matching the condition
	ModeHaltWith Mode = "halt_with"
)

const DefaultJoinWith = "\n"

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeContinueThrough, ModeContinuePast, ModeHaltBefore, ModeHaltWith:
		return m, nil
	default:
		return "", fmt.Errorf("invalid multiline mode '%s' (must be one of %s, %s, %s, %s)", s, ModeContinueThrough, ModeContinuePast, ModeHaltBefore, ModeHaltWith)
	}
}

// Rule is a compiled multiline aggregation rule
type Rule struct {
	// a line matching StartPattern begins a new aggregated event
	StartPattern *regexp.Regexp
	// ConditionPattern is interpreted according to Mode
	ConditionPattern *regexp.Regexp
	Mode             Mode
	// if no line is read for Timeout, any pending event is flushed (0 means never)
	Timeout time.Duration
	// the separator placed between aggregated lines
	JoinWith string
}

// NewRule compiles the patterns and validates the mode
func NewRule(startPattern, conditionPattern, mode string, timeout time.Duration, joinWith *string) (*Rule, error) {
	start, err := regexp.Compile(startPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid multiline start_pattern: %w", err)
	}
	condition, err := regexp.Compile(conditionPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid multiline condition_pattern: %w", err)
	}
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("multiline timeout must not be negative")
	}
	join := DefaultJoinWith
	if joinWith != nil {
		join = *joinWith
	}
	return &Rule{
		StartPattern:     start,
		ConditionPattern: condition,
		Mode:             m,
		Timeout:          timeout,
		JoinWith:         join,
	}, nil
}
