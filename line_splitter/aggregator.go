package line_splitter

import "strings"

// Aggregator merges continuation lines into a single event according to a [Rule]
// An Aggregator holds state for a single stream and is not safe for concurrent use
type Aggregator struct {
	rule    *Rule
	pending []string
}

func NewAggregator(rule *Rule) *Aggregator {
	return &Aggregator{rule: rule}
}

// Push handles the next line of the stream and returns any events which are now complete, in order
func (a *Aggregator) Push(line string) []string {
	if len(a.pending) == 0 {
		// only lines matching the start pattern are buffered - anything else passes straight through
		if a.rule.StartPattern.MatchString(line) {
			a.pending = append(a.pending, line)
			return nil
		}
		return []string{line}
	}

	matched := a.rule.ConditionPattern.MatchString(line)
	switch a.rule.Mode {
	case ModeContinueThrough:
		if matched {
			a.pending = append(a.pending, line)
			return nil
		}
		return []string{a.replace(line)}
	case ModeContinuePast:
		a.pending = append(a.pending, line)
		if matched {
			return nil
		}
		return []string{a.take()}
	case ModeHaltBefore:
		if matched {
			return []string{a.replace(line)}
		}
		a.pending = append(a.pending, line)
		return nil
	case ModeHaltWith:
		a.pending = append(a.pending, line)
		if matched {
			return []string{a.take()}
		}
		return nil
	}
	// unreachable for a rule built by NewRule
	return []string{a.replace(line)}
}

// Flush returns the pending event, if there is one
func (a *Aggregator) Flush() (string, bool) {
	if len(a.pending) == 0 {
		return "", false
	}
	return a.take(), true
}

// take returns the merged pending event and clears the buffer
func (a *Aggregator) take() string {
	res := strings.Join(a.pending, a.rule.JoinWith)
	a.pending = a.pending[:0]
	return res
}

// replace returns the merged pending event and starts a new one with the given line
func (a *Aggregator) replace(line string) string {
	res := a.take()
	a.pending = append(a.pending, line)
	return res
}
