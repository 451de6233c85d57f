package dateparse

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// layouts tried before natural-language parsing; callers frequently hand us
// machine-formatted dates.
var layouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
}

// Parse resolves a scheduling phrase relative to now. The second return is
// false when nothing in the phrase looks like a date.
func Parse(phrase string, now time.Time) (time.Time, bool) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, phrase); err == nil {
			return t, true
		}
	}

	result, err := parser.Parse(phrase, now)
	if err != nil || result == nil {
		return time.Time{}, false
	}
	return result.Time, true
}
