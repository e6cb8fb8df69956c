// Package tickers resolves named ticker groups to symbol lists and splits
// those lists into matrix-job chunks.
package tickers

import (
	"fmt"
	"strings"
)

// Group is a named, fixed collection of tickers updated together.
type Group int

const (
	SP500 Group = iota
	HangSengTech
	MAG7
	Indexes
)

var groups = []Group{SP500, HangSengTech, MAG7, Indexes}

// All returns every group in display order.
func All() []Group {
	return append([]Group(nil), groups...)
}

// Names returns the command-line names of all groups.
func Names() []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.String())
	}
	return names
}

// ParseGroup maps a command-line name onto a Group.
func ParseGroup(name string) (Group, error) {
	for _, g := range groups {
		if strings.EqualFold(name, g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown group %q (want one of %s)", name, strings.Join(Names(), ", "))
}

// String returns the command-line name.
func (g Group) String() string {
	switch g {
	case SP500:
		return "sp500"
	case HangSengTech:
		return "hangseng"
	case MAG7:
		return "mag7"
	case Indexes:
		return "indexes"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// Folder is the directory under the data root that holds the group's files.
func (g Group) Folder() string {
	switch g {
	case SP500:
		return "SP500"
	case HangSengTech:
		return "HangSengTech"
	case MAG7:
		return "MAG7"
	case Indexes:
		return "Indexes"
	default:
		return ""
	}
}

// Title and Description are used by the status document.
func (g Group) Title() string {
	switch g {
	case SP500:
		return "S&P 500"
	case HangSengTech:
		return "Hang Seng Tech Index"
	case MAG7:
		return "MAG7"
	case Indexes:
		return "Market Indexes"
	default:
		return g.String()
	}
}

func (g Group) Description() string {
	switch g {
	case SP500:
		return "All companies in the Standard & Poor's 500 Index"
	case HangSengTech:
		return "Technology companies listed on the Hong Kong Stock Exchange"
	case MAG7:
		return `The "Magnificent Seven" tech giants (Apple, Amazon, Google, Meta, Microsoft, Netflix, Tesla)`
	case Indexes:
		return "Major market indexes including Dow Jones, S&P 500, Nasdaq Composite, Russell 2000, and VIX"
	default:
		return ""
	}
}
