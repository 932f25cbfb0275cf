package search

import "strconv"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ParsePage reads the page and limit query values. Parsed values below 1
// are raised to 1; values that do not parse fall back to the defaults.
func ParsePage(pageStr, limitStr string) (page, limit int) {
	return parsePositive(pageStr, DefaultPage), parsePositive(limitStr, DefaultLimit)
}

func parsePositive(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return max(1, n)
}

// MaxPage is ceil(count/limit).
func MaxPage(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

// Skip is the number of posts before the given page.
func Skip(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}

// Window slices one page out of an already ordered result.
func Window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}
