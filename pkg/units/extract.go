package units

// NoUnitFound is the label Label returns for names without a bracketed unit.
const NoUnitFound = "no unit found"

var closers = map[rune]int{')': 0, ']': 1, '}': 2}
var openers = map[rune]int{'(': 0, '[': 1, '{': 2}

// Extract derives the implied unit of a trend name from its brackets.
//
// Each bracket kind keeps its own stack of open positions. A closing bracket
// that empties its stack records the text between it and its opener as the
// current candidate; later candidates replace earlier ones, whatever their
// kind. Inner brackets of the same kind are swallowed into the outer
// candidate. A closing bracket with no opener of its kind is ordinary text.
func Extract(name string) (string, bool) {
	var stacks [3][]int
	var unit string
	found := false

	runes := []rune(name)
	for i, r := range runes {
		if k, ok := openers[r]; ok {
			stacks[k] = append(stacks[k], i)
			continue
		}
		k, ok := closers[r]
		if !ok || len(stacks[k]) == 0 {
			continue
		}
		open := stacks[k][len(stacks[k])-1]
		stacks[k] = stacks[k][:len(stacks[k])-1]
		if len(stacks[k]) == 0 {
			unit = string(runes[open+1 : i])
			found = true
		}
	}
	return unit, found
}

// Label is Extract with NoUnitFound substituted for a missing unit.
func Label(name string) string {
	if u, ok := Extract(name); ok {
		return u
	}
	return NoUnitFound
}
