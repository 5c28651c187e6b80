package detect

import "strconv"

var units = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9,
}

var teens = map[string]int{
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fourty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ParseNumber reads a cardinal at tokens[i]: digits ("17"), a number word
// ("seventeen"), a compound ("twenty one", "twenty-one") or a hundreds
// form ("one hundred and nineteen"). It returns the value and the number
// of tokens consumed. Adjacent unit words are not combined, so "three
// sixteen" reads as 3.
func ParseNumber(tokens []Token, i int) (value, consumed int, ok bool) {
	if i >= len(tokens) {
		return 0, 0, false
	}
	if tokens[i].Type == TokenNumber {
		n, err := strconv.Atoi(tokens[i].Text)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		return n, 1, true
	}

	j := i
	word := func(k int) string {
		if k < len(tokens) && tokens[k].Type == TokenWord {
			return tokens[k].Norm
		}
		return ""
	}

	if u, ok := units[word(j)]; ok && word(j+1) == "hundred" {
		value = u * 100
		j += 2
		if word(j) == "and" && isTailWord(word(j+1)) {
			j++
		}
	}

	if t, ok := tens[word(j)]; ok {
		value += t
		j++
		switch {
		case j+1 < len(tokens) && tokens[j].Type == TokenDash && units[word(j+1)] > 0:
			value += units[word(j+1)]
			j += 2
		case units[word(j)] > 0:
			value += units[word(j)]
			j++
		}
	} else if n, ok := teens[word(j)]; ok {
		value += n
		j++
	} else if n, ok := units[word(j)]; ok {
		value += n
		j++
	}

	if j == i || value == 0 {
		return 0, 0, false
	}
	return value, j - i, true
}

func isTailWord(w string) bool {
	return units[w] > 0 || teens[w] > 0 || tens[w] > 0
}
