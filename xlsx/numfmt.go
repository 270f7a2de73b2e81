package xlsx

import "github.com/xuri/nfp"

// builtinDateFormats are the built-in number format ids that display dates
// or times, including the East Asian locale ranges.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// isDateNumFmt reports whether a number format code contains date or time tokens.
func isDateNumFmt(code string) bool {
	if code == "" {
		return false
	}

	p := nfp.NumberFormatParser()
	for _, section := range p.Parse(code) {
		for _, token := range section.Items {
			switch token.TType {
			case nfp.TokenTypeDateTimes, nfp.TokenTypeElapsedDateTimes:
				return true
			}
		}
	}
	return false
}

// isDateStyle reports whether a style's number format displays a date.
func isDateStyle(numFmt int, customNumFmt *string) bool {
	if builtinDateFormats[numFmt] {
		return true
	}
	return customNumFmt != nil && isDateNumFmt(*customNumFmt)
}
