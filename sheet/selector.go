// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sheet

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type selectorKind int

const (
	selectFirst selectorKind = iota
	selectIndex
	selectName
)

// Selector picks one sheet of a workbook by position or by title.
// The zero value selects the first sheet.
type Selector struct {
	kind  selectorKind
	index int
	name  string
}

// FirstSheet selects the first sheet of the workbook.
func FirstSheet() Selector {
	return Selector{kind: selectFirst}
}

// SheetIndex selects a sheet by its 0-based position.
func SheetIndex(i int) Selector {
	return Selector{kind: selectIndex, index: i}
}

// SheetName selects a sheet by title.
func SheetName(name string) Selector {
	return Selector{kind: selectName, name: name}
}

// ParseSelector interprets a command line value: empty selects the first
// sheet, a non-negative integer selects the sheet with that exact title if
// there is one and by position otherwise, anything else selects by title.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if s == "" {
		return FirstSheet()
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 {
		return Selector{kind: selectIndex, index: i, name: s}
	}
	return SheetName(s)
}

// String returns a human-readable form of the selector.
func (s Selector) String() string {
	switch s.kind {
	case selectIndex:
		return fmt.Sprintf("index %d", s.index)
	case selectName:
		return fmt.Sprintf("name %q", s.name)
	default:
		return "first sheet"
	}
}

// Resolve returns the title the selector refers to within titles.
// A parsed numeric selector prefers a sheet titled with the same digits.
// Returns ErrSheetNotFound if the workbook has no sheets, the index is out
// of range or the name is absent.
func (s Selector) Resolve(titles []string) (string, error) {
	if len(titles) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", ErrSheetNotFound)
	}

	switch s.kind {
	case selectIndex:
		if s.name != "" && slices.Contains(titles, s.name) {
			return s.name, nil
		}
		if s.index < 0 || s.index >= len(titles) {
			return "", fmt.Errorf("%w: index %d out of range [0,%d)", ErrSheetNotFound, s.index, len(titles))
		}
		return titles[s.index], nil
	case selectName:
		for _, title := range titles {
			if title == s.name {
				return title, nil
			}
		}
		return "", fmt.Errorf("%w: no sheet named %q", ErrSheetNotFound, s.name)
	default:
		return titles[0], nil
	}
}
