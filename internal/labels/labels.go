// Package labels names the output classes of a handwriting classifier.
package labels

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Default returns printable class names for a classifier with numClasses outputs:
// digits for 10 classes, letters for the 27 classes of the letters split (class 0 unused),
// and the class index otherwise. Other splits should use the mapping file shipped with
// the dataset, see ParseMapping.
func Default(numClasses int) []string {
	names := make([]string, numClasses)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	if numClasses == 27 {
		names[0] = "N/A"
		for i := 1; i < 27; i++ {
			names[i] = string(rune('A' + i - 1))
		}
	}
	return names
}

// ParseMapping reads a class mapping file: one "<class index> <ASCII code> [<ASCII code>...]"
// entry per line; the first code names the class. Classes absent from the file keep their
// index as name.
func ParseMapping(r io.Reader) ([]string, error) {
	mapping := map[int]string{}
	numClasses := 0
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, errors.Errorf("mapping line %d: expected \"<class> <ascii code>\", got %q", line, scanner.Text())
		}
		class, err := strconv.Atoi(fields[0])
		if err != nil || class < 0 {
			return nil, errors.Errorf("mapping line %d: bad class index %q", line, fields[0])
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil || code <= 0 || code > 0x10ffff {
			return nil, errors.Errorf("mapping line %d: bad character code %q", line, fields[1])
		}
		mapping[class] = string(rune(code))
		numClasses = max(numClasses, class+1)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading mapping")
	}

	names := Default(numClasses)
	for class, name := range mapping {
		names[class] = name
	}
	return names, nil
}
