package framework

import (
	"fmt"
	"strings"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Find returns the result recorded for the test with the given path, if any.
func (r Results) Find(path ...string) (TestResult, bool) {
	id := TestID{Path: path}.String()
	for _, t := range r.Tests {
		if t.TestID.String() == id {
			return t, true
		}
	}
	return TestResult{}, false
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// Plus returns a new TestID with name appended, without aliasing the receiver's path.
func (t TestID) Plus(name string) TestID {
	path := make([]string, 0, len(t.Path)+1)
	path = append(path, t.Path...)
	return TestID{Path: append(path, name)}
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

// PrintResults writes a summary of the failed tests to standard output.
func PrintResults(results Results) {
	if results.OK() {
		fmt.Printf("All %d tests passed\n", countRun(results))
		return
	}
	fmt.Printf("FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		fmt.Printf("  * %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
	}
}

func countRun(results Results) int {
	n := 0
	for _, t := range results.Tests {
		if !t.Skipped {
			n++
		}
	}
	return n
}
