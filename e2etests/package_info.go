// Package e2etests composes the end-to-end test run: one test group per browser binary, each with
// a live session in which the extension has been located, plus the suites that run against it.
//
// Infrastructure that is not specific to browsers, such as groups, hooks and result reporting, is in
// the lower-level framework package.
package e2etests
