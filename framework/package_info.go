// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of tests.
//
// The general model is:
//
// 1. A Runner collects groups of test cases. Each Group has hooks that set up and tear down
// whatever the cases share, such as a live browser session.
//
// 2. Nothing runs until the code defining the groups calls Start. This lets the definer do slow
// work (fetching data, deciding which groups exist) before the run begins.
//
// 3. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
//
// The domain-specific code that knows what is being tested is responsible for providing the
// hooks, and a domain-specific test API on top of the test context.
package framework
