package framework

// TestLogger receives progress events of a run as they happen.
//
// A group is reported like a test whose ID is the group name: TestStarted before its setup hooks,
// then the events of each selected case, then TestFinished once its "after" hooks have run. A group
// with no selected cases only gets TestStarted and TestSkipped. When a group's setup fails, each of
// its cases still gets TestStarted, TestError with the setup error, and TestFinished as failed.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	// TestFinished carries whatever the test wrote to its debug output, for the logger to show or
	// drop.
	TestFinished(id TestID, failed bool, debugOutput CapturedOutput)
	TestSkipped(id TestID, reason string)
}

// nullTestLogger is used when a run is started without a TestLogger.
type nullTestLogger struct{}

func (nullTestLogger) TestStarted(TestID)                        {}
func (nullTestLogger) TestError(TestID, error)                   {}
func (nullTestLogger) TestFinished(TestID, bool, CapturedOutput) {}
func (nullTestLogger) TestSkipped(TestID, string)                {}
