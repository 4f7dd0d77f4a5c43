package extension

import (
	"context"
	"fmt"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

const lastErrorScript = `
let callback = arguments[arguments.length - 1];
browser.runtime.sendMessage({type: "debug.getLastError"}).then(callback);`

// CheckLastError asks the extension, from its own window, for the last error it recorded. It
// returns an error if there was one.
func CheckLastError(ctx context.Context, session browsers.Session, handle string) error {
	if err := session.SwitchWindow(ctx, handle); err != nil {
		return err
	}
	result, err := session.ExecuteAsyncScript(ctx, lastErrorScript)
	if err != nil {
		return fmt.Errorf("querying last error: %w", err)
	}
	value := ldvalue.CopyArbitraryValue(result)
	if value.IsNull() {
		return nil
	}
	if value.IsString() {
		return fmt.Errorf("unhandled error in background page: %s", value.StringValue())
	}
	return fmt.Errorf("unhandled error in background page: %s", value.JSONString())
}
