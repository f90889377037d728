// Package xcresult reduces an Xcode result bundle to a flat list of test
// cases.
//
// The bundle is queried with `xcrun xcresulttool get` and the JSON it
// prints is walked with gjson. Every scalar in that document is wrapped as
// {"_value": ...} and every collection as {"_values": [...]}. Test items
// form a tree below each testable summary; a node without "subtests" is a
// test case, anything else is a group. Missing or mistyped parts of the
// tree are skipped rather than treated as errors.
package xcresult
