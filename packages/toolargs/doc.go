// Package toolargs builds command lines for the xcodebuild and swift test
// drivers from a single run unit description.
//
// The builders are pure apart from Xcodebuild's lookup in the project
// directory for a workspace or project container.
package toolargs
