// Package cmd implements the xcrunner CLI commands using Cobra.
//
// Available commands:
//   - run: Run schemes, test plans and Swift packages and stream their progress
//   - results: Extract the test cases of a result bundle
//   - history: List recorded runs or show one in detail
//   - discover: Show the schemes, test plans and packages of a project
//   - simulators: List available simulators
//   - validate: Check a run request file without running it
//   - init: Create .xcrunner.yaml and a starter run request
//   - version: Show xcrunner version information
//
// Flags default from XCRUNNER_* environment variables, then from the config
// file, and explicit flags win.
package cmd
