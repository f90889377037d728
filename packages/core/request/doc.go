// Package request loads run requests from JSON or YAML files.
//
// A request file is checked against an embedded JSON schema before it is
// decoded, so structural problems are reported with their JSON path.
// The decoded runner.RunRequest is then validated for the rules a schema
// cannot express (duplicate unit keys, a project for scheme units).
package request
