package toolargs

// SwiftTest builds the arguments for `swift test` against one package.
// The filter is passed through to --filter only when non-empty.
func SwiftTest(packagePath, filter string) []string {
	args := []string{"test", "--package-path", packagePath}
	if filter != "" {
		args = append(args, "--filter", filter)
	}
	return args
}

// SwiftPackageDescribe builds the arguments for `swift package describe`
// with JSON output
func SwiftPackageDescribe(packagePath string) []string {
	return []string{"package", "--package-path", packagePath, "describe", "--type", "json"}
}
