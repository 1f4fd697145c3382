// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

// Global flag values, set by the root command.
var (
	verboseFlag   bool
	quietFlag     bool
	jsonFlag      bool
	headlessFlag  bool
	configFlag    string
	providersFlag string

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Flags holds pointers to the global flag variables for binding.
type Flags struct {
	Verbose   *bool
	Quiet     *bool
	JSON      *bool
	Headless  *bool
	Config    *string
	Providers *string
}

// RegisterFlagPointers returns pointers to flag variables for binding.
// Called by the root command to register flags.
func RegisterFlagPointers() Flags {
	return Flags{
		Verbose:   &verboseFlag,
		Quiet:     &quietFlag,
		JSON:      &jsonFlag,
		Headless:  &headlessFlag,
		Config:    &configFlag,
		Providers: &providersFlag,
	}
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verboseFlag
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quietFlag
}

// GetJSON returns the JSON output flag value
func GetJSON() bool {
	return jsonFlag
}

// GetHeadless reports whether approval prompts are disabled, either by
// --headless or because no terminal is attached.
func GetHeadless() bool {
	return headlessFlag || IsNonInteractive()
}

// GetConfigPath returns the settings file path
func GetConfigPath() string {
	return configFlag
}

// GetProvidersPath returns the mcp.json override
func GetProvidersPath() string {
	return providersFlag
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// SetPathsForTest points the CLI at test files and returns a restore func.
func SetPathsForTest(configPath, providersPath string) func() {
	prevConfig, prevProviders, prevJSON := configFlag, providersFlag, jsonFlag
	configFlag, providersFlag = configPath, providersPath
	return func() {
		configFlag, providersFlag, jsonFlag = prevConfig, prevProviders, prevJSON
	}
}

// SetJSONForTest toggles --json.
func SetJSONForTest(enabled bool) {
	jsonFlag = enabled
}
